package idchain

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/elastos/go-did-sdk/did"
)

func TestStatusString(t *testing.T) {
	assert.Equal(t, "valid", StatusValid.String())
	assert.Equal(t, "expired", StatusExpired.String())
	assert.Equal(t, "deactivated", StatusDeactivated.String())
	assert.Equal(t, "not found", StatusNotFound.String())
	assert.Equal(t, "unknown", Status(9).String())
}

func TestBiographyLatest(t *testing.T) {
	empty := &Biography{Status: StatusNotFound}
	assert.Nil(t, empty.Latest())
}

func TestBiographyJSONRoundTrip(t *testing.T) {
	doc, s := newDocument(t)
	createReq, err := NewCreateRequest(doc, did.DIDURL{}, testPassword, s)
	assert.NoError(t, err)

	builder := doc.Edit(s)
	assert.NoError(t, builder.AddService(mustURL(t, doc.Subject(), "vcr"),
		"CredentialRepositoryService", "https://did.example.com/vault"))
	revised, err := builder.Seal(testPassword)
	assert.NoError(t, err)
	updateReq, err := NewUpdateRequest(revised, "txid-1", did.DIDURL{}, testPassword, s)
	assert.NoError(t, err)

	biography := &Biography{
		DID:    doc.Subject(),
		Status: StatusValid,
		Transactions: []*Transaction{
			{
				TXID:      "txid-2",
				Timestamp: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
				Request:   updateReq,
			},
			{
				TXID:      "txid-1",
				Timestamp: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
				Request:   createReq,
			},
		},
	}

	data, err := json.Marshal(biography)
	assert.NoError(t, err)

	var parsed Biography
	assert.NoError(t, json.Unmarshal(data, &parsed))
	assert.True(t, parsed.DID.Equal(doc.Subject()))
	assert.Equal(t, StatusValid, parsed.Status)
	assert.Len(t, parsed.Transactions, 2)

	latest := parsed.Latest()
	assert.Equal(t, "txid-2", latest.TXID)
	assert.True(t, latest.Timestamp.Equal(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)))
	assert.Equal(t, OperationUpdate, latest.Request.Operation())
	assert.Equal(t, "txid-1", latest.Request.PreviousTxid())
	assert.Equal(t, 1, latest.Request.Document().ServiceCount())

	first := parsed.Transactions[1]
	assert.Equal(t, OperationCreate, first.Request.Operation())
	ok, err := first.Request.IsValid(context.Background(), nil)
	assert.NoError(t, err)
	assert.True(t, ok)

	again, err := json.Marshal(&parsed)
	assert.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestBiographyUnmarshalErrors(t *testing.T) {
	doc, s := newDocument(t)
	req, err := NewCreateRequest(doc, did.DIDURL{}, testPassword, s)
	assert.NoError(t, err)
	base, err := json.Marshal(&Biography{
		DID:    doc.Subject(),
		Status: StatusValid,
		Transactions: []*Transaction{
			{TXID: "txid-1", Timestamp: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC), Request: req},
		},
	})
	assert.NoError(t, err)

	editTransaction := func(edit func(map[string]interface{})) []byte {
		return editJSON(t, base, func(m map[string]interface{}) {
			tx := m["transaction"].([]interface{})[0].(map[string]interface{})
			edit(tx)
		})
	}

	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "not an object",
			data: []byte("[]"),
		},
		{
			name: "no did",
			data: editJSON(t, base, func(m map[string]interface{}) {
				delete(m, "did")
			}),
		},
		{
			name: "malformed did",
			data: editJSON(t, base, func(m map[string]interface{}) {
				m["did"] = "did:elastos:"
			}),
		},
		{
			name: "unknown status",
			data: editJSON(t, base, func(m map[string]interface{}) {
				m["status"] = 9
			}),
		},
		{
			name: "transaction without txid",
			data: editTransaction(func(tx map[string]interface{}) {
				delete(tx, "txid")
			}),
		},
		{
			name: "transaction with bad timestamp",
			data: editTransaction(func(tx map[string]interface{}) {
				tx["timestamp"] = "yesterday"
			}),
		},
		{
			name: "transaction with bad operation",
			data: editTransaction(func(tx map[string]interface{}) {
				tx["operation"] = map[string]interface{}{}
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Biography
			err := json.Unmarshal(tt.data, &b)
			assert.Error(t, err)
			assert.True(t, errors.Is(err, did.ErrResolve))
		})
	}
}
