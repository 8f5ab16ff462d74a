package idchain

import (
	"encoding/json"
	"time"

	"github.com/elastos/go-did-sdk/did"
)

// Status of a DID as reported by the chain.
type Status int

const (
	// StatusValid means the DID has a live published document.
	StatusValid Status = 0

	// StatusExpired means the latest published document has expired.
	StatusExpired Status = 1

	// StatusDeactivated means the DID has been retired.
	StatusDeactivated Status = 2

	// StatusNotFound means the DID was never published.
	StatusNotFound Status = 3
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusExpired:
		return "expired"
	case StatusDeactivated:
		return "deactivated"
	case StatusNotFound:
		return "not found"
	}
	return "unknown"
}

// Transaction is one recorded ID transaction.
type Transaction struct {
	TXID      string
	Timestamp time.Time
	Request   *Request
}

// Biography is the recorded history of one DID: its current status and
// its transactions, newest first.
type Biography struct {
	DID          did.DID
	Status       Status
	Transactions []*Transaction
}

// Latest returns the newest transaction, or nil for an unpublished DID.
func (b *Biography) Latest() *Transaction {
	if len(b.Transactions) == 0 {
		return nil
	}
	return b.Transactions[0]
}

type rawTransaction struct {
	TXID      string          `json:"txid"`
	Timestamp string          `json:"timestamp"`
	Operation json.RawMessage `json:"operation"`
}

type rawBiography struct {
	DID         string            `json:"did"`
	Status      int               `json:"status"`
	Transaction []*rawTransaction `json:"transaction,omitempty"`
}

const timestampFormat = "2006-01-02T15:04:05Z"

// MarshalJSON implements json.Marshaler in the chain's resolve result
// format.
func (b *Biography) MarshalJSON() ([]byte, error) {
	raw := &rawBiography{
		DID:    b.DID.String(),
		Status: int(b.Status),
	}
	for _, tx := range b.Transactions {
		op, err := tx.Request.ToJSON(false)
		if err != nil {
			return nil, err
		}
		raw.Transaction = append(raw.Transaction, &rawTransaction{
			TXID:      tx.TXID,
			Timestamp: tx.Timestamp.UTC().Truncate(time.Second).Format(timestampFormat),
			Operation: op,
		})
	}
	return json.Marshal(raw)
}

// UnmarshalJSON implements json.Unmarshaler for the chain's resolve
// result format.
func (b *Biography) UnmarshalJSON(data []byte) error {
	var raw rawBiography
	if err := json.Unmarshal(data, &raw); err != nil {
		return wrapError(did.CodeResolve, err, "invalid resolve result")
	}
	if raw.DID == "" {
		return newError(did.CodeResolve, "resolve result has no did")
	}
	d, err := did.ParseDID(raw.DID)
	if err != nil {
		return wrapError(did.CodeResolve, err, "resolve result did %q", raw.DID)
	}
	if raw.Status < int(StatusValid) || raw.Status > int(StatusNotFound) {
		return newError(did.CodeResolve, "resolve result has unknown status %d", raw.Status)
	}

	b.DID = d
	b.Status = Status(raw.Status)
	b.Transactions = nil
	for _, rt := range raw.Transaction {
		if rt.TXID == "" {
			return newError(did.CodeResolve, "resolve result transaction has no txid")
		}
		ts, err := time.Parse(time.RFC3339, rt.Timestamp)
		if err != nil {
			return wrapError(did.CodeResolve, err, "transaction %s timestamp %q", rt.TXID, rt.Timestamp)
		}
		req, err := ParseRequest(rt.Operation)
		if err != nil {
			return wrapError(did.CodeResolve, err, "transaction %s", rt.TXID)
		}
		b.Transactions = append(b.Transactions, &Transaction{
			TXID:      rt.TXID,
			Timestamp: ts.UTC().Truncate(time.Second),
			Request:   req,
		})
	}
	return nil
}
