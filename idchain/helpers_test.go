package idchain

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/elastos/go-did-sdk/did"
	"github.com/elastos/go-did-sdk/store"
)

const (
	testPassword = "secret"
	testMnemonic = "gravity machine north sort system female filter attitude volume fold club stay"
)

func newRootIdentity(t *testing.T) *store.RootIdentity {
	t.Helper()
	identity, err := store.NewRootIdentity(testMnemonic, "")
	if err != nil {
		t.Fatalf("new root identity: %v", err)
	}
	return identity
}

// newDocument derives a fresh identity with its primary key in the
// returned store.
func newDocument(t *testing.T) (*did.Document, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	doc, err := newRootIdentity(t).NewDID(s, testPassword)
	if err != nil {
		t.Fatalf("new DID: %v", err)
	}
	return doc, s
}

type mapResolver map[string]*did.Document

func (m mapResolver) Resolve(ctx context.Context, d did.DID, force bool) (*did.Document, error) {
	return m[d.String()], nil
}

func resolverFor(docs ...*did.Document) mapResolver {
	m := mapResolver{}
	for _, doc := range docs {
		m[doc.Subject().String()] = doc
	}
	return m
}

func mustURL(t *testing.T, d did.DID, fragment string) did.DIDURL {
	t.Helper()
	id, err := did.NewURL(d, fragment)
	if err != nil {
		t.Fatalf("new DID URL: %v", err)
	}
	return id
}

// editJSON applies an in-place edit to a parsed JSON object and
// re-marshals it.
func editJSON(t *testing.T, data []byte, edit func(map[string]interface{})) []byte {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	edit(m)
	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return out
}
