package adapter

import (
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

func newDocument(t *testing.T) (*did.Document, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	doc, err := newRootIdentity(t).NewDID(s, testPassword)
	if err != nil {
		t.Fatalf("new DID: %v", err)
	}
	return doc, s
}

func mustURL(t *testing.T, d did.DID, fragment string) did.DIDURL {
	t.Helper()
	id, err := did.NewURL(d, fragment)
	if err != nil {
		t.Fatalf("new DID URL: %v", err)
	}
	return id
}
