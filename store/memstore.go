// Package store provides local custody for DID documents and their
// private keys. Keys are sealed with the store password at rest and
// unsealed only inside signing calls.
package store

import (
	"fmt"
	"sync"

	"github.com/elastos/go-did-sdk/crypto"
	"github.com/elastos/go-did-sdk/did"
)

func newError(code, format string, args ...interface{}) *did.Error {
	return &did.Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code string, cause error, format string, args ...interface{}) *did.Error {
	return &did.Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// MemoryStore is an in-memory did.Store. Documents are kept as the
// sealed, immutable objects they are; private keys are kept only in
// their password-sealed form.
type MemoryStore struct {
	mu        sync.RWMutex
	documents map[string]*did.Document
	keys      map[string][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: map[string]*did.Document{},
		keys:      map[string][]byte{},
	}
}

func privateKeyID(subject did.DID, id did.DIDURL) string {
	return subject.String() + "|" + id.String()
}

// StoreDocument implements did.Store.
func (s *MemoryStore) StoreDocument(doc *did.Document) error {
	if doc == nil {
		return newError(did.CodeIllegalArgument, "document is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.Subject().String()] = doc
	return nil
}

// LoadDocument implements did.Store.
func (s *MemoryStore) LoadDocument(subject did.DID) (*did.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[subject.String()]
	if !ok {
		return nil, newError(did.CodeStore, "no document for %s", subject)
	}
	return doc, nil
}

// ContainsDocument implements did.Store.
func (s *MemoryStore) ContainsDocument(subject did.DID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.documents[subject.String()]
	return ok
}

// ListDocuments returns the subjects of every stored document.
func (s *MemoryStore) ListDocuments() []did.DID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subjects := make([]did.DID, 0, len(s.documents))
	for _, doc := range s.documents {
		subjects = append(subjects, doc.Subject())
	}
	return subjects
}

// StorePrivateKey implements did.Store.
func (s *MemoryStore) StorePrivateKey(subject did.DID, id did.DIDURL, privateKey []byte, password string) error {
	if len(privateKey) != crypto.PrivateKeySize {
		return newError(did.CodeIllegalArgument, "invalid private key size %d", len(privateKey))
	}
	if password == "" {
		return newError(did.CodeIllegalArgument, "store password is empty")
	}
	sealed, err := crypto.SealWithPassword(password, privateKey)
	if err != nil {
		return wrapError(did.CodeStore, err, "seal private key for %s", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[privateKeyID(subject, id)] = sealed
	return nil
}

// ContainsPrivateKey implements did.Store.
func (s *MemoryStore) ContainsPrivateKey(subject did.DID, id did.DIDURL) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[privateKeyID(subject, id)]
	return ok
}

// DeletePrivateKey implements did.Store.
func (s *MemoryStore) DeletePrivateKey(subject did.DID, id did.DIDURL) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := privateKeyID(subject, id)
	_, ok := s.keys[key]
	delete(s.keys, key)
	return ok
}

// Sign implements did.Store. The private key exists in the clear only
// for the duration of the call.
func (s *MemoryStore) Sign(subject did.DID, id did.DIDURL, password string, data ...[]byte) (string, error) {
	s.mu.RLock()
	sealed, ok := s.keys[privateKeyID(subject, id)]
	s.mu.RUnlock()
	if !ok {
		return "", newError(did.CodeStore, "no private key for %s", id)
	}
	plain, err := crypto.OpenWithPassword(password, sealed)
	if err != nil {
		return "", wrapError(did.CodeStore, err, "unseal private key for %s", id)
	}
	defer func() {
		for i := range plain {
			plain[i] = 0
		}
	}()
	priv, err := crypto.PrivateKeyFromBytes(plain)
	if err != nil {
		return "", wrapError(did.CodeStore, err, "private key for %s", id)
	}
	sig, err := crypto.Sign(priv, data...)
	if err != nil {
		return "", wrapError(did.CodeStore, err, "sign with %s", id)
	}
	return crypto.EncodeSignature(sig), nil
}

// StoreDocumentMetadata implements did.Store. The metadata is copied
// onto the stored document's sidecar.
func (s *MemoryStore) StoreDocumentMetadata(subject did.DID, meta *did.DocumentMetadata) error {
	if meta == nil {
		return newError(did.CodeIllegalArgument, "metadata is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[subject.String()]
	if !ok {
		return newError(did.CodeStore, "no document for %s", subject)
	}
	stored := doc.Metadata()
	stored.SetAlias(meta.Alias())
	stored.SetTransactionID(meta.TransactionID())
	stored.SetSignature(meta.Signature())
	stored.SetPublished(meta.Published())
	stored.SetDeactivated(meta.Deactivated())
	return nil
}
