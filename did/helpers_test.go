package did

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/elastos/go-did-sdk/crypto"
)

const testPassword = "secret"

// testStore is a minimal in-memory Store for unit tests. Private keys
// are kept unsealed; the store password is checked by comparison.
type testStore struct {
	password  string
	documents map[string]*Document
	keys      map[string][]byte
}

func newTestStore() *testStore {
	return &testStore{
		password:  testPassword,
		documents: make(map[string]*Document),
		keys:      make(map[string][]byte),
	}
}

func (s *testStore) keyRef(subject DID, id DIDURL) string {
	return subject.String() + "|" + id.String()
}

func (s *testStore) StoreDocument(doc *Document) error {
	if doc == nil {
		return newError(CodeIllegalArgument, "document is nil")
	}
	s.documents[doc.Subject().String()] = doc
	return nil
}

func (s *testStore) LoadDocument(subject DID) (*Document, error) {
	doc, ok := s.documents[subject.String()]
	if !ok {
		return nil, newError(CodeStore, "no document for %s", subject)
	}
	return doc, nil
}

func (s *testStore) ContainsDocument(subject DID) bool {
	_, ok := s.documents[subject.String()]
	return ok
}

func (s *testStore) StorePrivateKey(subject DID, id DIDURL, privateKey []byte, password string) error {
	if password != s.password {
		return newError(CodeStore, "wrong password")
	}
	s.keys[s.keyRef(subject, id)] = append([]byte(nil), privateKey...)
	return nil
}

func (s *testStore) ContainsPrivateKey(subject DID, id DIDURL) bool {
	_, ok := s.keys[s.keyRef(subject, id)]
	return ok
}

func (s *testStore) DeletePrivateKey(subject DID, id DIDURL) bool {
	ref := s.keyRef(subject, id)
	if _, ok := s.keys[ref]; !ok {
		return false
	}
	delete(s.keys, ref)
	return true
}

func (s *testStore) Sign(subject DID, id DIDURL, password string, data ...[]byte) (string, error) {
	if password != s.password {
		return "", newError(CodeStore, "wrong password")
	}
	raw, ok := s.keys[s.keyRef(subject, id)]
	if !ok {
		return "", newError(CodeStore, "no private key for %s", id)
	}
	priv, err := crypto.PrivateKeyFromBytes(raw)
	if err != nil {
		return "", wrapError(CodeStore, err, "private key for %s", id)
	}
	sig, err := crypto.Sign(priv, data...)
	if err != nil {
		return "", wrapError(CodeStore, err, "sign with %s", id)
	}
	return crypto.EncodeSignature(sig), nil
}

func (s *testStore) StoreDocumentMetadata(subject DID, meta *DocumentMetadata) error {
	doc, ok := s.documents[subject.String()]
	if !ok {
		return newError(CodeStore, "no document for %s", subject)
	}
	doc.Metadata().SetAlias(meta.Alias())
	return nil
}

// mapResolver resolves documents from a fixed map. Unknown DIDs resolve
// to nil, the never-published answer.
type mapResolver map[string]*Document

func (m mapResolver) Resolve(_ context.Context, d DID, _ bool) (*Document, error) {
	return m[d.String()], nil
}

func resolverFor(docs ...*Document) mapResolver {
	m := make(mapResolver, len(docs))
	for _, doc := range docs {
		m[doc.Subject().String()] = doc
	}
	return m
}

// testIdentity is a fresh keypair with the DID its address anchors, the
// private key placed in the store under #primary.
type testIdentity struct {
	subject DID
	primary DIDURL
	keys    *crypto.KeyPair
}

func newTestIdentity(t *testing.T, s *testStore) *testIdentity {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	address, err := crypto.PublicKeyToAddress(crypto.PublicKeyBytes(kp.PublicKey))
	if err != nil {
		t.Fatalf("derive address: %v", err)
	}
	subject, err := New(address)
	if err != nil {
		t.Fatalf("new DID: %v", err)
	}
	primary, err := NewURL(subject, "primary")
	if err != nil {
		t.Fatalf("new key id: %v", err)
	}
	if err := s.StorePrivateKey(subject, primary, crypto.PrivateKeyBytes(kp.PrivateKey), testPassword); err != nil {
		t.Fatalf("store private key: %v", err)
	}
	return &testIdentity{subject: subject, primary: primary, keys: kp}
}

func (id *testIdentity) builder(t *testing.T, s *testStore) *DocumentBuilder {
	t.Helper()
	b, err := NewDocumentBuilder(id.subject, s)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	if err := b.AddPublicKey(id.primary, DID{}, crypto.EncodePublicKey(id.keys.PublicKey)); err != nil {
		t.Fatalf("add primary key: %v", err)
	}
	return b
}

func (id *testIdentity) seal(t *testing.T, s *testStore) *Document {
	t.Helper()
	doc, err := id.builder(t, s).Seal(testPassword)
	if err != nil {
		t.Fatalf("seal document: %v", err)
	}
	return doc
}

// mustURL builds a fragment-only DIDURL under d.
func mustURL(t *testing.T, d DID, fragment string) DIDURL {
	t.Helper()
	u, err := NewURL(d, fragment)
	if err != nil {
		t.Fatalf("new DIDURL %q: %v", fragment, err)
	}
	return u
}

// editJSON applies an in-place edit to a parsed JSON object and returns
// the re-marshaled bytes, for building tampered and malformed inputs.
func editJSON(t *testing.T, data []byte, edit func(map[string]interface{})) []byte {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal for edit: %v", err)
	}
	edit(m)
	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal after edit: %v", err)
	}
	return out
}
