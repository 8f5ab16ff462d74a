package did

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elastos/go-did-sdk/crypto"
)

func TestDocumentBuilderSeal(t *testing.T) {
	s := newTestStore()
	id := newTestIdentity(t, s)

	before := time.Now()
	doc := id.seal(t, s)

	assert.True(t, doc.Subject().Equal(id.subject))
	assert.Equal(t, 1, doc.PublicKeyCount())
	assert.Equal(t, 1, doc.AuthenticationKeyCount())
	assert.Equal(t, 0, doc.AuthorizationKeyCount())

	def := doc.DefaultPublicKey()
	require.NotNil(t, def)
	assert.True(t, def.ID().Equal(id.primary))
	assert.True(t, doc.IsAuthenticationKey(id.primary))

	// An unset expiration defaults to the maximum validity.
	assert.True(t, doc.Expires().After(before.AddDate(MaxValidYears, 0, 0).Add(-time.Minute)))
	assert.True(t, doc.Expires().Before(time.Now().AddDate(MaxValidYears, 0, 0).Add(time.Minute)))

	proof := doc.Proof()
	require.NotNil(t, proof)
	assert.Equal(t, DefaultPublicKeyType, proof.Type())
	assert.True(t, proof.Creator().Equal(id.primary))
	assert.NotEmpty(t, proof.Signature())

	assert.True(t, doc.IsGenuine())
	assert.False(t, doc.IsExpired())
	assert.False(t, doc.IsDeactivated())
	assert.True(t, doc.IsValid())
}

// richDocument seals a document carrying a second authentication key, an
// authorization key controlled by another DID, a service endpoint, and
// an embedded self-proclaimed credential.
func richDocument(t *testing.T, s *testStore) (*Document, *testIdentity) {
	t.Helper()
	id := newTestIdentity(t, s)
	other := newTestIdentity(t, s)

	base := id.seal(t, s)

	issuer, err := NewIssuer(base, DIDURL{}, s)
	require.NoError(t, err)
	cb, err := issuer.IssueFor(id.subject)
	require.NoError(t, err)
	require.NoError(t, cb.SetIDFragment("profile"))
	require.NoError(t, cb.SetProperties(map[string]interface{}{
		"name":   "John Doe",
		"nation": "Singapore",
	}))
	vc, err := cb.Seal(testPassword)
	require.NoError(t, err)

	extra, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	b := base.Edit(s)
	require.NoError(t, b.AddAuthenticationKeyBase58(mustURL(t, id.subject, "key-2"), crypto.EncodePublicKey(extra.PublicKey)))
	require.NoError(t, b.AddAuthorizationKeyBase58(mustURL(t, id.subject, "recovery"), other.subject, crypto.EncodePublicKey(other.keys.PublicKey)))
	require.NoError(t, b.AddService(mustURL(t, id.subject, "vcr"), "CredentialRepository", "https://did.elastos.org/credentials"))
	require.NoError(t, b.AddCredential(vc))
	doc, err := b.Seal(testPassword)
	require.NoError(t, err)
	return doc, id
}

func TestDocumentJSONRoundTrip(t *testing.T) {
	s := newTestStore()
	doc, _ := richDocument(t, s)

	for _, normalized := range []bool{true, false} {
		name := "compact"
		if normalized {
			name = "normalized"
		}
		t.Run(name, func(t *testing.T) {
			data, err := doc.ToJSON(normalized)
			require.NoError(t, err)

			parsed, err := ParseDocument(data)
			require.NoError(t, err)

			// Same canonical bytes from the parsed copy, and the same
			// normalized form as the original regardless of which form
			// traveled.
			again, err := parsed.ToJSON(normalized)
			require.NoError(t, err)
			assert.Equal(t, string(data), string(again))

			wantNormalized, err := doc.ToJSON(true)
			require.NoError(t, err)
			gotNormalized, err := parsed.ToJSON(true)
			require.NoError(t, err)
			assert.Equal(t, string(wantNormalized), string(gotNormalized))

			assert.True(t, parsed.IsGenuine())
			assert.Equal(t, doc.PublicKeyCount(), parsed.PublicKeyCount())
			assert.Equal(t, doc.AuthenticationKeyCount(), parsed.AuthenticationKeyCount())
			assert.Equal(t, doc.AuthorizationKeyCount(), parsed.AuthorizationKeyCount())
			assert.Equal(t, doc.CredentialCount(), parsed.CredentialCount())
			assert.Equal(t, doc.ServiceCount(), parsed.ServiceCount())
			assert.True(t, doc.Expires().Equal(parsed.Expires()))
		})
	}
}

func TestDocumentCompactForm(t *testing.T) {
	s := newTestStore()
	doc, id := richDocument(t, s)

	compact, err := doc.ToJSON(false)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(compact, &m))

	keys := m["publicKey"].([]interface{})
	require.NotEmpty(t, keys)
	for _, e := range keys {
		entry := e.(map[string]interface{})
		assert.NotContains(t, entry, "type")
		fragment := entry["id"].(string)
		assert.Equal(t, "#", fragment[:1])
		if fragment == "#recovery" {
			// Foreign controller stays explicit.
			assert.Contains(t, entry, "controller")
		} else {
			assert.NotContains(t, entry, "controller")
		}
	}

	auth := m["authentication"].([]interface{})
	assert.Contains(t, auth, "#primary")
	assert.Contains(t, auth, "#key-2")
	authz := m["authorization"].([]interface{})
	assert.Contains(t, authz, "#recovery")

	proof := m["proof"].(map[string]interface{})
	assert.NotContains(t, proof, "type")
	assert.Equal(t, "#primary", proof["creator"])

	// The normalized form spells everything out.
	normalized, err := doc.ToJSON(true)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(normalized, &m))

	keys = m["publicKey"].([]interface{})
	for _, e := range keys {
		entry := e.(map[string]interface{})
		assert.Equal(t, DefaultPublicKeyType, entry["type"])
		assert.Contains(t, entry, "controller")
		assert.Equal(t, id.subject.String()+"#", entry["id"].(string)[:len(id.subject.String())+1])
	}
	proof = m["proof"].(map[string]interface{})
	assert.Equal(t, DefaultPublicKeyType, proof["type"])
}

func TestDocumentSignVerify(t *testing.T) {
	s := newTestStore()
	id := newTestIdentity(t, s)
	doc := id.seal(t, s)

	data := []byte("the quick brown fox")

	// A zero key id selects the default key.
	sig, err := doc.Sign(s, testPassword, DIDURL{}, data)
	require.NoError(t, err)

	ok, err := doc.VerifySignature(DIDURL{}, sig, data)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = doc.VerifySignature(id.primary, sig, data)
	assert.NoError(t, err)
	assert.True(t, ok)

	// A mismatch is a clean false, not an error.
	ok, err = doc.VerifySignature(DIDURL{}, sig, []byte("tampered"))
	assert.NoError(t, err)
	assert.False(t, ok)

	// Multi-segment signing covers the concatenation.
	sig, err = doc.Sign(s, testPassword, id.primary, []byte("realm"), []byte("nonce"))
	require.NoError(t, err)
	ok, err = doc.VerifySignature(id.primary, sig, []byte("realm"), []byte("nonce"))
	assert.NoError(t, err)
	assert.True(t, ok)

	// Unknown key and undecodable signature are errors.
	_, err = doc.Sign(s, testPassword, mustURL(t, id.subject, "missing"), data)
	assert.True(t, errors.Is(err, ErrIllegalArgument))
	_, err = doc.VerifySignature(mustURL(t, id.subject, "missing"), sig, data)
	assert.True(t, errors.Is(err, ErrIllegalArgument))
	_, err = doc.VerifySignature(DIDURL{}, "!not-base64!", data)
	assert.Error(t, err)

	// The store password gates signing.
	_, err = doc.Sign(s, "wrong", DIDURL{}, data)
	assert.True(t, errors.Is(err, ErrStore))

	_, err = doc.Sign(nil, testPassword, DIDURL{}, data)
	assert.True(t, errors.Is(err, ErrStore))
}

func TestDocumentBuilderRules(t *testing.T) {
	s := newTestStore()
	id := newTestIdentity(t, s)
	other := newTestIdentity(t, s)

	b := id.builder(t, s)

	// Duplicate key id.
	err := b.AddPublicKey(id.primary, DID{}, crypto.EncodePublicKey(id.keys.PublicKey))
	assert.True(t, errors.Is(err, ErrIllegalArgument))

	// Key ids must live under the subject.
	err = b.AddPublicKey(mustURL(t, other.subject, "foreign"), DID{}, crypto.EncodePublicKey(other.keys.PublicKey))
	assert.True(t, errors.Is(err, ErrIllegalArgument))

	// The default key cannot leave the document or its authentication set.
	err = b.RemovePublicKey(id.primary, true)
	assert.True(t, errors.Is(err, ErrIllegalArgument))
	err = b.RemoveAuthenticationKey(id.primary)
	assert.True(t, errors.Is(err, ErrIllegalArgument))

	// Authorization demands a controller other than the subject.
	err = b.AddAuthorizationKey(id.primary)
	assert.True(t, errors.Is(err, ErrIllegalArgument))
	err = b.AddAuthorizationKeyBase58(mustURL(t, id.subject, "recovery"), id.subject, crypto.EncodePublicKey(other.keys.PublicKey))
	assert.True(t, errors.Is(err, ErrIllegalArgument))

	// A key controlled by another DID cannot authenticate.
	foreign, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, b.AddPublicKey(mustURL(t, id.subject, "held"), other.subject, crypto.EncodePublicKey(foreign.PublicKey)))
	err = b.AddAuthenticationKey(mustURL(t, id.subject, "held"))
	assert.True(t, errors.Is(err, ErrIllegalArgument))

	// A flagged key needs force to be removed; force also drops the
	// stored private key.
	extra, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	keyID := mustURL(t, id.subject, "key-2")
	require.NoError(t, b.AddAuthenticationKeyBase58(keyID, crypto.EncodePublicKey(extra.PublicKey)))
	require.NoError(t, s.StorePrivateKey(id.subject, keyID, crypto.PrivateKeyBytes(extra.PrivateKey), testPassword))

	err = b.RemovePublicKey(keyID, false)
	assert.True(t, errors.Is(err, ErrIllegalArgument))
	assert.NoError(t, b.RemovePublicKey(keyID, true))
	assert.False(t, s.ContainsPrivateKey(id.subject, keyID))

	// Expiration beyond the maximum validity is rejected.
	err = b.SetExpires(time.Now().AddDate(MaxValidYears, 0, 7))
	assert.True(t, errors.Is(err, ErrIllegalArgument))
	err = b.SetExpires(time.Time{})
	assert.True(t, errors.Is(err, ErrIllegalArgument))
	assert.NoError(t, b.SetExpires(time.Now().AddDate(1, 0, 0)))

	doc, err := b.Seal(testPassword)
	require.NoError(t, err)
	assert.True(t, doc.IsGenuine())
	// The primary key and the foreign-held key survive; key-2 was removed.
	assert.Equal(t, 2, doc.PublicKeyCount())
	assert.Nil(t, doc.GetPublicKey(keyID))
}

func TestDocumentBuilderExpiredDocument(t *testing.T) {
	s := newTestStore()
	id := newTestIdentity(t, s)

	b := id.builder(t, s)
	require.NoError(t, b.SetExpires(time.Now().Add(-time.Hour)))
	doc, err := b.Seal(testPassword)
	require.NoError(t, err)

	// The proof still verifies; validity fails on expiry alone.
	assert.True(t, doc.IsGenuine())
	assert.True(t, doc.IsExpired())
	assert.False(t, doc.IsValid())
}

func TestDocumentBuilderSealOnce(t *testing.T) {
	s := newTestStore()
	id := newTestIdentity(t, s)
	b := id.builder(t, s)

	_, err := b.Seal(testPassword)
	require.NoError(t, err)

	// Every mutator and a second seal fail once the builder is consumed.
	err = b.AddService(mustURL(t, id.subject, "vcr"), "CredentialRepository", "https://example.com")
	assert.True(t, errors.Is(err, ErrInvalidState))
	err = b.SetExpires(time.Now().AddDate(1, 0, 0))
	assert.True(t, errors.Is(err, ErrInvalidState))
	_, err = b.Seal(testPassword)
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.True(t, b.Subject().IsEmpty())
}

func TestDocumentBuilderSealFailureKeepsBuilderOpen(t *testing.T) {
	s := newTestStore()
	id := newTestIdentity(t, s)
	b := id.builder(t, s)

	// Wrong password: sealing fails but the draft survives.
	_, err := b.Seal("wrong")
	assert.True(t, errors.Is(err, ErrStore))

	doc, err := b.Seal(testPassword)
	require.NoError(t, err)
	assert.True(t, doc.IsGenuine())
}

func TestDocumentBuilderNeedsDefaultKey(t *testing.T) {
	s := newTestStore()
	id := newTestIdentity(t, s)
	other, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	b, err := NewDocumentBuilder(id.subject, s)
	require.NoError(t, err)
	// Only a non-default key: the subject's address has no matching material.
	require.NoError(t, b.AddAuthenticationKeyBase58(mustURL(t, id.subject, "key-2"), crypto.EncodePublicKey(other.PublicKey)))

	_, err = b.Seal(testPassword)
	assert.True(t, errors.Is(err, ErrMalformedDocument))

	// Recoverable: add the matching key and seal again.
	require.NoError(t, b.AddPublicKey(id.primary, DID{}, crypto.EncodePublicKey(id.keys.PublicKey)))
	doc, err := b.Seal(testPassword)
	require.NoError(t, err)
	assert.True(t, doc.IsGenuine())
	assert.Equal(t, 2, doc.AuthenticationKeyCount())
}

func TestDocumentEdit(t *testing.T) {
	s := newTestStore()
	id := newTestIdentity(t, s)
	v1 := id.seal(t, s)

	b := v1.Edit(s)
	require.NoError(t, b.AddService(mustURL(t, id.subject, "carrier"), "CarrierAddress", "carrier://x"))
	v2, err := b.Seal(testPassword)
	require.NoError(t, err)

	// The original revision is untouched.
	assert.Equal(t, 0, v1.ServiceCount())
	assert.Equal(t, 1, v2.ServiceCount())
	assert.True(t, v1.IsGenuine())
	assert.True(t, v2.IsGenuine())
	assert.NotEqual(t, v1.Proof().Signature(), v2.Proof().Signature())
}

func TestDocumentUnsupportedSubject(t *testing.T) {
	foreign, err := ParseDID("did:example:abc")
	require.NoError(t, err)

	_, err = NewDocumentBuilder(foreign, newTestStore())
	assert.True(t, errors.Is(err, ErrIllegalArgument))
}

func TestDocumentTamperDetection(t *testing.T) {
	s := newTestStore()
	doc, id := richDocument(t, s)

	data, err := doc.ToJSON(true)
	require.NoError(t, err)

	tests := []struct {
		name string
		edit func(map[string]interface{})
	}{
		{
			name: "Changed expires",
			edit: func(m map[string]interface{}) {
				m["expires"] = "2021-01-01T00:00:00Z"
			},
		},
		{
			name: "Dropped service",
			edit: func(m map[string]interface{}) {
				delete(m, "service")
			},
		},
		{
			name: "Swapped key material",
			edit: func(m map[string]interface{}) {
				kp, err := crypto.GenerateKeyPair()
				require.NoError(t, err)
				entry := m["publicKey"].([]interface{})[0].(map[string]interface{})
				entry["publicKeyBase58"] = crypto.EncodePublicKey(kp.PublicKey)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseDocument(editJSON(t, data, tt.edit))
			require.NoError(t, err)
			assert.True(t, parsed.Subject().Equal(id.subject))
			assert.False(t, parsed.IsGenuine())
		})
	}
}

func TestAuthorizeDID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	id := newTestIdentity(t, s)
	controller := newTestIdentity(t, s)
	controllerDoc := controller.seal(t, s)

	r := resolverFor(controllerDoc)

	b := id.builder(t, s)
	recovery := mustURL(t, id.subject, "recovery")
	require.NoError(t, b.AuthorizeDID(ctx, r, recovery, controller.subject, DIDURL{}))

	doc, err := b.Seal(testPassword)
	require.NoError(t, err)

	key := doc.GetAuthorizationKey(recovery)
	require.NotNil(t, key)
	assert.True(t, key.Controller().Equal(controller.subject))
	assert.Equal(t, controllerDoc.DefaultPublicKey().PublicKeyBase58(), key.PublicKeyBase58())

	// Self-delegation and unpublished controllers are rejected.
	b2 := id.builder(t, s)
	err = b2.AuthorizeDID(ctx, r, mustURL(t, id.subject, "self"), id.subject, DIDURL{})
	assert.True(t, errors.Is(err, ErrIllegalArgument))

	stranger := newTestIdentity(t, s)
	err = b2.AuthorizeDID(ctx, r, mustURL(t, id.subject, "gone"), stranger.subject, DIDURL{})
	assert.True(t, errors.Is(err, ErrResolve))
}

func TestParseDocumentErrors(t *testing.T) {
	s := newTestStore()
	doc, id := richDocument(t, s)
	data, err := doc.ToJSON(true)
	require.NoError(t, err)

	tests := []struct {
		name string
		edit func(map[string]interface{})
	}{
		{
			name: "Missing proof",
			edit: func(m map[string]interface{}) { delete(m, "proof") },
		},
		{
			name: "Missing expires",
			edit: func(m map[string]interface{}) { delete(m, "expires") },
		},
		{
			name: "Missing public keys",
			edit: func(m map[string]interface{}) { delete(m, "publicKey") },
		},
		{
			name: "Missing id",
			edit: func(m map[string]interface{}) { delete(m, "id") },
		},
		{
			name: "Authentication reference to an unknown key",
			edit: func(m map[string]interface{}) {
				m["authentication"] = []interface{}{"#no-such-key"}
			},
		},
		{
			name: "Authorization reference to a subject-controlled key",
			edit: func(m map[string]interface{}) {
				m["authorization"] = []interface{}{"#primary"}
			},
		},
		{
			name: "Undecodable key material",
			edit: func(m map[string]interface{}) {
				entry := m["publicKey"].([]interface{})[0].(map[string]interface{})
				entry["publicKeyBase58"] = "0OIl"
			},
		},
		{
			name: "Corrupt proof signature",
			edit: func(m map[string]interface{}) {
				m["proof"].(map[string]interface{})["signatureValue"] = "***"
			},
		},
		{
			name: "Unparseable expires",
			edit: func(m map[string]interface{}) {
				m["expires"] = "sometime next year"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDocument(editJSON(t, data, tt.edit))
			assert.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedDocument), "expected a MALFORMED_DOCUMENT error, got %v", err)
		})
	}

	_, err = ParseDocument([]byte("{not json"))
	assert.True(t, errors.Is(err, ErrMalformedDocument))

	// A duplicate public key id is rejected. Duplicates survive the map
	// round trip only through the array, so build the input directly.
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	keys := m["publicKey"].([]interface{})
	m["publicKey"] = append(keys, keys[0])
	dupData, err := json.Marshal(m)
	require.NoError(t, err)
	_, err = ParseDocument(dupData)
	assert.True(t, errors.Is(err, ErrMalformedDocument))
	assert.True(t, doc.Subject().Equal(id.subject))
}
