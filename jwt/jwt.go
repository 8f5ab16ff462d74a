// Package jwt issues and verifies JSON Web Tokens whose signing keys
// are DID authentication keys. The token's kid header names the key as
// a DID URL; verification resolves the key owner's document and checks
// the key is in its authentication set.
//
// Signatures are plain P-256 r||s over SHA-256, so tokens interoperate
// with standard ES256 verifiers given the same public key.
package jwt

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/elastos/go-did-sdk/crypto"
	"github.com/elastos/go-did-sdk/did"
)

func newError(code, format string, args ...interface{}) *did.Error {
	return &did.Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code string, cause error, format string, args ...interface{}) *did.Error {
	return &did.Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// MethodDID signs token strings through a DID store. Alg reports ES256;
// parsing verifies through the library's own ES256 method against the
// resolved public key.
var MethodDID gojwt.SigningMethod = &signingMethodDID{}

type signingMethodDID struct{}

func (m *signingMethodDID) Alg() string { return "ES256" }

func (m *signingMethodDID) Sign(signingString string, key interface{}) ([]byte, error) {
	s, ok := key.(*Signer)
	if !ok {
		return nil, gojwt.ErrInvalidKeyType
	}
	encoded, err := s.doc.Sign(s.store, s.password, s.signKey, []byte(signingString))
	if err != nil {
		return nil, err
	}
	return crypto.DecodeSignature(encoded)
}

func (m *signingMethodDID) Verify(signingString string, sig []byte, key interface{}) error {
	switch k := key.(type) {
	case *ecdsa.PublicKey:
		return crypto.Verify(crypto.PublicKeyBytes(k), sig, []byte(signingString))
	case []byte:
		return crypto.Verify(k, sig, []byte(signingString))
	}
	return gojwt.ErrInvalidKeyType
}

// Signer issues tokens on behalf of one DID.
type Signer struct {
	doc      *did.Document
	signKey  did.DIDURL
	store    did.Store
	password string
}

// NewSigner prepares a token issuer. A zero signKey selects the
// document's default key; otherwise the key must be in the document's
// authentication set, and the store must hold its private half.
func NewSigner(doc *did.Document, signKey did.DIDURL, store did.Store, password string) (*Signer, error) {
	if doc == nil {
		return nil, newError(did.CodeIllegalArgument, "signer document is nil")
	}
	if store == nil {
		return nil, newError(did.CodeStore, "signer has no store")
	}
	if signKey.IsEmpty() {
		def := doc.DefaultPublicKey()
		if def == nil {
			return nil, newError(did.CodeIllegalArgument, "document %s has no default key", doc.Subject())
		}
		signKey = def.ID()
	} else if !doc.IsAuthenticationKey(signKey) {
		return nil, newError(did.CodeIllegalArgument,
			"%s is not an authentication key of %s", signKey, doc.Subject())
	}
	if !store.ContainsPrivateKey(doc.Subject(), signKey) {
		return nil, newError(did.CodeStore, "store holds no private key for %s", signKey)
	}
	return &Signer{doc: doc, signKey: signKey, store: store, password: password}, nil
}

// DID returns the signing DID.
func (s *Signer) DID() did.DID { return s.doc.Subject() }

// SignClaims issues a signed token carrying the claims, with the
// signing key's DID URL in the kid header.
func (s *Signer) SignClaims(claims gojwt.Claims) (string, error) {
	token := gojwt.NewWithClaims(MethodDID, claims)
	token.Header["kid"] = s.signKey.String()
	signed, err := token.SignedString(s)
	if err != nil {
		return "", wrapError(did.CodeStore, err, "sign token for %s", s.doc.Subject())
	}
	return signed, nil
}

// Verifier checks tokens against resolved DID documents.
type Verifier struct {
	resolver did.Resolver
}

// NewVerifier builds a verifier on top of a resolver.
func NewVerifier(r did.Resolver) *Verifier {
	return &Verifier{resolver: r}
}

// Parse verifies a token: the kid header must name an authentication
// key of its own DID's resolved document, and the signature and the
// registered time claims must check out.
func (v *Verifier) Parse(ctx context.Context, tokenString string) (*gojwt.Token, error) {
	keyfunc := func(t *gojwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, newError(did.CodeIllegalArgument, "token has no kid header")
		}
		var ref did.DID
		if iss, err := t.Claims.GetIssuer(); err == nil && iss != "" {
			if d, err := did.ParseDID(iss); err == nil {
				ref = d
			}
		}
		id, err := did.ParseURLWithRef(kid, ref)
		if err != nil {
			return nil, wrapError(did.CodeIllegalArgument, err, "token kid %q", kid)
		}
		doc, err := v.resolver.Resolve(ctx, id.DID, false)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, newError(did.CodeResolve, "%s is not published", id.DID)
		}
		key := doc.GetAuthenticationKey(id)
		if key == nil {
			return nil, newError(did.CodeIllegalArgument,
				"%s is not an authentication key of %s", id, id.DID)
		}
		material, err := key.PublicKeyBytes()
		if err != nil {
			return nil, err
		}
		return crypto.PublicKeyFromBytes(material)
	}
	token, err := gojwt.Parse(tokenString, keyfunc, gojwt.WithValidMethods([]string{"ES256"}))
	if err != nil {
		return nil, wrapError(did.CodeIllegalArgument, err, "invalid token")
	}
	return token, nil
}
