package did

import (
	"github.com/elastos/go-did-sdk/crypto"
)

// DefaultPublicKeyType is the one key type this protocol signs and
// verifies with.
const DefaultPublicKeyType = "ECDSAsecp256r1"

// PublicKey is a verification key published in a DID document. A key may
// additionally be flagged as an authentication key (proves control of the
// subject) or an authorization key (delegated to a different controller
// acting on the subject's behalf).
type PublicKey struct {
	id                  DIDURL
	keyType             string
	controller          DID
	keyBase58           string
	isAuthenticationKey bool
	isAuthorizationKey  bool
}

// NewPublicKey assembles a public key entry. The key material must be the
// base58 form of one compressed P-256 point.
func NewPublicKey(id DIDURL, controller DID, publicKeyBase58 string) (*PublicKey, error) {
	if id.IsEmpty() || id.Fragment == "" {
		return nil, newError(CodeIllegalArgument, "public key id must carry a fragment")
	}
	if controller.IsEmpty() {
		return nil, newError(CodeIllegalArgument, "public key controller is empty")
	}
	if _, err := crypto.DecodePublicKey(publicKeyBase58); err != nil {
		return nil, wrapError(CodeIllegalArgument, err, "public key %s", id)
	}
	return &PublicKey{
		id:         id,
		keyType:    DefaultPublicKeyType,
		controller: controller,
		keyBase58:  publicKeyBase58,
	}, nil
}

// ID returns the key's DIDURL.
func (k *PublicKey) ID() DIDURL { return k.id }

// Type returns the key type.
func (k *PublicKey) Type() string { return k.keyType }

// Controller returns the DID controlling this key.
func (k *PublicKey) Controller() DID { return k.controller }

// PublicKeyBase58 returns the base58 key material.
func (k *PublicKey) PublicKeyBase58() string { return k.keyBase58 }

// PublicKeyBytes returns the decoded 33-byte compressed point.
func (k *PublicKey) PublicKeyBytes() ([]byte, error) {
	return crypto.DecodePublicKey(k.keyBase58)
}

// IsAuthenticationKey reports membership in the authentication set.
func (k *PublicKey) IsAuthenticationKey() bool { return k.isAuthenticationKey }

// IsAuthorizationKey reports membership in the authorization set.
func (k *PublicKey) IsAuthorizationKey() bool { return k.isAuthorizationKey }

// ObjectTypes implements Object.
func (k *PublicKey) ObjectTypes() []string { return []string{k.keyType} }

func (k *PublicKey) clone() *PublicKey {
	c := *k
	return &c
}

// matchesAddress reports whether this key derives the given ID-chain
// address; the document's default key is the one matching the subject's
// method-specific id.
func (k *PublicKey) matchesAddress(address string) bool {
	material, err := k.PublicKeyBytes()
	if err != nil {
		return false
	}
	return crypto.MatchesAddress(material, address)
}
