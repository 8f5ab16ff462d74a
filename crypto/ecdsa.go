// Package crypto provides the signing primitives behind the Elastos DID
// protocol: ECDSA over NIST P-256 with fixed-width r||s signatures,
// BIP32-style hierarchical key derivation, the address form that DID
// method-specific ids are derived from, and password sealing for private
// keys at rest.
package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcutil/base58"
)

const (
	// SignatureSize is the length of a raw r||s signature.
	SignatureSize = 2 * keySize

	// PublicKeySize is the length of a compressed P-256 point.
	PublicKeySize = 33

	// PrivateKeySize is the length of a P-256 scalar.
	PrivateKeySize = 32

	keySize = 32
)

// ErrInvalidSignature is returned by Verify when the signature does not
// match the input. Structural problems (bad key bytes, bad sizes) are
// reported as distinct errors.
var ErrInvalidSignature = errors.New("ecdsa: invalid signature")

// KeyPair holds a P-256 key pair.
type KeyPair struct {
	PublicKey  *ecdsa.PublicKey
	PrivateKey *ecdsa.PrivateKey
}

// GenerateKeyPair generates a fresh P-256 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	return &KeyPair{PublicKey: &priv.PublicKey, PrivateKey: priv}, nil
}

// PrivateKeyFromBytes rebuilds a private key from its 32-byte scalar.
func PrivateKeyFromBytes(b []byte) (*ecdsa.PrivateKey, error) {
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("ecdsa: invalid private key size %d", len(b))
	}
	curve := elliptic.P256()
	d := new(big.Int).SetBytes(b)
	if d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, errors.New("ecdsa: private key scalar out of range")
	}
	priv := &ecdsa.PrivateKey{D: d}
	priv.Curve = curve
	priv.X, priv.Y = curve.ScalarBaseMult(b)
	return priv, nil
}

// PrivateKeyBytes returns the fixed-width 32-byte scalar of a private key.
func PrivateKeyBytes(priv *ecdsa.PrivateKey) []byte {
	out := make([]byte, PrivateKeySize)
	priv.D.FillBytes(out)
	return out
}

// PublicKeyBytes returns the 33-byte compressed encoding of a public key.
func PublicKeyBytes(pub *ecdsa.PublicKey) []byte {
	return elliptic.MarshalCompressed(pub.Curve, pub.X, pub.Y)
}

// PublicKeyFromBytes parses a 33-byte compressed P-256 point.
func PublicKeyFromBytes(b []byte) (*ecdsa.PublicKey, error) {
	if len(b) != PublicKeySize {
		return nil, fmt.Errorf("ecdsa: invalid public key size %d", len(b))
	}
	curve := elliptic.P256()
	x, y := elliptic.UnmarshalCompressed(curve, b)
	if x == nil {
		return nil, errors.New("ecdsa: invalid public key bytes")
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

// EncodePublicKey renders a public key as the base58 form carried in
// publicKeyBase58 fields.
func EncodePublicKey(pub *ecdsa.PublicKey) string {
	return base58.Encode(PublicKeyBytes(pub))
}

// DecodePublicKey parses base58 key material, requiring it to decode to
// exactly one compressed P-256 point.
func DecodePublicKey(material string) ([]byte, error) {
	b := base58.Decode(material)
	if len(b) != PublicKeySize {
		return nil, fmt.Errorf("invalid key material: decodes to %d bytes, want %d",
			len(b), PublicKeySize)
	}
	return b, nil
}

// Sign signs the input segments with a P-256 key. The segments are hashed
// into a single SHA-256 digest in order; they are deliberately accepted as
// separate arguments, never pre-concatenated by callers, because the
// segment sequence is part of the signed semantics. The signature is the
// fixed-width 64-byte r||s form.
func Sign(priv *ecdsa.PrivateKey, data ...[]byte) ([]byte, error) {
	if priv == nil {
		return nil, errors.New("ecdsa: private key is nil")
	}
	digest := digestSegments(data)

	r, s, err := ecdsa.Sign(rand.Reader, priv, digest)
	if err != nil {
		return nil, fmt.Errorf("ecdsa: sign error: %w", err)
	}

	signature := make([]byte, SignatureSize)
	r.FillBytes(signature[:keySize])
	s.FillBytes(signature[keySize:])
	return signature, nil
}

// Verify checks a 64-byte r||s signature over the input segments against
// a compressed public key. A signature that does not match yields
// ErrInvalidSignature; malformed keys or sizes yield other errors.
func Verify(publicKey, signature []byte, data ...[]byte) error {
	pub, err := PublicKeyFromBytes(publicKey)
	if err != nil {
		return err
	}
	if len(signature) != SignatureSize {
		return fmt.Errorf("ecdsa: invalid signature size %d", len(signature))
	}

	r := new(big.Int).SetBytes(signature[:keySize])
	s := new(big.Int).SetBytes(signature[keySize:])
	if r.Sign() == 0 || s.Sign() == 0 {
		return errors.New("ecdsa: invalid signature format")
	}

	if !ecdsa.Verify(pub, digestSegments(data), r, s) {
		return ErrInvalidSignature
	}
	return nil
}

// EncodeSignature renders a raw signature in the protocol's wire form,
// base64url without padding.
func EncodeSignature(sig []byte) string {
	return base64.RawURLEncoding.EncodeToString(sig)
}

// DecodeSignature parses a base64url signature string.
func DecodeSignature(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding: %w", err)
	}
	return b, nil
}

func digestSegments(data [][]byte) []byte {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}
