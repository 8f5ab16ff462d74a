package crypto

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcutil"
	"github.com/btcsuite/btcutil/base58"
)

const (
	// prefixIDChain marks a program hash belonging to the ID chain;
	// addresses under it start with 'i'.
	prefixIDChain = 0x67

	// opCheckSigDID terminates the single-signature DID redeem script.
	opCheckSigDID = 0xAD

	programHashSize = 21
	checksumSize    = 4
)

// PublicKeyToAddress derives the ID-chain address of a compressed public
// key. The address doubles as the method-specific id of the DID controlled
// by that key: a document's default key is the one whose address equals
// the document subject's method-specific id.
func PublicKeyToAddress(publicKey []byte) (string, error) {
	if len(publicKey) != PublicKeySize {
		return "", fmt.Errorf("invalid public key size %d for address derivation", len(publicKey))
	}

	script := make([]byte, 0, len(publicKey)+2)
	script = append(script, byte(len(publicKey)))
	script = append(script, publicKey...)
	script = append(script, opCheckSigDID)

	programHash := make([]byte, 0, programHashSize)
	programHash = append(programHash, prefixIDChain)
	programHash = append(programHash, btcutil.Hash160(script)...)

	addr := make([]byte, 0, programHashSize+checksumSize)
	addr = append(addr, programHash...)
	addr = append(addr, checksum(programHash)...)
	return base58.Encode(addr), nil
}

// IsValidAddress reports whether s is a well-formed ID-chain address.
func IsValidAddress(s string) bool {
	raw := base58.Decode(s)
	if len(raw) != programHashSize+checksumSize {
		return false
	}
	if raw[0] != prefixIDChain {
		return false
	}
	return bytes.Equal(raw[programHashSize:], checksum(raw[:programHashSize]))
}

// MatchesAddress reports whether the compressed public key derives the
// given address.
func MatchesAddress(publicKey []byte, address string) bool {
	derived, err := PublicKeyToAddress(publicKey)
	if err != nil {
		return false
	}
	return derived == address
}

func checksum(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:checksumSize]
}
