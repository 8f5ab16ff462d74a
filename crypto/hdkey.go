package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/pbkdf2"
)

// HardenedOffset marks a hardened derivation index.
const HardenedOffset uint32 = 0x80000000

// DID keys derive from the seed along m/44'/0'/0'/0/<index>.
var didDerivePath = []uint32{
	44 | HardenedOffset,
	0 | HardenedOffset,
	0 | HardenedOffset,
	0,
}

// masterKeySalt is the SLIP-10 HMAC key for NIST P-256 master keys.
var masterKeySalt = []byte("Nist256p1 seed")

// HDKey is a node of a hierarchical deterministic key tree over P-256,
// derived per the SLIP-10 construction. Child keys are derived on demand;
// nodes are immutable.
type HDKey struct {
	privateKey *ecdsa.PrivateKey
	chainCode  []byte
}

// NewRootKey builds the master node of a key tree from a binary seed,
// typically the output of BIP39Seed.
func NewRootKey(seed []byte) (*HDKey, error) {
	if len(seed) == 0 {
		return nil, errors.New("hdkey: seed is empty")
	}

	mac := hmac.New(sha512.New, masterKeySalt)
	mac.Write(seed)
	sum := mac.Sum(nil)

	for {
		priv, err := PrivateKeyFromBytes(sum[:32])
		if err == nil {
			return &HDKey{privateKey: priv, chainCode: sum[32:]}, nil
		}
		// SLIP-10: retry with HMAC over the previous output until the
		// candidate scalar falls inside the group order.
		mac.Reset()
		mac.Write(sum)
		sum = mac.Sum(nil)
	}
}

// Derive walks a child path from this node. Indexes at or above
// HardenedOffset derive hardened children.
func (k *HDKey) Derive(path ...uint32) (*HDKey, error) {
	node := k
	for _, index := range path {
		child, err := node.child(index)
		if err != nil {
			return nil, err
		}
		node = child
	}
	return node, nil
}

// DeriveDIDKey derives the key pair for a DID key slot along the standard
// DID path m/44'/0'/0'/0/<index>. Index 0 is the identity's default key.
func (k *HDKey) DeriveDIDKey(index uint32) (*KeyPair, error) {
	node, err := k.Derive(append(append([]uint32{}, didDerivePath...), index)...)
	if err != nil {
		return nil, fmt.Errorf("hdkey: derive DID key %d: %w", index, err)
	}
	return &KeyPair{PublicKey: &node.privateKey.PublicKey, PrivateKey: node.privateKey}, nil
}

// KeyPair returns this node's key pair.
func (k *HDKey) KeyPair() *KeyPair {
	return &KeyPair{PublicKey: &k.privateKey.PublicKey, PrivateKey: k.privateKey}
}

// Address returns the ID-chain address of this node's public key. The
// address of the derivation at index 0 becomes a new DID's
// method-specific id.
func (k *HDKey) Address() (string, error) {
	return PublicKeyToAddress(PublicKeyBytes(&k.privateKey.PublicKey))
}

func (k *HDKey) child(index uint32) (*HDKey, error) {
	curve := elliptic.P256()
	data := make([]byte, 0, 37)

	if index >= HardenedOffset {
		data = append(data, 0x00)
		data = append(data, PrivateKeyBytes(k.privateKey)...)
	} else {
		data = append(data, PublicKeyBytes(&k.privateKey.PublicKey)...)
	}
	data = binary.BigEndian.AppendUint32(data, index)

	mac := hmac.New(sha512.New, k.chainCode)
	mac.Write(data)
	sum := mac.Sum(nil)

	for {
		il := new(big.Int).SetBytes(sum[:32])
		if il.Cmp(curve.Params().N) < 0 {
			child := new(big.Int).Add(il, k.privateKey.D)
			child.Mod(child, curve.Params().N)
			if child.Sign() != 0 {
				childBytes := make([]byte, PrivateKeySize)
				child.FillBytes(childBytes)
				priv, err := PrivateKeyFromBytes(childBytes)
				if err != nil {
					return nil, err
				}
				return &HDKey{privateKey: priv, chainCode: sum[32:]}, nil
			}
		}
		// SLIP-10 retry for the negligible out-of-range cases.
		mac.Reset()
		mac.Write([]byte{0x01})
		mac.Write(sum[32:])
		mac.Write(data[len(data)-4:])
		sum = mac.Sum(nil)
	}
}

// BIP39Seed stretches a mnemonic sentence and passphrase into the 64-byte
// binary seed a key tree grows from. Mnemonic generation and word-list
// validation live behind the Mnemonic interface; seed stretching is
// word-list independent.
func BIP39Seed(mnemonic, passphrase string) []byte {
	return pbkdf2.Key([]byte(mnemonic), []byte("mnemonic"+passphrase), 2048, 64, sha512.New)
}
