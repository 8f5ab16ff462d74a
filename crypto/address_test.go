package crypto

import (
	"testing"

	"github.com/btcsuite/btcutil/base58"
	"github.com/stretchr/testify/assert"
)

func TestPublicKeyToAddress(t *testing.T) {
	pair, err := GenerateKeyPair()
	assert.NoError(t, err)
	pub := PublicKeyBytes(pair.PublicKey)

	addr, err := PublicKeyToAddress(pub)
	assert.NoError(t, err)
	assert.True(t, IsValidAddress(addr))
	assert.True(t, MatchesAddress(pub, addr))

	// Derivation is a pure function of the key.
	again, err := PublicKeyToAddress(pub)
	assert.NoError(t, err)
	assert.Equal(t, addr, again)

	other, err := GenerateKeyPair()
	assert.NoError(t, err)
	otherAddr, err := PublicKeyToAddress(PublicKeyBytes(other.PublicKey))
	assert.NoError(t, err)
	assert.NotEqual(t, addr, otherAddr)
	assert.False(t, MatchesAddress(pub, otherAddr))
}

func TestPublicKeyToAddressSize(t *testing.T) {
	_, err := PublicKeyToAddress(make([]byte, PublicKeySize-1))
	assert.Error(t, err)

	_, err = PublicKeyToAddress(nil)
	assert.Error(t, err)
}

func TestIsValidAddressRejects(t *testing.T) {
	pair, err := GenerateKeyPair()
	assert.NoError(t, err)
	addr, err := PublicKeyToAddress(PublicKeyBytes(pair.PublicKey))
	assert.NoError(t, err)

	corrupted := []byte(addr)
	if corrupted[len(corrupted)-1] == 'x' {
		corrupted[len(corrupted)-1] = 'y'
	} else {
		corrupted[len(corrupted)-1] = 'x'
	}

	// A well-formed program hash under a foreign prefix is not an ID-chain
	// address even with a valid checksum.
	foreign := make([]byte, programHashSize)
	foreign[0] = 0x21
	foreign = append(foreign, checksum(foreign[:programHashSize])...)

	tests := []struct {
		name    string
		address string
	}{
		{name: "empty", address: ""},
		{name: "not base58", address: "0OIl"},
		{name: "too short", address: addr[:10]},
		{name: "corrupted checksum", address: string(corrupted)},
		{name: "foreign prefix", address: base58.Encode(foreign)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, IsValidAddress(tt.address))
		})
	}
}

func TestMatchesAddressMalformedKey(t *testing.T) {
	pair, err := GenerateKeyPair()
	assert.NoError(t, err)
	addr, err := PublicKeyToAddress(PublicKeyBytes(pair.PublicKey))
	assert.NoError(t, err)

	assert.False(t, MatchesAddress(make([]byte, 5), addr))
	assert.False(t, MatchesAddress(nil, addr))
}
