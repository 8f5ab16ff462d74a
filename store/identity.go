package store

import (
	"sync"

	"github.com/elastos/go-did-sdk/crypto"
	"github.com/elastos/go-did-sdk/did"
)

// PrimaryKeyFragment names the key every fresh DID document starts with.
const PrimaryKeyFragment = "primary"

// RootIdentity derives DIDs deterministically from one mnemonic. Every
// device holding the mnemonic derives the same DID and key pair at the
// same index.
type RootIdentity struct {
	mu        sync.Mutex
	rootKey   *crypto.HDKey
	nextIndex uint32
}

// NewRootIdentity builds the identity from a BIP39 mnemonic sentence and
// an optional passphrase.
func NewRootIdentity(mnemonic, passphrase string) (*RootIdentity, error) {
	if mnemonic == "" {
		return nil, newError(did.CodeIllegalArgument, "mnemonic is empty")
	}
	seed := crypto.BIP39Seed(mnemonic, passphrase)
	root, err := crypto.NewRootKey(seed)
	if err != nil {
		return nil, wrapError(did.CodeIllegalArgument, err, "derive root key")
	}
	return &RootIdentity{rootKey: root}, nil
}

// DIDAtIndex returns the DID the given derivation index yields, without
// creating anything.
func (r *RootIdentity) DIDAtIndex(index uint32) (did.DID, error) {
	kp, err := r.rootKey.DeriveDIDKey(index)
	if err != nil {
		return did.DID{}, wrapError(did.CodeIllegalArgument, err, "derive key %d", index)
	}
	address, err := crypto.PublicKeyToAddress(crypto.PublicKeyBytes(kp.PublicKey))
	if err != nil {
		return did.DID{}, wrapError(did.CodeIllegalArgument, err, "derive address %d", index)
	}
	return did.New(address)
}

// NewDID creates a DID at the next free index: it derives the key pair,
// seals an initial document carrying the primary key, and places the
// document and the sealed private key in the store.
func (r *RootIdentity) NewDID(s did.Store, password string) (*did.Document, error) {
	r.mu.Lock()
	index := r.nextIndex
	r.nextIndex++
	r.mu.Unlock()
	return r.NewDIDAtIndex(index, s, password)
}

// NewDIDAtIndex creates the DID at a fixed derivation index.
func (r *RootIdentity) NewDIDAtIndex(index uint32, s did.Store, password string) (*did.Document, error) {
	kp, err := r.rootKey.DeriveDIDKey(index)
	if err != nil {
		return nil, wrapError(did.CodeIllegalArgument, err, "derive key %d", index)
	}
	address, err := crypto.PublicKeyToAddress(crypto.PublicKeyBytes(kp.PublicKey))
	if err != nil {
		return nil, wrapError(did.CodeIllegalArgument, err, "derive address %d", index)
	}
	subject, err := did.New(address)
	if err != nil {
		return nil, err
	}
	primary, err := did.NewURL(subject, PrimaryKeyFragment)
	if err != nil {
		return nil, err
	}
	if err := s.StorePrivateKey(subject, primary, crypto.PrivateKeyBytes(kp.PrivateKey), password); err != nil {
		return nil, err
	}
	builder, err := did.NewDocumentBuilder(subject, s)
	if err != nil {
		return nil, err
	}
	if err := builder.AddPublicKey(primary, did.DID{}, crypto.EncodePublicKey(kp.PublicKey)); err != nil {
		return nil, err
	}
	doc, err := builder.Seal(password)
	if err != nil {
		return nil, err
	}
	if err := s.StoreDocument(doc); err != nil {
		return nil, err
	}
	return doc, nil
}
