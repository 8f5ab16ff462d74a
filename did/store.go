package did

// Store keeps documents and their private keys under local custody.
// Private keys are written once and never leave the store; signing
// happens inside it, unlocked per call by the store password.
//
// Implementations must keep sealed documents intact: StoreDocument
// followed by LoadDocument yields a document whose canonical forms are
// byte-identical to the original's.
type Store interface {
	// StoreDocument saves a sealed document under its subject.
	StoreDocument(doc *Document) error

	// LoadDocument returns the stored document for subject, or a store
	// error when none exists.
	LoadDocument(subject DID) (*Document, error)

	// ContainsDocument reports whether a document is stored for subject.
	ContainsDocument(subject DID) bool

	// StorePrivateKey places a 32-byte private key under custody for the
	// given key id, sealed with the store password.
	StorePrivateKey(subject DID, id DIDURL, privateKey []byte, password string) error

	// ContainsPrivateKey reports whether the store holds the private key
	// for the given key id.
	ContainsPrivateKey(subject DID, id DIDURL) bool

	// DeletePrivateKey removes a private key and reports whether one was
	// present.
	DeletePrivateKey(subject DID, id DIDURL) bool

	// Sign unseals the private key for id with the store password, signs
	// the data segments, and returns the base64url-encoded signature.
	Sign(subject DID, id DIDURL, password string, data ...[]byte) (string, error)

	// StoreDocumentMetadata persists the metadata sidecar for subject.
	StoreDocumentMetadata(subject DID, meta *DocumentMetadata) error
}
