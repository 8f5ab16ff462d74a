package did

// Issuer wraps an issuing party: its document, the authentication key it
// signs credentials with, and the store holding that key's private half.
type Issuer struct {
	doc     *Document
	signKey DIDURL
	store   Store
}

// NewIssuer prepares an issuing party. A zero signKey selects the
// document's default key; otherwise the key must be in the document's
// authentication set, and the store must hold its private half.
func NewIssuer(doc *Document, signKey DIDURL, store Store) (*Issuer, error) {
	if doc == nil {
		return nil, newError(CodeIllegalArgument, "issuer document is nil")
	}
	if store == nil {
		return nil, newError(CodeStore, "issuer has no store")
	}
	if signKey.IsEmpty() {
		def := doc.DefaultPublicKey()
		if def == nil {
			return nil, newError(CodeIllegalArgument, "document %s has no default key", doc.Subject())
		}
		signKey = def.id
	} else if !doc.IsAuthenticationKey(signKey) {
		return nil, newError(CodeIllegalArgument, "%s is not an authentication key of %s", signKey, doc.Subject())
	}
	if !store.ContainsPrivateKey(doc.Subject(), signKey) {
		return nil, newError(CodeStore, "store holds no private key for %s", signKey)
	}
	return &Issuer{doc: doc, signKey: signKey, store: store}, nil
}

// NewIssuerFromStore loads the issuer document from the store first.
func NewIssuerFromStore(subject DID, signKey DIDURL, store Store) (*Issuer, error) {
	if store == nil {
		return nil, newError(CodeStore, "issuer has no store")
	}
	doc, err := store.LoadDocument(subject)
	if err != nil {
		return nil, err
	}
	return NewIssuer(doc, signKey, store)
}

// DID returns the issuer's DID.
func (i *Issuer) DID() DID { return i.doc.Subject() }

// SignKey returns the key credentials are signed with.
func (i *Issuer) SignKey() DIDURL { return i.signKey }

// IssueFor starts a credential about the given subject.
func (i *Issuer) IssueFor(subject DID) (*CredentialBuilder, error) {
	if subject.IsEmpty() {
		return nil, newError(CodeIllegalArgument, "credential subject is empty")
	}
	return &CredentialBuilder{
		issuer:  i,
		subject: subject,
		claims:  map[string]interface{}{},
	}, nil
}
