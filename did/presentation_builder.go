package did

import "time"

// PresentationBuilder assembles a presentation for one holder and seals
// it exactly once against a verifier's realm and nonce.
type PresentationBuilder struct {
	doc         *Document
	signKey     DIDURL
	store       Store
	credentials *EntryMap[*VerifiableCredential]
	realm       string
	nonce       string
	consumed    bool
}

// NewPresentationBuilder starts a presentation for the holder described
// by doc. A zero signKey selects the default key; otherwise the key must
// be in the holder's authentication set, and the store must hold its
// private half.
func NewPresentationBuilder(doc *Document, signKey DIDURL, store Store) (*PresentationBuilder, error) {
	if doc == nil {
		return nil, newError(CodeIllegalArgument, "holder document is nil")
	}
	if store == nil {
		return nil, newError(CodeStore, "holder has no store")
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
	return &PresentationBuilder{
		doc:         doc,
		signKey:     signKey,
		store:       store,
		credentials: NewEntryMap[*VerifiableCredential](),
	}, nil
}

func (b *PresentationBuilder) checkOpen() error {
	if b.consumed {
		return newError(CodeInvalidState, "presentation already sealed")
	}
	return nil
}

// AddCredentials bundles credentials into the presentation. Every
// credential must be about the holder.
func (b *PresentationBuilder) AddCredentials(vcs ...*VerifiableCredential) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(vcs))
	for _, vc := range vcs {
		if vc == nil {
			return newError(CodeIllegalArgument, "credential is nil")
		}
		if !vc.subject.id.Equal(b.doc.Subject()) {
			return newError(CodeIllegalArgument, "credential %s is about %s, not the holder %s",
				vc.id, vc.subject.id, b.doc.Subject())
		}
		if b.credentials.Contains(vc.id) || seen[vc.id.String()] {
			return newError(CodeIllegalArgument, "credential %s already added", vc.id)
		}
		seen[vc.id.String()] = true
	}
	for _, vc := range vcs {
		b.credentials.Append(vc)
	}
	return nil
}

// SetRealm sets the verifier's realm.
func (b *PresentationBuilder) SetRealm(realm string) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if realm == "" {
		return newError(CodeIllegalArgument, "realm is empty")
	}
	b.realm = realm
	return nil
}

// SetNonce sets the verifier's nonce.
func (b *PresentationBuilder) SetNonce(nonce string) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if nonce == "" {
		return newError(CodeIllegalArgument, "nonce is empty")
	}
	b.nonce = nonce
	return nil
}

// Seal signs the bundle together with the realm and nonce, attaches the
// holder's proof, and consumes the builder.
func (b *PresentationBuilder) Seal(password string) (*VerifiablePresentation, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, newError(CodeIllegalArgument, "store password is empty")
	}
	if b.realm == "" || b.nonce == "" {
		return nil, newError(CodeMalformedPresentation, "presentation needs a realm and a nonce before sealing")
	}
	if b.credentials.Len() == 0 {
		return nil, newError(CodeMalformedPresentation, "presentation has no credentials")
	}

	vp := &VerifiablePresentation{
		presType:    PresentationType,
		created:     time.Now().UTC().Truncate(time.Second),
		credentials: b.credentials.clone(),
	}
	input, err := vp.signingInput()
	if err != nil {
		return nil, err
	}
	signature, err := b.doc.Sign(b.store, password, b.signKey, input, []byte(b.realm), []byte(b.nonce))
	if err != nil {
		return nil, err
	}
	vp.proof = &PresentationProof{
		proofType:          DefaultPublicKeyType,
		verificationMethod: b.signKey,
		realm:              b.realm,
		nonce:              b.nonce,
		signature:          signature,
	}
	b.consumed = true
	return vp, nil
}
