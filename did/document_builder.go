package did

import (
	"context"
	"time"
)

// DocumentBuilder assembles a document and seals it exactly once. Every
// mutator validates its input before touching the draft, so a failed
// call leaves the builder unchanged and usable. After Seal the builder
// is consumed; further calls fail with an INVALID_STATE error.
type DocumentBuilder struct {
	doc   *Document
	store Store
}

// NewDocumentBuilder starts a document for subject. The store supplies
// the private key at seal time.
func NewDocumentBuilder(subject DID, store Store) (*DocumentBuilder, error) {
	if subject.IsEmpty() {
		return nil, newError(CodeIllegalArgument, "document subject is empty")
	}
	if !subject.IsSupported() {
		return nil, newError(CodeIllegalArgument, "unsupported DID method %q", subject.Method)
	}
	return &DocumentBuilder{
		doc: &Document{
			subject:     subject,
			publicKeys:  NewEntryMap[*PublicKey](),
			credentials: NewEntryMap[*VerifiableCredential](),
			services:    NewEntryMap[*Service](),
		},
		store: store,
	}, nil
}

// Edit copies this document into a fresh builder for producing the next
// revision. The original remains sealed and untouched; the copy's proof
// is discarded since sealing will sign anew.
func (d *Document) Edit(store Store) *DocumentBuilder {
	doc := &Document{
		subject:     d.subject,
		publicKeys:  NewEntryMap[*PublicKey](),
		credentials: d.credentials.clone(),
		services:    d.services.clone(),
		expires:     d.expires,
	}
	for _, k := range d.publicKeys.Values(nil) {
		doc.publicKeys.Append(k.clone())
	}
	return &DocumentBuilder{doc: doc, store: store}
}

// Subject returns the DID the draft describes.
func (b *DocumentBuilder) Subject() DID {
	if b.doc == nil {
		return DID{}
	}
	return b.doc.subject
}

func (b *DocumentBuilder) checkOpen() error {
	if b.doc == nil {
		return newError(CodeInvalidState, "document already sealed")
	}
	return nil
}

func (b *DocumentBuilder) checkKeyID(id DIDURL) error {
	if id.IsEmpty() || id.Fragment == "" {
		return newError(CodeIllegalArgument, "key id must carry a fragment")
	}
	if !id.DID.Equal(b.doc.subject) {
		return newError(CodeIllegalArgument, "id %s does not belong to %s", id, b.doc.subject)
	}
	return nil
}

// AddPublicKey appends a public key. A zero controller means the subject
// itself. The key whose material matches the subject's method-specific
// id becomes the default key and is flagged for authentication
// automatically.
func (b *DocumentBuilder) AddPublicKey(id DIDURL, controller DID, publicKeyBase58 string) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if err := b.checkKeyID(id); err != nil {
		return err
	}
	if controller.IsEmpty() {
		controller = b.doc.subject
	}
	key, err := NewPublicKey(id, controller, publicKeyBase58)
	if err != nil {
		return err
	}
	if b.doc.publicKeys.Contains(id) {
		return newError(CodeIllegalArgument, "key %s already exists", id)
	}
	if controller.Equal(b.doc.subject) && key.matchesAddress(b.doc.subject.MethodSpecificID) {
		key.isAuthenticationKey = true
	}
	b.doc.publicKeys.Append(key)
	return nil
}

// RemovePublicKey removes a public key. The default key cannot be
// removed; keys in the authentication or authorization sets need force.
// The matching private key, if held by the store, is dropped with it.
func (b *DocumentBuilder) RemovePublicKey(id DIDURL, force bool) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	key := b.doc.publicKeys.Get(id, nil)
	if key == nil {
		return newError(CodeIllegalArgument, "no such key %s", id)
	}
	if key.controller.Equal(b.doc.subject) && key.matchesAddress(b.doc.subject.MethodSpecificID) {
		return newError(CodeIllegalArgument, "cannot remove the default key %s", id)
	}
	if !force && (key.isAuthenticationKey || key.isAuthorizationKey) {
		return newError(CodeIllegalArgument, "key %s is in use, removal requires force", id)
	}
	b.doc.publicKeys.Remove(id)
	if b.store != nil {
		b.store.DeletePrivateKey(b.doc.subject, id)
	}
	return nil
}

// AddAuthenticationKey flags an existing key for authentication. The key
// must be controlled by the subject.
func (b *DocumentBuilder) AddAuthenticationKey(id DIDURL) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	key := b.doc.publicKeys.Get(id, nil)
	if key == nil {
		return newError(CodeIllegalArgument, "no such key %s", id)
	}
	if !key.controller.Equal(b.doc.subject) {
		return newError(CodeIllegalArgument, "key %s is not controlled by the subject", id)
	}
	key.isAuthenticationKey = true
	return nil
}

// AddAuthenticationKeyBase58 appends a new subject-controlled key and
// flags it for authentication in one step.
func (b *DocumentBuilder) AddAuthenticationKeyBase58(id DIDURL, publicKeyBase58 string) error {
	if err := b.AddPublicKey(id, DID{}, publicKeyBase58); err != nil {
		return err
	}
	return b.AddAuthenticationKey(id)
}

// RemoveAuthenticationKey clears a key's authentication flag. The
// default key always authenticates and cannot be cleared.
func (b *DocumentBuilder) RemoveAuthenticationKey(id DIDURL) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	key := b.doc.publicKeys.Get(id, nil)
	if key == nil || !key.isAuthenticationKey {
		return newError(CodeIllegalArgument, "no such authentication key %s", id)
	}
	if key.matchesAddress(b.doc.subject.MethodSpecificID) {
		return newError(CodeIllegalArgument, "cannot remove the default key %s from authentication", id)
	}
	key.isAuthenticationKey = false
	return nil
}

// AddAuthorizationKey flags an existing key for authorization. The key
// must be controlled by a DID other than the subject.
func (b *DocumentBuilder) AddAuthorizationKey(id DIDURL) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	key := b.doc.publicKeys.Get(id, nil)
	if key == nil {
		return newError(CodeIllegalArgument, "no such key %s", id)
	}
	if key.controller.Equal(b.doc.subject) {
		return newError(CodeIllegalArgument, "authorization key %s must have a controller other than the subject", id)
	}
	key.isAuthorizationKey = true
	return nil
}

// AddAuthorizationKeyBase58 appends a new key controlled by another DID
// and flags it for authorization in one step.
func (b *DocumentBuilder) AddAuthorizationKeyBase58(id DIDURL, controller DID, publicKeyBase58 string) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if err := b.checkKeyID(id); err != nil {
		return err
	}
	if controller.IsEmpty() || controller.Equal(b.doc.subject) {
		return newError(CodeIllegalArgument, "authorization key %s must have a controller other than the subject", id)
	}
	key, err := NewPublicKey(id, controller, publicKeyBase58)
	if err != nil {
		return err
	}
	if b.doc.publicKeys.Contains(id) {
		return newError(CodeIllegalArgument, "key %s already exists", id)
	}
	key.isAuthorizationKey = true
	b.doc.publicKeys.Append(key)
	return nil
}

// AuthorizeDID imports an authentication key from another party's
// resolved document and flags it for authorization, delegating
// deactivation rights to that party. A zero controllerKey selects the
// controller's default key.
func (b *DocumentBuilder) AuthorizeDID(ctx context.Context, r Resolver, id DIDURL, controller DID, controllerKey DIDURL) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if err := b.checkKeyID(id); err != nil {
		return err
	}
	if controller.IsEmpty() || controller.Equal(b.doc.subject) {
		return newError(CodeIllegalArgument, "cannot authorize the subject itself")
	}
	controllerDoc, err := r.Resolve(ctx, controller, false)
	if err != nil {
		return wrapError(CodeResolve, err, "resolve controller %s", controller)
	}
	if controllerDoc == nil {
		return newError(CodeResolve, "controller %s is not published", controller)
	}
	var key *PublicKey
	if controllerKey.IsEmpty() {
		key = controllerDoc.DefaultPublicKey()
	} else {
		key = controllerDoc.GetAuthenticationKey(controllerKey)
	}
	if key == nil {
		return newError(CodeIllegalArgument, "no usable authentication key on controller %s", controller)
	}
	return b.AddAuthorizationKeyBase58(id, controller, key.keyBase58)
}

// RemoveAuthorizationKey clears a key's authorization flag.
func (b *DocumentBuilder) RemoveAuthorizationKey(id DIDURL) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	key := b.doc.publicKeys.Get(id, nil)
	if key == nil || !key.isAuthorizationKey {
		return newError(CodeIllegalArgument, "no such authorization key %s", id)
	}
	key.isAuthorizationKey = false
	return nil
}

// AddCredential embeds a sealed credential. The credential must be about
// the document subject.
func (b *DocumentBuilder) AddCredential(vc *VerifiableCredential) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if vc == nil {
		return newError(CodeIllegalArgument, "credential is nil")
	}
	if !vc.subject.id.Equal(b.doc.subject) {
		return newError(CodeIllegalArgument, "credential %s is about %s, not %s", vc.id, vc.subject.id, b.doc.subject)
	}
	if b.doc.credentials.Contains(vc.id) {
		return newError(CodeIllegalArgument, "credential %s already exists", vc.id)
	}
	b.doc.credentials.Append(vc)
	return nil
}

// RemoveCredential removes an embedded credential.
func (b *DocumentBuilder) RemoveCredential(id DIDURL) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if !b.doc.credentials.Contains(id) {
		return newError(CodeIllegalArgument, "no such credential %s", id)
	}
	b.doc.credentials.Remove(id)
	return nil
}

// AddService appends a service endpoint.
func (b *DocumentBuilder) AddService(id DIDURL, serviceType, endpoint string) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if err := b.checkKeyID(id); err != nil {
		return err
	}
	svc, err := NewService(id, serviceType, endpoint)
	if err != nil {
		return err
	}
	if b.doc.services.Contains(id) {
		return newError(CodeIllegalArgument, "service %s already exists", id)
	}
	b.doc.services.Append(svc)
	return nil
}

// RemoveService removes a service endpoint.
func (b *DocumentBuilder) RemoveService(id DIDURL) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if !b.doc.services.Contains(id) {
		return newError(CodeIllegalArgument, "no such service %s", id)
	}
	b.doc.services.Remove(id)
	return nil
}

// SetExpires sets the document expiration, at most MaxValidYears from
// now.
func (b *DocumentBuilder) SetExpires(expires time.Time) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if expires.IsZero() {
		return newError(CodeIllegalArgument, "expires is zero")
	}
	expires = expires.UTC().Truncate(time.Second)
	if expires.After(maxDocumentExpires(time.Now())) {
		return newError(CodeIllegalArgument, "expires %s exceeds the maximum validity of %d years", expires, MaxValidYears)
	}
	b.doc.expires = expires
	return nil
}

// Seal signs the draft with the subject's default key, attaches the
// proof, and consumes the builder. Sealing is atomic: on any failure the
// builder stays open and the draft is unchanged.
func (b *DocumentBuilder) Seal(password string) (*Document, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, newError(CodeIllegalArgument, "store password is empty")
	}
	if b.store == nil {
		return nil, newError(CodeStore, "no store to seal with")
	}
	def := b.doc.DefaultPublicKey()
	if def == nil {
		return nil, newError(CodeMalformedDocument, "document %s has no default key", b.doc.subject)
	}

	sealed := &Document{
		subject:     b.doc.subject,
		publicKeys:  b.doc.publicKeys.clone(),
		credentials: b.doc.credentials.clone(),
		services:    b.doc.services.clone(),
		expires:     b.doc.expires,
	}
	now := time.Now().UTC().Truncate(time.Second)
	if sealed.expires.IsZero() {
		sealed.expires = maxDocumentExpires(now)
	}
	input, err := sealed.signingInput()
	if err != nil {
		return nil, err
	}
	signature, err := b.store.Sign(sealed.subject, def.id, password, input)
	if err != nil {
		return nil, err
	}
	sealed.proof = &DocumentProof{
		proofType: DefaultPublicKeyType,
		created:   now,
		creator:   def.id,
		signature: signature,
	}
	b.doc = nil
	return sealed, nil
}

func maxDocumentExpires(from time.Time) time.Time {
	return from.UTC().Truncate(time.Second).AddDate(MaxValidYears, 0, 0)
}
