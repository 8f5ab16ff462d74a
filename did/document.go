package did

import (
	"encoding/json"
	"time"

	"github.com/elastos/go-did-sdk/crypto"
)

// MaxValidYears is the longest validity any document or credential may
// carry, measured from its creation.
const MaxValidYears = 5

// Document is a sealed DID document: the subject's public keys, their
// authentication and authorization roles, embedded credentials, service
// endpoints, an expiration, and the subject's proof over all of it.
//
// Documents are immutable once sealed or parsed and safe for concurrent
// reads. Changes go through Edit, which copies the contents into a fresh
// builder.
type Document struct {
	subject     DID
	publicKeys  *EntryMap[*PublicKey]
	credentials *EntryMap[*VerifiableCredential]
	services    *EntryMap[*Service]
	expires     time.Time
	proof       *DocumentProof
	metadata    *DocumentMetadata
}

// Subject returns the DID this document describes.
func (d *Document) Subject() DID { return d.subject }

// Expires returns the document expiration time.
func (d *Document) Expires() time.Time { return d.expires }

// Proof returns the subject's proof.
func (d *Document) Proof() *DocumentProof { return d.proof }

// Metadata returns the mutable bookkeeping attached to this document.
func (d *Document) Metadata() *DocumentMetadata {
	if d.metadata == nil {
		d.metadata = &DocumentMetadata{}
	}
	return d.metadata
}

// PublicKeyCount returns the number of public keys.
func (d *Document) PublicKeyCount() int { return d.publicKeys.Len() }

// PublicKeys returns every public key in canonical order.
func (d *Document) PublicKeys() []*PublicKey { return d.publicKeys.Values(nil) }

// GetPublicKey returns the key with the given id, or nil.
func (d *Document) GetPublicKey(id DIDURL) *PublicKey {
	return d.publicKeys.Get(id, nil)
}

// SelectPublicKeys returns keys matching the given id, type, or both.
func (d *Document) SelectPublicKeys(id DIDURL, keyType string) ([]*PublicKey, error) {
	return d.publicKeys.Select(id, keyType, nil)
}

// DefaultPublicKey returns the key whose material derives the subject's
// method-specific id and whose controller is the subject, or nil when
// the document carries none.
func (d *Document) DefaultPublicKey() *PublicKey {
	for _, k := range d.publicKeys.Values(nil) {
		if k.controller.Equal(d.subject) && k.matchesAddress(d.subject.MethodSpecificID) {
			return k
		}
	}
	return nil
}

// AuthenticationKeyCount returns the size of the authentication set.
func (d *Document) AuthenticationKeyCount() int {
	return d.publicKeys.Count(func(k *PublicKey) bool { return k.isAuthenticationKey })
}

// AuthenticationKeys returns the authentication set in canonical order.
func (d *Document) AuthenticationKeys() []*PublicKey {
	return d.publicKeys.Values(func(k *PublicKey) bool { return k.isAuthenticationKey })
}

// GetAuthenticationKey returns the authentication key with the given id,
// or nil.
func (d *Document) GetAuthenticationKey(id DIDURL) *PublicKey {
	return d.publicKeys.Get(id, func(k *PublicKey) bool { return k.isAuthenticationKey })
}

// IsAuthenticationKey reports whether id names an authentication key.
func (d *Document) IsAuthenticationKey(id DIDURL) bool {
	return d.GetAuthenticationKey(id) != nil
}

// AuthorizationKeyCount returns the size of the authorization set.
func (d *Document) AuthorizationKeyCount() int {
	return d.publicKeys.Count(func(k *PublicKey) bool { return k.isAuthorizationKey })
}

// AuthorizationKeys returns the authorization set in canonical order.
func (d *Document) AuthorizationKeys() []*PublicKey {
	return d.publicKeys.Values(func(k *PublicKey) bool { return k.isAuthorizationKey })
}

// GetAuthorizationKey returns the authorization key with the given id,
// or nil.
func (d *Document) GetAuthorizationKey(id DIDURL) *PublicKey {
	return d.publicKeys.Get(id, func(k *PublicKey) bool { return k.isAuthorizationKey })
}

// IsAuthorizationKey reports whether id names an authorization key.
func (d *Document) IsAuthorizationKey(id DIDURL) bool {
	return d.GetAuthorizationKey(id) != nil
}

// CredentialCount returns the number of embedded credentials.
func (d *Document) CredentialCount() int { return d.credentials.Len() }

// Credentials returns the embedded credentials in canonical order.
func (d *Document) Credentials() []*VerifiableCredential { return d.credentials.Values(nil) }

// GetCredential returns the embedded credential with the given id, or
// nil.
func (d *Document) GetCredential(id DIDURL) *VerifiableCredential {
	return d.credentials.Get(id, nil)
}

// SelectCredentials returns embedded credentials matching the given id,
// type, or both.
func (d *Document) SelectCredentials(id DIDURL, credentialType string) ([]*VerifiableCredential, error) {
	return d.credentials.Select(id, credentialType, nil)
}

// ServiceCount returns the number of service endpoints.
func (d *Document) ServiceCount() int { return d.services.Len() }

// Services returns the service endpoints in canonical order.
func (d *Document) Services() []*Service { return d.services.Values(nil) }

// GetService returns the service with the given id, or nil.
func (d *Document) GetService(id DIDURL) *Service {
	return d.services.Get(id, nil)
}

// SelectServices returns services matching the given id, type, or both.
func (d *Document) SelectServices(id DIDURL, serviceType string) ([]*Service, error) {
	return d.services.Select(id, serviceType, nil)
}

// Sign signs the data segments with the named key held in store,
// unlocking it with the store password. A zero id selects the default
// key. The returned signature is base64url encoded.
func (d *Document) Sign(store Store, password string, id DIDURL, data ...[]byte) (string, error) {
	if store == nil {
		return "", newError(CodeStore, "no store to sign with")
	}
	if id.IsEmpty() {
		def := d.DefaultPublicKey()
		if def == nil {
			return "", newError(CodeIllegalArgument, "document %s has no default key", d.subject)
		}
		id = def.id
	} else if d.GetPublicKey(id) == nil {
		return "", newError(CodeIllegalArgument, "unknown key %s", id)
	}
	return store.Sign(d.subject, id, password, data...)
}

// VerifySignature verifies a base64url signature over the data segments
// against the named key. A zero id selects the default key. A missing
// key or undecodable input is an error; a well-formed signature that
// does not match reports false.
func (d *Document) VerifySignature(id DIDURL, signature string, data ...[]byte) (bool, error) {
	var key *PublicKey
	if id.IsEmpty() {
		key = d.DefaultPublicKey()
	} else {
		key = d.GetPublicKey(id)
	}
	if key == nil {
		return false, newError(CodeIllegalArgument, "unknown key %s", id)
	}
	material, err := key.PublicKeyBytes()
	if err != nil {
		return false, wrapError(CodeIllegalArgument, err, "key %s", key.id)
	}
	sig, err := crypto.DecodeSignature(signature)
	if err != nil {
		return false, wrapError(CodeIllegalArgument, err, "signature for key %s", key.id)
	}
	if err := crypto.Verify(material, sig, data...); err != nil {
		return false, nil
	}
	return true, nil
}

// IsGenuine reports whether the document's proof was produced by its own
// default key over the canonical signing bytes.
func (d *Document) IsGenuine() bool {
	if d.proof == nil || d.proof.proofType != DefaultPublicKeyType {
		return false
	}
	def := d.DefaultPublicKey()
	if def == nil || !d.proof.creator.Equal(def.id) {
		return false
	}
	input, err := d.signingInput()
	if err != nil {
		return false
	}
	ok, err := d.VerifySignature(d.proof.creator, d.proof.signature, input)
	return err == nil && ok
}

// IsExpired reports whether the document's expiration has passed.
func (d *Document) IsExpired() bool {
	return time.Now().After(d.expires)
}

// IsDeactivated reports whether this document's DID has been deactivated
// on chain, as recorded in its metadata.
func (d *Document) IsDeactivated() bool {
	return d.metadata != nil && d.metadata.deactivated
}

// IsValid reports whether the document is genuine, unexpired, and not
// deactivated.
func (d *Document) IsValid() bool {
	return !d.IsDeactivated() && !d.IsExpired() && d.IsGenuine()
}

// ToJSON renders the document in canonical form.
func (d *Document) ToJSON(normalized bool) ([]byte, error) {
	data, err := json.Marshal(d.toRaw(marshalOptions{normalized: normalized}))
	if err != nil {
		return nil, wrapError(CodeUnknown, err, "marshal document %s", d.subject)
	}
	return data, nil
}

// signingInput returns the exact bytes the document proof covers: the
// normalized rendering without the proof.
func (d *Document) signingInput() ([]byte, error) {
	data, err := json.Marshal(d.toRaw(marshalOptions{normalized: true, forSigning: true}))
	if err != nil {
		return nil, wrapError(CodeUnknown, err, "marshal document %s for signing", d.subject)
	}
	return data, nil
}

type rawDocument struct {
	ID                   string             `json:"id"`
	PublicKey            []*rawPublicKey    `json:"publicKey,omitempty"`
	Authentication       []json.RawMessage  `json:"authentication,omitempty"`
	Authorization        []json.RawMessage  `json:"authorization,omitempty"`
	VerifiableCredential []*rawCredential   `json:"verifiableCredential,omitempty"`
	Service              []*rawService      `json:"service,omitempty"`
	Expires              string             `json:"expires"`
	Proof                *rawDocumentProof  `json:"proof,omitempty"`
}

type rawPublicKey struct {
	ID              string `json:"id"`
	Type            string `json:"type,omitempty"`
	Controller      string `json:"controller,omitempty"`
	PublicKeyBase58 string `json:"publicKeyBase58"`
}

type rawService struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

type rawDocumentProof struct {
	Type           string `json:"type,omitempty"`
	Created        string `json:"created"`
	Creator        string `json:"creator,omitempty"`
	SignatureValue string `json:"signatureValue"`
}

func jsonString(s string) json.RawMessage {
	data, err := json.Marshal(s)
	if err != nil {
		return json.RawMessage(`""`)
	}
	return data
}

func (d *Document) toRaw(opts marshalOptions) *rawDocument {
	opts.ref = d.subject

	r := &rawDocument{
		ID:      d.subject.String(),
		Expires: formatTime(d.expires),
	}
	for _, k := range d.publicKeys.Values(nil) {
		rk := &rawPublicKey{
			ID:              renderURL(k.id, opts),
			PublicKeyBase58: k.keyBase58,
		}
		if opts.normalized || k.keyType != DefaultPublicKeyType {
			rk.Type = k.keyType
		}
		if opts.normalized || !k.controller.Equal(d.subject) {
			rk.Controller = k.controller.String()
		}
		r.PublicKey = append(r.PublicKey, rk)
		if k.isAuthenticationKey {
			r.Authentication = append(r.Authentication, jsonString(renderURL(k.id, opts)))
		}
		if k.isAuthorizationKey {
			r.Authorization = append(r.Authorization, jsonString(renderURL(k.id, opts)))
		}
	}
	for _, vc := range d.credentials.Values(nil) {
		r.VerifiableCredential = append(r.VerifiableCredential, vc.toRaw(opts))
	}
	for _, s := range d.services.Values(nil) {
		r.Service = append(r.Service, &rawService{
			ID:              renderURL(s.id, opts),
			Type:            s.svcType,
			ServiceEndpoint: s.endpoint,
		})
	}
	if d.proof != nil && !opts.forSigning {
		proof := &rawDocumentProof{
			Created:        formatTime(d.proof.created),
			Creator:        renderURL(d.proof.creator, opts),
			SignatureValue: d.proof.signature,
		}
		if opts.normalized || d.proof.proofType != DefaultPublicKeyType {
			proof.Type = d.proof.proofType
		}
		r.Proof = proof
	}
	return r
}

func documentFromRaw(r *rawDocument) (*Document, error) {
	if r.ID == "" {
		return nil, newError(CodeMalformedDocument, "missing document id")
	}
	subject, err := ParseDID(r.ID)
	if err != nil {
		return nil, wrapError(CodeMalformedDocument, err, "invalid document id %q", r.ID)
	}

	doc := &Document{
		subject:     subject,
		publicKeys:  NewEntryMap[*PublicKey](),
		credentials: NewEntryMap[*VerifiableCredential](),
		services:    NewEntryMap[*Service](),
	}

	if len(r.PublicKey) == 0 {
		return nil, newError(CodeMalformedDocument, "document %s has no public keys", subject)
	}
	for _, rk := range r.PublicKey {
		key, err := publicKeyFromRaw(rk, subject)
		if err != nil {
			return nil, err
		}
		if doc.publicKeys.Contains(key.id) {
			return nil, newError(CodeMalformedDocument, "duplicate public key %s", key.id)
		}
		doc.publicKeys.Append(key)
	}

	if err := doc.markAuthenticationEntries(r.Authentication, subject); err != nil {
		return nil, err
	}
	if err := doc.markAuthorizationEntries(r.Authorization, subject); err != nil {
		return nil, err
	}

	for _, rc := range r.VerifiableCredential {
		vc, err := credentialFromRaw(rc, subject)
		if err != nil {
			return nil, err
		}
		if !vc.subject.id.Equal(subject) {
			return nil, newError(CodeMalformedDocument,
				"embedded credential %s is about %s, not the document subject", vc.id, vc.subject.id)
		}
		if doc.credentials.Contains(vc.id) {
			return nil, newError(CodeMalformedDocument, "duplicate credential %s", vc.id)
		}
		doc.credentials.Append(vc)
	}

	for _, rs := range r.Service {
		if rs.ID == "" || rs.Type == "" || rs.ServiceEndpoint == "" {
			return nil, newError(CodeMalformedDocument, "incomplete service entry in document %s", subject)
		}
		id, err := ParseURLWithRef(rs.ID, subject)
		if err != nil {
			return nil, wrapError(CodeMalformedDocument, err, "invalid service id %q", rs.ID)
		}
		svc, err := NewService(id, rs.Type, rs.ServiceEndpoint)
		if err != nil {
			return nil, wrapError(CodeMalformedDocument, err, "service %s", id)
		}
		if doc.services.Contains(id) {
			return nil, newError(CodeMalformedDocument, "duplicate service %s", id)
		}
		doc.services.Append(svc)
	}

	if r.Expires == "" {
		return nil, newError(CodeMalformedDocument, "document %s has no expires", subject)
	}
	doc.expires, err = parseTime(r.Expires)
	if err != nil {
		return nil, wrapError(CodeMalformedDocument, err, "invalid expires %q", r.Expires)
	}

	if r.Proof == nil {
		return nil, newError(CodeMalformedDocument, "document %s has no proof", subject)
	}
	doc.proof, err = documentProofFromRaw(r.Proof, doc)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func publicKeyFromRaw(rk *rawPublicKey, subject DID) (*PublicKey, error) {
	if rk.ID == "" {
		return nil, newError(CodeMalformedDocument, "public key entry without id")
	}
	id, err := ParseURLWithRef(rk.ID, subject)
	if err != nil {
		return nil, wrapError(CodeMalformedDocument, err, "invalid public key id %q", rk.ID)
	}
	if id.Fragment == "" {
		return nil, newError(CodeMalformedDocument, "public key id %s has no fragment", id)
	}
	keyType := rk.Type
	if keyType == "" {
		keyType = DefaultPublicKeyType
	}
	controller := subject
	if rk.Controller != "" {
		controller, err = ParseDID(rk.Controller)
		if err != nil {
			return nil, wrapError(CodeMalformedDocument, err, "invalid controller %q for key %s", rk.Controller, id)
		}
	}
	if rk.PublicKeyBase58 == "" {
		return nil, newError(CodeMalformedDocument, "public key %s has no key material", id)
	}
	if keyType == DefaultPublicKeyType {
		if _, err := crypto.DecodePublicKey(rk.PublicKeyBase58); err != nil {
			return nil, wrapError(CodeMalformedDocument, err, "public key %s", id)
		}
	}
	return &PublicKey{
		id:         id,
		keyType:    keyType,
		controller: controller,
		keyBase58:  rk.PublicKeyBase58,
	}, nil
}

// markAuthenticationEntries applies the authentication array: string
// entries flag existing keys, inline objects introduce a new key already
// flagged.
func (d *Document) markAuthenticationEntries(entries []json.RawMessage, subject DID) error {
	for _, entry := range entries {
		if ref, ok := stringEntry(entry); ok {
			id, err := ParseURLWithRef(ref, subject)
			if err != nil {
				return wrapError(CodeMalformedDocument, err, "invalid authentication reference %q", ref)
			}
			key := d.publicKeys.Get(id, nil)
			if key == nil {
				return newError(CodeMalformedDocument, "authentication key %s is not a public key", id)
			}
			if !key.controller.Equal(subject) {
				return newError(CodeMalformedDocument, "authentication key %s is not controlled by the subject", id)
			}
			key.isAuthenticationKey = true
			continue
		}
		var rk rawPublicKey
		if err := json.Unmarshal(entry, &rk); err != nil {
			return wrapError(CodeMalformedDocument, err, "invalid authentication entry")
		}
		key, err := publicKeyFromRaw(&rk, subject)
		if err != nil {
			return err
		}
		if !key.controller.Equal(subject) {
			return newError(CodeMalformedDocument, "authentication key %s is not controlled by the subject", key.id)
		}
		if d.publicKeys.Contains(key.id) {
			return newError(CodeMalformedDocument, "duplicate public key %s", key.id)
		}
		key.isAuthenticationKey = true
		d.publicKeys.Append(key)
	}
	return nil
}

// markAuthorizationEntries applies the authorization array. Authorization
// keys must be controlled by a DID other than the subject.
func (d *Document) markAuthorizationEntries(entries []json.RawMessage, subject DID) error {
	for _, entry := range entries {
		if ref, ok := stringEntry(entry); ok {
			id, err := ParseURLWithRef(ref, subject)
			if err != nil {
				return wrapError(CodeMalformedDocument, err, "invalid authorization reference %q", ref)
			}
			key := d.publicKeys.Get(id, nil)
			if key == nil {
				return newError(CodeMalformedDocument, "authorization key %s is not a public key", id)
			}
			if key.controller.Equal(subject) {
				return newError(CodeMalformedDocument, "authorization key %s must have a controller other than the subject", id)
			}
			key.isAuthorizationKey = true
			continue
		}
		var rk rawPublicKey
		if err := json.Unmarshal(entry, &rk); err != nil {
			return wrapError(CodeMalformedDocument, err, "invalid authorization entry")
		}
		key, err := publicKeyFromRaw(&rk, subject)
		if err != nil {
			return err
		}
		if key.controller.Equal(subject) {
			return newError(CodeMalformedDocument, "authorization key %s must have a controller other than the subject", key.id)
		}
		if d.publicKeys.Contains(key.id) {
			return newError(CodeMalformedDocument, "duplicate public key %s", key.id)
		}
		key.isAuthorizationKey = true
		d.publicKeys.Append(key)
	}
	return nil
}

func documentProofFromRaw(rp *rawDocumentProof, doc *Document) (*DocumentProof, error) {
	proofType := rp.Type
	if proofType == "" {
		proofType = DefaultPublicKeyType
	}
	if rp.Created == "" {
		return nil, newError(CodeMalformedDocument, "document proof has no created time")
	}
	created, err := parseTime(rp.Created)
	if err != nil {
		return nil, wrapError(CodeMalformedDocument, err, "invalid proof created %q", rp.Created)
	}
	var creator DIDURL
	if rp.Creator != "" {
		creator, err = ParseURLWithRef(rp.Creator, doc.subject)
		if err != nil {
			return nil, wrapError(CodeMalformedDocument, err, "invalid proof creator %q", rp.Creator)
		}
	} else {
		def := doc.DefaultPublicKey()
		if def == nil {
			return nil, newError(CodeMalformedDocument, "document proof has no creator and no default key exists")
		}
		creator = def.id
	}
	if rp.SignatureValue == "" {
		return nil, newError(CodeMalformedDocument, "document proof has no signature")
	}
	if _, err := crypto.DecodeSignature(rp.SignatureValue); err != nil {
		return nil, wrapError(CodeMalformedDocument, err, "document proof signature")
	}
	return &DocumentProof{
		proofType: proofType,
		created:   created,
		creator:   creator,
		signature: rp.SignatureValue,
	}, nil
}

// ParseDocument parses a sealed document from canonical JSON, in either
// normalized or compact form.
func ParseDocument(data []byte) (*Document, error) {
	if err := validateDocumentShape(data); err != nil {
		return nil, err
	}
	var r rawDocument
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, wrapError(CodeMalformedDocument, err, "invalid document JSON")
	}
	return documentFromRaw(&r)
}
