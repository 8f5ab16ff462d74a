package did

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/elastos/go-did-sdk/crypto"
)

// SelfProclaimedCredentialType marks a credential whose issuer is its own
// subject. Builders add it automatically when no explicit types are given
// for a self-issued credential.
const SelfProclaimedCredentialType = "SelfProclaimedCredential"

// VerifiableCredential is a sealed, signed claim set about one subject.
// Instances are immutable; they are produced by a CredentialBuilder or
// parsed from JSON.
type VerifiableCredential struct {
	id             DIDURL
	types          []string
	issuer         DID
	issuanceDate   time.Time
	expirationDate time.Time
	subject        CredentialSubject
	proof          *CredentialProof
	metadata       *CredentialMetadata
}

// CredentialSubject carries the subject DID and the claim map.
type CredentialSubject struct {
	id     DID
	claims map[string]interface{}
}

// ID returns the subject DID.
func (s CredentialSubject) ID() DID { return s.id }

// Claims returns a deep copy of the claim map.
func (s CredentialSubject) Claims() map[string]interface{} {
	return cloneClaims(s.claims)
}

// Claim returns one claim value by name.
func (s CredentialSubject) Claim(name string) (interface{}, bool) {
	v, ok := s.claims[name]
	return v, ok
}

// ID returns the credential's DIDURL.
func (vc *VerifiableCredential) ID() DIDURL { return vc.id }

// Types returns the credential types in ascending order.
func (vc *VerifiableCredential) Types() []string { return slices.Clone(vc.types) }

// ObjectTypes implements Object.
func (vc *VerifiableCredential) ObjectTypes() []string { return slices.Clone(vc.types) }

// Issuer returns the issuer DID.
func (vc *VerifiableCredential) Issuer() DID { return vc.issuer }

// Subject returns the credential subject.
func (vc *VerifiableCredential) Subject() CredentialSubject { return vc.subject }

// IssuanceDate returns when the credential was sealed.
func (vc *VerifiableCredential) IssuanceDate() time.Time { return vc.issuanceDate }

// ExpirationDate returns the expiration time, or the zero time when the
// credential carries none.
func (vc *VerifiableCredential) ExpirationDate() time.Time { return vc.expirationDate }

// Proof returns the issuer's proof.
func (vc *VerifiableCredential) Proof() *CredentialProof { return vc.proof }

// Metadata returns the mutable bookkeeping attached to this credential.
func (vc *VerifiableCredential) Metadata() *CredentialMetadata {
	if vc.metadata == nil {
		vc.metadata = &CredentialMetadata{}
	}
	return vc.metadata
}

// IsSelfProclaimed reports whether issuer and subject are the same DID.
func (vc *VerifiableCredential) IsSelfProclaimed() bool {
	return vc.issuer.Equal(vc.subject.id)
}

// IsExpired reports whether the credential's own expiration has passed.
// A credential without an expiration date never expires by itself; it is
// still bounded by its subject document's lifetime.
func (vc *VerifiableCredential) IsExpired() bool {
	if vc.expirationDate.IsZero() {
		return false
	}
	return time.Now().After(vc.expirationDate)
}

// IsGenuine reports whether the proof verifies against an authentication
// key of the resolved issuer document. Any failure along the way, a
// missing proof, an unresolvable issuer, a key outside the issuer's
// authentication set, or a bad signature, yields false.
func (vc *VerifiableCredential) IsGenuine(ctx context.Context, r Resolver) bool {
	if vc.proof == nil || vc.proof.proofType != DefaultPublicKeyType {
		return false
	}
	issuerDoc, err := r.Resolve(ctx, vc.issuer, false)
	if err != nil || issuerDoc == nil {
		return false
	}
	if !issuerDoc.IsAuthenticationKey(vc.proof.verificationMethod) {
		return false
	}
	data, err := vc.signingInput()
	if err != nil {
		return false
	}
	ok, err := issuerDoc.VerifySignature(vc.proof.verificationMethod, vc.proof.signature, data)
	return err == nil && ok
}

// IsValid reports whether the credential is genuine, unexpired, and its
// issuer document is itself valid.
func (vc *VerifiableCredential) IsValid(ctx context.Context, r Resolver) bool {
	if vc.IsExpired() {
		return false
	}
	issuerDoc, err := r.Resolve(ctx, vc.issuer, false)
	if err != nil || issuerDoc == nil || !issuerDoc.IsValid() {
		return false
	}
	return vc.IsGenuine(ctx, r)
}

// ToJSON renders the credential in canonical form. The normalized form
// spells out every field; the compact form omits defaults and renders ids
// relative to the subject.
func (vc *VerifiableCredential) ToJSON(normalized bool) ([]byte, error) {
	data, err := json.Marshal(vc.toRaw(marshalOptions{normalized: normalized}))
	if err != nil {
		return nil, wrapError(CodeUnknown, err, "marshal credential %s", vc.id)
	}
	return data, nil
}

// signingInput returns the exact bytes the credential signature covers:
// the normalized rendering without the proof.
func (vc *VerifiableCredential) signingInput() ([]byte, error) {
	data, err := json.Marshal(vc.toRaw(marshalOptions{normalized: true, forSigning: true}))
	if err != nil {
		return nil, wrapError(CodeUnknown, err, "marshal credential %s for signing", vc.id)
	}
	return data, nil
}

type rawCredential struct {
	ID             string              `json:"id"`
	Type           []string            `json:"type"`
	Issuer         string              `json:"issuer,omitempty"`
	IssuanceDate   string              `json:"issuanceDate"`
	ExpirationDate string              `json:"expirationDate,omitempty"`
	Subject        *rawSubject         `json:"credentialSubject"`
	Proof          *rawCredentialProof `json:"proof,omitempty"`
}

type rawCredentialProof struct {
	Type               string `json:"type,omitempty"`
	VerificationMethod string `json:"verificationMethod"`
	Signature          string `json:"signature"`
}

func (vc *VerifiableCredential) toRaw(opts marshalOptions) *rawCredential {
	opts.ref = vc.subject.id

	types := slices.Clone(vc.types)
	slices.SortFunc(types, strings.Compare)

	r := &rawCredential{
		ID:           renderURL(vc.id, opts),
		Type:         types,
		IssuanceDate: formatTime(vc.issuanceDate),
	}
	if opts.normalized || !vc.issuer.Equal(vc.subject.id) {
		r.Issuer = vc.issuer.String()
	}
	if !vc.expirationDate.IsZero() {
		r.ExpirationDate = formatTime(vc.expirationDate)
	}
	subject := &rawSubject{Claims: vc.subject.claims}
	if opts.normalized {
		subject.ID = vc.subject.id.String()
	}
	r.Subject = subject

	if vc.proof != nil && !opts.forSigning {
		proof := &rawCredentialProof{
			VerificationMethod: renderURL(vc.proof.verificationMethod, opts),
			Signature:          vc.proof.signature,
		}
		if opts.normalized || vc.proof.proofType != DefaultPublicKeyType {
			proof.Type = vc.proof.proofType
		}
		r.Proof = proof
	}
	return r
}

// credentialFromRaw rebuilds a credential from its wire form. ref is the
// DID relative ids resolve against; the zero DID means the credential
// stands alone and every id must be absolute or derivable.
func credentialFromRaw(r *rawCredential, ref DID) (*VerifiableCredential, error) {
	if r.ID == "" {
		return nil, newError(CodeMalformedCredential, "missing credential id")
	}
	id, err := ParseURLWithRef(r.ID, ref)
	if err != nil {
		return nil, wrapError(CodeMalformedCredential, err, "invalid credential id %q", r.ID)
	}
	if id.Fragment == "" {
		return nil, newError(CodeMalformedCredential, "credential id %s has no fragment", id)
	}

	if len(r.Type) == 0 {
		return nil, newError(CodeMalformedCredential, "credential %s has no type", id)
	}
	types := slices.Clone(r.Type)
	slices.SortFunc(types, strings.Compare)

	if r.Subject == nil {
		return nil, newError(CodeMalformedCredential, "credential %s has no subject", id)
	}
	subjectID := id.DID
	if r.Subject.ID != "" {
		subjectID, err = ParseDID(r.Subject.ID)
		if err != nil {
			return nil, wrapError(CodeMalformedCredential, err, "invalid subject id %q", r.Subject.ID)
		}
	} else if !ref.IsEmpty() {
		subjectID = ref
	}
	claims := r.Subject.Claims
	if claims == nil {
		claims = map[string]interface{}{}
	}

	issuer := subjectID
	if r.Issuer != "" {
		issuer, err = ParseDID(r.Issuer)
		if err != nil {
			return nil, wrapError(CodeMalformedCredential, err, "invalid issuer %q", r.Issuer)
		}
	}

	if r.IssuanceDate == "" {
		return nil, newError(CodeMalformedCredential, "credential %s has no issuance date", id)
	}
	issuance, err := parseTime(r.IssuanceDate)
	if err != nil {
		return nil, wrapError(CodeMalformedCredential, err, "invalid issuance date %q", r.IssuanceDate)
	}
	var expiration time.Time
	if r.ExpirationDate != "" {
		expiration, err = parseTime(r.ExpirationDate)
		if err != nil {
			return nil, wrapError(CodeMalformedCredential, err, "invalid expiration date %q", r.ExpirationDate)
		}
	}

	if r.Proof == nil {
		return nil, newError(CodeMalformedCredential, "credential %s has no proof", id)
	}
	proofType := r.Proof.Type
	if proofType == "" {
		proofType = DefaultPublicKeyType
	}
	if r.Proof.VerificationMethod == "" {
		return nil, newError(CodeMalformedCredential, "credential %s proof has no verification method", id)
	}
	method, err := ParseURLWithRef(r.Proof.VerificationMethod, issuer)
	if err != nil {
		return nil, wrapError(CodeMalformedCredential, err, "invalid verification method %q", r.Proof.VerificationMethod)
	}
	if r.Proof.Signature == "" {
		return nil, newError(CodeMalformedCredential, "credential %s proof has no signature", id)
	}
	if _, err := crypto.DecodeSignature(r.Proof.Signature); err != nil {
		return nil, wrapError(CodeMalformedCredential, err, "credential %s proof signature", id)
	}

	return &VerifiableCredential{
		id:             id,
		types:          types,
		issuer:         issuer,
		issuanceDate:   issuance,
		expirationDate: expiration,
		subject:        CredentialSubject{id: subjectID, claims: claims},
		proof: &CredentialProof{
			proofType:          proofType,
			verificationMethod: method,
			signature:          r.Proof.Signature,
		},
	}, nil
}

// ParseCredential parses a standalone credential from canonical JSON.
// Embedded compact credentials, whose ids are relative to the enclosing
// document, are handled by the document parser instead.
func ParseCredential(data []byte) (*VerifiableCredential, error) {
	var r rawCredential
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, wrapError(CodeMalformedCredential, err, "invalid credential JSON")
	}
	return credentialFromRaw(&r, DID{})
}
