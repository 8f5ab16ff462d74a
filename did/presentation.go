package did

import (
	"context"
	"encoding/json"
	"time"

	"github.com/elastos/go-did-sdk/crypto"
)

// PresentationType is the fixed type tag of a verifiable presentation.
const PresentationType = "VerifiablePresentation"

// VerifiablePresentation is a sealed bundle of credentials, all about one
// holder, countersigned by the holder against a verifier's realm and
// nonce challenge.
type VerifiablePresentation struct {
	presType    string
	created     time.Time
	credentials *EntryMap[*VerifiableCredential]
	proof       *PresentationProof
}

// Type returns the presentation type tag.
func (vp *VerifiablePresentation) Type() string { return vp.presType }

// Created returns when the presentation was sealed.
func (vp *VerifiablePresentation) Created() time.Time { return vp.created }

// CredentialCount returns the number of bundled credentials.
func (vp *VerifiablePresentation) CredentialCount() int { return vp.credentials.Len() }

// Credentials returns the bundled credentials in canonical order.
func (vp *VerifiablePresentation) Credentials() []*VerifiableCredential {
	return vp.credentials.Values(nil)
}

// GetCredential returns the bundled credential with the given id, or nil.
func (vp *VerifiablePresentation) GetCredential(id DIDURL) *VerifiableCredential {
	return vp.credentials.Get(id, nil)
}

// Proof returns the holder's proof.
func (vp *VerifiablePresentation) Proof() *PresentationProof { return vp.proof }

// Signer returns the holder key that sealed the presentation.
func (vp *VerifiablePresentation) Signer() DIDURL { return vp.proof.verificationMethod }

// Holder returns the DID that sealed the presentation.
func (vp *VerifiablePresentation) Holder() DID { return vp.proof.verificationMethod.DID }

// IsGenuine reports whether the holder's signature verifies against an
// authentication key of the resolved holder document, every bundled
// credential belongs to the holder, and every bundled credential is
// itself genuine.
func (vp *VerifiablePresentation) IsGenuine(ctx context.Context, r Resolver) bool {
	if vp.proof == nil || vp.proof.proofType != DefaultPublicKeyType {
		return false
	}
	holder := vp.Holder()
	holderDoc, err := r.Resolve(ctx, holder, false)
	if err != nil || holderDoc == nil {
		return false
	}
	if !holderDoc.IsAuthenticationKey(vp.proof.verificationMethod) {
		return false
	}
	for _, vc := range vp.credentials.Values(nil) {
		if !vc.subject.id.Equal(holder) || !vc.IsGenuine(ctx, r) {
			return false
		}
	}
	input, err := vp.signingInput()
	if err != nil {
		return false
	}
	ok, err := holderDoc.VerifySignature(vp.proof.verificationMethod, vp.proof.signature,
		input, []byte(vp.proof.realm), []byte(vp.proof.nonce))
	return err == nil && ok
}

// IsValid reports whether the presentation is genuine, the holder
// document is valid, and every bundled credential is valid.
func (vp *VerifiablePresentation) IsValid(ctx context.Context, r Resolver) bool {
	holderDoc, err := r.Resolve(ctx, vp.Holder(), false)
	if err != nil || holderDoc == nil || !holderDoc.IsValid() {
		return false
	}
	for _, vc := range vp.credentials.Values(nil) {
		if !vc.IsValid(ctx, r) {
			return false
		}
	}
	return vp.IsGenuine(ctx, r)
}

// ToJSON renders the presentation in canonical form.
func (vp *VerifiablePresentation) ToJSON(normalized bool) ([]byte, error) {
	data, err := json.Marshal(vp.toRaw(marshalOptions{normalized: normalized}))
	if err != nil {
		return nil, wrapError(CodeUnknown, err, "marshal presentation")
	}
	return data, nil
}

// signingInput returns the first signed segment: the normalized
// rendering without the proof. The realm and nonce follow it as separate
// segments.
func (vp *VerifiablePresentation) signingInput() ([]byte, error) {
	data, err := json.Marshal(vp.toRaw(marshalOptions{normalized: true, forSigning: true}))
	if err != nil {
		return nil, wrapError(CodeUnknown, err, "marshal presentation for signing")
	}
	return data, nil
}

type rawPresentation struct {
	Type                 string                `json:"type"`
	Created              string                `json:"created"`
	VerifiableCredential []*rawCredential      `json:"verifiableCredential"`
	Proof                *rawPresentationProof `json:"proof,omitempty"`
}

type rawPresentationProof struct {
	Type               string `json:"type,omitempty"`
	VerificationMethod string `json:"verificationMethod"`
	Realm              string `json:"realm"`
	Nonce              string `json:"nonce"`
	Signature          string `json:"signature"`
}

func (vp *VerifiablePresentation) toRaw(opts marshalOptions) *rawPresentation {
	r := &rawPresentation{
		Type:    vp.presType,
		Created: formatTime(vp.created),
	}
	for _, vc := range vp.credentials.Values(nil) {
		r.VerifiableCredential = append(r.VerifiableCredential, vc.toRaw(opts))
	}
	if vp.proof != nil && !opts.forSigning {
		proof := &rawPresentationProof{
			VerificationMethod: vp.proof.verificationMethod.String(),
			Realm:              vp.proof.realm,
			Nonce:              vp.proof.nonce,
			Signature:          vp.proof.signature,
		}
		if opts.normalized || vp.proof.proofType != DefaultPublicKeyType {
			proof.Type = vp.proof.proofType
		}
		r.Proof = proof
	}
	return r
}

// ParsePresentation parses a sealed presentation from canonical JSON.
func ParsePresentation(data []byte) (*VerifiablePresentation, error) {
	var r rawPresentation
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, wrapError(CodeMalformedPresentation, err, "invalid presentation JSON")
	}
	if r.Type != PresentationType {
		return nil, newError(CodeMalformedPresentation, "unexpected presentation type %q", r.Type)
	}
	if r.Created == "" {
		return nil, newError(CodeMalformedPresentation, "presentation has no created time")
	}
	created, err := parseTime(r.Created)
	if err != nil {
		return nil, wrapError(CodeMalformedPresentation, err, "invalid created %q", r.Created)
	}

	if r.Proof == nil {
		return nil, newError(CodeMalformedPresentation, "presentation has no proof")
	}
	proofType := r.Proof.Type
	if proofType == "" {
		proofType = DefaultPublicKeyType
	}
	if r.Proof.VerificationMethod == "" {
		return nil, newError(CodeMalformedPresentation, "presentation proof has no verification method")
	}
	method, err := ParseURL(r.Proof.VerificationMethod)
	if err != nil {
		return nil, wrapError(CodeMalformedPresentation, err, "invalid verification method %q", r.Proof.VerificationMethod)
	}
	if r.Proof.Realm == "" || r.Proof.Nonce == "" {
		return nil, newError(CodeMalformedPresentation, "presentation proof is missing realm or nonce")
	}
	if r.Proof.Signature == "" {
		return nil, newError(CodeMalformedPresentation, "presentation proof has no signature")
	}
	if _, err := crypto.DecodeSignature(r.Proof.Signature); err != nil {
		return nil, wrapError(CodeMalformedPresentation, err, "presentation proof signature")
	}

	if len(r.VerifiableCredential) == 0 {
		return nil, newError(CodeMalformedPresentation, "presentation has no credentials")
	}
	credentials := NewEntryMap[*VerifiableCredential]()
	for _, rc := range r.VerifiableCredential {
		vc, err := credentialFromRaw(rc, method.DID)
		if err != nil {
			return nil, wrapError(CodeMalformedPresentation, err, "embedded credential")
		}
		if credentials.Contains(vc.id) {
			return nil, newError(CodeMalformedPresentation, "duplicate credential %s", vc.id)
		}
		credentials.Append(vc)
	}

	return &VerifiablePresentation{
		presType:    r.Type,
		created:     created,
		credentials: credentials,
		proof: &PresentationProof{
			proofType:          proofType,
			verificationMethod: method,
			realm:              r.Proof.Realm,
			nonce:              r.Proof.Nonce,
			signature:          r.Proof.Signature,
		},
	}, nil
}
