package did

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
	"time"
)

// CredentialBuilder assembles a credential and seals it exactly once.
// Mutators validate before touching the draft; after Seal the builder is
// consumed and further calls fail with an INVALID_STATE error.
type CredentialBuilder struct {
	issuer     *Issuer
	subject    DID
	id         DIDURL
	types      []string
	claims     map[string]interface{}
	expiration time.Time
	consumed   bool
}

func (b *CredentialBuilder) checkOpen() error {
	if b.consumed {
		return newError(CodeInvalidState, "credential already sealed")
	}
	return nil
}

// SetID names the credential. The id must belong to the subject.
func (b *CredentialBuilder) SetID(id DIDURL) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if id.IsEmpty() || id.Fragment == "" {
		return newError(CodeIllegalArgument, "credential id must carry a fragment")
	}
	if !id.DID.Equal(b.subject) {
		return newError(CodeIllegalArgument, "id %s does not belong to %s", id, b.subject)
	}
	b.id = id
	return nil
}

// SetIDFragment names the credential by fragment alone.
func (b *CredentialBuilder) SetIDFragment(fragment string) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	id, err := NewURL(b.subject, fragment)
	if err != nil {
		return err
	}
	b.id = id
	return nil
}

// SetTypes declares the credential types.
func (b *CredentialBuilder) SetTypes(types ...string) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if len(types) == 0 {
		return newError(CodeIllegalArgument, "no credential types given")
	}
	for _, t := range types {
		if t == "" {
			return newError(CodeIllegalArgument, "empty credential type")
		}
	}
	cleaned := slices.Clone(types)
	slices.SortFunc(cleaned, strings.Compare)
	b.types = slices.Compact(cleaned)
	return nil
}

// SetProperties replaces the claim set. The name "id" is reserved for
// the subject DID.
func (b *CredentialBuilder) SetProperties(claims map[string]interface{}) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if len(claims) == 0 {
		return newError(CodeIllegalArgument, "no claims given")
	}
	if _, ok := claims["id"]; ok {
		return newError(CodeIllegalArgument, "claim name %q is reserved", "id")
	}
	b.claims = cloneClaims(claims)
	return nil
}

// SetPropertiesJSON replaces the claim set from a JSON object.
func (b *CredentialBuilder) SetPropertiesJSON(data []byte) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var claims map[string]interface{}
	if err := dec.Decode(&claims); err != nil {
		return wrapError(CodeIllegalArgument, err, "invalid claims JSON")
	}
	return b.SetProperties(claims)
}

// SetExpirationDate sets the credential expiration. Seal clamps it to
// the maximum validity.
func (b *CredentialBuilder) SetExpirationDate(expires time.Time) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if expires.IsZero() {
		return newError(CodeIllegalArgument, "expiration date is zero")
	}
	b.expiration = expires.UTC().Truncate(time.Second)
	return nil
}

// Seal signs the draft with the issuer's key and consumes the builder.
// A self-issued credential with no declared types becomes a
// SelfProclaimedCredential. The expiration defaults to, and is clamped
// at, MaxValidYears after issuance.
func (b *CredentialBuilder) Seal(password string) (*VerifiableCredential, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, newError(CodeIllegalArgument, "store password is empty")
	}
	if b.id.IsEmpty() {
		return nil, newError(CodeMalformedCredential, "credential has no id")
	}
	if len(b.claims) == 0 {
		return nil, newError(CodeMalformedCredential, "credential has no claims")
	}

	selfProclaimed := b.issuer.DID().Equal(b.subject)
	types := b.types
	if len(types) == 0 {
		if !selfProclaimed {
			return nil, newError(CodeMalformedCredential, "credential has no types")
		}
		types = []string{SelfProclaimedCredentialType}
	}

	issuance := time.Now().UTC().Truncate(time.Second)
	maxExpires := issuance.AddDate(MaxValidYears, 0, 0)
	expiration := b.expiration
	switch {
	case expiration.IsZero() || expiration.After(maxExpires):
		expiration = maxExpires
	case !expiration.After(issuance):
		return nil, newError(CodeIllegalArgument, "expiration %s is not after issuance", expiration)
	}

	vc := &VerifiableCredential{
		id:             b.id,
		types:          slices.Clone(types),
		issuer:         b.issuer.DID(),
		issuanceDate:   issuance,
		expirationDate: expiration,
		subject:        CredentialSubject{id: b.subject, claims: cloneClaims(b.claims)},
	}
	input, err := vc.signingInput()
	if err != nil {
		return nil, err
	}
	signature, err := b.issuer.doc.Sign(b.issuer.store, password, b.issuer.signKey, input)
	if err != nil {
		return nil, err
	}
	vc.proof = &CredentialProof{
		proofType:          DefaultPublicKeyType,
		verificationMethod: b.issuer.signKey,
		signature:          signature,
	}
	b.consumed = true
	return vc, nil
}
