package did

import "time"

// DocumentProof is the integrity proof sealed into a DID document. The
// creator is always the document's default public key.
type DocumentProof struct {
	proofType string
	created   time.Time
	creator   DIDURL
	signature string
}

// Type returns the proof's key type.
func (p *DocumentProof) Type() string { return p.proofType }

// Created returns the sealing time.
func (p *DocumentProof) Created() time.Time { return p.created }

// Creator returns the id of the key that produced the signature.
func (p *DocumentProof) Creator() DIDURL { return p.creator }

// Signature returns the base64url-encoded signature.
func (p *DocumentProof) Signature() string { return p.signature }

// CredentialProof is the issuer's proof on a verifiable credential.
type CredentialProof struct {
	proofType          string
	verificationMethod DIDURL
	signature          string
}

// Type returns the proof's key type.
func (p *CredentialProof) Type() string { return p.proofType }

// VerificationMethod returns the issuer key that signed the credential.
func (p *CredentialProof) VerificationMethod() DIDURL { return p.verificationMethod }

// Signature returns the base64url-encoded signature.
func (p *CredentialProof) Signature() string { return p.signature }

// PresentationProof is the holder's proof on a presentation. Realm and
// nonce bind the presentation to one verifier challenge.
type PresentationProof struct {
	proofType          string
	verificationMethod DIDURL
	realm              string
	nonce              string
	signature          string
}

// Type returns the proof's key type.
func (p *PresentationProof) Type() string { return p.proofType }

// VerificationMethod returns the holder key that signed the presentation.
func (p *PresentationProof) VerificationMethod() DIDURL { return p.verificationMethod }

// Realm returns the verifier-supplied realm.
func (p *PresentationProof) Realm() string { return p.realm }

// Nonce returns the verifier-supplied nonce.
func (p *PresentationProof) Nonce() string { return p.nonce }

// Signature returns the base64url-encoded signature.
func (p *PresentationProof) Signature() string { return p.signature }
