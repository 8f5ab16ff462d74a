// Package idchain builds, signs, and verifies the transaction envelopes
// that carry DID operations onto the ID chain, and resolves the
// transaction history recorded there.
package idchain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/elastos/go-did-sdk/crypto"
	"github.com/elastos/go-did-sdk/did"
)

// CurrentSpecification identifies the request schema this SDK emits and
// accepts.
const CurrentSpecification = "elastos/did/1.0"

// Operation is the kind of DID transaction a request carries.
type Operation string

const (
	// OperationCreate publishes a DID's first document.
	OperationCreate Operation = "create"

	// OperationUpdate replaces a published document; it must name the
	// transaction it supersedes.
	OperationUpdate Operation = "update"

	// OperationDeactivate retires a DID permanently.
	OperationDeactivate Operation = "deactivate"
)

func parseOperation(s string) (Operation, bool) {
	switch Operation(s) {
	case OperationCreate, OperationUpdate, OperationDeactivate:
		return Operation(s), true
	}
	return "", false
}

// Proof binds a request to the key that signed it.
type Proof struct {
	proofType          string
	verificationMethod did.DIDURL
	signature          string
}

// Type returns the proof's key type.
func (p *Proof) Type() string { return p.proofType }

// VerificationMethod returns the key id the request was signed with. For
// a deactivation by an authorizer this is the target document's
// authorization key, not the authorizer's own.
func (p *Proof) VerificationMethod() did.DIDURL { return p.verificationMethod }

// Signature returns the base64url-encoded signature.
func (p *Proof) Signature() string { return p.signature }

// Request is a sealed ID-chain transaction envelope: header, payload,
// and the controlling key's proof over both. Create and update requests
// carry the document itself, base64url encoded; deactivation requests
// carry just the DID.
type Request struct {
	specification string
	operation     Operation
	previousTxid  string
	payload       string
	proof         *Proof

	target   did.DID
	document *did.Document
}

func newError(code, format string, args ...interface{}) *did.Error {
	return &did.Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code string, cause error, format string, args ...interface{}) *did.Error {
	return &did.Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// NewCreateRequest seals a create request for a document's first
// publication. A zero signKey selects the document's default key; the
// key must be in its authentication set.
func NewCreateRequest(doc *did.Document, signKey did.DIDURL, password string, store did.Store) (*Request, error) {
	return newDocumentRequest(OperationCreate, doc, "", signKey, password, store)
}

// NewUpdateRequest seals an update request superseding previousTxid.
func NewUpdateRequest(doc *did.Document, previousTxid string, signKey did.DIDURL, password string, store did.Store) (*Request, error) {
	if previousTxid == "" {
		return nil, newError(did.CodeIllegalArgument, "update request needs the previous transaction id")
	}
	return newDocumentRequest(OperationUpdate, doc, previousTxid, signKey, password, store)
}

func newDocumentRequest(op Operation, doc *did.Document, previousTxid string, signKey did.DIDURL, password string, store did.Store) (*Request, error) {
	if doc == nil {
		return nil, newError(did.CodeIllegalArgument, "document is nil")
	}
	signKey, err := pickAuthenticationKey(doc, signKey)
	if err != nil {
		return nil, err
	}
	docJSON, err := doc.ToJSON(true)
	if err != nil {
		return nil, err
	}
	r := &Request{
		specification: CurrentSpecification,
		operation:     op,
		previousTxid:  previousTxid,
		payload:       base64.RawURLEncoding.EncodeToString(docJSON),
		target:        doc.Subject(),
		document:      doc,
	}
	signature, err := doc.Sign(store, password, signKey, r.signingSegments()...)
	if err != nil {
		return nil, err
	}
	r.proof = &Proof{
		proofType:          did.DefaultPublicKeyType,
		verificationMethod: signKey,
		signature:          signature,
	}
	return r, nil
}

// NewDeactivateRequest seals a deactivation signed by the DID itself.
func NewDeactivateRequest(doc *did.Document, signKey did.DIDURL, password string, store did.Store) (*Request, error) {
	if doc == nil {
		return nil, newError(did.CodeIllegalArgument, "document is nil")
	}
	signKey, err := pickAuthenticationKey(doc, signKey)
	if err != nil {
		return nil, err
	}
	r := &Request{
		specification: CurrentSpecification,
		operation:     OperationDeactivate,
		payload:       doc.Subject().String(),
		target:        doc.Subject(),
	}
	signature, err := doc.Sign(store, password, signKey, r.signingSegments()...)
	if err != nil {
		return nil, err
	}
	r.proof = &Proof{
		proofType:          did.DefaultPublicKeyType,
		verificationMethod: signKey,
		signature:          signature,
	}
	return r, nil
}

// NewDeactivateRequestByAuthorizer seals a deactivation of target signed
// by a delegated party. The authorizer signs with its own authentication
// key; the proof names the matching authorization key published in the
// target document.
func NewDeactivateRequestByAuthorizer(target, authorizer *did.Document, authorizerKey did.DIDURL, password string, store did.Store) (*Request, error) {
	if target == nil || authorizer == nil {
		return nil, newError(did.CodeIllegalArgument, "document is nil")
	}
	authorizerKey, err := pickAuthenticationKey(authorizer, authorizerKey)
	if err != nil {
		return nil, err
	}
	signingKey := authorizer.GetAuthenticationKey(authorizerKey)

	var delegated did.DIDURL
	for _, k := range target.AuthorizationKeys() {
		if k.Controller().Equal(authorizer.Subject()) && k.PublicKeyBase58() == signingKey.PublicKeyBase58() {
			delegated = k.ID()
			break
		}
	}
	if delegated.IsEmpty() {
		return nil, newError(did.CodeIllegalArgument,
			"%s holds no authorization from %s", authorizer.Subject(), target.Subject())
	}

	r := &Request{
		specification: CurrentSpecification,
		operation:     OperationDeactivate,
		payload:       target.Subject().String(),
		target:        target.Subject(),
	}
	signature, err := authorizer.Sign(store, password, authorizerKey, r.signingSegments()...)
	if err != nil {
		return nil, err
	}
	r.proof = &Proof{
		proofType:          did.DefaultPublicKeyType,
		verificationMethod: delegated,
		signature:          signature,
	}
	return r, nil
}

func pickAuthenticationKey(doc *did.Document, signKey did.DIDURL) (did.DIDURL, error) {
	if signKey.IsEmpty() {
		def := doc.DefaultPublicKey()
		if def == nil {
			return did.DIDURL{}, newError(did.CodeIllegalArgument, "document %s has no default key", doc.Subject())
		}
		return def.ID(), nil
	}
	if !doc.IsAuthenticationKey(signKey) {
		return did.DIDURL{}, newError(did.CodeIllegalArgument,
			"%s is not an authentication key of %s", signKey, doc.Subject())
	}
	return signKey, nil
}

// Specification returns the request schema identifier.
func (r *Request) Specification() string { return r.specification }

// Operation returns the carried operation.
func (r *Request) Operation() Operation { return r.operation }

// PreviousTxid returns the superseded transaction id of an update, or "".
func (r *Request) PreviousTxid() string { return r.previousTxid }

// Payload returns the encoded payload: base64url document JSON for
// create and update, the plain DID string for deactivate.
func (r *Request) Payload() string { return r.payload }

// Proof returns the request proof.
func (r *Request) Proof() *Proof { return r.proof }

// Target returns the DID the request operates on.
func (r *Request) Target() did.DID { return r.target }

// Document returns the carried document, or nil for a deactivation.
func (r *Request) Document() *did.Document { return r.document }

// signingSegments returns the segments the request signature covers, in
// protocol order. The previous transaction id contributes an empty
// segment for operations that carry none.
func (r *Request) signingSegments() [][]byte {
	return [][]byte{
		[]byte(r.specification),
		[]byte(r.operation),
		[]byte(r.previousTxid),
		[]byte(r.payload),
	}
}

// IsValid reports whether the request proof verifies. Create and update
// requests verify against an authentication key of the document they
// carry. Deactivation requests verify against the resolved target
// document, accepting either one of its authentication keys or one of
// its authorization keys. Resolution failures are errors; a signature
// that does not match is false.
func (r *Request) IsValid(ctx context.Context, resolver did.Resolver) (bool, error) {
	if r.proof == nil || r.proof.proofType != did.DefaultPublicKeyType {
		return false, nil
	}
	method := r.proof.verificationMethod

	var doc *did.Document
	switch r.operation {
	case OperationCreate, OperationUpdate:
		doc = r.document
		if doc == nil {
			return false, newError(did.CodeMalformedRequest, "%s request carries no document", r.operation)
		}
		if !doc.IsAuthenticationKey(method) {
			return false, nil
		}
	case OperationDeactivate:
		if resolver == nil {
			return false, newError(did.CodeResolve, "deactivation needs a resolver to validate against")
		}
		resolved, err := resolver.Resolve(ctx, r.target, false)
		if err != nil {
			return false, wrapError(did.CodeResolve, err, "resolve %s", r.target)
		}
		if resolved == nil {
			return false, newError(did.CodeResolve, "%s is not published", r.target)
		}
		if !resolved.IsAuthenticationKey(method) && !resolved.IsAuthorizationKey(method) {
			return false, nil
		}
		doc = resolved
	default:
		return false, newError(did.CodeMalformedRequest, "unknown operation %q", r.operation)
	}

	ok, err := doc.VerifySignature(method, r.proof.signature, r.signingSegments()...)
	if err != nil {
		return false, err
	}
	return ok, nil
}

type rawRequest struct {
	Header  *rawHeader       `json:"header"`
	Payload string           `json:"payload"`
	Proof   *rawRequestProof `json:"proof"`
}

type rawHeader struct {
	Specification string `json:"specification"`
	Operation     string `json:"operation"`
	PreviousTxid  string `json:"previousTxid,omitempty"`
}

type rawRequestProof struct {
	Type               string `json:"type,omitempty"`
	VerificationMethod string `json:"verificationMethod"`
	Signature          string `json:"signature"`
}

// ToJSON renders the request in canonical form. The compact form omits
// the default proof type and renders the verification method relative to
// the target DID.
func (r *Request) ToJSON(normalized bool) ([]byte, error) {
	raw := &rawRequest{
		Header: &rawHeader{
			Specification: r.specification,
			Operation:     string(r.operation),
			PreviousTxid:  r.previousTxid,
		},
		Payload: r.payload,
	}
	proof := &rawRequestProof{Signature: r.proof.signature}
	if normalized {
		proof.Type = r.proof.proofType
		proof.VerificationMethod = r.proof.verificationMethod.String()
	} else {
		if r.proof.proofType != did.DefaultPublicKeyType {
			proof.Type = r.proof.proofType
		}
		proof.VerificationMethod = r.proof.verificationMethod.StringWithRef(r.target)
	}
	raw.Proof = proof

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, wrapError(did.CodeUnknown, err, "marshal request for %s", r.target)
	}
	return data, nil
}

// ParseRequest parses a request from its wire form and re-derives the
// carried document and target.
func ParseRequest(data []byte) (*Request, error) {
	var raw rawRequest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, wrapError(did.CodeMalformedRequest, err, "invalid request JSON")
	}
	if raw.Header == nil {
		return nil, newError(did.CodeMalformedRequest, "request has no header")
	}
	if raw.Header.Specification != CurrentSpecification {
		return nil, newError(did.CodeMalformedRequest, "unsupported specification %q", raw.Header.Specification)
	}
	op, ok := parseOperation(raw.Header.Operation)
	if !ok {
		return nil, newError(did.CodeMalformedRequest, "unknown operation %q", raw.Header.Operation)
	}
	if raw.Payload == "" {
		return nil, newError(did.CodeMalformedRequest, "request has no payload")
	}

	r := &Request{
		specification: raw.Header.Specification,
		operation:     op,
		previousTxid:  raw.Header.PreviousTxid,
		payload:       raw.Payload,
	}
	switch op {
	case OperationCreate, OperationUpdate:
		if op == OperationUpdate && r.previousTxid == "" {
			return nil, newError(did.CodeMalformedRequest, "update request has no previous transaction id")
		}
		if op == OperationCreate && r.previousTxid != "" {
			return nil, newError(did.CodeMalformedRequest, "create request carries a previous transaction id")
		}
		docJSON, err := base64.RawURLEncoding.DecodeString(raw.Payload)
		if err != nil {
			return nil, wrapError(did.CodeMalformedRequest, err, "request payload")
		}
		doc, err := did.ParseDocument(docJSON)
		if err != nil {
			return nil, wrapError(did.CodeMalformedRequest, err, "request payload")
		}
		r.document = doc
		r.target = doc.Subject()
	case OperationDeactivate:
		if r.previousTxid != "" {
			return nil, newError(did.CodeMalformedRequest, "deactivate request carries a previous transaction id")
		}
		target, err := did.ParseDID(raw.Payload)
		if err != nil {
			return nil, wrapError(did.CodeMalformedRequest, err, "request payload")
		}
		r.target = target
	}

	if raw.Proof == nil {
		return nil, newError(did.CodeMalformedRequest, "request has no proof")
	}
	proofType := raw.Proof.Type
	if proofType == "" {
		proofType = did.DefaultPublicKeyType
	}
	if raw.Proof.VerificationMethod == "" {
		return nil, newError(did.CodeMalformedRequest, "request proof has no verification method")
	}
	method, err := did.ParseURLWithRef(raw.Proof.VerificationMethod, r.target)
	if err != nil {
		return nil, wrapError(did.CodeMalformedRequest, err, "invalid verification method %q", raw.Proof.VerificationMethod)
	}
	if raw.Proof.Signature == "" {
		return nil, newError(did.CodeMalformedRequest, "request proof has no signature")
	}
	if _, err := crypto.DecodeSignature(raw.Proof.Signature); err != nil {
		return nil, wrapError(did.CodeMalformedRequest, err, "request proof signature")
	}
	r.proof = &Proof{
		proofType:          proofType,
		verificationMethod: method,
		signature:          raw.Proof.Signature,
	}
	return r, nil
}
