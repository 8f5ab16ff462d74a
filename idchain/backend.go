package idchain

import (
	"context"

	"github.com/elastos/go-did-sdk/did"
)

// Adapter submits sealed requests to an ID chain. Implementations wrap a
// node RPC endpoint, a contract-backed wallet, or a simulated chain.
type Adapter interface {
	// CreateIDTransaction submits the request wire JSON as an ID
	// transaction and returns its transaction id.
	CreateIDTransaction(ctx context.Context, payload string, memo string) (string, error)
}

// Publisher drives the document lifecycle, create, update, deactivate,
// against a chain adapter.
type Publisher struct {
	adapter Adapter
	memo    string
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithMemo attaches a memo to every submitted transaction.
func WithMemo(memo string) PublisherOption {
	return func(p *Publisher) { p.memo = memo }
}

// NewPublisher wraps a chain adapter.
func NewPublisher(adapter Adapter, opts ...PublisherOption) *Publisher {
	p := &Publisher{adapter: adapter}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Create publishes a document for the first time and returns the
// transaction id.
func (p *Publisher) Create(ctx context.Context, doc *did.Document, signKey did.DIDURL, password string, store did.Store) (string, error) {
	req, err := NewCreateRequest(doc, signKey, password, store)
	if err != nil {
		return "", err
	}
	return p.submit(ctx, req)
}

// Update publishes the next revision of a document, superseding
// previousTxid.
func (p *Publisher) Update(ctx context.Context, doc *did.Document, previousTxid string, signKey did.DIDURL, password string, store did.Store) (string, error) {
	req, err := NewUpdateRequest(doc, previousTxid, signKey, password, store)
	if err != nil {
		return "", err
	}
	return p.submit(ctx, req)
}

// Deactivate retires a DID, signed by the DID itself.
func (p *Publisher) Deactivate(ctx context.Context, doc *did.Document, signKey did.DIDURL, password string, store did.Store) (string, error) {
	req, err := NewDeactivateRequest(doc, signKey, password, store)
	if err != nil {
		return "", err
	}
	return p.submit(ctx, req)
}

// DeactivateByAuthorizer retires a target DID, signed by a party the
// target's document delegates to.
func (p *Publisher) DeactivateByAuthorizer(ctx context.Context, target, authorizer *did.Document, authorizerKey did.DIDURL, password string, store did.Store) (string, error) {
	req, err := NewDeactivateRequestByAuthorizer(target, authorizer, authorizerKey, password, store)
	if err != nil {
		return "", err
	}
	return p.submit(ctx, req)
}

func (p *Publisher) submit(ctx context.Context, req *Request) (string, error) {
	data, err := req.ToJSON(false)
	if err != nil {
		return "", err
	}
	txid, err := p.adapter.CreateIDTransaction(ctx, string(data), p.memo)
	if err != nil {
		return "", wrapError(did.CodeTransaction, err, "%s %s", req.operation, req.target)
	}
	return txid, nil
}
