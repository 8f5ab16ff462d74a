// Package adapter connects the DID model to concrete ID-chain backends:
// a JSON-RPC resolver, a contract-publishing wallet, and an in-memory
// simulated chain for development and tests.
package adapter

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bluele/gcache"
	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/rpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"

	"github.com/elastos/go-did-sdk/did"
	"github.com/elastos/go-did-sdk/idchain"
	"github.com/elastos/go-did-sdk/internal/config"
)

func newError(code, format string, args ...interface{}) *did.Error {
	return &did.Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code string, cause error, format string, args ...interface{}) *did.Error {
	return &did.Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// DefaultResolver resolves DIDs against an EID node's JSON-RPC endpoint.
// Results are cached with a TTL, concurrent resolutions of one DID are
// coalesced into a single RPC call, and transient RPC failures are
// retried with exponential backoff.
type DefaultResolver struct {
	client     *rpc.Client
	cache      gcache.Cache
	group      singleflight.Group
	maxRetries uint64
}

type resolverOptions struct {
	cacheSize  int
	cacheTTL   time.Duration
	maxRetries uint64
	httpClient *http.Client
}

// ResolverOption configures a DefaultResolver.
type ResolverOption func(*resolverOptions)

// WithCacheSize bounds the resolve cache entry count.
func WithCacheSize(n int) ResolverOption {
	return func(o *resolverOptions) { o.cacheSize = n }
}

// WithCacheTTL bounds how stale a cached resolve result may get.
func WithCacheTTL(ttl time.Duration) ResolverOption {
	return func(o *resolverOptions) { o.cacheTTL = ttl }
}

// WithMaxRetries caps the RPC retry count.
func WithMaxRetries(n uint64) ResolverOption {
	return func(o *resolverOptions) { o.maxRetries = n }
}

// WithHTTPClient substitutes the HTTP client backing the RPC connection.
func WithHTTPClient(c *http.Client) ResolverOption {
	return func(o *resolverOptions) { o.httpClient = c }
}

// NewDefaultResolver connects to a resolver endpoint. An empty endpoint
// selects the configured one.
func NewDefaultResolver(endpoint string, opts ...ResolverOption) (*DefaultResolver, error) {
	cfg := config.Load()
	if endpoint == "" {
		endpoint = cfg.ResolverURL
	}
	o := resolverOptions{
		cacheSize:  cfg.CacheSize,
		cacheTTL:   cfg.CacheTTL,
		maxRetries: 3,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(&o)
	}

	client, err := rpc.DialOptions(context.Background(), endpoint, rpc.WithHTTPClient(o.httpClient))
	if err != nil {
		return nil, wrapError(did.CodeResolve, err, "connect resolver %s", endpoint)
	}
	return &DefaultResolver{
		client:     client,
		cache:      gcache.New(o.cacheSize).LRU().Expiration(o.cacheTTL).Build(),
		maxRetries: o.maxRetries,
	}, nil
}

// Close releases the RPC connection.
func (r *DefaultResolver) Close() {
	r.client.Close()
}

type resolveParams struct {
	DID string `json:"did"`
	All bool   `json:"all"`
}

// ResolveBiography fetches a DID's transaction history from the chain.
// With all false the chain returns only the transactions needed to
// reconstruct the current document.
func (r *DefaultResolver) ResolveBiography(ctx context.Context, d did.DID, all bool) (*idchain.Biography, error) {
	if d.IsEmpty() {
		return nil, newError(did.CodeIllegalArgument, "DID is empty")
	}
	var result idchain.Biography
	call := func() error {
		return r.client.CallContext(ctx, &result, "did_resolveDID", resolveParams{DID: d.String(), All: all})
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), r.maxRetries), ctx)
	if err := backoff.Retry(call, policy); err != nil {
		return nil, wrapError(did.CodeResolve, err, "resolve %s", d)
	}
	if result.DID.IsEmpty() {
		return &idchain.Biography{DID: d, Status: idchain.StatusNotFound}, nil
	}
	return &result, nil
}

// Resolve implements did.Resolver. force bypasses the cache and always
// asks the chain; the fresh result replaces the cached one either way.
func (r *DefaultResolver) Resolve(ctx context.Context, d did.DID, force bool) (*did.Document, error) {
	if d.IsEmpty() {
		return nil, newError(did.CodeIllegalArgument, "DID is empty")
	}
	if !d.IsSupported() {
		return nil, newError(did.CodeResolve, "unsupported DID method %q", d.Method)
	}
	key := d.String()
	if !force {
		if v, err := r.cache.Get(key); err == nil {
			doc, _ := v.(*did.Document)
			return doc, nil
		}
	}
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		biography, err := r.ResolveBiography(ctx, d, false)
		if err != nil {
			return nil, err
		}
		doc, err := documentFromBiography(biography)
		if err != nil {
			return nil, err
		}
		r.cache.Set(key, doc)
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	doc, _ := v.(*did.Document)
	return doc, nil
}

// documentFromBiography reconstructs the current document from a
// resolve result: nil for an unpublished DID, the latest published
// revision otherwise, flagged in its metadata when the DID has been
// deactivated.
func documentFromBiography(b *idchain.Biography) (*did.Document, error) {
	pick := func(tx *idchain.Transaction) *did.Document {
		doc := tx.Request.Document()
		if doc == nil {
			return nil
		}
		meta := doc.Metadata()
		meta.SetTransactionID(tx.TXID)
		meta.SetPublished(tx.Timestamp)
		meta.SetSignature(doc.Proof().Signature())
		return doc
	}

	switch b.Status {
	case idchain.StatusNotFound:
		return nil, nil
	case idchain.StatusDeactivated:
		for _, tx := range b.Transactions {
			if doc := pick(tx); doc != nil {
				doc.Metadata().SetDeactivated(true)
				return doc, nil
			}
		}
		return nil, nil
	default:
		tx := b.Latest()
		if tx == nil {
			return nil, newError(did.CodeResolve, "resolve result for %s has no transactions", b.DID)
		}
		doc := pick(tx)
		if doc == nil {
			return nil, newError(did.CodeResolve,
				"latest transaction %s for %s carries no document", tx.TXID, b.DID)
		}
		return doc, nil
	}
}
