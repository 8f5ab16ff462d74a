package did

import "context"

// Resolver fetches the current document of a DID from an ID-chain
// backend. force bypasses whatever caching the implementation keeps and
// goes straight to the chain.
//
// A nil document with a nil error means the DID has never been
// published; callers treat deactivation as a resolvable document whose
// metadata reports Deactivated.
type Resolver interface {
	Resolve(ctx context.Context, d DID, force bool) (*Document, error)
}

// ResolverFunc adapts a plain function to the Resolver interface.
type ResolverFunc func(ctx context.Context, d DID, force bool) (*Document, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, d DID, force bool) (*Document, error) {
	return f(ctx, d, force)
}
