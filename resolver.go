package webfinger

import "context"

// Resolver answers WebFinger queries on the server side. Implementations return
// ErrResourceNotFound when they hold nothing about the requested resource.
//
// The framework adapters call Resolve once per inbound query and filter the result by the
// request's rels, so a resolver may return the full document.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (Response, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, req Request) (Response, error)

func (f ResolverFunc) Resolve(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
