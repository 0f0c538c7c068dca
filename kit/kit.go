// Package kit holds the shared plumbing between docsmith services and their
// transports: the Endpoint shape, MCP tool registration, and context keys.
package kit

import "context"

// Endpoint is the transport-agnostic shape of a service operation.
// Transports decode their wire format into a typed request, call the
// endpoint, and encode the response back out.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behaviour.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares left to right: the first middleware is the
// outermost one.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
