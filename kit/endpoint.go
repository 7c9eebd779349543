package kit

import "context"

// Endpoint is a transport-agnostic request handler. MCP tools are registered
// as Endpoints; the HTTP routes in server are plain net/http handlers.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware decorates an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so the first one listed runs outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// WithTransportTag returns a Middleware that stamps the transport name on the
// context before the endpoint runs.
func WithTransportTag(transport string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			return next(WithTransport(ctx, transport), req)
		}
	}
}

// WithNewRequestID returns a Middleware that assigns newID() as the request
// ID when the context carries none.
func WithNewRequestID(newID func() string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			if GetRequestID(ctx) == "" {
				ctx = WithRequestID(ctx, newID())
			}
			return next(ctx, req)
		}
	}
}
