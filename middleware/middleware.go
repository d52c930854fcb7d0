package middleware

import (
	"context"

	"checkpoint-rpc/message"
)

// HandlerFunc answers one request envelope. A returned error means the request
// was not answered by the authority (the client sees a transport failure); an
// authority rejection is a successful return of a ResponseReturnCode envelope.
type HandlerFunc func(ctx context.Context, req *message.Envelope) (*message.Envelope, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares so the first one listed is the outermost:
// Chain(A, B, C)(h) runs A → B → C → h → C → B → A.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
