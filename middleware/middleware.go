// Package middleware wraps method invocation with cross-cutting behavior.
//
// Middlewares compose in the onion model:
//
//	Chain(A, B, C)(h) == A(B(C(h)))
//	A.before → B.before → C.before → h → C.after → B.after → A.after
package middleware

import (
	"context"

	"wsrpc/message"
)

// HandlerFunc invokes business logic for one request. A non-nil error becomes
// an ErrorMessage; a *message.ErrorObject keeps its code.
type HandlerFunc func(ctx context.Context, req *message.Request) (any, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines middlewares into one, applied in the order given.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
