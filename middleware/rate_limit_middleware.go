package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"wsrpc/message"
)

// RateLimit admits r requests per second with the given burst, shared by every
// connection of the server.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (any, error) {
			if !limiter.Allow() {
				return nil, message.NewError(message.CodeRateLimited, "rate limit exceeded")
			}
			return next(ctx, req)
		}
	}
}
