package middleware

import (
	"context"
	"time"

	"wsrpc/message"
	"wsrpc/metrics"
)

// Metrics observes request outcome and latency per method.
func Metrics(c *metrics.Collector) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (any, error) {
			start := time.Now()
			result, err := next(ctx, req)
			c.ObserveRequest(req.Method, err, time.Since(start))
			return result, err
		}
	}
}
