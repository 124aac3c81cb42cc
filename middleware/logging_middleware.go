package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"wsrpc/logging"
	"wsrpc/message"
)

// Logging records every invocation. It prefers the connection-scoped logger
// carried by ctx and falls back to log.
func Logging(log *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (any, error) {
			start := time.Now()
			result, err := next(ctx, req)
			l := logging.FromContext(ctx, log).With(
				zap.String("method", req.Method),
				zap.Stringer("id", req.ID),
				zap.Duration("duration", time.Since(start)),
			)
			if err != nil {
				l.Debug("request failed", zap.Error(err))
			} else {
				l.Debug("request handled")
			}
			return result, err
		}
	}
}
