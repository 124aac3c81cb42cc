package middleware

import (
	"context"
	"errors"
	"time"

	"wsrpc/message"
)

type outcome struct {
	result any
	err    error
}

// Timeout fails a request that runs longer than timeout. The invocation
// itself keeps running; its context is cancelled so it may stop early.
func Timeout(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (any, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan outcome, 1)
			go func() {
				result, err := next(ctx, req)
				done <- outcome{result, err}
			}()

			select {
			case o := <-done:
				if ctx.Err() != nil && errors.Is(o.err, context.DeadlineExceeded) {
					return nil, errTimedOut()
				}
				return o.result, o.err
			case <-ctx.Done():
				return nil, errTimedOut()
			}
		}
	}
}

func errTimedOut() error {
	return message.NewError(message.CodeRequestTimeout, "request timed out")
}
