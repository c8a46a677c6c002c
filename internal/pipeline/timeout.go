package pipeline

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/vyrodovalexey/avrouter/internal/observability"
)

// Timeout bounds the inner chain. The chain runs in its own goroutine
// and a select races completion against the deadline; the late result
// of a timed out request is discarded. Handlers observe cancellation
// through ctx.
func Timeout(d time.Duration, logger observability.Logger, metrics *observability.Metrics) Stage {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			done := make(chan *Response, 1)
			go func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("panic in request chain",
							observability.Any("panic", r),
							observability.String("route", req.Pattern),
							observability.String("stack", string(debug.Stack())),
						)
						done <- Error(http.StatusInternalServerError, "internal_error", "internal server error", nil)
					}
				}()
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				if metrics != nil {
					metrics.RecordTimeout(req.Pattern)
				}
				logger.Warn("request timed out",
					observability.String("route", req.Pattern),
					observability.Duration("timeout", d),
				)
				return Error(http.StatusRequestTimeout, "timeout", "request timeout", nil)
			}
		}
	}
}
