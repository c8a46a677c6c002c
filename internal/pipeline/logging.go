package pipeline

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/avrouter/internal/observability"
)

// RequestIDHeader carries the client-supplied request ID.
const RequestIDHeader = "X-Request-ID"

// Logging is the outermost stage. It assigns the request ID, times the
// full chain, logs the outcome, and records the request in metrics
// with the route pattern as the label.
func Logging(logger observability.Logger, metrics *observability.Metrics) Stage {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			if req.RequestID == "" {
				req.RequestID = req.Header.Get(RequestIDHeader)
			}
			if req.RequestID == "" {
				req.RequestID = uuid.NewString()
			}
			ctx = observability.ContextWithRequestID(ctx, req.RequestID)

			start := time.Now()
			resp := next(ctx, req)
			elapsed := time.Since(start)

			if resp == nil {
				resp = Error(http.StatusInternalServerError, "internal_error", "internal server error", nil)
			}
			resp.SetHeader(RequestIDHeader, req.RequestID)

			if metrics != nil {
				metrics.RecordRequest(req.Method, req.Pattern, resp.Status, elapsed)
			}

			fields := []observability.Field{
				observability.String("method", req.Method),
				observability.String("route", req.Pattern),
				observability.String("path", req.Path),
				observability.Int("status", resp.Status),
				observability.Duration("duration", elapsed),
				observability.String("requestId", req.RequestID),
				observability.String("clientIp", ClientIP(req)),
			}

			switch {
			case resp.Status >= 500:
				logger.Error("request completed", fields...)
			case resp.Status >= 400:
				logger.Warn("request completed", fields...)
			default:
				logger.Info("request completed", fields...)
			}

			return resp
		}
	}
}
