package pipeline

import (
	"context"
	"net/http"

	"github.com/vyrodovalexey/avrouter/internal/authz"
)

// Authorize gates the inner chain on the route's auth demands. The
// request is stored in the context before evaluation so check
// functions read credentials from it.
func Authorize(gate *authz.Gate, roles []string, required bool) Stage {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			ctx = NewContext(ctx, req)

			decision := gate.Evaluate(ctx, roles, required)
			if !decision.Allowed {
				status := decision.StatusCode
				if status == 0 {
					status = http.StatusInternalServerError
				}
				code := "forbidden"
				switch status {
				case http.StatusUnauthorized:
					code = "unauthorized"
				case http.StatusInternalServerError:
					code = "internal_error"
				}
				return Error(status, code, decision.Reason, nil)
			}

			return next(ctx, req)
		}
	}
}
