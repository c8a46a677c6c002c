// Package pipeline assembles the per-route decorator chain that wraps
// every handler invocation. The chain is fixed in order and built once
// per route and method: logging outermost, then timeout, rate limit,
// authorization, response cache, optional circuit breaker, and finally
// the handler call with parameter binding.
package pipeline

import (
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/vyrodovalexey/avrouter/internal/binding"
)

// Request is the framework-neutral view of an HTTP request handed to
// handlers. Adapters translate their native context into this form
// once per request.
type Request struct {
	Method     string
	Pattern    string
	Path       string
	PathParams map[string]string
	Query      url.Values
	Header     http.Header
	Cookies    []*http.Cookie
	Form       url.Values
	Files      map[string][]*multipart.FileHeader
	Body       []byte
	RemoteAddr string
	RequestID  string

	// Args holds bound parameter values, filled immediately before
	// the handler call.
	Args binding.Args
}

// Cookie returns the named cookie value.
func (r *Request) Cookie(name string) (string, bool) {
	for _, c := range r.Cookies {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// BindingInput returns the request as a binding source view.
func (r *Request) BindingInput() *binding.Input {
	return &binding.Input{
		Query:   r.Query,
		Path:    r.PathParams,
		Header:  r.Header,
		Cookies: r.Cookies,
		Form:    r.Form,
		Files:   r.Files,
		Body:    r.Body,
	}
}

// Response is the framework-neutral handler result. Adapters write it
// back to their native response verbatim.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// SetHeader sets a response header, allocating the map on first use.
func (r *Response) SetHeader(key, value string) {
	if r.Header == nil {
		r.Header = http.Header{}
	}
	r.Header.Set(key, value)
}

// JSON builds a response with a JSON body. Marshal failures degrade to
// a plain 500.
func JSON(status int, v any) *Response {
	body, err := json.Marshal(v)
	if err != nil {
		return &Response{
			Status: http.StatusInternalServerError,
			Header: http.Header{"Content-Type": []string{"application/json"}},
			Body:   []byte(`{"error":"internal server error"}`),
		}
	}
	return &Response{
		Status: status,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   body,
	}
}

// Error builds a JSON error response.
func Error(status int, code, message string, details any) *Response {
	payload := map[string]any{
		"error": message,
		"code":  code,
	}
	if details != nil {
		payload["details"] = details
	}
	return JSON(status, payload)
}

// HandlerFunc is the unit every pipeline stage wraps.
type HandlerFunc func(ctx context.Context, req *Request) *Response

// Stage decorates a HandlerFunc with one concern.
type Stage func(HandlerFunc) HandlerFunc

// requestKey carries the in-flight request through the context so
// authorization checks can read request data without a direct
// dependency on this package's callers.
type requestKey struct{}

// NewContext stores the request in the context.
func NewContext(ctx context.Context, req *Request) context.Context {
	return context.WithValue(ctx, requestKey{}, req)
}

// FromContext retrieves the request stored by NewContext.
func FromContext(ctx context.Context) (*Request, bool) {
	req, ok := ctx.Value(requestKey{}).(*Request)
	return req, ok
}
