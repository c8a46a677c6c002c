// Package adapter registers pipeline routes into a host HTTP
// framework. Registrars are declarative: every Apply replaces the
// whole route table by building a fresh framework engine and swapping
// it in atomically, so removal behaves exactly like never having
// registered the route.
package adapter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/vyrodovalexey/avrouter/internal/pipeline"
	"github.com/vyrodovalexey/avrouter/internal/util"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes = 10 << 20 // 10MB

// Route is one verb binding the engine asks an adapter to expose.
type Route struct {
	Pattern string
	Method  string
	Name    string
	Handle  pipeline.HandlerFunc
}

// Registrar exposes pipeline routes through a host framework.
type Registrar interface {
	// Apply replaces the served route table with the given set.
	Apply(routes []Route) error

	// Remove drops every method bound to the pattern.
	Remove(pattern string) error

	// Handler returns the live http.Handler. The returned value stays
	// valid across Apply calls.
	Handler() http.Handler

	// Routes lists the served bindings as "METHOD pattern", sorted.
	Routes() []string
}

// validateRoutes rejects malformed and duplicate bindings before they
// reach the host framework, which would panic on them.
func validateRoutes(routes []Route) error {
	seen := make(map[string]struct{}, len(routes))
	for _, rt := range routes {
		if !strings.HasPrefix(rt.Pattern, "/") {
			return util.NewMisconfigurationError("adapter", rt.Pattern, "pattern must start with /")
		}
		if rt.Method == "" {
			return util.NewMisconfigurationError("adapter", rt.Pattern, "route method is empty")
		}
		if rt.Handle == nil {
			return util.NewMisconfigurationError("adapter", rt.Pattern, "route handler is nil")
		}
		key := rt.Method + " " + rt.Pattern
		if _, dup := seen[key]; dup {
			return util.NewMisconfigurationError("adapter", key, "duplicate route binding")
		}
		seen[key] = struct{}{}
	}
	return nil
}

// nativePath converts brace parameters to the colon form Gin and Echo
// share: /users/{id} becomes /users/:id.
func nativePath(pattern string) string {
	segments := strings.Split(pattern, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			segments[i] = ":" + seg[1:len(seg)-1]
		}
	}
	return strings.Join(segments, "/")
}

func routeNames(routes []Route) []string {
	names := make([]string, 0, len(routes))
	for _, rt := range routes {
		names = append(names, rt.Method+" "+rt.Pattern)
	}
	sort.Strings(names)
	return names
}

func removeByPattern(routes []Route, pattern string) ([]Route, error) {
	kept := routes[:0:0]
	for _, rt := range routes {
		if rt.Pattern != pattern {
			kept = append(kept, rt)
		}
	}
	if len(kept) == len(routes) {
		return nil, fmt.Errorf("route %q: %w", pattern, util.ErrNotFound)
	}
	return kept, nil
}

// buildRequest translates a native HTTP request into the pipeline's
// framework-neutral view. The body is read up front, capped at
// maxBody; form and multipart content is decoded from the buffered
// bytes so later stages see a fully materialized request.
func buildRequest(r *http.Request, pattern string, params map[string]string, maxBody int64) (*pipeline.Request, error) {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	var body []byte
	if r.Body != nil && r.Body != http.NoBody {
		limited := http.MaxBytesReader(nil, r.Body, maxBody)
		var err error
		body, err = io.ReadAll(limited)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
	}

	req := &pipeline.Request{
		Method:     r.Method,
		Pattern:    pattern,
		Path:       r.URL.Path,
		PathParams: params,
		Query:      r.URL.Query(),
		Header:     r.Header,
		Cookies:    r.Cookies(),
		Body:       body,
		RemoteAddr: r.RemoteAddr,
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("parse form body: %w", err)
		}
		req.Form = form
	case "multipart/form-data":
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err := r.ParseMultipartForm(maxBody); err != nil {
			return nil, fmt.Errorf("parse multipart body: %w", err)
		}
		req.Form = url.Values(r.MultipartForm.Value)
		req.Files = r.MultipartForm.File
	}

	return req, nil
}

// writeResponse writes a pipeline response to the native writer. HEAD
// requests get the full header set but no body.
func writeResponse(w http.ResponseWriter, resp *pipeline.Response, head bool) {
	header := w.Header()
	for key, values := range resp.Header {
		header[key] = values
	}
	if header.Get("Content-Type") == "" && len(resp.Body) > 0 {
		header.Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.Status)
	if !head && len(resp.Body) > 0 {
		w.Write(resp.Body) //nolint:errcheck
	}
}

// serve runs one bound route: translate, dispatch, write back.
func serve(w http.ResponseWriter, r *http.Request, rt Route, params map[string]string, maxBody int64) {
	head := r.Method == http.MethodHead

	req, err := buildRequest(r, rt.Pattern, params, maxBody)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeResponse(w, pipeline.Error(status, "bad_request", err.Error(), nil), head)
		return
	}

	resp := rt.Handle(r.Context(), req)
	if resp == nil {
		resp = pipeline.Error(http.StatusInternalServerError, "internal_error", "empty response", nil)
	}
	writeResponse(w, resp, head)
}
