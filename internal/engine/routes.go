package engine

import (
	"bytes"
	"context"
	"net/http"
	"sort"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/avrouter/internal/adapter"
	"github.com/vyrodovalexey/avrouter/internal/discovery"
	"github.com/vyrodovalexey/avrouter/internal/observability"
	"github.com/vyrodovalexey/avrouter/internal/pipeline"
)

// buildRoutes turns the discovered tree into adapter bindings with a
// fully assembled pipeline per route and verb, plus the service
// endpoints.
func (e *Engine) buildRoutes(tree *discovery.Tree) []adapter.Route {
	cfg := e.cfg

	var routes []adapter.Route
	for _, entry := range tree.Routes() {
		for verb, call := range entry.Calls {
			mc := entry.Methods[verb]

			timeout := mc.Timeout.Duration()
			if timeout == 0 {
				timeout = cfg.Routes.DefaultTimeout.Duration()
			}

			pcfg := pipeline.Config{
				Invoke:       pipeline.Invoker(entry.Bound[verb], call, e.logger),
				Logger:       e.logger,
				Metrics:      e.metrics,
				Timeout:      timeout,
				Gate:         e.gate,
				AuthRoles:    mc.AuthRoles,
				AuthRequired: mc.Auth,
			}
			if limit := mc.Limit(); !limit.IsZero() {
				pcfg.Limiter = e.limiter
				pcfg.Limit = limit
				pcfg.LimitKey = mc.KeyFunc()
			}
			if ttl := mc.CacheTTL.Duration(); ttl > 0 && cfg.Cache.Enabled {
				pcfg.Cache = e.cache
				pcfg.CacheTTL = ttl
			}
			if cfg.Breaker.Enabled {
				pcfg.Breaker = e.newBreaker(verb + " " + entry.Pattern)
			}

			routes = append(routes, adapter.Route{
				Pattern: entry.Pattern,
				Method:  verb,
				Name:    entry.HandlerName,
				Handle:  pipeline.Build(pcfg),
			})
		}
	}

	return append(routes, e.serviceRoutes(tree)...)
}

func (e *Engine) newBreaker(name string) *gobreaker.CircuitBreaker {
	bc := e.cfg.Breaker
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval.Duration(),
		Timeout:     bc.Timeout.Duration(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bc.FailureThreshold
		},
	})
}

// serviceRoutes adds the health, route index, and metrics endpoints.
// They go through the same adapter path as discovered routes, so a
// reload that disables one really unregisters it. A discovered route
// on the same pattern wins.
func (e *Engine) serviceRoutes(tree *discovery.Tree) []adapter.Route {
	taken := make(map[string]struct{}, tree.Len())
	for _, entry := range tree.Routes() {
		taken[entry.Pattern] = struct{}{}
	}

	var routes []adapter.Route
	add := func(pattern, name string, handle pipeline.HandlerFunc) {
		if _, exists := taken[pattern]; exists {
			e.logger.Warn("service endpoint shadowed by discovered route",
				observability.String("pattern", pattern),
			)
			return
		}
		routes = append(routes, adapter.Route{
			Pattern: pattern,
			Method:  http.MethodGet,
			Name:    name,
			Handle:  handle,
		})
	}

	add("/healthz", "health", func(_ context.Context, _ *pipeline.Request) *pipeline.Response {
		return pipeline.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if e.cfg.Docs.Enabled {
		add(e.cfg.Docs.Path, "route-index", routeIndexHandler(tree))
	}
	if e.cfg.Metrics.Enabled {
		add(e.cfg.Metrics.Path, "metrics", wrapHTTP(e.metrics.Handler()))
	}
	return routes
}

type paramDoc struct {
	Name        string `json:"name"`
	Source      string `json:"source"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

type routeDoc struct {
	Pattern    string                `json:"pattern"`
	Methods    []string              `json:"methods"`
	Tag        string                `json:"tag,omitempty"`
	Params     []string              `json:"params,omitempty"`
	Parameters map[string][]paramDoc `json:"parameters,omitempty"`
}

// routeIndexHandler renders the JSON route index from a tree snapshot.
// The payload is built once per apply, not per request.
func routeIndexHandler(tree *discovery.Tree) pipeline.HandlerFunc {
	entries := tree.Routes()
	docs := make([]routeDoc, 0, len(entries))
	for _, entry := range entries {
		doc := routeDoc{
			Pattern: entry.Pattern,
			Methods: entry.MethodNames(),
			Tag:     entry.Tag,
			Params:  entry.Params,
		}
		if len(entry.Specs) > 0 {
			doc.Parameters = make(map[string][]paramDoc, len(entry.Specs))
			for verb, specs := range entry.Specs {
				params := make([]paramDoc, 0, len(specs))
				for i := range specs {
					spec := &specs[i]
					params = append(params, paramDoc{
						Name:        spec.Name,
						Source:      spec.Source.String(),
						Type:        spec.Type.String(),
						Required:    spec.Required(),
						Description: spec.Description,
					})
				}
				doc.Parameters[verb] = params
			}
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Pattern < docs[j].Pattern })

	return func(_ context.Context, _ *pipeline.Request) *pipeline.Response {
		return pipeline.JSON(http.StatusOK, map[string]any{
			"count":  len(docs),
			"routes": docs,
		})
	}
}

// bufferWriter captures an http.Handler's output so stock handlers
// (the Prometheus exporter) can serve through the pipeline route shape.
type bufferWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func (w *bufferWriter) Header() http.Header {
	return w.header
}

func (w *bufferWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *bufferWriter) WriteHeader(status int) {
	w.status = status
}

func wrapHTTP(h http.Handler) pipeline.HandlerFunc {
	return func(ctx context.Context, req *pipeline.Request) *pipeline.Response {
		r, err := http.NewRequestWithContext(ctx, req.Method, req.Path, bytes.NewReader(req.Body))
		if err != nil {
			return pipeline.Error(http.StatusInternalServerError, "internal_error", "internal server error", nil)
		}
		r.Header = req.Header
		r.URL.RawQuery = req.Query.Encode()

		w := &bufferWriter{header: http.Header{}}
		h.ServeHTTP(w, r)
		if w.status == 0 {
			w.status = http.StatusOK
		}
		return &pipeline.Response{Status: w.status, Header: w.header, Body: w.body.Bytes()}
	}
}
