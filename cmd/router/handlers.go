package main

import (
	"context"
	"net/http"

	"github.com/vyrodovalexey/avrouter/internal/binding"
	"github.com/vyrodovalexey/avrouter/internal/handler"
	"github.com/vyrodovalexey/avrouter/internal/pipeline"
)

// registerBuiltinHandlers adds the stock handlers route files can
// reference out of the box.
func registerBuiltinHandlers() {
	handler.MustRegister("builtin.echo", func() handler.Handler { return &echoHandler{} })
	handler.MustRegister("builtin.static", func() handler.Handler { return &staticHandler{} })
	handler.MustRegister("builtin.health", func() handler.Handler { return &healthHandler{} })
}

// echoHandler reflects the dispatched request back to the caller,
// useful for probing route resolution and binding.
type echoHandler struct{}

func (h *echoHandler) reflect(req *pipeline.Request) *pipeline.Response {
	return pipeline.JSON(http.StatusOK, map[string]any{
		"method": req.Method,
		"route":  req.Pattern,
		"path":   req.Path,
		"params": req.PathParams,
		"query":  req.Query,
		"args":   req.Args,
		"body":   string(req.Body),
	})
}

func (h *echoHandler) Get(_ context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	return h.reflect(req), nil
}

func (h *echoHandler) Post(_ context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	return h.reflect(req), nil
}

func (h *echoHandler) Put(_ context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	return h.reflect(req), nil
}

func (h *echoHandler) Delete(_ context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	return h.reflect(req), nil
}

func (h *echoHandler) ParameterSpecs() map[string][]binding.Spec {
	return map[string][]binding.Spec{
		"GET": {
			{Name: "pretty", Source: binding.SourceQuery, Type: binding.TypeBool, Default: false,
				Description: "reserved for formatted output"},
		},
	}
}

// staticHandler serves a fixed payload.
type staticHandler struct{}

func (h *staticHandler) Get(_ context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	return pipeline.JSON(http.StatusOK, map[string]any{
		"route":   req.Pattern,
		"message": "ok",
	}), nil
}

// healthHandler reports liveness with build information.
type healthHandler struct{}

func (h *healthHandler) Get(_ context.Context, _ *pipeline.Request) (*pipeline.Response, error) {
	return pipeline.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version,
	}), nil
}
