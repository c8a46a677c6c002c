package adapter

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/labstack/echo/v4"

	"github.com/vyrodovalexey/avrouter/internal/observability"
)

// EchoOption configures the Echo registrar.
type EchoOption func(*Echo)

// WithEchoMaxBodyBytes caps request body size.
func WithEchoMaxBodyBytes(n int64) EchoOption {
	return func(e *Echo) {
		e.maxBody = n
	}
}

// WithEchoLogger sets the registrar's logger.
func WithEchoLogger(logger observability.Logger) EchoOption {
	return func(e *Echo) {
		e.logger = logger
	}
}

// Echo serves pipeline routes through labstack/echo with the same
// fresh-engine-per-Apply contract as the Gin registrar.
type Echo struct {
	mu      sync.Mutex // serializes Apply and Remove
	engine  atomic.Pointer[echo.Echo]
	routes  []Route
	maxBody int64
	logger  observability.Logger
}

// NewEcho creates an Echo registrar serving an empty route table.
func NewEcho(opts ...EchoOption) *Echo {
	e := &Echo{
		maxBody: DefaultMaxBodyBytes,
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}

	engine, _ := e.build(nil)
	e.engine.Store(engine)
	return e
}

// Apply replaces the served route table.
func (e *Echo) Apply(routes []Route) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := validateRoutes(routes); err != nil {
		return err
	}
	engine, err := e.build(routes)
	if err != nil {
		return err
	}

	e.routes = append([]Route(nil), routes...)
	e.engine.Store(engine)

	e.logger.Debug("route table applied",
		observability.String("adapter", "echo"),
		observability.Int("routes", len(routes)),
	)
	return nil
}

// Remove drops every method bound to the pattern and rebuilds.
func (e *Echo) Remove(pattern string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	kept, err := removeByPattern(e.routes, pattern)
	if err != nil {
		return err
	}
	engine, err := e.build(kept)
	if err != nil {
		return err
	}

	e.routes = kept
	e.engine.Store(engine)
	return nil
}

// Handler returns a stable http.Handler that always dispatches into
// the most recently applied engine.
func (e *Echo) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.engine.Load().ServeHTTP(w, r)
	})
}

// Routes lists the served bindings as "METHOD pattern", sorted.
func (e *Echo) Routes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return routeNames(e.routes)
}

func (e *Echo) build(routes []Route) (engine *echo.Echo, err error) {
	defer func() {
		if r := recover(); r != nil {
			engine = nil
			err = fmt.Errorf("echo route table rejected: %v", r)
		}
	}()

	engine = echo.New()
	engine.HideBanner = true
	engine.HidePort = true

	for _, rt := range routes {
		path := nativePath(rt.Pattern)
		engine.Add(rt.Method, path, e.handlerFor(rt))
		if rt.Method == http.MethodGet {
			engine.Add(http.MethodHead, path, e.handlerFor(rt))
		}
	}
	return engine, nil
}

func (e *Echo) handlerFor(rt Route) echo.HandlerFunc {
	return func(c echo.Context) error {
		names := c.ParamNames()
		params := make(map[string]string, len(names))
		for _, name := range names {
			params[name] = c.Param(name)
		}
		serve(c.Response(), c.Request(), rt, params, e.maxBody)
		return nil
	}
}
