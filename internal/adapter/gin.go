package adapter

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avrouter/internal/observability"
)

// ginModeOnce sets release mode once process-wide; Gin keeps the mode
// in package state.
var ginModeOnce sync.Once

// GinOption configures the Gin registrar.
type GinOption func(*Gin)

// WithGinMaxBodyBytes caps request body size.
func WithGinMaxBodyBytes(n int64) GinOption {
	return func(g *Gin) {
		g.maxBody = n
	}
}

// WithGinLogger sets the registrar's logger.
func WithGinLogger(logger observability.Logger) GinOption {
	return func(g *Gin) {
		g.logger = logger
	}
}

// Gin serves pipeline routes through gin-gonic. Every Apply builds a
// fresh gin.Engine and swaps it in atomically, so removed routes 404
// exactly like never-registered ones.
type Gin struct {
	mu      sync.Mutex // serializes Apply and Remove
	engine  atomic.Pointer[gin.Engine]
	routes  []Route
	maxBody int64
	logger  observability.Logger
}

// NewGin creates a Gin registrar serving an empty route table.
func NewGin(opts ...GinOption) *Gin {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	g := &Gin{
		maxBody: DefaultMaxBodyBytes,
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}

	engine, _ := g.build(nil)
	g.engine.Store(engine)
	return g
}

// Apply replaces the served route table.
func (g *Gin) Apply(routes []Route) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := validateRoutes(routes); err != nil {
		return err
	}
	engine, err := g.build(routes)
	if err != nil {
		return err
	}

	g.routes = append([]Route(nil), routes...)
	g.engine.Store(engine)

	g.logger.Debug("route table applied",
		observability.String("adapter", "gin"),
		observability.Int("routes", len(routes)),
	)
	return nil
}

// Remove drops every method bound to the pattern and rebuilds.
func (g *Gin) Remove(pattern string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	kept, err := removeByPattern(g.routes, pattern)
	if err != nil {
		return err
	}
	engine, err := g.build(kept)
	if err != nil {
		return err
	}

	g.routes = kept
	g.engine.Store(engine)
	return nil
}

// Handler returns a stable http.Handler that always dispatches into
// the most recently applied engine.
func (g *Gin) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.engine.Load().ServeHTTP(w, r)
	})
}

// Routes lists the served bindings as "METHOD pattern", sorted.
func (g *Gin) Routes() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return routeNames(g.routes)
}

// build assembles a fresh engine from the route set. Gin panics on
// conflicting route tables; the recover turns that into an Apply error
// so the previous engine keeps serving.
func (g *Gin) build(routes []Route) (engine *gin.Engine, err error) {
	defer func() {
		if r := recover(); r != nil {
			engine = nil
			err = fmt.Errorf("gin route table rejected: %v", r)
		}
	}()

	engine = gin.New()
	engine.HandleMethodNotAllowed = true
	engine.RedirectTrailingSlash = false

	for _, rt := range routes {
		path := nativePath(rt.Pattern)
		engine.Handle(rt.Method, path, g.handlerFor(rt))
		if rt.Method == http.MethodGet {
			engine.Handle(http.MethodHead, path, g.handlerFor(rt))
		}
	}
	return engine, nil
}

func (g *Gin) handlerFor(rt Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := make(map[string]string, len(c.Params))
		for _, p := range c.Params {
			params[p.Key] = p.Value
		}
		serve(c.Writer, c.Request, rt, params, g.maxBody)
	}
}
