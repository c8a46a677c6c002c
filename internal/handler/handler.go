// Package handler defines the contract between discovered routes and
// the code that serves them. Handlers are registered by name in a
// Registry; route files reference those names. Verb support is
// declared through small capability interfaces probed once at
// discovery time.
package handler

import (
	"context"
	"fmt"
	"sync"

	"github.com/vyrodovalexey/avrouter/internal/binding"
	"github.com/vyrodovalexey/avrouter/internal/pipeline"
	"github.com/vyrodovalexey/avrouter/internal/util"
)

// Handler is the marker every route handler satisfies. Verb support is
// expressed through the capability interfaces below.
type Handler interface{}

// Getter serves GET (and, through the adapter fallback, HEAD).
type Getter interface {
	Get(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error)
}

// Poster serves POST.
type Poster interface {
	Post(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error)
}

// Putter serves PUT.
type Putter interface {
	Put(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error)
}

// Deleter serves DELETE.
type Deleter interface {
	Delete(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error)
}

// Patcher serves PATCH.
type Patcher interface {
	Patch(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error)
}

// SpecProvider optionally declares parameter specs per verb. Verbs
// absent from the map dispatch without binding.
type SpecProvider interface {
	ParameterSpecs() map[string][]binding.Spec
}

// Factory creates a fresh handler instance.
type Factory func() Handler

// Registry maps handler names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a handler factory under a name. Duplicate names are
// registration-time failures.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return util.NewMisconfigurationError("handler", "name", "handler name is empty")
	}
	if factory == nil {
		return util.NewMisconfigurationError("handler", name, "handler factory is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return util.NewMisconfigurationError("handler", name, "handler already registered")
	}
	r.factories[name] = factory
	return nil
}

// New instantiates the named handler.
func (r *Registry) New(name string) (Handler, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("handler %q: %w", name, util.ErrHandlerNotFound)
	}
	return factory(), nil
}

// Names returns the registered handler names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// Methods probes a handler's verb capabilities and returns the bound
// call for each supported verb. HEAD is not listed; adapters serve it
// from GET.
func Methods(h Handler) map[string]pipeline.CallFunc {
	methods := make(map[string]pipeline.CallFunc)
	if g, ok := h.(Getter); ok {
		methods["GET"] = g.Get
	}
	if p, ok := h.(Poster); ok {
		methods["POST"] = p.Post
	}
	if p, ok := h.(Putter); ok {
		methods["PUT"] = p.Put
	}
	if d, ok := h.(Deleter); ok {
		methods["DELETE"] = d.Delete
	}
	if p, ok := h.(Patcher); ok {
		methods["PATCH"] = p.Patch
	}
	return methods
}

// Specs returns the handler's parameter specs per verb, or nil when
// the handler declares none.
func Specs(h Handler) map[string][]binding.Spec {
	if sp, ok := h.(SpecProvider); ok {
		return sp.ParameterSpecs()
	}
	return nil
}

// defaultRegistry is the package-level registry, mirroring the pattern
// of prometheus' default registerer.
var defaultRegistry = NewRegistry()

// Default returns the package-level registry.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a handler factory to the default registry.
func Register(name string, factory Factory) error {
	return defaultRegistry.Register(name, factory)
}

// MustRegister adds a handler factory to the default registry and
// panics on failure. Intended for package init blocks.
func MustRegister(name string, factory Factory) {
	if err := defaultRegistry.Register(name, factory); err != nil {
		panic(err)
	}
}
