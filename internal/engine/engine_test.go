package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vyrodovalexey/avrouter/internal/authz"
	"github.com/vyrodovalexey/avrouter/internal/binding"
	"github.com/vyrodovalexey/avrouter/internal/config"
	"github.com/vyrodovalexey/avrouter/internal/handler"
	"github.com/vyrodovalexey/avrouter/internal/observability"
	"github.com/vyrodovalexey/avrouter/internal/pipeline"
	"github.com/vyrodovalexey/avrouter/internal/util"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type usersHandler struct{}

func (h *usersHandler) Get(_ context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	return pipeline.JSON(http.StatusOK, map[string]any{
		"route": req.Pattern,
		"id":    req.PathParams["id"],
	}), nil
}

func (h *usersHandler) ParameterSpecs() map[string][]binding.Spec {
	return map[string][]binding.Spec{
		"GET": {{Name: "q", Source: binding.SourceQuery, Type: binding.TypeString, Default: ""}},
	}
}

func newTestRegistry(t *testing.T) *handler.Registry {
	t.Helper()

	reg := handler.NewRegistry()
	require.NoError(t, reg.Register("users", func() handler.Handler { return &usersHandler{} }))
	return reg
}

func writeRoute(t *testing.T, dir, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "route.yaml"), []byte(content), 0o644))
}

func newTestEngine(t *testing.T, root string, mutate func(cfg *config.Config), opts ...Option) *Engine {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Routes.Root = root
	if mutate != nil {
		mutate(cfg)
	}

	opts = append([]Option{WithLogger(observability.NopLogger())}, opts...)
	e, err := New(cfg, newTestRegistry(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, e.Close())
	})
	return e
}

func get(e *Engine, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)
	return rec
}

func TestEngineLoadAndServe(t *testing.T) {
	root := t.TempDir()
	writeRoute(t, filepath.Join(root, "users"), "handler: users\ntag: users\n")
	writeRoute(t, filepath.Join(root, "users", "[id]"), "handler: users\n")

	e := newTestEngine(t, root, nil)
	require.NoError(t, e.Load(context.Background()))

	rec := get(e, "/users")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = get(e, "/users/7")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "/users/{id}", body["route"])
	assert.Equal(t, "7", body["id"])

	rec = get(e, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(e, "/_routes")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"/users/{id}"`)
	assert.Contains(t, rec.Body.String(), `"source":"query"`)

	rec = get(e, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "avrouter")

	rec = get(e, "/nowhere")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEngineDocsDisabled(t *testing.T) {
	root := t.TempDir()
	writeRoute(t, filepath.Join(root, "users"), "handler: users\n")

	e := newTestEngine(t, root, func(cfg *config.Config) {
		cfg.Docs.Enabled = false
	})
	require.NoError(t, e.Load(context.Background()))

	rec := get(e, "/_routes")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEngineRateLimitedRoute(t *testing.T) {
	root := t.TempDir()
	writeRoute(t, filepath.Join(root, "users"), `
handler: users
methods:
  GET:
    rateLimit: 2/min
`)

	e := newTestEngine(t, root, nil)
	require.NoError(t, e.Load(context.Background()))

	assert.Equal(t, http.StatusOK, get(e, "/users").Code)
	assert.Equal(t, http.StatusOK, get(e, "/users").Code)

	rec := get(e, "/users")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
}

func TestEngineAuthzRoute(t *testing.T) {
	route := `
handler: users
methods:
  GET:
    auth: true
    authRoles: [admin]
`

	t.Run("no check func denies misconfigured", func(t *testing.T) {
		root := t.TempDir()
		writeRoute(t, filepath.Join(root, "users"), route)

		e := newTestEngine(t, root, nil)
		require.NoError(t, e.Load(context.Background()))
		assert.Equal(t, http.StatusInternalServerError, get(e, "/users").Code)
	})

	t.Run("check func decides", func(t *testing.T) {
		root := t.TempDir()
		writeRoute(t, filepath.Join(root, "users"), route)

		allow := false
		check := func(_ context.Context, _ []string) (bool, error) {
			return allow, nil
		}
		e := newTestEngine(t, root, nil, WithCheckFunc(check))
		require.NoError(t, e.Load(context.Background()))

		assert.Equal(t, http.StatusForbidden, get(e, "/users").Code)
		allow = true
		assert.Equal(t, http.StatusOK, get(e, "/users").Code)
	})

	t.Run("unauthenticated maps to 401", func(t *testing.T) {
		root := t.TempDir()
		writeRoute(t, filepath.Join(root, "users"), route)

		check := func(_ context.Context, _ []string) (bool, error) {
			return false, authz.ErrNoIdentity
		}
		e := newTestEngine(t, root, nil, WithCheckFunc(check))
		require.NoError(t, e.Load(context.Background()))
		assert.Equal(t, http.StatusUnauthorized, get(e, "/users").Code)
	})
}

func TestEngineCachedRoute(t *testing.T) {
	root := t.TempDir()
	writeRoute(t, filepath.Join(root, "users"), `
handler: users
methods:
  GET:
    cacheTTL: 1m
`)

	e := newTestEngine(t, root, nil)
	require.NoError(t, e.Load(context.Background()))

	rec := get(e, "/users")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	rec = get(e, "/users")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}

func TestEngineLoadFailsFast(t *testing.T) {
	root := t.TempDir()
	writeRoute(t, filepath.Join(root, "users"), "handler: ghost\n")

	e := newTestEngine(t, root, nil)
	err := e.Load(context.Background())
	require.Error(t, err)

	var derr *util.DiscoveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, util.DiscoveryInvalidHandler, derr.Kind)

	// Nothing was applied.
	assert.Equal(t, http.StatusNotFound, get(e, "/users").Code)
}

func TestEngineReloadKeepsPreviousOnFailure(t *testing.T) {
	root := t.TempDir()
	routeFile := filepath.Join(root, "users")
	writeRoute(t, routeFile, "handler: users\n")

	e := newTestEngine(t, root, nil)
	require.NoError(t, e.Load(context.Background()))
	require.Equal(t, http.StatusOK, get(e, "/users").Code)

	writeRoute(t, routeFile, "handler: ghost\n")
	require.Error(t, e.Reload(context.Background()))

	// The previous table keeps serving.
	assert.Equal(t, http.StatusOK, get(e, "/users").Code)
}

func TestEngineHotReload(t *testing.T) {
	root := t.TempDir()
	writeRoute(t, filepath.Join(root, "users"), "handler: users\n")

	e := newTestEngine(t, root, func(cfg *config.Config) {
		cfg.Routes.Watch = true
	})
	require.NoError(t, e.Load(context.Background()))
	require.Equal(t, http.StatusNotFound, get(e, "/reports").Code)

	writeRoute(t, filepath.Join(root, "reports"), "handler: users\n")

	assert.Eventually(t, func() bool {
		return get(e, "/reports").Code == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)
}

func TestEngineApplyConfig(t *testing.T) {
	root := t.TempDir()
	writeRoute(t, filepath.Join(root, "users"), "handler: users\n")

	e := newTestEngine(t, root, nil)
	require.NoError(t, e.Load(context.Background()))
	require.Equal(t, http.StatusOK, get(e, "/_routes").Code)

	next := config.DefaultConfig()
	next.Routes.Root = root
	next.Docs.Enabled = false
	require.NoError(t, e.ApplyConfig(context.Background(), next))

	// The reload dropped the docs endpoint.
	assert.Equal(t, http.StatusNotFound, get(e, "/_routes").Code)
	assert.Equal(t, http.StatusOK, get(e, "/users").Code)
}

func TestEngineRunShutdown(t *testing.T) {
	root := t.TempDir()
	writeRoute(t, filepath.Join(root, "users"), "handler: users\n")

	e := newTestEngine(t, root, func(cfg *config.Config) {
		cfg.Server.Host = "127.0.0.1"
		cfg.Server.Port = 0
		cfg.Server.ShutdownTimeout = config.Duration(time.Second)
	})
	require.NoError(t, e.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Run(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
