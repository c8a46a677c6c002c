package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const watcherTestConfig = `
server:
  port: 8080
routes:
  root: ./routes
`

func newTestWatcher(t *testing.T, callback Callback, opts ...WatcherOption) (*Watcher, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "router.yaml")
	require.NoError(t, os.WriteFile(path, []byte(watcherTestConfig), 0o600))

	opts = append(opts, WithDebounceDelay(20*time.Millisecond))
	w, err := NewWatcher(path, callback, opts...)
	require.NoError(t, err)

	return w, path
}

func TestWatcherStartLoadsInitialConfig(t *testing.T) {
	w, _ := newTestWatcher(t, nil)

	require.NoError(t, w.Start(context.Background()))
	defer func() { require.NoError(t, w.Stop()) }()

	cfg := w.LastConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestWatcherStartInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "router.yaml")
	require.NoError(t, os.WriteFile(path, []byte("adapter: fiber\n"), 0o600))

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)

	err = w.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adapter")
}

func TestWatcherReloadOnChange(t *testing.T) {
	reloaded := make(chan *Config, 1)
	w, path := newTestWatcher(t, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})

	require.NoError(t, w.Start(context.Background()))
	defer func() { require.NoError(t, w.Stop()) }()

	updated := `
server:
  port: 9090
routes:
  root: ./routes
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 9090, cfg.Server.Port)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}

	assert.Equal(t, 9090, w.LastConfig().Server.Port)
}

func TestWatcherKeepsLastConfigOnInvalidReload(t *testing.T) {
	errs := make(chan error, 1)
	w, path := newTestWatcher(t, nil, WithErrorCallback(func(err error) {
		select {
		case errs <- err:
		default:
		}
	}))

	require.NoError(t, w.Start(context.Background()))
	defer func() { require.NoError(t, w.Stop()) }()

	require.NoError(t, os.WriteFile(path, []byte("adapter: fiber\n"), 0o600))

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "adapter")
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for error callback")
	}

	// The previous configuration survives the failed reload.
	require.NotNil(t, w.LastConfig())
	assert.Equal(t, 8080, w.LastConfig().Server.Port)
}

func TestWatcherForceReload(t *testing.T) {
	var got *Config
	w, path := newTestWatcher(t, func(cfg *Config) { got = cfg })

	require.NoError(t, w.Start(context.Background()))
	defer func() { require.NoError(t, w.Stop()) }()

	updated := `
server:
  port: 9191
routes:
  root: ./routes
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
	require.NoError(t, w.ForceReload())

	require.NotNil(t, got)
	assert.Equal(t, 9191, got.Server.Port)
}

func TestWatcherStopIdempotent(t *testing.T) {
	w, _ := newTestWatcher(t, nil)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
