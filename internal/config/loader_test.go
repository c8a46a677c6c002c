package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "router.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
server:
  host: 127.0.0.1
  port: 9090
  readTimeout: 5s
routes:
  root: ./testroutes
  watch: true
  defaultTimeout: 10s
adapter: echo
cache:
  enabled: true
  maxEntries: 100
  ttl: 30s
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout.Duration())
	assert.Equal(t, "./testroutes", cfg.Routes.Root)
	assert.True(t, cfg.Routes.Watch)
	assert.Equal(t, AdapterEcho, cfg.Adapter)
	assert.Equal(t, 100, cfg.Cache.MaxEntries)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL.Duration())

	// Unset fields fall back to defaults.
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout.Duration())
	assert.Equal(t, RateLimitStoreMemory, cfg.RateLimit.Store)
}

func TestLoadConfigFileNotFound(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [not: valid")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadConfigFromReader(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(`
server:
  port: 8081
`))
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("ROUTER_TEST_HOST", "10.0.0.1")
	os.Unsetenv("ROUTER_TEST_UNSET")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "set variable",
			input: "host: ${ROUTER_TEST_HOST}",
			want:  "host: 10.0.0.1",
		},
		{
			name:  "unset variable with default",
			input: "host: ${ROUTER_TEST_UNSET:-localhost}",
			want:  "host: localhost",
		},
		{
			name:  "unset variable without default",
			input: "host: ${ROUTER_TEST_UNSET}",
			want:  "host: ",
		},
		{
			name:  "set variable ignores default",
			input: "host: ${ROUTER_TEST_HOST:-localhost}",
			want:  "host: 10.0.0.1",
		},
		{
			name:  "escaped dollar",
			input: "password: $${literal}",
			want:  "password: ${literal}",
		},
		{
			name:  "no substitution",
			input: "host: localhost",
			want:  "host: localhost",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, substituteEnvVars(tt.input))
		})
	}
}

func TestLoadConfigWithEnvSubstitution(t *testing.T) {
	t.Setenv("ROUTER_TEST_PORT", "7070")

	path := writeConfigFile(t, `
server:
  port: ${ROUTER_TEST_PORT}
routes:
  root: ${ROUTER_TEST_ROOT:-./routes}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "./routes", cfg.Routes.Root)
}

func TestResolveConfigPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "router.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	resolved, err := ResolveConfigPath(path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)

	_, err = ResolveConfigPath(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
