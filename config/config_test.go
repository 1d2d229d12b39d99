package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/orchestra-mcp/expense/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with no relevant env vars.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, k := range []string{
		"CONFIG_ENV", "PORT", "JWT_SECRET", "DATABASE_URL",
		"EXPENSE_ADDR", "EXPENSE_MODE", "EXPENSE_JWT_SECRET", "EXPENSE_DATABASE_URL",
		"EXPENSE_SOCKET_PING_INTERVAL", "EXPENSE_REDIS_ADDR",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "release", cfg.Mode)
	assert.False(t, cfg.Debug())
	assert.Equal(t, ":4000", cfg.Addr)
	assert.Empty(t, cfg.JWT.Secret)
	assert.Equal(t, time.Hour, cfg.JWT.TTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "expense:", cfg.Redis.Prefix)
	assert.Equal(t, config.DefaultSocketConfig(), cfg.Socket)
}

func TestLoadEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("EXPENSE_MODE", "debug")
	t.Setenv("EXPENSE_SOCKET_PING_INTERVAL", "5s")
	t.Setenv("EXPENSE_REDIS_ADDR", "redis:6380")
	t.Setenv("JWT_SECRET", "from-legacy-name")
	t.Setenv("DATABASE_URL", "postgres://localhost/expense")
	t.Setenv("PORT", "8081")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.True(t, cfg.Debug())
	assert.Equal(t, 5*time.Second, cfg.Socket.PingInterval)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "from-legacy-name", cfg.JWT.Secret)
	assert.Equal(t, "postgres://localhost/expense", cfg.Database.URL)
	assert.Equal(t, ":8081", cfg.Addr)
}

func TestPrefixedEnvWins(t *testing.T) {
	isolate(t)
	t.Setenv("JWT_SECRET", "legacy")
	t.Setenv("EXPENSE_JWT_SECRET", "prefixed")
	t.Setenv("PORT", "8081")
	t.Setenv("EXPENSE_ADDR", "127.0.0.1:9000")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.JWT.Secret)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
}

func TestLoadFile(t *testing.T) {
	dir := isolate(t)
	t.Setenv("CONFIG_ENV", "test")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	yaml := []byte(`
mode: test
addr: ":5000"
jwt:
  secret: file-secret
  ttl: 30m
socket:
  max_connections: 10
  send_buffer: 8
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), yaml, 0o600))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Mode)
	assert.Equal(t, ":5000", cfg.Addr)
	assert.Equal(t, "file-secret", cfg.JWT.Secret)
	assert.Equal(t, 30*time.Minute, cfg.JWT.TTL)
	assert.Equal(t, 10, cfg.Socket.MaxConnections)
	assert.Equal(t, 8, cfg.Socket.SendBuffer)
	assert.Equal(t, 1024, cfg.Socket.ReadBufferSize, "unset keys keep defaults")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	isolate(t)
	t.Setenv("EXPENSE_MODE", "chaos")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestPongWait(t *testing.T) {
	s := config.DefaultSocketConfig()
	assert.Greater(t, s.PongWait(), s.PingInterval)

	s.PingInterval = 0
	assert.Zero(t, s.PongWait())
}
