package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafsii/rediskit/pkg/kv"
	"github.com/leafsii/rediskit/pkg/lifetime"
	"github.com/leafsii/rediskit/pkg/partition"
)

// chdir moves into dir for the duration of the test so no stray config or
// .env file is picked up.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.IsDev())
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"*"}, cfg.Security.CORSAllowedOrigins)
	assert.Equal(t, 600, cfg.Security.RateLimitRPM)
	assert.Equal(t, partition.DB0, cfg.DefaultDB())

	conn := cfg.Connection()
	assert.Equal(t, kv.BackendRedis, conn.Backend)
	assert.Equal(t, "127.0.0.1:6379", conn.Endpoint)
	assert.Equal(t, 5*time.Second, conn.ConnectTimeout)
	assert.True(t, conn.AbortOnConnectFail)
	assert.False(t, conn.AllowAdmin)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("RK_ENV", "prod")
	t.Setenv("RK_REDIS_BACKEND", "memory")
	t.Setenv("RK_REDIS_CONNECT_TIMEOUT", "250")
	t.Setenv("RK_REDIS_ABORT_ON_CONNECT_FAIL", "false")
	t.Setenv("RK_REDIS_DEFAULT_DB", "4")
	t.Setenv("RK_SECURITY_CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	for i := 0; i < partition.Count; i++ {
		t.Setenv(fmt.Sprintf("RK_REDIS_LIFETIME_DB%d", i), "00.00:30:00")
	}

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, partition.DB4, cfg.DefaultDB())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.CORSAllowedOrigins)

	conn := cfg.Connection()
	assert.Equal(t, kv.BackendMemory, conn.Backend)
	assert.Equal(t, 250*time.Millisecond, conn.ConnectTimeout)
	assert.False(t, conn.AbortOnConnectFail)

	table, err := lifetime.Load(cfg.Lifetimes(), lifetime.DefaultKeyPrefix)
	require.NoError(t, err)
	for i := 0; i < partition.Count; i++ {
		assert.Equal(t, 30*time.Minute, table[i])
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "config.yaml")
	content := `
env: staging
redis:
  backend: redis
  endpoint: redis://cache.internal:6380
  allow_admin: true
  lifetime:
    db0: "01.00:00:00"
    db1: "00.12:00:00"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Env)
	assert.Equal(t, "redis://cache.internal:6380", cfg.Connection().Endpoint)
	assert.True(t, cfg.Connection().AllowAdmin)
	assert.Equal(t, "01.00:00:00", cfg.Lifetimes().GetString("redis.lifetime.db0"))

	// Only two partitions are configured
	_, err = lifetime.New(cfg.Lifetimes())
	assert.ErrorIs(t, err, lifetime.ErrConfigurationMissing)

	// The environment overrides the file
	t.Setenv("RK_REDIS_LIFETIME_DB1", "00.00:00:05")
	assert.Equal(t, "00.00:00:05", cfg.Lifetimes().GetString("redis.lifetime.db1"))
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"RK_REDIS_BACKEND": "etcd"}},
		{"redis without endpoint", map[string]string{"RK_REDIS_ENDPOINT": " "}},
		{"default db out of range", map[string]string{"RK_REDIS_DEFAULT_DB": "16"}},
		{"zero timeout", map[string]string{"RK_REDIS_CONNECT_TIMEOUT": "0"}},
		{"zero rate limit", map[string]string{"RK_SECURITY_RATE_LIMIT_RPM": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
