package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("LOCK_BACKEND", "local")
	t.Setenv("LOCK_TTL", "7")
	t.Setenv("LOCK_WAIT", "250ms")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.Equal(t, LockLocal, cfg.LockBackend)
	assert.Equal(t, 7*time.Second, cfg.LockTTL)
	assert.Equal(t, 250*time.Millisecond, cfg.LockWait)
	assert.Equal(t, 2.5, cfg.RateLimit.RPS)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 30*time.Minute, cfg.DefaultSlot())
}

func TestLoadYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
app:
  name: petique-test
http_port: "9090"
storage_driver: memory
lock_backend: local
lock_wait: 1s
auth:
  jwt_secret: ${TEST_JWT_SECRET}
logging:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	t.Setenv("CONFIG_FILE", configPath)
	t.Setenv("TEST_JWT_SECRET", "from-yaml")
	t.Setenv("HTTP_PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "petique-test", cfg.App.Name)
	assert.Equal(t, "from-yaml", cfg.Auth.JWTSecret)
	assert.Equal(t, time.Second, cfg.LockWait)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	// env wins over the file
	assert.Equal(t, "7070", cfg.HTTPPort)
}

func TestRedisURL(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("REDIS_URL", "redis://user:pw@cache:6380")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, RedisConfig{Addr: "cache:6380", Username: "user", Password: "pw"}, cfg.Redis)
}

func TestValidate(t *testing.T) {
	valid := defaults()
	valid.PostgresDSN = "postgres://localhost/petique"
	valid.Auth.JWTSecret = "secret"

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing dsn", mutate: func(c *Config) { c.PostgresDSN = "" }, wantErr: true},
		{name: "memory without dsn", mutate: func(c *Config) { c.PostgresDSN = ""; c.StorageDriver = StorageMemory }},
		{name: "unknown storage", mutate: func(c *Config) { c.StorageDriver = "sqlite" }, wantErr: true},
		{name: "unknown lock backend", mutate: func(c *Config) { c.LockBackend = "etcd" }, wantErr: true},
		{name: "missing secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: true},
		{name: "zero lock ttl", mutate: func(c *Config) { c.LockTTL = 0 }, wantErr: true},
		{name: "negative burst", mutate: func(c *Config) { c.RateLimit.Burst = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
