package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"bulkctl/cli/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, APIv2, cfg.API)
	assert.Equal(t, "50.0", cfg.APIVersion)
	assert.Equal(t, 10000, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 4, cfg.UploadConcurrency)
	assert.Equal(t, 60*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, LockLocal, cfg.Lock.Backend)
	require.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api: v1
api_version: "58.0"
batch_size: 200
poll_interval: 2s
http:
  timeout: 30s
  rate_limit: 5
lock:
  backend: redis
  redis_url: redis://localhost:6379/0
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, APIv1, cfg.API)
	assert.Equal(t, "58.0", cfg.APIVersion)
	assert.Equal(t, 200, cfg.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 5.0, cfg.HTTP.RateLimit)
	assert.Equal(t, 2, cfg.HTTP.MaxRetries, "unset keys keep their defaults")
	assert.Equal(t, LockRedis, cfg.Lock.Backend)
	require.NoError(t, cfg.Validate())
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [v1"), 0o600))
	_, err := Load(path)
	assert.True(t, errors.Is(err, errors.Configuration))
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("BULKCTL_API", "V1")
	t.Setenv("BULKCTL_BATCH_SIZE", "500")
	t.Setenv("BULKCTL_POLL_INTERVAL", "250ms")
	t.Setenv("BULKCTL_HTTP_RATE_LIMIT", "2.5")
	t.Setenv("BULKCTL_CLIENT_ID", "3MVG9")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, APIv1, cfg.API)
	assert.Equal(t, 500, cfg.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 2.5, cfg.HTTP.RateLimit)
	assert.Equal(t, "3MVG9", cfg.Login.ClientID)
}

func TestLoadFromEnvRejectsBadNumbers(t *testing.T) {
	t.Setenv("BULKCTL_BATCH_SIZE", "lots")
	_, err := LoadFromEnv(filepath.Join(t.TempDir(), "config.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.Configuration))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown api", func(c *Config) { c.API = "v3" }},
		{"unknown lock backend", func(c *Config) { c.Lock.Backend = "etcd" }},
		{"redis without url", func(c *Config) { c.Lock.Backend = LockRedis }},
		{"zero batch size", func(c *Config) { c.BatchSize = -1 }},
		{"zero concurrency", func(c *Config) { c.UploadConcurrency = -2 }},
		{"negative poll interval", func(c *Config) { c.PollInterval = -time.Second }},
		{"negative retries", func(c *Config) { c.HTTP.MaxRetries = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.Configuration))
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	c := Default()
	c.API = APIv1
	c.PollInterval = 10 * time.Second
	require.NoError(t, Save(path, c))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}
