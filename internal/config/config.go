// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept here; secrets go to OS keychain or the
// environment.
package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bulkctl/cli/internal/errors"
	"bulkctl/cli/internal/xdg"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds non-sensitive CLI settings.
type Config struct {
	API               string        `yaml:"api"`
	APIVersion        string        `yaml:"api_version"`
	LogLevel          string        `yaml:"log_level"`
	BatchSize         int           `yaml:"batch_size"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	UploadConcurrency int           `yaml:"upload_concurrency"`
	HTTP              HTTPConfig    `yaml:"http"`
	Lock              LockConfig    `yaml:"lock"`
	Login             LoginConfig   `yaml:"login"`
}

// HTTPConfig tunes the transport.
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RateLimit  float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	RateBurst  int           `yaml:"rate_burst"`
	UserAgent  string        `yaml:"user_agent"`
}

// LockConfig selects where poller locks live.
type LockConfig struct {
	Backend  string        `yaml:"backend"` // local, redis or postgres
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// LoginConfig holds the connected app used for password login. The client
// secret is read from BULKCTL_CLIENT_SECRET.
type LoginConfig struct {
	URL      string `yaml:"url"`
	ClientID string `yaml:"client_id"`
}

// Supported values.
const (
	APIv1 = "v1"
	APIv2 = "v2"

	LockLocal    = "local"
	LockRedis    = "redis"
	LockPostgres = "postgres"

	LatestVersion = "latest"
)

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.API == "" {
		c.API = APIv2
	}
	if c.APIVersion == "" {
		c.APIVersion = "50.0"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.BatchSize == 0 {
		c.BatchSize = 10000
	}
	if c.PollInterval == 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.UploadConcurrency == 0 {
		c.UploadConcurrency = 4
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = 60 * time.Second
	}
	if c.HTTP.MaxRetries == 0 {
		c.HTTP.MaxRetries = 2
	}
	if c.HTTP.RateBurst == 0 {
		c.HTTP.RateBurst = 1
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = "bulkctl"
	}
	if c.Lock.Backend == "" {
		c.Lock.Backend = LockLocal
	}
	if c.Lock.TTL == 0 {
		c.Lock.TTL = time.Minute
	}
	if c.Login.URL == "" {
		c.Login.URL = "https://login.salesforce.com"
	}
}

// Path returns the default config file location.
func Path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the file at path, or the default location when path is empty.
// A missing file yields defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := Path()
		if err != nil {
			return nil, err
		}
		path = p
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, errors.Wrap(errors.Configuration, "read config", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(errors.Configuration, "parse "+path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads a .env file when present, then the config file, then
// applies BULKCTL_* overrides and validates the result.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("BULKCTL_API"); v != "" {
		c.API = strings.ToLower(v)
	}
	if v := os.Getenv("BULKCTL_API_VERSION"); v != "" {
		c.APIVersion = v
	}
	if v := os.Getenv("BULKCTL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("BULKCTL_LOCK_BACKEND"); v != "" {
		c.Lock.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("BULKCTL_REDIS_URL"); v != "" {
		c.Lock.RedisURL = v
	}
	if v := os.Getenv("BULKCTL_LOGIN_URL"); v != "" {
		c.Login.URL = v
	}
	if v := os.Getenv("BULKCTL_CLIENT_ID"); v != "" {
		c.Login.ClientID = v
	}
	if v := os.Getenv("BULKCTL_USER_AGENT"); v != "" {
		c.HTTP.UserAgent = v
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"BULKCTL_BATCH_SIZE", &c.BatchSize},
		{"BULKCTL_UPLOAD_CONCURRENCY", &c.UploadConcurrency},
		{"BULKCTL_HTTP_MAX_RETRIES", &c.HTTP.MaxRetries},
	}
	for _, e := range ints {
		if v := os.Getenv(e.env); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return errors.Wrap(errors.Configuration, e.env, err)
			}
			*e.dst = n
		}
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"BULKCTL_POLL_INTERVAL", &c.PollInterval},
		{"BULKCTL_HTTP_TIMEOUT", &c.HTTP.Timeout},
		{"BULKCTL_LOCK_TTL", &c.Lock.TTL},
	}
	for _, e := range durations {
		if v := os.Getenv(e.env); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return errors.Wrap(errors.Configuration, e.env, err)
			}
			*e.dst = d
		}
	}

	if v := os.Getenv("BULKCTL_HTTP_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrap(errors.Configuration, "BULKCTL_HTTP_RATE_LIMIT", err)
		}
		c.HTTP.RateLimit = f
	}
	return nil
}

// Validate rejects values no command could run with.
func (c *Config) Validate() error {
	switch c.API {
	case APIv1, APIv2:
	default:
		return errors.Newf(errors.Configuration, "api must be v1 or v2, got %q", c.API)
	}
	switch c.Lock.Backend {
	case LockLocal, LockPostgres:
	case LockRedis:
		if c.Lock.RedisURL == "" {
			return errors.New(errors.Configuration, "lock.redis_url is required for the redis lock backend")
		}
	default:
		return errors.Newf(errors.Configuration, "unknown lock backend %q", c.Lock.Backend)
	}
	if c.BatchSize <= 0 {
		return errors.Newf(errors.Configuration, "batch_size must be positive, got %d", c.BatchSize)
	}
	if c.UploadConcurrency <= 0 {
		return errors.Newf(errors.Configuration, "upload_concurrency must be positive, got %d", c.UploadConcurrency)
	}
	if c.PollInterval <= 0 {
		return errors.Newf(errors.Configuration, "poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.HTTP.MaxRetries < 0 || c.HTTP.RateLimit < 0 {
		return errors.New(errors.Configuration, "http.max_retries and http.rate_limit must not be negative")
	}
	return nil
}

// Save writes configuration with 0600 permissions to path, or the default
// location when path is empty.
func Save(path string, c *Config) error {
	if path == "" {
		p, err := Path()
		if err != nil {
			return err
		}
		path = p
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
