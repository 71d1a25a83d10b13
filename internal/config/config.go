// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type SpaceConfig struct {
	BaseURL         string        `yaml:"base_url"`
	Endpoint        string        `yaml:"endpoint"` // path under base_url, e.g. gradio_api/call/analyze
	Token           string        `yaml:"token"`
	EnqueueTimeout  time.Duration `yaml:"enqueue_timeout"`
	StreamTimeout   time.Duration `yaml:"stream_timeout"`   // 0 = no deadline
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max jobs in flight against the Space
	DefaultLanguage string        `yaml:"default_language"` // UI language code sent as first argument
	Models          []string      `yaml:"models"`           // accepted model keys; empty accepts any
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	JWTSecret      string        `yaml:"jwt_secret"` // empty disables auth on /api/v1
	RateLimit      int           `yaml:"rate_limit"` // requests per window per client; 0 disables
	RateWindow     time.Duration `yaml:"rate_window"`
	HandlerTimeout time.Duration `yaml:"handler_timeout"` // per /api/v1 request; a running job fails as cancelled
}

type DatabaseConfig struct {
	URL      string `yaml:"url"` // empty disables job history
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // empty disables cache and rate limiting
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type JobsConfig struct {
	Workers       int           `yaml:"workers"`   // batch workers
	MaxBatch      int           `yaml:"max_batch"` // items accepted per batch request
	Retention     time.Duration `yaml:"retention"`
	PruneInterval time.Duration `yaml:"prune_interval"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Space    SpaceConfig    `yaml:"space"`
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Security SecurityConfig `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies environment overrides for
// secrets and fills defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse is LoadConfig without the file read.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Space.BaseURL == "" {
		return nil, errors.New("space.base_url is required")
	}
	if cfg.Space.Endpoint == "" {
		return nil, errors.New("space.endpoint is required")
	}
	if cfg.Space.StreamTimeout < 0 {
		return nil, errors.New("space.stream_timeout must not be negative")
	}
	if k := len(cfg.Security.EncryptionKey); k != 0 && k != 16 && k != 24 && k != 32 {
		return nil, fmt.Errorf("security.encryption_key must be 16, 24 or 32 bytes; got %d", k)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SPACE_TOKEN"); v != "" {
		cfg.Space.Token = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Space.EnqueueTimeout <= 0 {
		cfg.Space.EnqueueTimeout = 30 * time.Second
	}
	if cfg.Space.ConcurrentLimit <= 0 {
		cfg.Space.ConcurrentLimit = 4
	}
	if cfg.Space.DefaultLanguage == "" {
		cfg.Space.DefaultLanguage = "en"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RateWindow <= 0 {
		cfg.HTTP.RateWindow = time.Minute
	}
	if cfg.HTTP.HandlerTimeout <= 0 {
		cfg.HTTP.HandlerTimeout = 10 * time.Minute
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Jobs.Workers <= 0 {
		cfg.Jobs.Workers = cfg.Space.ConcurrentLimit
	}
	if cfg.Jobs.MaxBatch <= 0 {
		cfg.Jobs.MaxBatch = 64
	}
	if cfg.Jobs.Retention <= 0 {
		cfg.Jobs.Retention = 30 * 24 * time.Hour
	}
	if cfg.Jobs.PruneInterval <= 0 {
		cfg.Jobs.PruneInterval = time.Hour
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
