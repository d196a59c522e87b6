// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type SearchConfig struct {
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	TopK            int           `yaml:"top_k"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent search calls
	ProbeInterval   time.Duration `yaml:"probe_interval"`
}

type AdvisorConfig struct {
	Workers int `yaml:"workers"`
	Queue   int `yaml:"queue"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

func (c RedisConfig) Enabled() bool { return strings.TrimSpace(c.URL) != "" }

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

func (c DatabaseConfig) Enabled() bool { return strings.TrimSpace(c.URL) != "" }

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TTL       time.Duration `yaml:"ttl"`
}

func (c AuthConfig) Enabled() bool { return c.JWTSecret != "" }

type RateLimitConfig struct {
	SubmissionsPerMinute int `yaml:"submissions_per_minute"` // 0 disables; needs redis
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Search    SearchConfig    `yaml:"search"`
	Advisor   AdvisorConfig   `yaml:"advisor"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path and applies defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse decodes raw YAML, fills defaults and validates the result.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.Runtime.Dev = dev
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 15 * time.Second
	}
	if cfg.Search.BaseURL == "" {
		cfg.Search.BaseURL = "http://localhost:5000"
	}
	if cfg.Search.Timeout <= 0 {
		cfg.Search.Timeout = 10 * time.Second
	}
	if cfg.Search.TopK <= 0 {
		cfg.Search.TopK = 3
	}
	if cfg.Search.ConcurrentLimit <= 0 {
		cfg.Search.ConcurrentLimit = 8
	}
	if cfg.Search.ProbeInterval <= 0 {
		cfg.Search.ProbeInterval = 30 * time.Second
	}
	if cfg.Advisor.Workers <= 0 {
		cfg.Advisor.Workers = 4
	}
	if cfg.Advisor.Queue <= 0 {
		cfg.Advisor.Queue = cfg.Advisor.Workers * 4
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL, 24*time.Hour)
	cfg.Auth.TTL = normalizeTTL(cfg.Auth.TTL, 12*time.Hour)
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
}

func (cfg *Config) validate() error {
	u, err := url.Parse(cfg.Search.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("search.base_url must be an absolute URL")
	}
	if cfg.RateLimit.SubmissionsPerMinute > 0 && !cfg.Redis.Enabled() {
		return errors.New("rate_limit.submissions_per_minute requires redis.url")
	}
	if cfg.Auth.Enabled() && len(cfg.Auth.JWTSecret) < 16 {
		return errors.New("auth.jwt_secret must be at least 16 bytes")
	}
	return nil
}

func normalizeTTL(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
