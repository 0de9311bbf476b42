// Package config loads the service configuration from YAML with
// environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v3"

	"github.com/adeilh/scribe/ratelimit"
)

// Config is the top-level service configuration.
type Config struct {
	Server     ServerConfig               `yaml:"server"`
	Database   DatabaseConfig             `yaml:"database"`
	Cache      CacheConfig                `yaml:"cache"`
	Auth       AuthConfig                 `yaml:"auth"`
	AI         AIConfig                   `yaml:"ai"`
	Media      MediaConfig                `yaml:"media"`
	RateLimits map[string]RateLimitConfig `yaml:"rate_limits"`
	Telemetry  TelemetryConfig            `yaml:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool `yaml:"trust_proxy"`
}

// DatabaseConfig selects the source-of-truth store.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // "postgres" or "sqlite"
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	Migrate         bool          `yaml:"migrate"`
}

// CacheConfig selects and tunes the cache store.
type CacheConfig struct {
	Driver       string             `yaml:"driver"` // "redis" or "memory"
	URL          string             `yaml:"url"`
	Addr         string             `yaml:"addr"`
	Password     string             `yaml:"password"`
	DB           int                `yaml:"db"`
	MaxEntries   int                `yaml:"max_entries"`
	ListingTTL   time.Duration      `yaml:"listing_ttl"`
	EntityTTL    time.Duration      `yaml:"entity_ttl"`
	OpTimeout    time.Duration      `yaml:"op_timeout"`
	Invalidation InvalidationConfig `yaml:"invalidation"`
}

// InvalidationConfig controls retries of failed cache purges.
type InvalidationConfig struct {
	Attempts      int           `yaml:"attempts"`
	Backoff       time.Duration `yaml:"backoff"`
	QueueSize     int           `yaml:"queue_size"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
}

// AuthConfig holds token and bootstrap account settings.
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	Issuer        string        `yaml:"issuer"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	BcryptCost    int           `yaml:"bcrypt_cost"`
	AdminName     string        `yaml:"admin_name"`
	AdminEmail    string        `yaml:"admin_email"`
	AdminPassword string        `yaml:"admin_password"`
}

// AIConfig configures the writing assistant. An empty APIKey disables it.
type AIConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

// MediaConfig addresses the cover image bucket. An empty Endpoint
// disables uploads.
type MediaConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Region       string `yaml:"region"`
	Bucket       string `yaml:"bucket"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UseSSL       bool   `yaml:"use_ssl"`
	PathStyle    bool   `yaml:"path_style"`
	PublicURL    string `yaml:"public_url"`
	CreateBucket bool   `yaml:"create_bucket"`
	MaxSize      int64  `yaml:"max_size"`
}

// RateLimitConfig overrides one named policy.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
	Message  string        `yaml:"message"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // "json" or "text"
	Metrics   bool   `yaml:"metrics"`
}

// Default returns a configuration that runs locally with SQLite and the
// in-process cache.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":5000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:  "sqlite",
			DSN:     "scribe.db",
			Migrate: true,
		},
		Cache: CacheConfig{
			Driver:     "memory",
			MaxEntries: 10_000,
			ListingTTL: 600 * time.Second,
			EntityTTL:  3600 * time.Second,
			OpTimeout:  250 * time.Millisecond,
			Invalidation: InvalidationConfig{
				Attempts:      1,
				Backoff:       50 * time.Millisecond,
				QueueSize:     256,
				RetryAttempts: 3,
				RetryBackoff:  500 * time.Millisecond,
			},
		},
		Auth: AuthConfig{
			Issuer:     "scribe",
			TokenTTL:   7 * 24 * time.Hour,
			BcryptCost: 12,
		},
		AI: AIConfig{
			Model:   "gemini-1.5-flash",
			Timeout: 30 * time.Second,
			Retries: 2,
		},
		Media: MediaConfig{
			MaxSize: 5 << 20,
		},
		Telemetry: TelemetryConfig{
			LogLevel:  "info",
			LogFormat: "json",
			Metrics:   true,
		},
	}
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
// ${VAR:-default} falls back to default when VAR is unset or empty.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		name, def, hasDef := strings.Cut(expr, ":-")
		if val, ok := os.LookupEnv(name); ok && (val != "" || !hasDef) {
			return []byte(val)
		}
		if hasDef {
			return []byte(def)
		}
		return match
	})
}

// LoadDotEnv loads variables from path into the process environment
// without overriding variables that are already set. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads and parses a YAML config file over Default, expanding
// environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(expandEnv(data), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail at startup.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn: required"))
	}
	switch c.Cache.Driver {
	case "memory":
	case "redis":
		if c.Cache.URL == "" && c.Cache.Addr == "" {
			errs = append(errs, errors.New("cache: redis needs url or addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.driver: unknown driver %q", c.Cache.Driver))
	}
	if c.Media.Endpoint != "" && c.Media.Bucket == "" {
		errs = append(errs, errors.New("media.bucket: required when media.endpoint is set"))
	}
	for name := range c.RateLimits {
		if _, ok := ratelimit.DefaultPolicies()[name]; !ok {
			errs = append(errs, fmt.Errorf("rate_limits: unknown policy %q", name))
		}
	}
	return errors.Join(errs...)
}

// Policies merges the configured overrides into the default rate limit
// policies. A negative Requests disables a policy.
func (c *Config) Policies() map[string]ratelimit.Policy {
	out := ratelimit.DefaultPolicies()
	for name, o := range c.RateLimits {
		p, ok := out[name]
		if !ok {
			continue
		}
		if o.Requests != 0 {
			p.Requests = max(o.Requests, 0)
		}
		if o.Window > 0 {
			p.Window = o.Window
		}
		if o.Message != "" {
			p.Message = o.Message
		}
		out[name] = p
	}
	return out
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	out := *c
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	out.Auth.JWTSecret = mask(out.Auth.JWTSecret)
	out.Auth.AdminPassword = mask(out.Auth.AdminPassword)
	out.Cache.Password = mask(out.Cache.Password)
	out.AI.APIKey = mask(out.AI.APIKey)
	out.Media.SecretKey = mask(out.Media.SecretKey)
	if out.Database.DSN != "" && strings.Contains(out.Database.DSN, "@") {
		out.Database.DSN = mask(out.Database.DSN)
	}
	if strings.Contains(out.Cache.URL, "@") {
		out.Cache.URL = mask(out.Cache.URL)
	}
	return out
}
