// Package config loads the livewall server configuration from YAML.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	AWS        AWSConfig        `yaml:"aws"`
	Store      StoreConfig      `yaml:"store"`
	Blobs      BlobsConfig      `yaml:"blobs"`
	Email      EmailConfig      `yaml:"email"`
	Moderation ModerationConfig `yaml:"moderation"`
	Events     EventsConfig     `yaml:"events"`
	Payments   PaymentsConfig   `yaml:"payments"`
	Admin      AdminConfig      `yaml:"admin"`
	RateLimit  RateLimitConfig  `yaml:"ratelimit"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`

	// BaseURL is the public URL used in emailed links.
	BaseURL string `yaml:"base_url"`

	// MaxImageBytes bounds uploads.
	MaxImageBytes int `yaml:"max_image_bytes"`

	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout"`
	ShutdownTimeout    time.Duration `yaml:"-"`
}

type AWSConfig struct {
	Region string `yaml:"region"`

	// Endpoint overrides the service endpoint, e.g. for DynamoDB Local.
	Endpoint string `yaml:"endpoint"`
}

// Store backends.
const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type StoreConfig struct {
	Backend string `yaml:"backend"`

	// DSN is the database connection string for postgres and sqlite.
	DSN string `yaml:"dsn"`

	// TablePrefix prefixes DynamoDB table names.
	TablePrefix string `yaml:"table_prefix"`
}

type BlobsConfig struct {
	// Backend is "memory" or "s3".
	Backend   string `yaml:"backend"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	PublicURL string `yaml:"public_url"`

	LinkExpiryRaw string        `yaml:"link_expiry"`
	LinkExpiry    time.Duration `yaml:"-"`
}

type EmailConfig struct {
	// Backend is "log" or "ses".
	Backend string `yaml:"backend"`
	Sender  string `yaml:"sender"`
}

type ModerationConfig struct {
	Enabled       bool    `yaml:"enabled"`
	MinConfidence float32 `yaml:"min_confidence"`
}

type EventsConfig struct {
	BufferSize int `yaml:"buffer_size"`

	// RedisAddr enables the Redis relay when set.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisChannel  string `yaml:"redis_channel"`

	// KeepaliveRaw is the interval between SSE keepalive comments.
	KeepaliveRaw string        `yaml:"keepalive"`
	Keepalive    time.Duration `yaml:"-"`
}

type PaymentsConfig struct {
	WebhookPath   string `yaml:"webhook_path"`
	WebhookSecret string `yaml:"webhook_secret"`

	DedupeTTLRaw string        `yaml:"dedupe_ttl"`
	DedupeTTL    time.Duration `yaml:"-"`
}

type AdminConfig struct {
	// Token guards the /admin routes. Empty disables them.
	Token string `yaml:"token"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given: everything
// in memory, emails logged.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a configuration file. ${VAR} references are expanded from the
// environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the variable's value, or "" if unset.
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envPattern.FindStringSubmatch(match)[1])
	})
}

func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeoutRaw, &cfg.Server.ShutdownTimeout},
		{"blobs.link_expiry", cfg.Blobs.LinkExpiryRaw, &cfg.Blobs.LinkExpiry},
		{"events.keepalive", cfg.Events.KeepaliveRaw, &cfg.Events.Keepalive},
		{"payments.dedupe_ttl", cfg.Payments.DedupeTTLRaw, &cfg.Payments.DedupeTTL},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("%s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:8080"
	}
	if c.Server.MaxImageBytes == 0 {
		c.Server.MaxImageBytes = 10 << 20
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.Store.TablePrefix == "" {
		c.Store.TablePrefix = "livewall_"
	}
	if c.Blobs.Backend == "" {
		c.Blobs.Backend = "memory"
	}
	if c.Blobs.LinkExpiry == 0 {
		c.Blobs.LinkExpiry = 15 * time.Minute
	}
	if c.Email.Backend == "" {
		c.Email.Backend = "log"
	}
	if c.Events.BufferSize == 0 {
		c.Events.BufferSize = 64
	}
	if c.Events.Keepalive == 0 {
		c.Events.Keepalive = 15 * time.Second
	}
	if c.Payments.WebhookPath == "" {
		c.Payments.WebhookPath = "/payments/webhook"
	}
	if c.Payments.DedupeTTL == 0 {
		c.Payments.DedupeTTL = 24 * time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendDynamoDB:
	case BackendPostgres, BackendSQLite:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the %s backend", c.Store.Backend)
		}
	default:
		return fmt.Errorf("store.backend %q is not one of memory, dynamodb, postgres, sqlite", c.Store.Backend)
	}

	switch c.Blobs.Backend {
	case "memory":
	case "s3":
		if c.Blobs.Bucket == "" {
			return fmt.Errorf("blobs.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("blobs.backend %q is not one of memory, s3", c.Blobs.Backend)
	}

	switch c.Email.Backend {
	case "log":
	case "ses":
		if c.Email.Sender == "" {
			return fmt.Errorf("email.sender is required for the ses backend")
		}
	default:
		return fmt.Errorf("email.backend %q is not one of log, ses", c.Email.Backend)
	}

	if c.Moderation.MinConfidence < 0 || c.Moderation.MinConfidence > 100 {
		return fmt.Errorf("moderation.min_confidence must be between 0 and 100")
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("ratelimit values must not be negative")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst == 0 {
		return fmt.Errorf("ratelimit.burst is required when ratelimit.rps is set")
	}
	if c.Payments.WebhookPath[0] != '/' {
		return fmt.Errorf("payments.webhook_path must start with /")
	}
	return nil
}

// NeedsAWS reports whether any configured backend talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.Store.Backend == BackendDynamoDB ||
		c.Blobs.Backend == "s3" ||
		c.Email.Backend == "ses" ||
		c.Moderation.Enabled
}
