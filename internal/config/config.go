// Package config provides environment configuration for the relay server.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string        `envconfig:"PORT" default:"8080"`
	ServerReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	ServerWriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"0s"`
	AllowedOrigins     []string      `envconfig:"ALLOWED_ORIGINS" default:"https://*,http://*"`

	// NATS journal; empty URL disables it
	NATSURL      string `envconfig:"NATS_URL"`
	NATSCAFile   string `envconfig:"NATS_CA_FILE"`
	NATSCertFile string `envconfig:"NATS_CERT_FILE"`
	NATSKeyFile  string `envconfig:"NATS_KEY_FILE"`
	NATSToken    string `envconfig:"NATS_TOKEN"`

	// Rate limiting
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"120"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// Live feeds
	FeedBufferSize        int           `envconfig:"FEED_BUFFER_SIZE" default:"64"`
	FeedHeartbeatInterval time.Duration `envconfig:"FEED_HEARTBEAT_INTERVAL" default:"25s"`

	// Logging
	Env      string `envconfig:"ENV" default:"production"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Tracing
	TracingEndpoint string `envconfig:"TRACING_ENDPOINT" default:"localhost:4318"`
	TracingEnabled  bool   `envconfig:"TRACING_ENABLED" default:"false"`
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	if c.FeedBufferSize <= 0 {
		return fmt.Errorf("FEED_BUFFER_SIZE must be positive, got %d", c.FeedBufferSize)
	}
	if c.FeedHeartbeatInterval <= 0 {
		return fmt.Errorf("FEED_HEARTBEAT_INTERVAL must be positive, got %s", c.FeedHeartbeatInterval)
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d per %s", c.RateLimitRequests, c.RateLimitWindow)
	}
	return nil
}

// JournalEnabled reports whether events are mirrored to NATS.
func (c *Config) JournalEnabled() bool {
	return c.NATSURL != ""
}
