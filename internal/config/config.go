package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all bridge configuration.
type Config struct {
	Server    ServerConfig
	Broker    BrokerConfig
	Storage   StorageConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8700"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// BrokerConfig holds messaging defaults. These are process-wide,
// read-only once loaded.
type BrokerConfig struct {
	SendTimeout      time.Duration `envconfig:"SEND_TIMEOUT" default:"10s"`
	BroadcastTimeout time.Duration `envconfig:"BROADCAST_TIMEOUT" default:"1s"`
}

// StorageConfig holds the storage engine configuration. Quota is shared
// across extensions; there is no per-extension override.
type StorageConfig struct {
	Backend    string `envconfig:"STORAGE_BACKEND" default:"file"` // "file" or "badger"
	Path       string `envconfig:"STORAGE_PATH" default:"/var/lib/extbridge/storage"`
	QuotaBytes int    `envconfig:"STORAGE_QUOTA_BYTES" default:"10485760"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8700",
			Host: "0.0.0.0",
		},
		Broker: BrokerConfig{
			SendTimeout:      10 * time.Second,
			BroadcastTimeout: time.Second,
		},
		Storage: StorageConfig{
			Backend:    "file",
			Path:       "/var/lib/extbridge/storage",
			QuotaBytes: 10 << 20,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
