package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr" validate:"required"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format" validate:"oneof=console json"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path" validate:"required"`
	// PublicURL prefixes attachment URLs sent to clients. Empty means relative URLs.
	PublicURL string `mapstructure:"public_url" yaml:"public_url" validate:"omitempty,url"`

	JWT         JWTConfig         `mapstructure:"jwt" yaml:"jwt"`
	Blob        BlobConfig        `mapstructure:"blob" yaml:"blob"`
	Realtime    RealtimeConfig    `mapstructure:"realtime" yaml:"realtime"`
	Errors      ErrorsConfig      `mapstructure:"errors" yaml:"errors"`
	Attachments AttachmentsConfig `mapstructure:"attachments" yaml:"attachments"`
	AuthLimit   RateLimitConfig   `mapstructure:"auth_limit" yaml:"auth_limit"`
}

// JWTConfig configures token issuing and validation.
type JWTConfig struct {
	Secret   string        `mapstructure:"secret" yaml:"secret" validate:"required,min=16"`
	Issuer   string        `mapstructure:"issuer" yaml:"issuer"`
	Audience string        `mapstructure:"audience" yaml:"audience"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl" validate:"gt=0"`
}

// BlobConfig configures the attachment byte store.
type BlobConfig struct {
	Path          string        `mapstructure:"path" yaml:"path" validate:"required_unless=InMemory true"`
	InMemory      bool          `mapstructure:"in_memory" yaml:"in_memory"`
	PruneInterval time.Duration `mapstructure:"prune_interval" yaml:"prune_interval" validate:"gte=0"`
}

// RealtimeConfig tunes websocket connections.
type RealtimeConfig struct {
	EventBuffer     int     `mapstructure:"event_buffer" yaml:"event_buffer" validate:"min=1"`
	ActionRate      float64 `mapstructure:"action_rate" yaml:"action_rate" validate:"gt=0"`
	ActionBurst     int     `mapstructure:"action_burst" yaml:"action_burst" validate:"min=1"`
	MaxMessageBytes int64   `mapstructure:"max_message_bytes" yaml:"max_message_bytes" validate:"min=1024"`
}

// ErrorsConfig selects who receives action errors.
type ErrorsConfig struct {
	Scope string `mapstructure:"scope" yaml:"scope" validate:"oneof=room sender"`
}

// AttachmentsConfig limits uploads and per-message attachments.
type AttachmentsConfig struct {
	MaxCount int   `mapstructure:"max_count" yaml:"max_count" validate:"min=1"`
	MaxBytes int64 `mapstructure:"max_bytes" yaml:"max_bytes" validate:"min=1"`
}

// RateLimitConfig limits requests per client address.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps" yaml:"rps" validate:"gt=0"`
	Burst int     `mapstructure:"burst" yaml:"burst" validate:"min=1"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		DatabasePath:      "wirechat.db",
		JWT: JWTConfig{
			Secret:   "change-me-in-production",
			Issuer:   "wirechat",
			Audience: "wirechat-clients",
			TTL:      24 * time.Hour,
		},
		Blob: BlobConfig{
			Path:          "data/blobs",
			PruneInterval: time.Hour,
		},
		Realtime: RealtimeConfig{
			EventBuffer:     64,
			ActionRate:      10,
			ActionBurst:     20,
			MaxMessageBytes: 64 << 10,
		},
		Errors: ErrorsConfig{
			Scope: "room",
		},
		Attachments: AttachmentsConfig{
			MaxCount: 10,
			MaxBytes: 10 << 20,
		},
		AuthLimit: RateLimitConfig{
			RPS:   1,
			Burst: 5,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Only the fields exposed as command line flags are considered.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
