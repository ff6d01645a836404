// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the linechat service.
package server

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// RateLimitConfig defines the parameters for per-connection line rate limiting.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst" validate:"gte=1"`
	RefillInterval time.Duration `yaml:"refill_interval" validate:"gt=0"`
}

// Config holds the server configuration settings.
type Config struct {
	// ListenAddr is the TCP address of the line protocol.
	ListenAddr string `yaml:"listen" validate:"required"`
	// HTTPAddr serves the WebSocket transport, health, metrics and test page.
	// Empty disables HTTP.
	HTTPAddr        string          `yaml:"http"`
	AllowedOrigins  []string        `yaml:"allowed_origins"`
	MaxLineLength   int             `yaml:"max_line_length" validate:"gte=64,lte=65536"`
	SendBuffer      int             `yaml:"send_buffer" validate:"gte=1"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" validate:"gt=0"`
	// MetricsInterval is how often a metrics summary is logged; zero disables it.
	MetricsInterval time.Duration `yaml:"metrics_interval" validate:"gte=0"`
}

var validate = validator.New()

func defaultConfig() Config {
	return Config{
		ListenAddr: ":6667",
		HTTPAddr:   ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxLineLength: 512,
		SendBuffer:    256,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		IdleTimeout:     10 * time.Minute,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// sanitizeConfig replaces unset values with defaults. IdleTimeout,
// MetricsInterval and HTTPAddr are left alone: zero and empty are meaningful
// there.
func sanitizeConfig(cfg Config) Config {
	def := defaultConfig()

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}

	if cfg.MaxLineLength <= 0 {
		cfg.MaxLineLength = def.MaxLineLength
	}

	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}

	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// Validate reports the first setting outside its allowed range.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
