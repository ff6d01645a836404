package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestNewConfig_Defaults verifies the default settings.
func TestNewConfig_Defaults(t *testing.T) {
	req := require.New(t)
	cfg := NewConfig()

	req.Equal(":6667", cfg.ListenAddr)
	req.Equal(":8080", cfg.HTTPAddr)
	req.Equal([]string{"http://localhost:8080"}, cfg.AllowedOrigins)
	req.Equal(512, cfg.MaxLineLength)
	req.Equal(256, cfg.SendBuffer)
	req.Equal(RateLimitConfig{Burst: 5, RefillInterval: time.Second}, cfg.RateLimit)
	req.Equal(10*time.Minute, cfg.IdleTimeout)
	req.Zero(cfg.MetricsInterval)
	req.NoError(cfg.Validate())
}

// TestSanitizeConfig_FillsUnsetValues verifies zero values fall back to
// defaults while meaningful zeros are kept.
func TestSanitizeConfig_FillsUnsetValues(t *testing.T) {
	req := require.New(t)

	cfg := sanitizeConfig(Config{})

	def := defaultConfig()
	req.Equal(def.ListenAddr, cfg.ListenAddr)
	req.Equal(def.MaxLineLength, cfg.MaxLineLength)
	req.Equal(def.SendBuffer, cfg.SendBuffer)
	req.Equal(def.RateLimit, cfg.RateLimit)
	req.Equal(def.WriteTimeout, cfg.WriteTimeout)
	req.Equal(def.ShutdownTimeout, cfg.ShutdownTimeout)
	req.Empty(cfg.HTTPAddr, "empty HTTP address disables HTTP")
	req.Zero(cfg.IdleTimeout, "zero idle timeout disables it")
	req.NoError(cfg.Validate())
}

// TestSanitizeConfig_CopiesOrigins verifies the result does not alias the
// caller's slice.
func TestSanitizeConfig_CopiesOrigins(t *testing.T) {
	origins := []string{"http://a.example"}
	cfg := sanitizeConfig(Config{AllowedOrigins: origins})

	origins[0] = "http://changed.example"
	require.Equal(t, []string{"http://a.example"}, cfg.AllowedOrigins)
}

// TestConfig_ValidateRejectsOutOfRange verifies settings outside their range
// are reported.
func TestConfig_ValidateRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"line length too small", func(c *Config) { c.MaxLineLength = 10 }},
		{"line length too large", func(c *Config) { c.MaxLineLength = 1 << 20 }},
		{"negative idle timeout", func(c *Config) { c.IdleTimeout = -time.Second }},
		{"negative metrics interval", func(c *Config) { c.MetricsInterval = -time.Second }},
		{"missing listen address", func(c *Config) { c.ListenAddr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

// TestNew_RejectsInvalidConfig verifies the server refuses a config that
// fails validation after defaults are applied.
func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.MaxLineLength = 10

	_, err := New(cfg, discardLogger())
	require.ErrorContains(t, err, "invalid config")
}

// TestNewRateLimiter verifies the burst and refill rate.
func TestNewRateLimiter(t *testing.T) {
	req := require.New(t)

	limiter := newRateLimiter(5, time.Second)
	req.Equal(5, limiter.Burst())
	req.InDelta(5.0, float64(limiter.Limit()), 1e-9)

	fallback := newRateLimiter(0, 0)
	req.Equal(1, fallback.Burst())
	req.InDelta(1.0, float64(fallback.Limit()), 1e-9)
}
