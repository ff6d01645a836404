package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/Tyrowin/linechat/internal/server"
)

const sampleYAML = `
listen: ":7000"
allowed_origins:
  - http://a.example
  - http://b.example
send_buffer: 64
idle_timeout: 30s
rate_limit:
  burst: 9
  refill_interval: 2s
log_level: debug
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "linechat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// parse runs a command built from Flags and returns what it collected.
func parse(t *testing.T, data map[string]any, args ...string) (server.Config, string) {
	t.Helper()

	var cfg server.Config
	var level string
	cmd := &cli.Command{
		Name:  "linechat",
		Flags: Flags(data),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg = ServerConfig(cmd)
			level = LoggingOptions(cmd).Level
			return nil
		},
	}
	require.NoError(t, cmd.Run(context.Background(), append([]string{"linechat"}, args...)))
	return cfg, level
}

// TestYamlSource_Lookup covers flat keys, nested keys, lists and misses.
func TestYamlSource_Lookup(t *testing.T) {
	data, err := LoadYAML(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	tests := []struct {
		key   string
		want  string
		found bool
	}{
		{"listen", ":7000", true},
		{"send_buffer", "64", true},
		{"rate_limit.burst", "9", true},
		{"allowed_origins", "http://a.example,http://b.example", true},
		{"rate_limit.missing", "", false},
		{"listen.deeper", "", false},
		{"absent", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := (&YamlSource{data: data, key: tt.key}).Lookup()
			require.Equal(t, tt.found, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

// TestLoadYAML_Errors verifies unreadable and malformed files are reported.
func TestLoadYAML_Errors(t *testing.T) {
	data, err := LoadYAML("")
	require.NoError(t, err)
	require.Nil(t, data)

	_, err = LoadYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "reading config file")

	_, err = LoadYAML(writeConfig(t, "listen: [unclosed"))
	require.ErrorContains(t, err, "parsing config file")
}

// TestConfigPath finds the file from the environment or the arguments.
func TestConfigPath(t *testing.T) {
	require.Equal(t, "a.yaml", ConfigPath([]string{"linechat", "--config", "a.yaml"}))
	require.Equal(t, "b.yaml", ConfigPath([]string{"linechat", "-c", "b.yaml"}))
	require.Equal(t, "c.yaml", ConfigPath([]string{"linechat", "--config=c.yaml"}))
	require.Empty(t, ConfigPath([]string{"linechat", "--config"}))

	t.Setenv("LINECHAT_CONFIG", "env.yaml")
	require.Equal(t, "env.yaml", ConfigPath([]string{"linechat", "--config", "a.yaml"}))
}

// TestFlags_Defaults verifies an empty command line yields the server
// defaults.
func TestFlags_Defaults(t *testing.T) {
	cfg, level := parse(t, nil)

	require.Equal(t, *server.NewConfig(), cfg)
	require.Equal(t, "info", level)
}

// TestFlags_Precedence verifies flags beat the environment, which beats the
// YAML file, which beats the defaults.
func TestFlags_Precedence(t *testing.T) {
	data, err := LoadYAML(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	// Given the file sets send_buffer and listen, and the environment overrides send_buffer
	t.Setenv("LINECHAT_SEND_BUFFER", "42")

	// When the command line overrides listen
	cfg, level := parse(t, data, "--listen", ":9000")

	// Then each setting comes from the strongest source that has it
	require.Equal(t, ":9000", cfg.ListenAddr)
	require.Equal(t, 42, cfg.SendBuffer)
	require.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	require.Equal(t, 30*time.Second, cfg.IdleTimeout)
	require.Equal(t, server.RateLimitConfig{Burst: 9, RefillInterval: 2 * time.Second}, cfg.RateLimit)
	require.Equal(t, "debug", level)
	require.Equal(t, server.NewConfig().HTTPAddr, cfg.HTTPAddr)
}
