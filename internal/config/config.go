// Package config builds the command-line flags of linechat. Every setting can
// come from a flag, a LINECHAT_* environment variable or a YAML file, in that
// order of precedence, falling back to the server defaults.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/Tyrowin/linechat/internal/logging"
	"github.com/Tyrowin/linechat/internal/server"
)

// EnvPrefix prefixes every environment variable the flags read.
const EnvPrefix = "LINECHAT_"

// YamlSource implements cli.ValueSource for a map loaded from YAML. Keys may
// be dotted to reach into nested sections, e.g. "rate_limit.burst".
type YamlSource struct {
	data map[string]any
	key  string
}

func (y *YamlSource) Lookup() (string, bool) {
	v, ok := lookupPath(y.data, y.key)
	if !ok {
		return "", false
	}

	// Lists become comma-separated, as slice flags expect.
	if slice, ok := v.([]any); ok {
		var strs []string
		for _, item := range slice {
			strs = append(strs, fmt.Sprintf("%v", item))
		}
		return strings.Join(strs, ","), true
	}
	return fmt.Sprintf("%v", v), true
}

func (y *YamlSource) String() string   { return "yaml key " + y.key }
func (y *YamlSource) GoString() string { return "&YamlSource{key:" + y.key + "}" }

func lookupPath(data map[string]any, key string) (any, bool) {
	var cur any = data
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// LoadYAML reads a configuration file. An empty path yields no data.
func LoadYAML(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return data, nil
}

// ConfigPath finds the configuration file before flags are parsed, since the
// file feeds the other flags' defaults.
func ConfigPath(args []string) string {
	if v := os.Getenv(EnvPrefix + "CONFIG"); v != "" {
		return v
	}
	for i, arg := range args {
		if arg == "--config" || arg == "-c" {
			if i+1 < len(args) {
				return args[i+1]
			}
		}
		if v, ok := strings.CutPrefix(arg, "--config="); ok {
			return v
		}
	}
	return ""
}

// Flags returns the server flags, sourced env > YAML > default.
func Flags(data map[string]any) []cli.Flag {
	src := func(key, env string) cli.ValueSourceChain {
		chain := cli.ValueSourceChain{}
		chain.Chain = append(chain.Chain, cli.EnvVar(EnvPrefix+env))
		if data != nil {
			chain.Chain = append(chain.Chain, &YamlSource{data: data, key: key})
		}
		return chain
	}

	def := server.NewConfig()

	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "read settings from the named YAML file", Sources: cli.EnvVars(EnvPrefix + "CONFIG")},

		// Listeners
		&cli.StringFlag{Name: "listen", Aliases: []string{"l"}, Value: def.ListenAddr, Usage: "TCP address for raw line clients", Sources: src("listen", "LISTEN")},
		&cli.StringFlag{Name: "http", Value: def.HTTPAddr, Usage: "HTTP address for WebSocket, health and metrics (empty disables)", Sources: src("http", "HTTP")},
		&cli.StringSliceFlag{Name: "origins", Value: def.AllowedOrigins, Usage: "allowed WebSocket origins, * for any", Sources: src("allowed_origins", "ORIGINS")},

		// Limits
		&cli.IntFlag{Name: "max-line-length", Value: int64(def.MaxLineLength), Usage: "longest accepted input line in bytes", Sources: src("max_line_length", "MAX_LINE_LENGTH")},
		&cli.IntFlag{Name: "send-buffer", Value: int64(def.SendBuffer), Usage: "outbound lines queued per client before it is dropped as too slow", Sources: src("send_buffer", "SEND_BUFFER")},
		&cli.IntFlag{Name: "rate-burst", Value: int64(def.RateLimit.Burst), Usage: "lines a client may send in a burst", Sources: src("rate_limit.burst", "RATE_BURST")},
		&cli.DurationFlag{Name: "rate-interval", Value: def.RateLimit.RefillInterval, Usage: "time to refill a full burst", Sources: src("rate_limit.refill_interval", "RATE_INTERVAL")},

		// Timeouts
		&cli.DurationFlag{Name: "idle-timeout", Value: def.IdleTimeout, Usage: "disconnect silent TCP clients after this long (0 disables)", Sources: src("idle_timeout", "IDLE_TIMEOUT")},
		&cli.DurationFlag{Name: "write-timeout", Value: def.WriteTimeout, Usage: "deadline for each write to a client", Sources: src("write_timeout", "WRITE_TIMEOUT")},
		&cli.DurationFlag{Name: "shutdown-timeout", Value: def.ShutdownTimeout, Usage: "how long shutdown waits for connections to finish", Sources: src("shutdown_timeout", "SHUTDOWN_TIMEOUT")},
		&cli.DurationFlag{Name: "metrics-interval", Value: def.MetricsInterval, Usage: "log a metrics summary this often (0 disables)", Sources: src("metrics_interval", "METRICS_INTERVAL")},

		// Logging
		&cli.StringFlag{Name: "log-level", Value: "info", Usage: "log level: " + logging.LevelNames(), Sources: src("log_level", "LOG_LEVEL")},
		&cli.BoolFlag{Name: "no-color", Usage: "disable coloured banner and log output", Sources: src("no_color", "NO_COLOR")},
	}
}

// ServerConfig collects the server settings from a parsed command.
func ServerConfig(cmd *cli.Command) server.Config {
	return server.Config{
		ListenAddr:     cmd.String("listen"),
		HTTPAddr:       cmd.String("http"),
		AllowedOrigins: cmd.StringSlice("origins"),
		MaxLineLength:  int(cmd.Int("max-line-length")),
		SendBuffer:     int(cmd.Int("send-buffer")),
		RateLimit: server.RateLimitConfig{
			Burst:          int(cmd.Int("rate-burst")),
			RefillInterval: cmd.Duration("rate-interval"),
		},
		IdleTimeout:     cmd.Duration("idle-timeout"),
		WriteTimeout:    cmd.Duration("write-timeout"),
		ShutdownTimeout: cmd.Duration("shutdown-timeout"),
		MetricsInterval: cmd.Duration("metrics-interval"),
	}
}

// LoggingOptions collects the logging settings from a parsed command.
func LoggingOptions(cmd *cli.Command) logging.Options {
	return logging.Options{
		Level:   cmd.String("log-level"),
		NoColor: cmd.Bool("no-color"),
	}
}
