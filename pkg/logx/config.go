package logx

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Format represents the output format
type Format string

const (
	// FormatConsole outputs colored console logs (default)
	FormatConsole Format = "console"
	// FormatJSON outputs JSON formatted logs
	FormatJSON Format = "json"
	// FormatCloudWatch outputs CloudWatch compatible JSON
	FormatCloudWatch Format = "cloudwatch"
)

// Config holds the logger configuration
type Config struct {
	Level        Level  `env:"LOG_LEVEL" envDefault:"info"`
	Format       Format `env:"LOG_FORMAT" envDefault:"console"`
	EnableColors bool   `env:"LOG_COLOR" envDefault:"true"`
	EnableCaller bool   `env:"LOG_CALLER" envDefault:"false"`

	// TimeFormat accepts a Go layout or one of RFC3339, RFC3339NANO,
	// UNIX, UNIXMILLI.
	TimeFormat string `env:"LOG_TIME_FORMAT" envDefault:"RFC3339"`

	EnableTimestamp bool

	// Output is where to write logs (defaults to os.Stdout)
	Output io.Writer
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Level:           LevelInfo,
		Format:          FormatConsole,
		EnableColors:    true,
		EnableTimestamp: true,
		TimeFormat:      time.RFC3339,
		Output:          os.Stdout,
	}
}

// LoadFromEnv loads configuration from LOG_* environment variables.
// Parse failures fall back to the defaults.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()
	if err := env.Parse(cfg); err != nil {
		return DefaultConfig()
	}
	cfg.Format = Format(strings.ToLower(string(cfg.Format)))
	cfg.TimeFormat = resolveTimeFormat(cfg.TimeFormat)
	return cfg
}

func resolveTimeFormat(name string) string {
	switch strings.ToUpper(name) {
	case "", "RFC3339":
		return time.RFC3339
	case "RFC3339NANO":
		return time.RFC3339Nano
	case "RFC822":
		return time.RFC822
	case "UNIX":
		return "unix"
	case "UNIXMILLI":
		return "unixmilli"
	default:
		return name
	}
}
