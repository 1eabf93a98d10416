package config

import (
	"strings"

	"github.com/Abraxas-365/idp-mailer/pkg/errx"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var configErrors = errx.NewRegistry("CONFIG")

var (
	ErrLoad = configErrors.Register("LOAD_FAILED", errx.TypeValidation, "Failed to load configuration from environment")
)

// Config is the root application configuration.
type Config struct {
	Email EmailConfig
}

// Load reads a .env file when one exists and parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, configErrors.NewWithCause(ErrLoad, err)
	}

	cfg.Email.Provider = strings.ToLower(strings.TrimSpace(cfg.Email.Provider))
	return cfg, nil
}
