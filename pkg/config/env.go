package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig carries process-level settings taken from the environment.
// DatabaseDSN may be empty: the bot then falls back to the in-memory
// response store, which is intended for local development only.
type AppConfig struct {
	TelegramToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	DatabaseDSN   string `envconfig:"DATABASE_DSN"`
	HTTPAddr      string `envconfig:"HTTP_ADDR" default:":8080"`
	ConfigPath    string `envconfig:"FORM_CONFIG" default:"form_config.yaml"`
	PollTimeout   int    `envconfig:"POLL_TIMEOUT" default:"60"`
}

// LoadEnv reads AppConfig from the process environment.
func LoadEnv() (*AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment configuration: %w", err)
	}
	if cfg.PollTimeout <= 0 {
		return nil, fmt.Errorf("invalid POLL_TIMEOUT: %d", cfg.PollTimeout)
	}
	return &cfg, nil
}
