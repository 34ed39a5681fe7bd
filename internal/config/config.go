// Package config loads runtime configuration from environment variables.
package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all environment-driven settings for the service.
// Command-line flags may override individual fields after parsing.
type Config struct {
	// Telegram bot credentials.
	TelegramBotToken    string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramBotUsername string `env:"TELEGRAM_BOT_USERNAME"`

	// Google OAuth client credentials.
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`

	// OAuthRedirectURL is the externally reachable URL of the callback
	// endpoint, registered with the Google OAuth client.
	OAuthRedirectURL string `env:"OAUTH_REDIRECT_URL" envDefault:"http://localhost:8080/callback"`

	// CallbackAddr is the listen address of the OAuth callback server.
	CallbackAddr string `env:"CALLBACK_ADDR" envDefault:":8080"`

	// MCPAddr is the listen address of the streamable HTTP tool server.
	// Empty disables the tool server.
	MCPAddr string `env:"MCP_ADDR"`

	// MetricsAddr is the listen address of the Prometheus metrics server.
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`

	// Debug enables debug-level logging.
	Debug bool `env:"DEBUG"`
}

// Load parses configuration from the process environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Validate checks that all settings required to serve are present.
// It is called after flag overrides have been applied.
func (c *Config) Validate() error {
	if c.TelegramBotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if c.GoogleClientID == "" {
		return errors.New("GOOGLE_CLIENT_ID is required")
	}
	if c.GoogleClientSecret == "" {
		return errors.New("GOOGLE_CLIENT_SECRET is required")
	}
	if c.OAuthRedirectURL == "" {
		return errors.New("OAUTH_REDIRECT_URL is required")
	}
	if c.CallbackAddr == "" {
		return errors.New("CALLBACK_ADDR is required")
	}
	return nil
}
