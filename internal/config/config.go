// Package config loads daemon configuration from the environment. The
// provider credential lives here and is handed to the constructed client
// once; nothing reads it from ambient state afterwards.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full daemon configuration.
type Config struct {
	// Provider selects the generative backend: "gemini" or "claude".
	Provider string `env:"DEUSEX_PROVIDER" envDefault:"gemini"`

	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`

	// Model overrides; empty selects each client's default.
	TextModel  string `env:"DEUSEX_TEXT_MODEL"`
	ImageModel string `env:"DEUSEX_IMAGE_MODEL"`

	// Storage: "sqlite" or "redis".
	StoreBackend  string `env:"DEUSEX_STORE" envDefault:"sqlite"`
	DBPath        string `env:"DEUSEX_DB_PATH" envDefault:"data/deusex.db"`
	RedisAddr     string `env:"DEUSEX_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"DEUSEX_REDIS_PASSWORD"`
	RedisPrefix   string `env:"DEUSEX_REDIS_PREFIX" envDefault:"deusex"`

	// HTTP API.
	Port     int    `env:"DEUSEX_PORT" envDefault:"8080"`
	AdminKey string `env:"DEUSEX_ADMIN_KEY"`

	// Rhythm.
	SecondsPerYear  int           `env:"DEUSEX_SECONDS_PER_YEAR" envDefault:"30"`
	DecisionTimeout time.Duration `env:"DEUSEX_DECISION_TIMEOUT" envDefault:"30s"`

	// On total retry exhaustion the year holds by default; set true to
	// treat a lost turn as time that still passed.
	AdvanceYearOnFailure bool `env:"DEUSEX_ADVANCE_YEAR_ON_FAILURE" envDefault:"false"`
}

// Load parses the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Provider != "gemini" && cfg.Provider != "claude" {
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	if cfg.StoreBackend != "sqlite" && cfg.StoreBackend != "redis" {
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	return cfg, nil
}
