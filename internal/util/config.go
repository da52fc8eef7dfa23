package util

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime settings. Values come from the environment with the
// FABLEWEAVER prefix; command-line flags override them.
type Config struct {
	DSN            string        `envconfig:"DATABASE_URL"`
	APIBaseURL     string        `envconfig:"API_BASE_URL" default:"http://localhost:8000"`
	APITimeout     time.Duration `envconfig:"API_TIMEOUT" default:"30s"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	TextDensity    string        `envconfig:"TEXT_DENSITY" default:"standard"` // concise|standard|rich
	Theme          string        `envconfig:"THEME" default:"catppuccin"`
	RetryDelay     time.Duration `envconfig:"RETRY_DELAY" default:"1s"`
	ServerCooldown time.Duration `envconfig:"SERVER_COOLDOWN" default:"5s"`
	AutoRetryDelay time.Duration `envconfig:"AUTO_RETRY_DELAY" default:"2s"`
}

// Load reads .env if present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("FABLEWEAVER", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
