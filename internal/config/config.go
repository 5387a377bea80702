// Package config holds process-level settings, read from the environment
// after any .env file has been loaded.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DBPath      string `env:"POLYCHAT_DB_PATH" envDefault:"polychat.db"`
	LogSQL      bool   `env:"POLYCHAT_LOG_SQL" envDefault:"false"`
	MaxAttempts int    `env:"POLYCHAT_MAX_ATTEMPTS" envDefault:"3"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
