package logging

import (
	"log/slog"

	"github.com/caarlos0/env/v10"
)

// loggingConfig holds the logger settings read from the environment.
type loggingConfig struct {
	Level slog.Level `env:"LOG_LEVEL" envDefault:"info"`
}

// newLoggingConfig reads LOG_LEVEL. An unparsable level leaves the logger at info.
func newLoggingConfig() *loggingConfig {
	logCfg := &loggingConfig{
		Level: slog.LevelInfo,
	}

	_ = env.Parse(logCfg) // A bad level must not stop the monitor from starting.

	return logCfg
}
