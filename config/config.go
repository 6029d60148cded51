/*
Package config loads application configuration from the environment.

PURPOSE:
  Nested config structs populated from environment variables via
  caarlos0/env, with defaults suitable for local development. Command-line
  flags in cmd/server may override individual values.

ENVIRONMENT VARIABLES:
  ENV          Deployment environment label (default: dev)
  HTTP_PORT    HTTP listen port (default: 8080)
  DB_PATH      SQLite database path (default: settlement.db)
  LOG_LEVEL    debug | info | warn | error (default: info)
  LOG_FORMAT   text | json (default: text)

SEE ALSO:
  - cmd/server/main.go: The only consumer
*/
package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config aggregates all configuration sections for the application.
type Config struct {
	Env  string `env:"ENV" envDefault:"dev"`
	HTTP HTTP   `envPrefix:"HTTP_"`
	DB   DB     `envPrefix:"DB_"`
	Log  Logger `envPrefix:"LOG_"`
}

// HTTP configures the HTTP server.
type HTTP struct {
	Port int `env:"PORT" envDefault:"8080"`
}

// DB configures the SQLite store.
type DB struct {
	Path string `env:"PATH" envDefault:"settlement.db"`
}

// Logger configures the structured logger.
type Logger struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"text"`
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// NewLogger builds a slog.Logger from the logging config.
func (c Logger) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.slogLevel()}
	var handler slog.Handler
	if strings.EqualFold(c.Format, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func (c Logger) slogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
