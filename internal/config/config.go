package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	RawLogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel    slog.Level

	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`

	// Scenes kept ready per session, and how often the client asks for more.
	PrefetchTarget   int           `env:"PREFETCH_TARGET" envDefault:"8"`
	PrefetchInterval time.Duration `env:"PREFETCH_INTERVAL" envDefault:"4s"`
	PrefetchWorkers  int           `env:"PREFETCH_WORKERS" envDefault:"2"`

	// ContentFile replaces the built-in content bank when set.
	ContentFile string `env:"CONTENT_FILE"`

	// StreamDelay paces chunks of the scene stream.
	StreamDelay time.Duration `env:"STREAM_DELAY" envDefault:"40ms"`

	APIBaseURL  string        `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.RawLogLevel)

	if cfg.PrefetchTarget < 1 {
		return nil, fmt.Errorf("PREFETCH_TARGET must be at least 1, got %d", cfg.PrefetchTarget)
	}
	if cfg.PrefetchWorkers < 1 {
		return nil, fmt.Errorf("PREFETCH_WORKERS must be at least 1, got %d", cfg.PrefetchWorkers)
	}
	if cfg.PrefetchInterval <= 0 {
		return nil, fmt.Errorf("PREFETCH_INTERVAL must be positive, got %s", cfg.PrefetchInterval)
	}
	return &cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
