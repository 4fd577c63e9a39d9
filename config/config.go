package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env      string `env:"ENV"       envDefault:"development" validate:"required,oneof=development production"`
	Port     string `env:"PORT"      envDefault:"8080"        validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"        validate:"oneof=debug info warn error"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	JWTSecret          string        `env:"JWT_SECRET,required"   validate:"required,min=32"`
	JWTExpiresIn       time.Duration `env:"JWT_EXPIRES_IN"        envDefault:"2160h" validate:"min=1m"`
	JWTCookieExpiresIn int           `env:"JWT_COOKIE_EXPIRES_IN" envDefault:"90"    validate:"min=1,max=365"`
	PasswordResetTTL   time.Duration `env:"PASSWORD_RESET_TTL"    envDefault:"10m"   validate:"min=1m"`

	ResendAPIKey  string `env:"RESEND_API_KEY"  validate:"required_if=Env production"`
	ResendFrom    string `env:"RESEND_FROM"     validate:"required_if=Env production"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080" validate:"required,url"`

	// Rate limiting is disabled when RedisURL is empty.
	RedisURL        string        `env:"REDIS_URL"`
	RateLimitMax    int           `env:"RATE_LIMIT_MAX"    envDefault:"100" validate:"min=1"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1h"  validate:"min=1s"`

	ResetReaperSpec string `env:"RESET_REAPER_SPEC" envDefault:"@every 5m" validate:"required"`
}

// Load reads the environment (plus an optional .env file in development),
// then validates the result. The returned Config is treated as read-only.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

func (c *Config) CookieTTL() time.Duration {
	return time.Duration(c.JWTCookieExpiresIn) * 24 * time.Hour
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
