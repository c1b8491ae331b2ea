// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jason-s-yu/typerace/internal/auth"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	RedisAddr    string `env:"REDIS_ADDR"`
	RedisDB      int    `env:"REDIS_DB" envDefault:"0"`
	ResultsQueue string `env:"RESULTS_QUEUE" envDefault:"typerace_results"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	TokenExpireTime string `env:"TOKEN_EXPIRE_TIME" envDefault:"72h"`

	CountdownDuration   time.Duration `env:"COUNTDOWN_DURATION" envDefault:"5s"`
	RaceDuration        time.Duration `env:"RACE_DURATION" envDefault:"30s"`
	WordCount           int           `env:"WORD_COUNT" envDefault:"100"`
	CollaboratorTimeout time.Duration `env:"COLLABORATOR_TIMEOUT" envDefault:"5s"`
	EndOnAbandon        bool          `env:"END_ON_ABANDON" envDefault:"false"`
	AbandonGrace        time.Duration `env:"ABANDON_GRACE" envDefault:"5s"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	SendBuffer     int      `env:"SEND_BUFFER" envDefault:"64"`
}

// Load reads the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the race loop cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.CountdownDuration < 0 {
		errs = append(errs, errors.New("COUNTDOWN_DURATION must not be negative"))
	}
	if c.RaceDuration <= 0 {
		errs = append(errs, errors.New("RACE_DURATION must be positive"))
	}
	if c.WordCount <= 0 {
		errs = append(errs, errors.New("WORD_COUNT must be positive"))
	}
	if c.AbandonGrace < 0 {
		errs = append(errs, errors.New("ABANDON_GRACE must not be negative"))
	}
	if c.CollaboratorTimeout <= 0 {
		errs = append(errs, errors.New("COLLABORATOR_TIMEOUT must be positive"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("SEND_BUFFER must be positive"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	if _, err := auth.ParseExpiry(c.TokenExpireTime); err != nil {
		errs = append(errs, fmt.Errorf("TOKEN_EXPIRE_TIME: %w", err))
	}
	return errors.Join(errs...)
}

// TokenExpiry is the parsed TOKEN_EXPIRE_TIME; 0 means tokens never expire.
func (c *Config) TokenExpiry() time.Duration {
	d, _ := auth.ParseExpiry(c.TokenExpireTime)
	return d
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
