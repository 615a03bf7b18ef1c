// Package config loads process configuration for exwire binaries from the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/lemconn/exwire/cache"
	"github.com/lemconn/exwire/logger"
	"github.com/lemconn/exwire/metrics"
	"github.com/lemconn/exwire/option"
	"github.com/lemconn/exwire/sink"
)

// Config represents the application configuration.
type Config struct {
	App   AppConfig    `envPrefix:"EXWIRE_"`
	Redis cache.Config `envPrefix:"REDIS_"`
	Kafka sink.Config  `envPrefix:"KAFKA_"`
}

// AppConfig selects the exchange, markets and client behaviour.
type AppConfig struct {
	Exchange   string   `env:"EXCHANGE" envDefault:"binance"`
	Symbols    []string `env:"SYMBOLS" envSeparator:"," envDefault:"BTC/USDT"`
	APIKey     string   `env:"API_KEY"`
	SecretKey  string   `env:"SECRET_KEY"`
	Passphrase string   `env:"PASSPHRASE"`
	Sandbox    bool     `env:"SANDBOX" envDefault:"false"`
	Proxy      string   `env:"PROXY"`
	BaseURL    string   `env:"BASE_URL"`
	StreamURL  string   `env:"STREAM_URL"`
	Debug      bool     `env:"DEBUG" envDefault:"false"`

	RateLimit    int           `env:"RATE_LIMIT" envDefault:"0"`
	RateWindow   time.Duration `env:"RATE_WINDOW" envDefault:"1s"`
	GateTimeout  time.Duration `env:"GATE_TIMEOUT" envDefault:"30s"`
	RetryMax     int           `env:"RETRY_MAX" envDefault:"2"`
	RetryInitial time.Duration `env:"RETRY_INITIAL" envDefault:"200ms"`
	ClockSync    time.Duration `env:"CLOCK_SYNC" envDefault:"0s"`

	Depth        int           `env:"DEPTH" envDefault:"20"`
	PersistTick  time.Duration `env:"PERSIST_INTERVAL" envDefault:"1s"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
}

// Load reads the given .env files (".env" when none) if they exist, then
// parses the environment. Variables already set win over file values.
func Load(files ...string) (*Config, error) {
	_ = godotenv.Load(files...)

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse builds a Config from environ only, ignoring the process environment.
func Parse(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the exchange clients cannot default.
func (c *Config) Validate() error {
	var errs []error
	c.App.Exchange = strings.ToLower(strings.TrimSpace(c.App.Exchange))
	if c.App.Exchange == "" {
		errs = append(errs, errors.New("EXWIRE_EXCHANGE is required"))
	}
	symbols := c.App.Symbols[:0]
	for _, s := range c.App.Symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			symbols = append(symbols, s)
		}
	}
	c.App.Symbols = symbols
	if len(c.App.Symbols) == 0 {
		errs = append(errs, errors.New("EXWIRE_SYMBOLS is empty"))
	}
	if c.App.Depth < 0 {
		errs = append(errs, fmt.Errorf("EXWIRE_DEPTH must not be negative, got %d", c.App.Depth))
	}
	if c.App.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("EXWIRE_POLL_INTERVAL must be positive, got %s", c.App.PollInterval))
	}
	if c.App.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("EXWIRE_RATE_LIMIT must not be negative, got %d", c.App.RateLimit))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is empty"))
	}
	return errors.Join(errs...)
}

// ExchangeOptions converts the app section into exchange options.
func (c AppConfig) ExchangeOptions(log logger.Interface, m *metrics.Metrics) []option.Option {
	opts := []option.Option{
		option.WithAPIKey(c.APIKey),
		option.WithSecretKey(c.SecretKey),
		option.WithPassphrase(c.Passphrase),
		option.WithSandbox(c.Sandbox),
		option.WithDebug(c.Debug),
		option.WithGateTimeout(c.GateTimeout),
		option.WithRetry(c.RetryMax, c.RetryInitial),
		option.WithClockSync(c.ClockSync),
		option.WithPollInterval(c.PollInterval),
	}
	if c.Proxy != "" {
		opts = append(opts, option.WithProxy(c.Proxy))
	}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	if c.StreamURL != "" {
		opts = append(opts, option.WithStreamURL(c.StreamURL))
	}
	if c.RateLimit > 0 {
		opts = append(opts, option.WithRateLimit(c.RateLimit, c.RateWindow))
	}
	if log != nil {
		opts = append(opts, option.WithLogger(log))
	}
	if m != nil {
		opts = append(opts, option.WithMetrics(m))
	}
	return opts
}

// NewLogger builds the process logger at the configured level.
func (c AppConfig) NewLogger() (*logger.Logger, error) {
	return logger.NewLogger(logger.WithLoggingLevel(logger.Level(c.LogLevel)))
}
