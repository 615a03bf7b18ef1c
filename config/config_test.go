package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lemconn/exwire/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "binance", cfg.App.Exchange)
	assert.Equal(t, []string{"BTC/USDT"}, cfg.App.Symbols)
	assert.Equal(t, 20, cfg.App.Depth)
	assert.Equal(t, time.Second, cfg.App.RateWindow)
	assert.Equal(t, 200*time.Millisecond, cfg.App.RetryInitial)
	assert.Equal(t, ":8080", cfg.App.HTTPAddr)

	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "orderbooks", cfg.Kafka.Topic)
}

func TestParse_PrefixedSections(t *testing.T) {
	cfg, err := Parse(map[string]string{
		"EXWIRE_EXCHANGE":   " OKX ",
		"EXWIRE_SYMBOLS":    "btc/usdt, eth/usdt,,",
		"EXWIRE_RATE_LIMIT": "5",
		"EXWIRE_SANDBOX":    "true",
		"REDIS_ENABLED":     "true",
		"REDIS_URL":         "redis://cache:6379/1",
		"REDIS_TTL":         "30s",
		"KAFKA_ENABLED":     "true",
		"KAFKA_BROKERS":     "k1:9092,k2:9092",
		"KAFKA_TOPIC":       "books",
	})
	require.NoError(t, err)

	assert.Equal(t, "okx", cfg.App.Exchange)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, cfg.App.Symbols)
	assert.Equal(t, 5, cfg.App.RateLimit)
	assert.True(t, cfg.App.Sandbox)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.Equal(t, 30*time.Second, cfg.Redis.TTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "books", cfg.Kafka.Topic)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse(map[string]string{"EXWIRE_SYMBOLS": " , "})
	assert.ErrorContains(t, err, "EXWIRE_SYMBOLS")

	_, err = Parse(map[string]string{"EXWIRE_DEPTH": "-1", "EXWIRE_RATE_LIMIT": "-2"})
	assert.ErrorContains(t, err, "EXWIRE_DEPTH")
	assert.ErrorContains(t, err, "EXWIRE_RATE_LIMIT")

	_, err = Parse(map[string]string{"EXWIRE_RATE_WINDOW": "soon"})
	assert.Error(t, err)

	_, err = Parse(map[string]string{"EXWIRE_POLL_INTERVAL": "0s"})
	assert.ErrorContains(t, err, "EXWIRE_POLL_INTERVAL")
}

func TestAppConfig_ExchangeOptions(t *testing.T) {
	cfg, err := Parse(map[string]string{
		"EXWIRE_API_KEY":     "k",
		"EXWIRE_SECRET_KEY":  "s",
		"EXWIRE_BASE_URL":    "http://localhost:1234",
		"EXWIRE_RATE_LIMIT":  "3",
		"EXWIRE_RATE_WINDOW": "2s",
	})
	require.NoError(t, err)

	o := option.Apply(cfg.App.ExchangeOptions(nil, nil)...)
	assert.Equal(t, "k", o.APIKey)
	assert.Equal(t, "s", o.SecretKey)
	assert.Equal(t, "http://localhost:1234", o.BaseURL)
	assert.Equal(t, 3, o.RateLimit)
	assert.Equal(t, 2*time.Second, o.RateWindow)
	assert.Equal(t, 2, o.RetryMax)
	assert.Equal(t, 2*time.Second, o.PollInterval)
	assert.NotNil(t, o.Logger)
	assert.Nil(t, o.Metrics)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("EXWIRE_EXCHANGE=kraken\nEXWIRE_SYMBOLS=BTC/USD\n"), 0o600))
	// variables already present in the environment take precedence
	t.Setenv("EXWIRE_SYMBOLS", "ETH/USD")
	t.Cleanup(func() { _ = os.Unsetenv("EXWIRE_EXCHANGE") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "kraken", cfg.App.Exchange)
	assert.Equal(t, []string{"ETH/USD"}, cfg.App.Symbols)
}
