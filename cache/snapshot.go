// Package cache persists order book views to Redis so other processes can
// read the latest book without their own stream.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/lemconn/exwire/logger"
	"github.com/lemconn/exwire/model"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Load when no snapshot is cached.
var ErrNotFound = errors.New("snapshot not found")

// Config holds the Redis connection settings.
type Config struct {
	URL      string        `env:"URL" envDefault:"redis://localhost:6379/0"`
	Password string        `env:"PASSWORD"`
	TTL      time.Duration `env:"TTL" envDefault:"2m"`
	Enabled  bool          `env:"ENABLED" envDefault:"false"`
}

// NewClient parses cfg.URL and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Key is the cache key of one book: book:{exchange}:{symbol}.
func Key(exchange, symbol string) string {
	return "book:" + exchange + ":" + symbol
}

// SnapshotStore writes and reads book views as JSON with a TTL.
type SnapshotStore struct {
	client redis.Cmdable
	ttl    time.Duration
	log    logger.Interface
}

// NewSnapshotStore creates a store. ttl <= 0 keeps entries forever.
func NewSnapshotStore(client redis.Cmdable, ttl time.Duration, log logger.Interface) *SnapshotStore {
	if log == nil {
		log = logger.NewNop()
	}
	return &SnapshotStore{client: client, ttl: ttl, log: log}
}

// Save stores v under Key(v.Exchange, v.Symbol).
func (s *SnapshotStore) Save(ctx context.Context, v model.OrderBookView) error {
	if v.Exchange == "" || v.Symbol == "" {
		return fmt.Errorf("snapshot needs exchange and symbol, got %q %q", v.Exchange, v.Symbol)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	key := Key(v.Exchange, v.Symbol)
	if err := s.client.Set(ctx, key, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	s.log.DebugContext(ctx, "snapshot cached",
		logger.NewField("key", key),
		logger.NewField("bids", len(v.Bids)),
		logger.NewField("asks", len(v.Asks)),
	)
	return nil
}

// Load returns the cached view, or ErrNotFound.
func (s *SnapshotStore) Load(ctx context.Context, exchange, symbol string) (model.OrderBookView, error) {
	key := Key(exchange, symbol)
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.OrderBookView{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return model.OrderBookView{}, fmt.Errorf("redis GET %s: %w", key, err)
	}
	var v model.OrderBookView
	if err := json.Unmarshal(b, &v); err != nil {
		return model.OrderBookView{}, fmt.Errorf("unmarshal snapshot %s: %w", key, err)
	}
	return v, nil
}

// Delete removes a cached view; a missing key is not an error.
func (s *SnapshotStore) Delete(ctx context.Context, exchange, symbol string) error {
	return s.client.Del(ctx, Key(exchange, symbol)).Err()
}
