package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lemconn/exwire/model"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, ttl time.Duration) (*SnapshotStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSnapshotStore(client, ttl, nil), mr
}

func view() model.OrderBookView {
	return model.OrderBookView{
		Exchange:  "okx",
		Symbol:    "BTC/USDT",
		Bids:      []model.PriceLevel{{Price: decimal.RequireFromString("64000.1"), Amount: decimal.RequireFromString("0.5")}},
		Asks:      []model.PriceLevel{{Price: decimal.RequireFromString("64000.2"), Amount: decimal.NewFromInt(2)}},
		Sequence:  42,
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSnapshotStore_SaveLoad(t *testing.T) {
	s, mr := newStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, view()))
	assert.True(t, mr.Exists("book:okx:BTC/USDT"))
	assert.Equal(t, time.Minute, mr.TTL("book:okx:BTC/USDT"))

	got, err := s.Load(ctx, "okx", "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Sequence)
	require.Len(t, got.Bids, 1)
	assert.True(t, got.Bids[0].Price.Equal(decimal.RequireFromString("64000.1")))
	assert.True(t, got.Timestamp.Equal(view().Timestamp))
}

func TestSnapshotStore_Expiry(t *testing.T) {
	s, mr := newStore(t, 30*time.Second)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, view()))

	mr.FastForward(31 * time.Second)
	_, err := s.Load(ctx, "okx", "BTC/USDT")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotStore_DeleteAndValidation(t *testing.T) {
	s, _ := newStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, view()))
	require.NoError(t, s.Delete(ctx, "okx", "BTC/USDT"))
	_, err := s.Load(ctx, "okx", "BTC/USDT")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete(ctx, "okx", "BTC/USDT"))

	v := view()
	v.Exchange = ""
	assert.Error(t, s.Save(ctx, v))
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewClient(context.Background(), Config{URL: "redis://" + mr.Addr() + "/0"})
	require.NoError(t, err)
	_ = c.Close()

	_, err = NewClient(context.Background(), Config{URL: "://bad"})
	assert.Error(t, err)
}
