package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/lemconn/exwire/model"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w, nil)
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), model.OrderBookView{
		Exchange:  "binance",
		Symbol:    "ETH/USDT",
		Bids:      []model.PriceLevel{{Price: decimal.NewFromInt(3000), Amount: decimal.NewFromInt(1)}},
		Timestamp: ts,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "binance:ETH/USDT", string(msg.Key))
	assert.Equal(t, ts, msg.Time)
	assert.Equal(t, "exchange", msg.Headers[0].Key)

	var got model.OrderBookView
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "ETH/USDT", got.Symbol)
	require.Len(t, got.Bids, 1)
	assert.True(t, got.Bids[0].Price.Equal(decimal.NewFromInt(3000)))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewKafkaPublisher(&fakeWriter{err: boom}, nil)
	err := p.Publish(context.Background(), model.OrderBookView{Exchange: "okx", Symbol: "BTC/USDT"})
	assert.ErrorIs(t, err, boom)
}

func TestNewWriter(t *testing.T) {
	w := NewWriter(Config{Brokers: []string{"a:9092", "b:9092"}, Topic: "books", BatchTimeout: 10 * time.Millisecond})
	assert.Equal(t, "books", w.Topic)
	assert.Equal(t, 10*time.Millisecond, w.BatchTimeout)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
	assert.NoError(t, w.Close())
}
