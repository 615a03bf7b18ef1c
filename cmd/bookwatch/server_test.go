package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/lemconn/exwire"
	"github.com/lemconn/exwire/logger"
	"github.com/lemconn/exwire/metrics"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/orderbook"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (http.Handler, *exwire.Client) {
	t.Helper()
	c, err := exwire.NewClient(exwire.ExchangeKraken)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	lvl := func(p, a int64) model.PriceLevel {
		return model.PriceLevel{Price: decimal.NewFromInt(p), Amount: decimal.NewFromInt(a)}
	}
	c.Engine().Apply(orderbook.Update{
		Market:    "BTC/USD",
		Snapshot:  true,
		Bids:      []model.PriceLevel{lvl(100, 1), lvl(99, 2), lvl(98, 3)},
		Asks:      []model.PriceLevel{lvl(101, 1), lvl(102, 2)},
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})

	s := &server{books: c, symbols: []string{"BTC/USD", "ETH/USD"}, depth: 2, log: logger.NewNop()}
	return newRouter(s, metrics.New().Handler()), c
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestBook(t *testing.T) {
	h, _ := newTestRouter(t)

	for _, path := range []string{"/books/BTC-USD", "/books/btc_usd", "/books/BTC%2FUSD"} {
		rec := get(t, h, path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var resp bookResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), path)
		assert.Equal(t, "live", resp.State)
		assert.Equal(t, exwire.ExchangeKraken, resp.Book.Exchange)
		assert.Equal(t, "BTC/USD", resp.Book.Symbol)
		assert.Len(t, resp.Book.Bids, 2)
		assert.Len(t, resp.Book.Asks, 2)
	}

	var resp bookResponse
	rec := get(t, h, "/books/BTC-USD?depth=1")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Book.Bids, 1)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/books/BTC-USD?depth=x").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/books/ETH-USD").Code)
}

func TestHealth(t *testing.T) {
	h, c := newTestRouter(t)

	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, exwire.ExchangeKraken, resp.Exchange)
	assert.Equal(t, "live", resp.Books["BTC/USD"])
	assert.Equal(t, "uninitialized", resp.Books["ETH/USD"])

	c.Engine().Apply(orderbook.Update{
		Market:   "ETH/USD",
		Snapshot: true,
		Bids:     []model.PriceLevel{{Price: decimal.NewFromInt(3000), Amount: decimal.NewFromInt(1)}},
	})
	rec = get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.ObserveReconnect(exwire.ExchangeOKX)
	h := newRouter(&server{log: logger.NewNop()}, m.Handler())

	rec := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `stream_reconnects_total{exchange="okx"} 1`)
}

func TestParseSymbol(t *testing.T) {
	for raw, want := range map[string]string{
		"BTC-USDT":   "BTC/USDT",
		"eth_usd":    "ETH/USD",
		"BTC%2FUSDT": "BTC/USDT",
		" sol-usdc ": "SOL/USDC",
	} {
		got, err := parseSymbol(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got, raw)
	}
	_, err := parseSymbol("%zz")
	assert.Error(t, err)
}
