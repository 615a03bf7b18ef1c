package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lemconn/exwire/dispatch"
	"github.com/lemconn/exwire/orderbook"
	"github.com/lemconn/exwire/stream"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ dispatch.Recorder  = (*Metrics)(nil)
	_ orderbook.Recorder = (*Metrics)(nil)
	_ stream.Recorder    = (*Metrics)(nil)
)

func TestMetrics_Record(t *testing.T) {
	m := New()
	m.ObserveRequest("okx", "ok", 20*time.Millisecond)
	m.ObserveRequest("okx", "ok", 30*time.Millisecond)
	m.ObserveRequest("okx", "rate_limit", time.Millisecond)
	m.ObserveBookUpdate("okx", "applied")
	m.ObserveBookState("okx", "BTC/USDT", orderbook.Stale)
	m.ObserveReconnect("okx")
	m.ObserveFrame("okx", "dropped")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("okx", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("okx", "rate_limit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BookUpdates.WithLabelValues("okx", "applied")))
	assert.Equal(t, float64(orderbook.Stale), testutil.ToFloat64(m.BookState.WithLabelValues("okx", "BTC/USDT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reconnects.WithLabelValues("okx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Frames.WithLabelValues("okx", "dropped")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveGateWait("binance", 5*time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `exwire_rate_gate_wait_seconds_count{exchange="binance"} 1`))
}
