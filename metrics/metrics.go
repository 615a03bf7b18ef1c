// Package metrics exposes Prometheus metrics for dispatch, order books and
// streams. A Metrics value implements the Recorder interfaces of the
// dispatch, orderbook and stream packages.
package metrics

import (
	"net/http"
	"time"

	"github.com/lemconn/exwire/orderbook"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "exwire"

// Metrics contains all Prometheus metrics for one process.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	GateWait        *prometheus.HistogramVec

	BookUpdates *prometheus.CounterVec
	BookState   *prometheus.GaugeVec

	Reconnects *prometheus.CounterVec
	Frames     *prometheus.CounterVec
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "REST requests by exchange and outcome",
		}, []string{"exchange", "outcome"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "REST request latency including the rate gate wait",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"exchange"}),

		GateWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_gate_wait_seconds",
			Help:      "Time spent waiting for a local rate gate permit",
			Buckets:   []float64{.001, .01, .1, .5, 1, 5, 30},
		}, []string{"exchange"}),

		BookUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "book_updates_total",
			Help:      "Order book updates by exchange and result",
		}, []string{"exchange", "result"}),

		BookState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "book_state",
			Help:      "Current order book state (0 uninitialized, 1 live, 2 stale, 3 closed)",
		}, []string{"exchange", "market"}),

		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_reconnects_total",
			Help:      "WebSocket reconnect attempts",
		}, []string{"exchange"}),

		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_frames_total",
			Help:      "WebSocket frames by exchange and outcome",
		}, []string{"exchange", "outcome"}),
	}
	reg.MustRegister(
		m.RequestsTotal, m.RequestDuration, m.GateWait,
		m.BookUpdates, m.BookState,
		m.Reconnects, m.Frames,
	)
	return m
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished REST request.
func (m *Metrics) ObserveRequest(exchange, outcome string, d time.Duration) {
	m.RequestsTotal.WithLabelValues(exchange, outcome).Inc()
	m.RequestDuration.WithLabelValues(exchange).Observe(d.Seconds())
}

// ObserveGateWait records a rate gate wait.
func (m *Metrics) ObserveGateWait(exchange string, d time.Duration) {
	m.GateWait.WithLabelValues(exchange).Observe(d.Seconds())
}

// ObserveBookUpdate counts an order book update.
func (m *Metrics) ObserveBookUpdate(exchange, result string) {
	m.BookUpdates.WithLabelValues(exchange, result).Inc()
}

// ObserveBookState records a book state transition.
func (m *Metrics) ObserveBookState(exchange, market string, state orderbook.State) {
	m.BookState.WithLabelValues(exchange, market).Set(float64(state))
}

// ObserveReconnect counts a reconnect attempt.
func (m *Metrics) ObserveReconnect(exchange string) {
	m.Reconnects.WithLabelValues(exchange).Inc()
}

// ObserveFrame counts a received frame.
func (m *Metrics) ObserveFrame(exchange, outcome string) {
	m.Frames.WithLabelValues(exchange, outcome).Inc()
}
