// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Simulation metrics
	TicksTotal      prometheus.Counter
	TradesGenerated *prometheus.CounterVec
	RugPullsFired   *prometheus.CounterVec
	CurrentPrice    prometheus.Gauge
	TickVolume      prometheus.Histogram

	// Stream metrics
	StreamClients prometheus.Gauge

	// Storage metrics
	CandlesArchived prometheus.Counter
	TokensCreated   prometheus.Counter

	// Price feed metrics
	QuoteRefreshes *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "saveme"
	}

	return &Metrics{
		TicksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "ticks_total",
			Help:      "Total number of simulation ticks",
		}),
		TradesGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_generated_total",
			Help:      "Total number of trades generated by side",
		}, []string{"side"}),
		RugPullsFired: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "rug_pulls_fired_total",
			Help:      "Total number of rug pulls fired by trigger source",
		}, []string{"source"}),
		CurrentPrice: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "current_price",
			Help:      "Current simulated token price",
		}),
		TickVolume: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "tick_volume",
			Help:      "Trade volume per tick",
			Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000},
		}),

		StreamClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Number of connected WebSocket clients",
		}),

		CandlesArchived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "candles_archived_total",
			Help:      "Total number of candles archived to the candle store",
		}),
		TokensCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "tokens_created_total",
			Help:      "Total number of tokens inserted into the registry",
		}),

		QuoteRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricefeed",
			Name:      "quote_refreshes_total",
			Help:      "Total number of quote refreshes by outcome",
		}, []string{"outcome"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTick records one simulation tick and its market outcome.
func (m *Metrics) RecordTick(price, volume float64) {
	m.TicksTotal.Inc()
	m.CurrentPrice.Set(price)
	m.TickVolume.Observe(volume)
}

// RecordTrade increments the trade counter for a side.
func (m *Metrics) RecordTrade(side string) {
	m.TradesGenerated.WithLabelValues(side).Inc()
}

// RecordRugPull increments the rug-pull counter. source is "manual"
// or "scheduled".
func (m *Metrics) RecordRugPull(source string) {
	m.RugPullsFired.WithLabelValues(source).Inc()
}
