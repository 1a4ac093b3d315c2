package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks the flusher and the deltas waiting for it.
//
// Metrics:
//   - tollbooth_flushes_total: flush attempts by result
//   - tollbooth_flush_duration_seconds: time per flush including retries
//   - tollbooth_flushed_usd_total: spend written to the durable store
//   - tollbooth_pending_delta_usd: spend not yet written
//   - tollbooth_pending_delta_users: users with unwritten spend
type LedgerMetrics struct {
	flushes       *prometheus.CounterVec
	flushDuration prometheus.Histogram
	flushed       prometheus.Counter
	pendingUSD    prometheus.Gauge
	pendingUsers  prometheus.Gauge
}

// NewLedgerMetrics creates and registers ledger metrics with the provided registry.
func NewLedgerMetrics(namespace string, registry *prometheus.Registry) *LedgerMetrics {
	lm := &LedgerMetrics{
		flushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flushes_total",
				Help:      "Total number of flushes to the durable store by result",
			},
			[]string{"result"},
		),

		flushDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "flush_duration_seconds",
				Help:      "Duration of flushes in seconds, including retries",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
			},
		),

		flushed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flushed_usd_total",
				Help:      "Total spend written to the durable store in USD",
			},
		),

		pendingUSD: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_delta_usd",
				Help:      "Spend recorded in memory but not yet flushed, in USD",
			},
		),

		pendingUsers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_delta_users",
				Help:      "Users with spend not yet flushed",
			},
		),
	}

	registry.MustRegister(lm.flushes, lm.flushDuration, lm.flushed, lm.pendingUSD, lm.pendingUsers)
	return lm
}
