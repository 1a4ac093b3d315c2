package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AdmissionMetrics tracks admission decisions and settled spend.
//
// Metrics:
//   - tollbooth_admissions_total: admission outcomes
//   - tollbooth_reservation_ceiling_usd: distribution of reserved ceilings
//   - tollbooth_settled_cost_usd_total: charged spend by provider and model
//   - tollbooth_tokens_total: settled tokens by provider, model and direction
//   - tollbooth_ceiling_exceeded_total: settles that cost more than reserved
//   - tollbooth_releases_total: reservations returned without a charge
//   - tollbooth_invariant_violations_total: settle or release on a missing hold
type AdmissionMetrics struct {
	admissions      *prometheus.CounterVec
	ceiling         prometheus.Histogram
	settledCost     *prometheus.CounterVec
	tokens          *prometheus.CounterVec
	ceilingExceeded *prometheus.CounterVec
	releases        *prometheus.CounterVec
	violations      *prometheus.CounterVec
}

// NewAdmissionMetrics creates and registers admission metrics with the provided registry.
func NewAdmissionMetrics(namespace string, registry *prometheus.Registry) *AdmissionMetrics {
	am := &AdmissionMetrics{
		admissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admissions_total",
				Help:      "Total number of admission decisions by outcome",
			},
			[]string{"outcome"},
		),

		ceiling: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reservation_ceiling_usd",
				Help:      "Worst-case cost reserved per admitted request in USD",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // $0.0001 to ~$26
			},
		),

		settledCost: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settled_cost_usd_total",
				Help:      "Total cost charged to users in USD",
			},
			[]string{"provider", "model"},
		),

		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_total",
				Help:      "Total settled tokens by direction",
			},
			[]string{"provider", "model", "direction"},
		),

		ceilingExceeded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ceiling_exceeded_total",
				Help:      "Settles whose actual cost exceeded the reserved ceiling",
			},
			[]string{"model"},
		),

		releases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "releases_total",
				Help:      "Reservations released without a charge, by reason",
			},
			[]string{"provider", "reason"},
		),

		violations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invariant_violations_total",
				Help:      "Ledger invariant violations (settle or release on a missing hold)",
			},
			[]string{"stage"},
		),
	}

	registry.MustRegister(
		am.admissions,
		am.ceiling,
		am.settledCost,
		am.tokens,
		am.ceilingExceeded,
		am.releases,
		am.violations,
	)
	return am
}
