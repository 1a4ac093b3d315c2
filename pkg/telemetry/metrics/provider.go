package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ProviderMetrics tracks upstream provider calls.
//
// Metrics:
//   - tollbooth_upstream_requests_total: calls by provider and outcome
//   - tollbooth_upstream_latency_seconds: time to upstream response headers
//   - tollbooth_provider_health: passive health (1=healthy, 0=unhealthy)
//   - tollbooth_route_matches_total: routing decisions by provider and route pattern
type ProviderMetrics struct {
	routes   *prometheus.CounterVec
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	health   *prometheus.GaugeVec
}

// NewProviderMetrics creates and registers provider metrics with the provided registry.
func NewProviderMetrics(namespace string, registry *prometheus.Registry) *ProviderMetrics {
	pm := &ProviderMetrics{
		routes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "route_matches_total",
				Help:      "Routing decisions by provider and matching route pattern",
			},
			[]string{"provider", "pattern"},
		),

		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Total number of upstream provider calls by outcome",
			},
			[]string{"provider", "outcome"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_latency_seconds",
				Help:      "Time until the upstream provider returned response headers",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),

		health: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "provider_health",
				Help:      "Provider health status (1=healthy, 0=unhealthy)",
			},
			[]string{"provider"},
		),
	}

	registry.MustRegister(pm.routes, pm.requests, pm.latency, pm.health)
	return pm
}

// RecordCall records one upstream call. outcome is "ok" or an error hint.
func (pm *ProviderMetrics) RecordCall(provider, outcome string, latencySeconds float64) {
	pm.requests.WithLabelValues(provider, outcome).Inc()
	pm.latency.WithLabelValues(provider).Observe(latencySeconds)
}

// UpdateHealth sets the health gauge of a provider.
func (pm *ProviderMetrics) UpdateHealth(provider string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	pm.health.WithLabelValues(provider).Set(value)
}
