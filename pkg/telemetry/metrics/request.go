package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks inbound HTTP traffic.
//
// Metrics:
//   - tollbooth_http_requests_total: requests by route and status code
//   - tollbooth_http_request_duration_seconds: end-to-end handler latency
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewRequestMetrics creates and registers request metrics with the provided registry.
func NewRequestMetrics(namespace string, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				// LLM calls run from ~100ms to minutes for long streams.
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"route"},
		),
	}

	registry.MustRegister(rm.requestsTotal, rm.requestDuration)
	return rm
}

// Record records one completed request.
func (rm *RequestMetrics) Record(route, status string, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(route, status).Inc()
	rm.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
