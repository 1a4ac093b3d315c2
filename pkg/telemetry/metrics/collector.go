package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tollbooth-hq/tollbooth/pkg/config"
	"tollbooth-hq/tollbooth/pkg/money"
	"tollbooth-hq/tollbooth/pkg/usage"
)

// otherModel replaces model labels once the cardinality limit is reached.
const otherModel = "other"

// Collector owns every Tollbooth metric. It satisfies the observer
// interfaces of the admission pipeline and the flusher, so those packages
// never import Prometheus.
//
// Model names come from callers, and wildcard routes accept any name, so
// model labels go through a CardinalityLimiter.
type Collector struct {
	enabled   bool
	namespace string
	registry  *prometheus.Registry

	requestMetrics   *RequestMetrics
	providerMetrics  *ProviderMetrics
	admissionMetrics *AdmissionMetrics
	ledgerMetrics    *LedgerMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a collector registered on registry. If registry is
// nil a fresh one is created.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	mux.Handle("/metrics", collector.Handler())
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = config.DefaultMetricsNamespace
	}
	enabled := cfg.Enabled == nil || *cfg.Enabled

	return &Collector{
		enabled:            enabled,
		namespace:          namespace,
		registry:           registry,
		requestMetrics:     NewRequestMetrics(namespace, registry),
		providerMetrics:    NewProviderMetrics(namespace, registry),
		admissionMetrics:   NewAdmissionMetrics(namespace, registry),
		ledgerMetrics:      NewLedgerMetrics(namespace, registry),
		cardinalityLimiter: NewCardinalityLimiter(1000),
	}
}

// Enabled reports whether metrics are recorded.
func (c *Collector) Enabled() bool {
	return c.enabled
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RegisterLedgerSize exposes tollbooth_ledger_accounts, read from size at
// scrape time.
func (c *Collector) RegisterLedgerSize(size func() int) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: c.namespace,
			Name:      "ledger_accounts",
			Help:      "Number of user accounts held in memory",
		},
		func() float64 { return float64(size()) },
	))
}

// RecordHTTPRequest records one handled HTTP request.
func (c *Collector) RecordHTTPRequest(route, status string, duration time.Duration) {
	if !c.enabled {
		return
	}
	c.requestMetrics.Record(route, status, duration)
}

// unroutedLabel is the provider and pattern label of models no route matched.
const unroutedLabel = "none"

// ObserveRoute implements the router observer. Patterns come from
// configuration, so the label set stays bounded.
func (c *Collector) ObserveRoute(provider, pattern string) {
	if !c.enabled {
		return
	}
	if provider == "" {
		provider, pattern = unroutedLabel, unroutedLabel
	}
	c.providerMetrics.routes.WithLabelValues(provider, pattern).Inc()
}

// RecordUpstream records one upstream call.
func (c *Collector) RecordUpstream(provider, outcome string, latency time.Duration, healthy bool) {
	if !c.enabled {
		return
	}
	c.providerMetrics.RecordCall(provider, outcome, latency.Seconds())
	c.providerMetrics.UpdateHealth(provider, healthy)
}

// ObserveAdmit implements the admission observer.
func (c *Collector) ObserveAdmit(outcome, _ string, ceiling money.Amount) {
	if !c.enabled {
		return
	}
	c.admissionMetrics.admissions.WithLabelValues(outcome).Inc()
	if ceiling > 0 {
		c.admissionMetrics.ceiling.Observe(usd(ceiling))
	}
}

// ObserveSettle implements the admission observer.
func (c *Collector) ObserveSettle(provider, model string, rec usage.Record, cost, ceiling money.Amount) {
	if !c.enabled {
		return
	}
	model = c.modelLabel(provider, model)

	am := c.admissionMetrics
	am.settledCost.WithLabelValues(provider, model).Add(usd(cost))
	am.tokens.WithLabelValues(provider, model, "input").Add(float64(rec.InputTokens))
	am.tokens.WithLabelValues(provider, model, "output").Add(float64(rec.OutputTokens))
	if cost > ceiling {
		am.ceilingExceeded.WithLabelValues(model).Inc()
	}
}

// ObserveRelease implements the admission observer.
func (c *Collector) ObserveRelease(provider, reason string) {
	if !c.enabled {
		return
	}
	c.admissionMetrics.releases.WithLabelValues(provider, reason).Inc()
}

// ObserveInvariantViolation implements the admission observer. It counts
// even when metrics are disabled.
func (c *Collector) ObserveInvariantViolation(stage string) {
	c.admissionMetrics.violations.WithLabelValues(stage).Inc()
}

// ObserveFlush implements the flusher observer.
func (c *Collector) ObserveFlush(ok bool, _ int, total money.Amount, elapsed time.Duration) {
	if !c.enabled {
		return
	}
	lm := c.ledgerMetrics
	if ok {
		lm.flushes.WithLabelValues("success").Inc()
		lm.flushed.Add(usd(total))
	} else {
		lm.flushes.WithLabelValues("failure").Inc()
	}
	lm.flushDuration.Observe(elapsed.Seconds())
}

// ObservePending implements the flusher observer.
func (c *Collector) ObservePending(users int, total money.Amount) {
	if !c.enabled {
		return
	}
	c.ledgerMetrics.pendingUSD.Set(usd(total))
	c.ledgerMetrics.pendingUsers.Set(float64(users))
}

func (c *Collector) modelLabel(provider, model string) string {
	if !c.cardinalityLimiter.Allow(provider + ":" + model) {
		return otherModel
	}
	return model
}

func usd(a money.Amount) float64 {
	return a.Decimal().InexactFloat64()
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet is already tracked or still fits under
// the limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
