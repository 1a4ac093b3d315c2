package providers

import "time"

// unhealthyAfter is the number of consecutive failures that marks a
// provider unhealthy.
const unhealthyAfter = 3

// ProviderHealth is the passive health of a provider, derived from the
// outcome of forwarded requests. Unhealthy providers still receive traffic;
// the status is reported on the readiness endpoint.
type ProviderHealth struct {
	// IsHealthy is false after unhealthyAfter consecutive failures.
	IsHealthy bool `json:"healthy"`

	// LastCheck is the time of the last recorded outcome.
	LastCheck time.Time `json:"last_check"`

	// ConsecutiveFailures counts failures since the last success.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// LastError is the most recent failure, cleared on success.
	LastError error `json:"-"`

	LastSuccessfulRequest time.Time `json:"last_success"`

	TotalRequests  int64 `json:"total_requests"`
	FailedRequests int64 `json:"failed_requests"`
}

// GetHealth returns detailed health information.
func (p *HTTPProvider) GetHealth() ProviderHealth {
	p.healthMu.RLock()
	defer p.healthMu.RUnlock()
	return p.health
}

// IsHealthy returns the current health status.
func (p *HTTPProvider) IsHealthy() bool {
	p.healthMu.RLock()
	defer p.healthMu.RUnlock()
	return p.health.IsHealthy
}

// updateHealth records the outcome of a request.
func (p *HTTPProvider) updateHealth(success bool, err error) {
	p.healthMu.Lock()
	defer p.healthMu.Unlock()

	p.health.LastCheck = time.Now()

	if success {
		if !p.health.IsHealthy {
			p.logger.Info("provider marked healthy",
				"previous_failures", p.health.ConsecutiveFailures,
			)
		}
		p.health.IsHealthy = true
		p.health.ConsecutiveFailures = 0
		p.health.LastError = nil
		p.health.LastSuccessfulRequest = p.health.LastCheck
		return
	}

	p.health.ConsecutiveFailures++
	p.health.LastError = err

	if p.health.ConsecutiveFailures >= unhealthyAfter && p.health.IsHealthy {
		p.health.IsHealthy = false
		p.logger.Warn("provider marked unhealthy",
			"consecutive_failures", p.health.ConsecutiveFailures,
			"error", err,
		)
	}
}

// recordRequest records request counters.
func (p *HTTPProvider) recordRequest(success bool) {
	p.healthMu.Lock()
	defer p.healthMu.Unlock()

	p.health.TotalRequests++
	if !success {
		p.health.FailedRequests++
	}
}
