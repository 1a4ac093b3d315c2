package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNotConfigured is returned by the registry for providers without an API key.
var ErrNotConfigured = errors.New("provider not configured")

// Hints attached to upstream failures so callers can tell a broken key
// from a busy provider without parsing messages.
const (
	HintAuthFailed    = "llm_provider_auth_failed"
	HintRateLimited   = "rate_limited"
	HintProviderError = "provider_error"
	HintUpstreamError = "upstream_error"
	HintNetworkError  = "network_error"
	HintTimeout       = "timeout"
)

// UpstreamError is a non-2xx answer from a provider.
type UpstreamError struct {
	// Provider is the id of the provider that answered.
	Provider string

	// StatusCode is the upstream HTTP status.
	StatusCode int

	// Message is the upstream error message, when the body carried one.
	Message string

	// RetryAfter is parsed from the Retry-After header on 429 answers.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider %q returned status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("provider %q returned status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Hint classifies the upstream status.
func (e *UpstreamError) Hint() string {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return HintAuthFailed
	case e.StatusCode == http.StatusTooManyRequests:
		return HintRateLimited
	case e.StatusCode >= 500:
		return HintProviderError
	default:
		return HintUpstreamError
	}
}

// IsAuthError reports whether the provider rejected our credentials.
func (e *UpstreamError) IsAuthError() bool {
	return e.Hint() == HintAuthFailed
}

// NetworkError is a transport failure before any upstream status was seen.
type NetworkError struct {
	// Provider is the id of the provider that could not be reached.
	Provider string

	// Cause is the underlying transport error.
	Cause error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("provider %q unreachable: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents a request that exceeded the provider timeout.
type TimeoutError struct {
	// Provider is the name of the provider where the timeout occurred
	Provider string

	// Timeout is the configured timeout duration
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %q request timed out after %s", e.Provider, e.Timeout)
}

// Is lets callers match timeouts with errors.Is(err, context.DeadlineExceeded).
func (e *TimeoutError) Is(target error) bool {
	return target == context.DeadlineExceeded
}

// ErrorHint returns the hint for any error returned by Forward, or "" for
// errors that did not come from a provider.
func ErrorHint(err error) string {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Hint()
	}
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return HintTimeout
	}
	var network *NetworkError
	if errors.As(err, &network) {
		return HintNetworkError
	}
	return ""
}
