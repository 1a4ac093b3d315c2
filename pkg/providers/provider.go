package providers

import (
	"context"
	"net/http"
)

// Provider forwards an OpenAI-compatible request body to one upstream LLM
// provider.
//
// Forward returns the raw upstream response when the provider answers with a
// 2xx status. The caller owns the response body and must close it; the
// per-request timeout stays armed until it does. Non-2xx answers are read,
// closed and returned as *UpstreamError, and transport failures as
// *NetworkError or *TimeoutError.
//
// Forward never retries: a retried completion may be billed twice upstream,
// and a failed request is released rather than settled.
//
// Example usage:
//
//	resp, err := provider.Forward(ctx, "/chat/completions", body)
//	if err != nil {
//	    var upstream *providers.UpstreamError
//	    if errors.As(err, &upstream) {
//	        log.Printf("upstream said %d: %s", upstream.StatusCode, upstream.Message)
//	    }
//	    return err
//	}
//	defer resp.Body.Close()
type Provider interface {
	// Name returns the provider id used in routes and logs.
	Name() string

	// Forward POSTs body to the provider's base URL joined with path.
	Forward(ctx context.Context, path string, body []byte) (*http.Response, error)

	// GetHealth returns the passive health observed from recent requests.
	GetHealth() ProviderHealth

	// Close releases idle connections.
	Close() error
}
