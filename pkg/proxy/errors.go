package proxy

import (
	"errors"
	"fmt"

	"tollbooth-hq/tollbooth/pkg/admission"
	"tollbooth-hq/tollbooth/pkg/providers"
	"tollbooth-hq/tollbooth/pkg/proxy/types"
)

// HandleError converts any error from the request path into an
// OpenAI-compatible error body. The body's type selects the status:
//
//   - auth failures: 401
//   - budget exhausted: 402
//   - malformed requests: 400
//   - unroutable or unpriced models: 503
//   - provider and network failures: 502
//   - everything else, invariant violations included: 500
func HandleError(err error) *types.ErrorResponse {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.ToErrorResponse()
	}

	switch {
	case errors.Is(err, admission.ErrMissingSecret):
		return types.NewErrorResponse("missing X-Internal-Secret header",
			types.ErrorTypeAuthentication, "", types.CodeMissingSecret)
	case errors.Is(err, admission.ErrInvalidSecret):
		return types.NewErrorResponse("invalid internal secret",
			types.ErrorTypeAuthentication, "", types.CodeInvalidSecret)
	}

	var budgetErr *admission.BudgetExhaustedError
	if errors.As(err, &budgetErr) {
		return types.NewErrorResponse(
			fmt.Sprintf("budget exhausted: %s available, %s required", budgetErr.Available, budgetErr.Required),
			types.ErrorTypeInsufficientQuota, "", types.CodeInsufficientBudget,
		)
	}

	var noProvider *admission.NoProviderError
	if errors.As(err, &noProvider) {
		return types.NewServiceUnavailableError(
			fmt.Sprintf("model %q is not served by any configured provider", noProvider.Model),
			types.CodeModelNotAvailable,
		)
	}
	if errors.Is(err, admission.ErrNoPricing) {
		return types.NewServiceUnavailableError(err.Error(), types.CodeModelNotPriced)
	}
	if errors.Is(err, providers.ErrNotConfigured) {
		return types.NewErrorResponse(err.Error(),
			types.ErrorTypeServiceUnavailable, "", types.CodeProviderUnavailable)
	}

	var upstream *providers.UpstreamError
	if errors.As(err, &upstream) {
		return handleUpstreamError(upstream)
	}

	var timeout *providers.TimeoutError
	if errors.As(err, &timeout) {
		resp := types.NewErrorResponse(
			fmt.Sprintf("provider %s timed out after %s", timeout.Provider, timeout.Timeout),
			types.ErrorTypeNetwork, "", types.CodeProviderTimeout,
		)
		resp.Error.Hint = providers.HintTimeout
		return resp
	}

	var network *providers.NetworkError
	if errors.As(err, &network) {
		resp := types.NewErrorResponse(
			fmt.Sprintf("provider %s unreachable", network.Provider),
			types.ErrorTypeNetwork, "", types.CodeProviderError,
		)
		resp.Error.Hint = providers.HintNetworkError
		return resp
	}

	return types.NewServerError("An internal error occurred. Please try again later.")
}

// handleUpstreamError passes the provider's message and status through. A
// 401 from the provider is our key, not the caller's, so it still maps to
// 502 and only the hint tells it apart.
func handleUpstreamError(err *providers.UpstreamError) *types.ErrorResponse {
	msg := err.Message
	if msg == "" {
		msg = fmt.Sprintf("provider %s returned status %d", err.Provider, err.StatusCode)
	}
	resp := types.NewErrorResponse(msg, types.ErrorTypeUpstream, "", types.CodeProviderError)
	resp.Error.Hint = err.Hint()
	resp.Error.UpstreamStatus = err.StatusCode
	return resp
}
