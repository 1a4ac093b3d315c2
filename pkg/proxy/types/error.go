package types

import "net/http"

// ErrorResponse is an OpenAI-compatible error body, so existing SDKs
// surface our rejections the same way they surface OpenAI's.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	// Message is a human-readable error message.
	Message string `json:"message"`

	// Type categorizes the error and selects the HTTP status.
	Type string `json:"type"`

	// Param is the name of the parameter that caused the error (if applicable).
	Param string `json:"param,omitempty"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`

	// Hint classifies upstream failures, e.g. "rate_limited".
	Hint string `json:"hint,omitempty"`

	// UpstreamStatus is the provider's HTTP status when the error came from
	// the provider.
	UpstreamStatus int `json:"upstream_status,omitempty"`
}

// Error types.
const (
	ErrorTypeInvalidRequest     = "invalid_request_error"
	ErrorTypeAuthentication     = "authentication_error"
	ErrorTypeNotFound           = "not_found"
	ErrorTypeInsufficientQuota  = "insufficient_quota"
	ErrorTypeServerError        = "server_error"
	ErrorTypeUpstream           = "upstream_error"
	ErrorTypeNetwork            = "network_error"
	ErrorTypeServiceUnavailable = "service_unavailable"
)

// Error codes.
const (
	CodeMissingSecret       = "missing_secret"
	CodeInvalidSecret       = "invalid_secret"
	CodeInsufficientBudget  = "insufficient_budget"
	CodeMissingField        = "missing_field"
	CodeInvalidValue        = "invalid_value"
	CodeInvalidJSON         = "invalid_json"
	CodeRequestTooLarge     = "request_too_large"
	CodeModelNotAvailable   = "model_not_available"
	CodeModelNotPriced      = "model_not_priced"
	CodeProviderUnavailable = "provider_unavailable"
	CodeProviderError       = "provider_error"
	CodeProviderTimeout     = "provider_timeout"
	CodeInternalError       = "internal_error"
)

// NewErrorResponse creates a new error response with the given details.
func NewErrorResponse(message, errorType, param, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
			Param:   param,
			Code:    code,
		},
	}
}

// NewInvalidRequestError creates an error response for invalid requests (400).
func NewInvalidRequestError(message, param, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeInvalidRequest, param, code)
}

// NewServerError creates an error response for internal server errors (500).
func NewServerError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServerError, "", CodeInternalError)
}

// NewServiceUnavailableError creates an error response for unroutable or
// unpriced models (503).
func NewServiceUnavailableError(message, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServiceUnavailable, "model", code)
}

// HTTPStatusCode returns the HTTP status for the error type.
func (e *ErrorDetail) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeInsufficientQuota:
		return http.StatusPaymentRequired
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeUpstream, ErrorTypeNetwork:
		return http.StatusBadGateway
	case ErrorTypeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
