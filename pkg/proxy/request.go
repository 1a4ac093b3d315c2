package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"tollbooth-hq/tollbooth/pkg/proxy/types"
)

const (
	// DefaultMaxBodyBytes is used when no body limit is configured (10MB).
	DefaultMaxBodyBytes = 10 * 1024 * 1024

	// SecretHeader carries the shared internal secret.
	SecretHeader = "X-Internal-Secret"

	// UserIDHeader names the user a request is charged to.
	UserIDHeader = "X-User-Id"

	// RequestIDHeader is the HTTP header for request ID propagation.
	RequestIDHeader = "X-Request-ID"
)

// RequestError represents a request parsing or validation error.
type RequestError struct {
	Message string
	Code    string
	Param   string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return e.Message
}

// ToErrorResponse converts a RequestError to an OpenAI-compatible error response.
func (e *RequestError) ToErrorResponse() *types.ErrorResponse {
	return types.NewInvalidRequestError(e.Message, e.Param, e.Code)
}

// ReadBody reads the whole request body, rejecting bodies over limit.
func ReadBody(r *http.Request, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, &RequestError{
			Message: fmt.Sprintf("request body exceeds maximum size of %d bytes", limit),
			Code:    types.CodeRequestTooLarge,
			Param:   "body",
		}
	}
	return body, nil
}

// validator is implemented by the request types.
type validator interface {
	Validate() error
}

// DecodeRequest unmarshals the admission-relevant fields of body into v
// and validates them. Unknown fields are ignored.
func DecodeRequest(body []byte, v validator) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &RequestError{
			Message: fmt.Sprintf("invalid JSON: %v", err),
			Code:    types.CodeInvalidJSON,
			Param:   "body",
		}
	}
	if err := v.Validate(); err != nil {
		var valErr *types.ValidationError
		if errors.As(err, &valErr) {
			code := types.CodeInvalidValue
			if valErr.Field == "model" {
				code = types.CodeMissingField
			}
			return &RequestError{Message: valErr.Message, Code: code, Param: valErr.Field}
		}
		return err
	}
	return nil
}

// DecodeJSON decodes a small admin request body.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 64*1024))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &RequestError{
			Message: fmt.Sprintf("invalid JSON: %v", err),
			Code:    types.CodeInvalidJSON,
			Param:   "body",
		}
	}
	return nil
}

// InjectIncludeUsage sets stream_options.include_usage on a streaming body
// so the provider reports usage in its final frame. Other fields, and the
// rest of stream_options, are kept as raw bytes.
func InjectIncludeUsage(body []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode request body: %w", err)
	}

	opts := map[string]json.RawMessage{}
	if raw, ok := fields["stream_options"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &opts); err != nil {
			return nil, &RequestError{
				Message: "stream_options must be an object",
				Code:    types.CodeInvalidValue,
				Param:   "stream_options",
			}
		}
	}
	opts["include_usage"] = json.RawMessage("true")

	raw, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode stream_options: %w", err)
	}
	fields["stream_options"] = raw

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return out, nil
}
