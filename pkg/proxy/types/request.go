package types

import (
	"fmt"
	"strings"
)

// ChatCompletionRequest holds the fields of a chat or legacy completion
// request that admission looks at. Everything else in the body, messages
// included, is forwarded untouched and never decoded.
type ChatCompletionRequest struct {
	Model               string         `json:"model"`
	Stream              bool           `json:"stream,omitempty"`
	StreamOptions       *StreamOptions `json:"stream_options,omitempty"`
	MaxTokens           *int64         `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int64         `json:"max_completion_tokens,omitempty"`
}

// StreamOptions mirrors the OpenAI stream_options object.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// EmbeddingRequest holds the fields of an embeddings request that admission
// looks at.
type EmbeddingRequest struct {
	Model string `json:"model"`
}

// ValidationError represents a request validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate checks the fields admission relies on.
func (r *ChatCompletionRequest) Validate() error {
	if err := validateModel(r.Model); err != nil {
		return err
	}
	if err := validateTokenLimit("max_tokens", r.MaxTokens); err != nil {
		return err
	}
	return validateTokenLimit("max_completion_tokens", r.MaxCompletionTokens)
}

// MaxOutputTokenLimit bounds max_tokens and max_completion_tokens. No
// provider accepts more; larger values are rejected before pricing.
const MaxOutputTokenLimit = 1 << 24

func validateTokenLimit(field string, v *int64) error {
	switch {
	case v == nil:
		return nil
	case *v < 0:
		return &ValidationError{Field: field, Message: "must be non-negative"}
	case *v > MaxOutputTokenLimit:
		return &ValidationError{Field: field, Message: fmt.Sprintf("must not exceed %d", MaxOutputTokenLimit)}
	}
	return nil
}

// Validate checks the fields admission relies on.
func (r *EmbeddingRequest) Validate() error {
	return validateModel(r.Model)
}

func validateModel(model string) error {
	if strings.TrimSpace(model) == "" {
		return &ValidationError{Field: "model", Message: "model is required"}
	}
	return nil
}

// MaxTokensValue returns max_tokens, or 0 when unset.
func (r *ChatCompletionRequest) MaxTokensValue() int64 {
	if r.MaxTokens == nil {
		return 0
	}
	return *r.MaxTokens
}

// MaxCompletionTokensValue returns max_completion_tokens, or 0 when unset.
func (r *ChatCompletionRequest) MaxCompletionTokensValue() int64 {
	if r.MaxCompletionTokens == nil {
		return 0
	}
	return *r.MaxCompletionTokens
}

// IncludesUsage reports whether the client already asked for streamed usage.
func (r *ChatCompletionRequest) IncludesUsage() bool {
	return r.StreamOptions != nil && r.StreamOptions.IncludeUsage
}
