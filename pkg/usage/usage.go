// Package usage extracts token usage from provider responses.
//
// A Record is produced once per completed request and consumed immediately by
// the cost calculator. Response content is never retained: extraction decodes
// only the model name and the usage object, and everything else in the body is
// skipped by the JSON decoder.
//
// Two usage shapes are understood:
//
//	{"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}   OpenAI-compatible
//	{"usage":{"input_tokens":10,"output_tokens":5}}                           Anthropic
package usage

import (
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNoUsage is returned when a response does not carry a usage object.
var ErrNoUsage = errors.New("response carries no usage")

// Record is the token usage of one completed request.
type Record struct {
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Total returns input plus output tokens.
func (r Record) Total() int64 { return r.InputTokens + r.OutputTokens }

// wireUsage accepts both the OpenAI and the Anthropic usage field names.
type wireUsage struct {
	openai.Usage

	InputTokens  *int64 `json:"input_tokens"`
	OutputTokens *int64 `json:"output_tokens"`
}

func (u *wireUsage) tokens() (in, out int64) {
	if u.InputTokens != nil || u.OutputTokens != nil {
		if u.InputTokens != nil {
			in = *u.InputTokens
		}
		if u.OutputTokens != nil {
			out = *u.OutputTokens
		}
		return in, out
	}

	in = int64(u.PromptTokens)
	out = int64(u.CompletionTokens)
	// Embedding responses sometimes report only total_tokens.
	if in == 0 && out == 0 && u.TotalTokens > 0 {
		in = int64(u.TotalTokens)
	}
	return in, out
}

type envelope struct {
	Model string     `json:"model"`
	Usage *wireUsage `json:"usage"`
}

// Extract reads usage from a buffered (non-streamed) response body.
func Extract(body []byte) (Record, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Record{}, fmt.Errorf("failed to decode response usage: %w", err)
	}
	if env.Usage == nil {
		return Record{}, ErrNoUsage
	}

	in, out := env.Usage.tokens()
	if in < 0 || out < 0 {
		return Record{}, fmt.Errorf("negative token counts in usage (input=%d, output=%d)", in, out)
	}
	return Record{Model: env.Model, InputTokens: in, OutputTokens: out}, nil
}

// UpstreamMessage extracts the human-readable message from an OpenAI-style
// error body. It returns "" when the body is not an error envelope.
func UpstreamMessage(body []byte) string {
	var resp openai.ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Error == nil {
		return ""
	}
	return resp.Error.Message
}
