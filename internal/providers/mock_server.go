// Package providers contains test doubles for upstream LLM providers.
package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// MockServer is an OpenAI-compatible upstream for tests. Responses are
// configured per path; unknown paths return 404.
type MockServer struct {
	server    *httptest.Server
	responses map[string]MockResponse
	requests  []MockRequest
	mu        sync.Mutex
}

// MockResponse defines a canned upstream response.
type MockResponse struct {
	StatusCode int
	Body       any
	Delay      time.Duration
	Headers    map[string]string

	// StreamChunks are sent as SSE data frames followed by [DONE].
	StreamChunks []string
}

// MockRequest is one request the server received.
type MockRequest struct {
	Path          string
	Authorization string
	Body          map[string]any
}

// NewMockServer starts a mock server. Close it when done.
func NewMockServer() *MockServer {
	ms := &MockServer{responses: make(map[string]MockResponse)}
	ms.server = httptest.NewServer(http.HandlerFunc(ms.handler))
	return ms
}

// URL returns the base URL to configure as a provider base_url.
func (ms *MockServer) URL() string {
	return ms.server.URL
}

// Close shuts the server down.
func (ms *MockServer) Close() {
	ms.server.Close()
}

// SetResponse sets the response for path, e.g. "/chat/completions".
func (ms *MockServer) SetResponse(path string, response MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.responses[path] = response
}

// Requests returns a copy of every request received so far.
func (ms *MockServer) Requests() []MockRequest {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]MockRequest(nil), ms.requests...)
}

// RequestCount returns the number of requests received.
func (ms *MockServer) RequestCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.requests)
}

func (ms *MockServer) handler(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	ms.mu.Lock()
	ms.requests = append(ms.requests, MockRequest{
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		Body:          body,
	})
	response, ok := ms.responses[r.URL.Path]
	ms.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if response.Delay > 0 {
		select {
		case <-time.After(response.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}

	if len(response.StreamChunks) > 0 {
		ms.handleStream(w, response)
		return
	}

	if response.Body != nil {
		w.Header().Set("Content-Type", "application/json")
	}
	status := response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	switch v := response.Body.(type) {
	case nil:
	case string:
		_, _ = io.WriteString(w, v)
	case []byte:
		_, _ = w.Write(v)
	default:
		_ = json.NewEncoder(w).Encode(v)
	}
}

func (ms *MockServer) handleStream(w http.ResponseWriter, response MockResponse) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	for _, chunk := range response.StreamChunks {
		fmt.Fprintf(w, "data: %s\n\n", chunk)
		flusher.Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// ChatResponse returns a buffered chat completion reporting the given usage.
func ChatResponse(model, content string, promptTokens, completionTokens int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body: openai.ChatCompletionResponse{
			ID:      "chatcmpl-mock",
			Object:  "chat.completion",
			Created: time.Now().Unix(),
			Model:   model,
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
				FinishReason: openai.FinishReasonStop,
			}},
			Usage: openai.Usage{
				PromptTokens:     promptTokens,
				CompletionTokens: completionTokens,
				TotalTokens:      promptTokens + completionTokens,
			},
		},
	}
}

// ChatStream returns a streamed chat completion with one content chunk per
// delta. When withUsage is set, a final choice-less chunk carries usage the
// way providers answer stream_options.include_usage.
func ChatStream(model string, deltas []string, promptTokens, completionTokens int, withUsage bool) MockResponse {
	chunks := make([]string, 0, len(deltas)+1)
	for i, d := range deltas {
		var finish openai.FinishReason
		if i == len(deltas)-1 {
			finish = openai.FinishReasonStop
		}
		chunks = append(chunks, streamChunk(openai.ChatCompletionStreamResponse{
			ID:     "chatcmpl-mock",
			Object: "chat.completion.chunk",
			Model:  model,
			Choices: []openai.ChatCompletionStreamChoice{{
				Delta:        openai.ChatCompletionStreamChoiceDelta{Content: d},
				FinishReason: finish,
			}},
		}))
	}
	if withUsage {
		chunks = append(chunks, streamChunk(openai.ChatCompletionStreamResponse{
			ID:      "chatcmpl-mock",
			Object:  "chat.completion.chunk",
			Model:   model,
			Choices: []openai.ChatCompletionStreamChoice{},
			Usage: &openai.Usage{
				PromptTokens:     promptTokens,
				CompletionTokens: completionTokens,
				TotalTokens:      promptTokens + completionTokens,
			},
		}))
	}
	return MockResponse{StatusCode: http.StatusOK, StreamChunks: chunks}
}

func streamChunk(v openai.ChatCompletionStreamResponse) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// ErrorResponse returns an OpenAI-style error body with status.
func ErrorResponse(status int, message string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body: map[string]any{
			"error": map[string]any{
				"message": message,
				"type":    "invalid_request_error",
			},
		},
	}
}

// RateLimited returns a 429 with Retry-After set to retryAfter seconds.
func RateLimited(retryAfter int) MockResponse {
	resp := ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded")
	resp.Headers = map[string]string{"Retry-After": strconv.Itoa(retryAfter)}
	return resp
}
