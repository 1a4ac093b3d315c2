package usage

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    Record
		wantErr error
	}{
		{
			name: "openai chat completion",
			body: `{"id":"chatcmpl-1","model":"gpt-4o-mini","choices":[{"message":{"role":"assistant","content":"hi"}}],"usage":{"prompt_tokens":12,"completion_tokens":7,"total_tokens":19}}`,
			want: Record{Model: "gpt-4o-mini", InputTokens: 12, OutputTokens: 7},
		},
		{
			name: "anthropic message",
			body: `{"type":"message","model":"claude-sonnet-4","content":[{"type":"text","text":"hi"}],"usage":{"input_tokens":30,"output_tokens":4}}`,
			want: Record{Model: "claude-sonnet-4", InputTokens: 30, OutputTokens: 4},
		},
		{
			name: "embedding with total only",
			body: `{"object":"list","model":"text-embedding-3-small","data":[],"usage":{"total_tokens":8}}`,
			want: Record{Model: "text-embedding-3-small", InputTokens: 8},
		},
		{
			name: "zero usage is still usage",
			body: `{"model":"gpt-4o","usage":{"prompt_tokens":0,"completion_tokens":0,"total_tokens":0}}`,
			want: Record{Model: "gpt-4o"},
		},
		{
			name:    "missing usage",
			body:    `{"model":"gpt-4o","choices":[]}`,
			wantErr: ErrNoUsage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract([]byte(tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Extract() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExtract_MalformedJSON(t *testing.T) {
	if _, err := Extract([]byte(`{"usage":`)); err == nil {
		t.Fatal("Expected error for truncated body")
	}
}

func TestUpstreamMessage(t *testing.T) {
	body := []byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)
	if msg := UpstreamMessage(body); msg != "Incorrect API key provided" {
		t.Errorf("Unexpected message %q", msg)
	}
	if msg := UpstreamMessage([]byte("<html>bad gateway</html>")); msg != "" {
		t.Errorf("Expected empty message for non-JSON body, got %q", msg)
	}
}

// flushRecorder counts flushes so tests can verify per-frame delivery.
type flushRecorder struct {
	bytes.Buffer
	flushes int
}

func (f *flushRecorder) Flush() { f.flushes++ }

func TestStreamTee_OpenAIFinalFrameUsage(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"id":"c1","model":"gpt-4o-mini","choices":[{"delta":{"content":"Hel"}}],"usage":null}`,
		``,
		`data: {"id":"c1","model":"gpt-4o-mini","choices":[{"delta":{"content":"lo"}}],"usage":null}`,
		``,
		`data: {"id":"c1","model":"gpt-4o-mini","choices":[],"usage":{"prompt_tokens":9,"completion_tokens":2,"total_tokens":11}}`,
		``,
		`data: [DONE]`,
		``,
		``,
	}, "\n")

	dst := &flushRecorder{}
	tee := NewStreamTee(dst, strings.NewReader(stream))
	if err := tee.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if dst.String() != stream {
		t.Errorf("Stream was not passed through unmodified:\n%q\nvs\n%q", dst.String(), stream)
	}
	rec, ok := tee.Usage()
	if !ok {
		t.Fatal("Expected usage to be observed")
	}
	if rec.InputTokens != 9 || rec.OutputTokens != 2 || rec.Model != "gpt-4o-mini" {
		t.Errorf("Unexpected usage %+v", rec)
	}
	if !tee.Done() {
		t.Error("Expected [DONE] to be observed")
	}
	if dst.flushes < 3 {
		t.Errorf("Expected a flush per frame, got %d", dst.flushes)
	}
}

func TestStreamTee_AnthropicUsage(t *testing.T) {
	stream := strings.Join([]string{
		`event: message_start`,
		`data: {"type":"message_start","message":{"model":"claude-haiku-4","usage":{"input_tokens":25,"output_tokens":1}}}`,
		``,
		`event: content_block_delta`,
		`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"hi"}}`,
		``,
		`event: message_delta`,
		`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":15}}`,
		``,
	}, "\n")

	tee := NewStreamTee(&bytes.Buffer{}, strings.NewReader(stream))
	if err := tee.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	rec, ok := tee.Usage()
	if !ok {
		t.Fatal("Expected usage to be observed")
	}
	if rec.InputTokens != 25 || rec.OutputTokens != 15 {
		t.Errorf("Expected 25 in / 15 out, got %+v", rec)
	}
	if rec.Model != "claude-haiku-4" {
		t.Errorf("Expected model from message_start, got %q", rec.Model)
	}
}

func TestStreamTee_NoUsage(t *testing.T) {
	stream := "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\ndata: [DONE]\n\n"
	tee := NewStreamTee(&bytes.Buffer{}, strings.NewReader(stream))
	if err := tee.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, ok := tee.Usage(); ok {
		t.Error("Expected no usage")
	}
}

type failingWriter struct{ writes int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	return 0, errors.New("client gone")
}

func TestStreamTee_ClientGoneStillSeesUsage(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"a"}}],"usage":null}`,
		``,
		`data: {"choices":[],"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}`,
		``,
		`data: [DONE]`,
		``,
	}, "\n")

	w := &failingWriter{}
	tee := NewStreamTee(w, strings.NewReader(stream))
	if err := tee.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if tee.ClientErr() == nil {
		t.Error("Expected client error to be recorded")
	}
	if w.writes != 1 {
		t.Errorf("Expected writes to stop after the first failure, got %d", w.writes)
	}
	rec, ok := tee.Usage()
	if !ok || rec.Total() != 7 {
		t.Errorf("Expected usage to be observed after client loss, got %+v (ok=%v)", rec, ok)
	}
}

func TestStreamTee_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tee := NewStreamTee(&bytes.Buffer{}, strings.NewReader("data: x\n\n"))
	if err := tee.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
