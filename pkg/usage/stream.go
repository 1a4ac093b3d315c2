package usage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	dataPrefix  = []byte("data:")
	doneMarker  = []byte("[DONE]")
	usageMarker = []byte(`"usage"`)
)

// flusher is satisfied by http.ResponseWriter implementations that support
// incremental delivery.
type flusher interface {
	Flush()
}

// streamFrame is the subset of an SSE data payload we look at. Anthropic
// reports input tokens on message_start and cumulative output tokens on
// message_delta; OpenAI reports both on the final chunk when include_usage
// is set.
type streamFrame struct {
	Type    string     `json:"type"`
	Model   string     `json:"model"`
	Usage   *wireUsage `json:"usage"`
	Message *struct {
		Model string     `json:"model"`
		Usage *wireUsage `json:"usage"`
	} `json:"message"`
}

// StreamTee copies a server-sent-event stream to the client line by line,
// flushing at every frame boundary, while watching data frames for usage.
//
// A failed write to the client does not stop the tee: it keeps reading the
// upstream stream with output discarded so usage in the final frame is
// still observed. Cancelling the context passed to Run does stop it; a
// caller that binds Run to the request context gets no final-frame usage
// after a disconnect.
type StreamTee struct {
	dst io.Writer
	src io.Reader

	rec       Record
	seen      bool
	done      bool
	frames    int
	clientErr error
}

// NewStreamTee creates a tee from src to dst.
func NewStreamTee(dst io.Writer, src io.Reader) *StreamTee {
	return &StreamTee{dst: dst, src: src}
}

// Run pumps the stream until EOF, the [DONE] sentinel, a read error, or ctx
// cancellation. A client write failure is not returned; see ClientErr.
func (s *StreamTee) Run(ctx context.Context) error {
	r := bufio.NewReaderSize(s.src, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			s.forward(line)
			s.inspect(line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.flush()
				return nil
			}
			return fmt.Errorf("failed to read upstream stream: %w", err)
		}
		if s.done {
			// Pass through whatever trails the sentinel (normally a blank line).
			if rest, _ := io.ReadAll(r); len(rest) > 0 {
				s.forward(rest)
			}
			s.flush()
			return nil
		}
	}
}

func (s *StreamTee) forward(line []byte) {
	if s.clientErr != nil {
		return
	}
	if _, err := s.dst.Write(line); err != nil {
		s.clientErr = err
		return
	}
	if len(bytes.TrimSpace(line)) == 0 {
		s.frames++
		s.flush()
	}
}

func (s *StreamTee) flush() {
	if s.clientErr != nil {
		return
	}
	if f, ok := s.dst.(flusher); ok {
		f.Flush()
	}
}

func (s *StreamTee) inspect(line []byte) {
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, dataPrefix) {
		return
	}
	data := bytes.TrimSpace(line[len(dataPrefix):])
	if bytes.Equal(data, doneMarker) {
		s.done = true
		return
	}
	if !bytes.Contains(data, usageMarker) {
		return
	}

	var frame streamFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}

	if frame.Message != nil {
		if frame.Message.Model != "" {
			s.rec.Model = frame.Message.Model
		}
		if frame.Message.Usage != nil {
			in, out := frame.Message.Usage.tokens()
			s.rec.InputTokens = in
			s.rec.OutputTokens = out
			s.seen = true
		}
	}
	if frame.Usage != nil {
		if frame.Model != "" {
			s.rec.Model = frame.Model
		}
		if frame.Type == "message_delta" {
			// Only output tokens are cumulative here; keep input from message_start.
			if frame.Usage.OutputTokens != nil {
				s.rec.OutputTokens = *frame.Usage.OutputTokens
			}
			if frame.Usage.InputTokens != nil && *frame.Usage.InputTokens > 0 {
				s.rec.InputTokens = *frame.Usage.InputTokens
			}
		} else {
			s.rec.InputTokens, s.rec.OutputTokens = frame.Usage.tokens()
		}
		s.seen = true
	}
}

// Usage returns the usage observed so far and whether any was seen.
func (s *StreamTee) Usage() (Record, bool) { return s.rec, s.seen }

// Done reports whether the [DONE] sentinel was observed.
func (s *StreamTee) Done() bool { return s.done }

// Frames returns the number of complete frames delivered to the client.
func (s *StreamTee) Frames() int { return s.frames }

// ClientErr returns the first error writing to the client, if any.
func (s *StreamTee) ClientErr() error { return s.clientErr }
