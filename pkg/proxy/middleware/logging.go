package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code. It
// forwards Flush so streamed responses are not buffered.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
	bytes      int64
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader captures the status code before writing.
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

// Write ensures WriteHeader is called if not already done.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

// Flush implements http.Flusher.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// RequestRecorder receives one observation per completed request.
type RequestRecorder interface {
	RecordHTTPRequest(route, status string, duration time.Duration)
}

// LoggingMiddleware logs every request once it completes and records it
// with rec, if rec is non-nil. 5xx logs at error level and 4xx at warn;
// 402 is a normal admission outcome but still worth seeing.
//
// Bodies are never logged.
func LoggingMiddleware(logger *slog.Logger, rec RequestRecorder) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			ctx := context.WithValue(r.Context(), StartTimeKey, startTime)
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r.WithContext(ctx))

			latency := time.Since(startTime)
			level := slog.LevelInfo
			if rw.statusCode >= 500 {
				level = slog.LevelError
			} else if rw.statusCode >= 400 {
				level = slog.LevelWarn
			}

			route := RouteLabel(r.URL.Path)
			logger.Log(ctx, level, "request completed",
				"method", r.Method,
				"route", route,
				"status", rw.statusCode,
				"bytes", rw.bytes,
				"latency_ms", latency.Milliseconds(),
				"remote_addr", r.RemoteAddr,
			)
			if rec != nil {
				rec.RecordHTTPRequest(route, strconv.Itoa(rw.statusCode), latency)
			}
		})
	}
}

// RouteLabel maps a path onto a bounded set of route names for logs and
// metrics. User ids in admin paths are dropped.
func RouteLabel(path string) string {
	switch path {
	case "/v1/chat/completions", "/v1/completions", "/v1/embeddings",
		"/v1/models", "/v1/budget", "/health", "/ready", "/metrics":
		return path
	}
	if strings.HasPrefix(path, "/internal/budgets/") {
		if strings.HasSuffix(path, "/credit") {
			return "/internal/budgets/{user_id}/credit"
		}
		return "/internal/budgets/{user_id}"
	}
	return "other"
}

// GetStartTime extracts the request start time from the context.
// Returns zero time if not found.
func GetStartTime(ctx context.Context) time.Time {
	if startTime, ok := ctx.Value(StartTimeKey).(time.Time); ok {
		return startTime
	}
	return time.Time{}
}
