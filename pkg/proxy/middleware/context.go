package middleware

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// StartTimeKey stores the request start time for latency calculation.
// Request ids and user ids live in the logging package's context so the
// slog handler can attach them to every record.
const StartTimeKey contextKey = "start_time"
