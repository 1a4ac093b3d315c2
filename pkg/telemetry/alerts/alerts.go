// Package alerts reports ledger invariant violations to Sentry.
//
// A violation means a settle or release found no matching hold. It is a
// bug, not a request failure, and someone should be paged for it. Request
// errors such as budget exhaustion or upstream failures are never sent.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"tollbooth-hq/tollbooth/pkg/config"
	"tollbooth-hq/tollbooth/pkg/telemetry/logging"
)

const defaultFlushTimeout = 2 * time.Second

// Reporter implements the admission alarm. Without a DSN it is inert.
type Reporter struct {
	hub          *sentry.Hub
	flushTimeout time.Duration
	logger       *slog.Logger
}

// New creates a Reporter from cfg. An empty DSN returns a disabled
// reporter and no error.
func New(cfg config.AlertsConfig, version string, logger *slog.Logger) (*Reporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "alerts")

	if cfg.SentryDSN == "" {
		return &Reporter{logger: logger}, nil
	}

	env := cfg.Environment
	if env == "" {
		env = "production"
	}
	return newReporter(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: env,
		Release:     "tollbooth@" + version,
	}, cfg.FlushTimeout, logger)
}

func newReporter(opts sentry.ClientOptions, flushTimeout time.Duration, logger *slog.Logger) (*Reporter, error) {
	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create sentry client: %w", err)
	}
	if flushTimeout <= 0 {
		flushTimeout = defaultFlushTimeout
	}
	return &Reporter{
		hub:          sentry.NewHub(client, sentry.NewScope()),
		flushTimeout: flushTimeout,
		logger:       logger,
	}, nil
}

// Enabled reports whether events are sent.
func (r *Reporter) Enabled() bool {
	return r.hub != nil
}

// Raise sends err with tags. The request id and user id from ctx are
// attached when present.
func (r *Reporter) Raise(ctx context.Context, err error, tags map[string]string) {
	if r.hub == nil || err == nil {
		return
	}

	hub := r.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelFatal)
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		if id := logging.GetRequestID(ctx); id != "" {
			scope.SetTag(string(logging.RequestIDKey), id)
		}
		if user, ok := tags["user_id"]; ok {
			scope.SetUser(sentry.User{ID: user})
		} else if user := logging.GetUser(ctx); user != "" {
			scope.SetUser(sentry.User{ID: user})
		}
	})

	hub.CaptureException(err)
}

// Flush waits up to the flush timeout for queued events.
func (r *Reporter) Flush() {
	if r.hub == nil {
		return
	}
	if !r.hub.Flush(r.flushTimeout) {
		r.logger.Warn("timed out flushing sentry events", "timeout", r.flushTimeout)
	}
}
