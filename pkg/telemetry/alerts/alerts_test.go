package alerts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tollbooth-hq/tollbooth/pkg/config"
	"tollbooth-hq/tollbooth/pkg/telemetry/logging"
)

type capturedEvents struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (c *capturedEvents) beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func testReporter(t *testing.T) (*Reporter, *capturedEvents) {
	t.Helper()
	captured := &capturedEvents{}
	r, err := newReporter(sentry.ClientOptions{
		Dsn:        "https://public@sentry.example.com/1",
		BeforeSend: captured.beforeSend,
	}, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return r, captured
}

func TestNew_DisabledWithoutDSN(t *testing.T) {
	r, err := New(config.AlertsConfig{}, "test", nil)
	require.NoError(t, err)
	assert.False(t, r.Enabled())

	r.Raise(context.Background(), errors.New("ignored"), nil)
	r.Flush()
}

func TestNew_InvalidDSN(t *testing.T) {
	_, err := New(config.AlertsConfig{SentryDSN: "not a dsn"}, "test", nil)
	assert.Error(t, err)
}

func TestRaise(t *testing.T) {
	r, captured := testReporter(t)
	require.True(t, r.Enabled())

	ctx := logging.WithRequestID(context.Background(), "req-1")
	r.Raise(ctx, errors.New("settle on unknown token"), map[string]string{
		"stage":   "settle",
		"user_id": "u-42",
	})

	captured.mu.Lock()
	defer captured.mu.Unlock()
	require.Len(t, captured.events, 1)

	ev := captured.events[0]
	assert.Equal(t, sentry.LevelFatal, ev.Level)
	assert.Equal(t, "settle", ev.Tags["stage"])
	assert.Equal(t, "req-1", ev.Tags[string(logging.RequestIDKey)])
	assert.Equal(t, "u-42", ev.User.ID)
	require.NotEmpty(t, ev.Exception)
	assert.Equal(t, "settle on unknown token", ev.Exception[0].Value)
}

func TestRaise_NilError(t *testing.T) {
	r, captured := testReporter(t)

	r.Raise(context.Background(), nil, nil)

	captured.mu.Lock()
	defer captured.mu.Unlock()
	assert.Empty(t, captured.events)
}
