package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"tollbooth-hq/tollbooth/pkg/config"
	"tollbooth-hq/tollbooth/pkg/telemetry/tracing"
	"tollbooth-hq/tollbooth/pkg/usage"
)

// maxErrorBody bounds how much of a non-2xx body is read for its message.
const maxErrorBody = 64 * 1024

// HTTPProvider forwards requests to an OpenAI-compatible endpoint over a
// pooled HTTP transport with bearer authentication.
type HTTPProvider struct {
	name    string
	baseURL string
	apiKey  string
	headers map[string]string
	timeout time.Duration

	// client is the HTTP client with connection pooling
	client *http.Client

	logger *slog.Logger

	// health tracks the provider's health status
	health ProviderHealth

	// healthMu protects concurrent access to health status
	healthMu sync.RWMutex
}

// NewHTTPProvider creates a provider with its own connection pool.
//
// The client has no overall timeout because streamed completions can
// legitimately run for minutes; cfg.Timeout bounds each request through its
// context instead, including the time spent reading the body.
func NewHTTPProvider(name string, cfg config.ProviderConfig, logger *slog.Logger) *HTTPProvider {
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	now := time.Now()
	return &HTTPProvider{
		name:    name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		headers: headers,
		timeout: cfg.Timeout,
		client:  &http.Client{Transport: transport},
		logger:  logger.With("component", "provider", "provider", name),
		health: ProviderHealth{
			IsHealthy:             true,
			LastCheck:             now,
			LastSuccessfulRequest: now,
		},
	}
}

// Name returns the provider id.
func (p *HTTPProvider) Name() string {
	return p.name
}

// BaseURL returns the endpoint requests are sent to.
func (p *HTTPProvider) BaseURL() string {
	return p.baseURL
}

// Forward implements Provider.
func (p *HTTPProvider) Forward(ctx context.Context, path string, body []byte) (*http.Response, error) {
	var cancel context.CancelFunc
	if p.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	for key, value := range p.headers {
		req.Header.Set(key, value)
	}
	tracing.Inject(ctx, req.Header)

	p.logger.Debug("forwarding request", "path", path, "bytes", len(body))

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		cancel()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			terr := &TimeoutError{Provider: p.name, Timeout: p.timeout}
			p.recordRequest(false)
			p.updateHealth(false, terr)
			return nil, terr
		}
		nerr := &NetworkError{Provider: p.name, Cause: err}
		// A caller that went away says nothing about the provider.
		if !errors.Is(err, context.Canceled) {
			p.recordRequest(false)
			p.updateHealth(false, nerr)
		}
		return nil, nerr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		cancel()

		uerr := &UpstreamError{
			Provider:   p.name,
			StatusCode: resp.StatusCode,
			Message:    usage.UpstreamMessage(errorBody),
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			uerr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}

		p.recordRequest(false)
		// Rate limits and rejected payloads are not provider outages.
		if resp.StatusCode >= 500 || uerr.IsAuthError() {
			p.updateHealth(false, uerr)
		}

		p.logger.Warn("upstream returned error status",
			"path", path,
			"status", resp.StatusCode,
			"hint", uerr.Hint(),
			"latency", time.Since(start),
		)
		return nil, uerr
	}

	p.recordRequest(true)
	p.updateHealth(true, nil)
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// Close closes idle connections.
func (p *HTTPProvider) Close() error {
	p.client.CloseIdleConnections()
	p.logger.Debug("provider closed")
	return nil
}

// cancelOnClose releases the request context once the caller is done with
// the response body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}
