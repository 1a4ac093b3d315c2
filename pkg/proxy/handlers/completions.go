package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"tollbooth-hq/tollbooth/pkg/admission"
	"tollbooth-hq/tollbooth/pkg/providers"
	"tollbooth-hq/tollbooth/pkg/proxy"
	"tollbooth-hq/tollbooth/pkg/proxy/types"
	"tollbooth-hq/tollbooth/pkg/telemetry/logging"
	"tollbooth-hq/tollbooth/pkg/telemetry/tracing"
	"tollbooth-hq/tollbooth/pkg/usage"
)

// Upstream paths, relative to each provider's base URL.
const (
	chatPath       = "/chat/completions"
	embeddingsPath = "/embeddings"
)

// CompletionHandler serves the admission-controlled routes: chat
// completions, the legacy completions alias and embeddings.
//
// Every request is admitted before it is forwarded, and the admission is
// resolved exactly once: settled with the provider-reported usage, or
// released when the provider failed or reported no usage. The deferred
// Close covers every other exit, client disconnects and panics included.
type CompletionHandler struct {
	pipeline     Admitter
	providers    ProviderSource
	recorder     UpstreamRecorder
	tracer       trace.Tracer
	logger       *slog.Logger
	maxBodyBytes int64
}

// CompletionOption configures a CompletionHandler.
type CompletionOption func(*CompletionHandler)

// WithUpstreamRecorder records upstream calls, normally into metrics.
func WithUpstreamRecorder(r UpstreamRecorder) CompletionOption {
	return func(h *CompletionHandler) { h.recorder = r }
}

// WithTracer sets the tracer for proxy.forward spans.
func WithTracer(t trace.Tracer) CompletionOption {
	return func(h *CompletionHandler) { h.tracer = t }
}

// WithLogger sets the handler logger.
func WithLogger(l *slog.Logger) CompletionOption {
	return func(h *CompletionHandler) { h.logger = l }
}

// WithMaxBodyBytes bounds request bodies.
func WithMaxBodyBytes(n int64) CompletionOption {
	return func(h *CompletionHandler) { h.maxBodyBytes = n }
}

// NewCompletionHandler creates the handler.
func NewCompletionHandler(p Admitter, ps ProviderSource, opts ...CompletionOption) *CompletionHandler {
	h := &CompletionHandler{
		pipeline:     p,
		providers:    ps,
		recorder:     nopRecorder{},
		logger:       slog.Default(),
		maxBodyBytes: proxy.DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.tracer == nil {
		h.tracer = otel.Tracer(tracing.InstrumentationName)
	}
	h.logger = h.logger.With("component", "handlers")
	return h
}

// ChatCompletions handles POST /v1/chat/completions and its legacy alias
// POST /v1/completions. Both go to the provider's chat endpoint.
func (h *CompletionHandler) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req types.ChatCompletionRequest
	body, ok := h.decode(w, r, &req)
	if !ok {
		return
	}

	h.forward(w, r, forwardParams{
		body:   body,
		path:   chatPath,
		stream: req.Stream,
		admit: admission.Request{
			Model:               req.Model,
			Kind:                admission.KindChat,
			MaxCompletionTokens: req.MaxCompletionTokensValue(),
			MaxTokens:           req.MaxTokensValue(),
		},
		injectUsage: req.Stream && !req.IncludesUsage(),
	})
}

// Embeddings handles POST /v1/embeddings. The ceiling covers input tokens
// only.
func (h *CompletionHandler) Embeddings(w http.ResponseWriter, r *http.Request) {
	var req types.EmbeddingRequest
	body, ok := h.decode(w, r, &req)
	if !ok {
		return
	}

	h.forward(w, r, forwardParams{
		body: body,
		path: embeddingsPath,
		admit: admission.Request{
			Model: req.Model,
			Kind:  admission.KindEmbedding,
		},
	})
}

// decodable is implemented by the request types.
type decodable interface {
	Validate() error
}

// decode authenticates the caller, then reads and validates the body.
// Authentication runs first so unauthenticated callers never learn
// anything about body validation.
func (h *CompletionHandler) decode(w http.ResponseWriter, r *http.Request, v decodable) ([]byte, bool) {
	ctx := r.Context()

	if err := h.pipeline.Authenticate(r.Header.Get(proxy.SecretHeader)); err != nil {
		h.writeError(ctx, w, err)
		return nil, false
	}

	body, err := proxy.ReadBody(r, h.maxBodyBytes)
	if err == nil {
		err = proxy.DecodeRequest(body, v)
	}
	if err != nil {
		h.logger.WarnContext(ctx, "rejected malformed request", "error", err)
		h.writeError(ctx, w, err)
		return nil, false
	}
	return body, true
}

type forwardParams struct {
	body        []byte
	path        string
	stream      bool
	injectUsage bool
	admit       admission.Request
}

func (h *CompletionHandler) forward(w http.ResponseWriter, r *http.Request, p forwardParams) {
	ctx := r.Context()

	p.admit.Secret = r.Header.Get(proxy.SecretHeader)
	p.admit.UserID = r.Header.Get(proxy.UserIDHeader)
	p.admit.PayloadBytes = len(p.body)

	adm, err := h.pipeline.Admit(ctx, p.admit)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	defer adm.Close()
	ctx = logging.WithUser(ctx, adm.UserID)

	provider, err := h.providers.Get(adm.Provider)
	if err != nil {
		h.release(ctx, adm, admission.ReasonUpstreamError)
		h.writeError(ctx, w, err)
		return
	}

	body := p.body
	if p.injectUsage {
		body, err = proxy.InjectIncludeUsage(body)
		if err != nil {
			h.release(ctx, adm, admission.ReasonBadRequest)
			h.writeError(ctx, w, err)
			return
		}
	}

	ctx, span := h.tracer.Start(ctx, "proxy.forward", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	tracing.SetRouteAttributes(span, adm.Provider, adm.Model, p.stream)

	start := time.Now()
	resp, err := provider.Forward(ctx, p.path, body)
	latency := time.Since(start)
	if err != nil {
		outcome := providers.ErrorHint(err)
		if errors.Is(err, context.Canceled) {
			outcome = "canceled"
		}
		h.recorder.RecordUpstream(adm.Provider, outcome, latency, provider.GetHealth().IsHealthy)
		tracing.SetError(span, err)

		h.logger.WarnContext(ctx, "provider request failed",
			"provider", adm.Provider,
			"model", adm.Model,
			"error", err,
			"provider_latency_ms", latency.Milliseconds(),
		)
		h.release(ctx, adm, admission.ReasonUpstreamError)

		var upstream *providers.UpstreamError
		if errors.As(err, &upstream) && upstream.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(upstream.RetryAfter.Seconds())))
		}
		h.writeError(ctx, w, err)
		return
	}
	defer resp.Body.Close()
	h.recorder.RecordUpstream(adm.Provider, "ok", latency, provider.GetHealth().IsHealthy)

	if p.stream && isEventStream(resp.Header.Get("Content-Type")) {
		h.streamResponse(ctx, w, adm, resp)
		return
	}
	h.bufferedResponse(ctx, w, adm, resp)
}

// bufferedResponse reads the whole provider answer, settles it and passes
// it to the client unchanged.
func (h *CompletionHandler) bufferedResponse(ctx context.Context, w http.ResponseWriter, adm *admission.Admission, resp *http.Response) {
	span := trace.SpanFromContext(ctx)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		h.release(ctx, adm, admission.ReasonUpstreamError)
		nerr := &providers.NetworkError{Provider: adm.Provider, Cause: err}
		tracing.SetError(span, nerr)
		h.writeError(ctx, w, nerr)
		return
	}

	rec, err := usage.Extract(respBody)
	if err != nil {
		h.logger.WarnContext(ctx, "provider response carried no usage",
			"provider", adm.Provider,
			"model", adm.Model,
			"error", err,
		)
		h.release(ctx, adm, admission.ReasonNoUsage)
	} else {
		settlement, err := adm.Settle(ctx, rec)
		if errors.Is(err, admission.ErrInvariantViolation) {
			h.writeError(ctx, w, err)
			return
		}
		if err != nil {
			h.logger.WarnContext(ctx, "failed to settle request", "error", err)
		} else {
			tracing.SetUsageAttributes(span, settlement.Usage, settlement.Cost)
		}
	}

	if err := proxy.WriteUpstreamResponse(w, resp.StatusCode, resp.Header.Get("Content-Type"), respBody); err != nil {
		h.logger.WarnContext(ctx, "failed to write response", "error", err)
	}
}

// streamResponse tees the provider's event stream to the client and
// settles once it ends. Usage seen before a client disconnect is still
// charged; the settle must not inherit the request's cancellation.
func (h *CompletionHandler) streamResponse(ctx context.Context, w http.ResponseWriter, adm *admission.Admission, resp *http.Response) {
	span := trace.SpanFromContext(ctx)

	proxy.SetSSEHeaders(w)
	w.WriteHeader(resp.StatusCode)

	tee := usage.NewStreamTee(w, resp.Body)
	runErr := tee.Run(ctx)
	if cerr := tee.ClientErr(); cerr != nil {
		h.logger.InfoContext(ctx, "client stopped reading stream", "error", cerr, "frames", tee.Frames())
	}

	rec, ok := tee.Usage()
	switch {
	case ok:
		settlement, err := adm.Settle(context.WithoutCancel(ctx), rec)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to settle stream", "error", err)
			return
		}
		tracing.SetUsageAttributes(span, settlement.Usage, settlement.Cost)
	case runErr != nil:
		h.logger.WarnContext(ctx, "stream ended before usage was reported",
			"provider", adm.Provider,
			"frames", tee.Frames(),
			"error", runErr,
		)
		reason := admission.ReasonUpstreamError
		if errors.Is(runErr, context.Canceled) {
			reason = admission.ReasonAbandoned
		}
		h.release(ctx, adm, reason)
	default:
		h.logger.WarnContext(ctx, "stream carried no usage",
			"provider", adm.Provider,
			"model", adm.Model,
			"frames", tee.Frames(),
		)
		h.release(ctx, adm, admission.ReasonNoUsage)
	}
}

func (h *CompletionHandler) release(ctx context.Context, adm *admission.Admission, reason string) {
	if err := adm.Release(context.WithoutCancel(ctx), reason); err != nil {
		h.logger.ErrorContext(ctx, "failed to release reservation", "reason", reason, "error", err)
	}
}

func (h *CompletionHandler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	if err := proxy.WriteErrorResponse(w, proxy.HandleError(err)); err != nil {
		h.logger.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

func isEventStream(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/event-stream"
}
