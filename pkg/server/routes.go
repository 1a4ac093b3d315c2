package server

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"tollbooth-hq/tollbooth/pkg/proxy/handlers"
	"tollbooth-hq/tollbooth/pkg/proxy/middleware"
	"tollbooth-hq/tollbooth/pkg/telemetry/health"
)

// Routes holds everything mounted on the proxy's mux.
type Routes struct {
	Completions *handlers.CompletionHandler
	Models      *handlers.ModelsHandler
	Budget      *handlers.BudgetHandler
	Health      *health.Checker

	// Metrics is served at MetricsPath when non-nil.
	Metrics     http.Handler
	MetricsPath string

	// Authenticate guards every route that is not admission-controlled
	// and not a probe.
	Authenticate func(secret string) error

	Logger   *slog.Logger
	Recorder middleware.RequestRecorder
	Tracer   trace.Tracer
}

// NewHandler builds the mux and wraps it in the middleware chain:
// RequestID(Recovery(Logging(Tracing(mux)))).
func NewHandler(rt Routes) http.Handler {
	mux := http.NewServeMux()

	// Completion routes authenticate inside the admission pipeline.
	mux.HandleFunc("POST /v1/chat/completions", rt.Completions.ChatCompletions)
	mux.HandleFunc("POST /v1/completions", rt.Completions.ChatCompletions)
	mux.HandleFunc("POST /v1/embeddings", rt.Completions.Embeddings)

	auth := middleware.RequireSecret(rt.Authenticate)
	mux.Handle("GET /v1/models", auth(http.HandlerFunc(rt.Models.List)))
	mux.Handle("GET /v1/models/recommended", auth(http.HandlerFunc(rt.Models.Recommended)))
	mux.Handle("GET /v1/budget", auth(http.HandlerFunc(rt.Budget.CallerBudget)))
	mux.Handle("GET /internal/budgets/{user_id}", auth(http.HandlerFunc(rt.Budget.GetAccount)))
	mux.Handle("PUT /internal/budgets/{user_id}", auth(http.HandlerFunc(rt.Budget.SetBalance)))
	mux.Handle("POST /internal/budgets/{user_id}/credit", auth(http.HandlerFunc(rt.Budget.Credit)))

	rt.Health.Register(mux)
	if rt.Metrics != nil {
		path := rt.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, rt.Metrics)
	}

	var handler http.Handler = mux
	handler = middleware.TracingMiddleware(rt.Tracer)(handler)
	handler = middleware.LoggingMiddleware(rt.Logger, rt.Recorder)(handler)
	handler = middleware.RecoveryMiddleware(handler)
	handler = middleware.RequestIDMiddleware(handler)
	return handler
}
