package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tollbooth-hq/tollbooth/pkg/telemetry/logging"
	"tollbooth-hq/tollbooth/pkg/telemetry/tracing"
)

// TracingMiddleware starts a server span per request, joined to the
// caller's trace when it sent traceparent. It must sit directly outside
// the ServeMux so the matched pattern is visible after the call.
func TracingMiddleware(tracer trace.Tracer) func(http.Handler) http.Handler {
	if tracer == nil {
		tracer = otel.Tracer(tracing.InstrumentationName)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := tracing.Extract(r.Context(), r.Header)
			ctx, span := tracer.Start(ctx, "proxy.request",
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String(tracing.AttrRequestID, logging.GetRequestID(ctx)),
				),
			)
			defer span.End()

			rw := newResponseWriter(w)
			req := r.WithContext(ctx)
			next.ServeHTTP(rw, req)

			if req.Pattern != "" {
				span.SetAttributes(attribute.String("http.route", req.Pattern))
			}
			tracing.SetHTTPStatus(span, rw.statusCode)
		})
	}
}
