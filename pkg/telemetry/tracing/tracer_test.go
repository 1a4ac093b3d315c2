package tracing

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"tollbooth-hq/tollbooth/pkg/config"
	"tollbooth-hq/tollbooth/pkg/usage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.TracingConfig
		wantErr bool
	}{
		{
			name:    "nil config",
			config:  nil,
			wantErr: true,
		},
		{
			name:   "disabled tracing",
			config: &config.TracingConfig{Enabled: false},
		},
		{
			name: "unknown sampler",
			config: &config.TracingConfig{
				Enabled:  true,
				Sampler:  "sometimes",
				Endpoint: "localhost:4317",
			},
			wantErr: true,
		},
		{
			name: "ratio out of range",
			config: &config.TracingConfig{
				Enabled:     true,
				Sampler:     SamplerRatio,
				SampleRatio: 1.5,
				Endpoint:    "localhost:4317",
			},
			wantErr: true,
		},
		{
			name: "missing endpoint",
			config: &config.TracingConfig{
				Enabled: true,
				Sampler: SamplerAlways,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config, "test")
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tracer.Enabled() {
				t.Error("Expected disabled tracer")
			}
			ctx, span := tracer.Start(context.Background(), "noop")
			span.End()
			if TraceID(ctx) != "" {
				t.Error("Expected no trace ID from a noop span")
			}
			if err := tracer.Shutdown(context.Background()); err != nil {
				t.Errorf("Shutdown() error = %v", err)
			}
		})
	}
}

func TestNew_Enabled(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tracer, err := New(&config.TracingConfig{
		Enabled:  true,
		Sampler:  SamplerAlways,
		Endpoint: "127.0.0.1:4317",
		Insecure: true,
		Timeout:  time.Second,
	}, "1.2.3")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !tracer.Enabled() {
		t.Fatal("Expected enabled tracer")
	}

	ctx, span := tracer.Start(context.Background(), "admission.admit")
	if TraceID(ctx) == "" || SpanID(ctx) == "" {
		t.Error("Expected a sampled span with ids")
	}
	span.End()

	// No collector is listening; shutdown may fail to export but must return.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = tracer.Shutdown(shutdownCtx)
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{SamplerAlways, 0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.25, false},
		{"", 0.1, false},
		{SamplerRatio, -0.1, true},
		{"random", 0.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			s, err := createSampler(tt.strategy, tt.ratio)
			if (err != nil) != tt.wantErr {
				t.Fatalf("createSampler() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && s == nil {
				t.Error("Expected a sampler")
			}
		})
	}
}

func recordingTracer(t *testing.T) (trace.Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp.Tracer("test"), rec
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestSpanHelpers(t *testing.T) {
	tr, rec := recordingTracer(t)

	_, span := tr.Start(context.Background(), "proxy.forward")
	SetRouteAttributes(span, "openai", "gpt-4o-mini", true)
	SetUsageAttributes(span, usage.Record{InputTokens: 300, OutputTokens: 200}, 70)
	SetHTTPStatus(span, http.StatusBadGateway)
	SetError(span, errors.New("upstream failed"))
	SetError(span, nil)
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(ended))
	}
	s := ended[0]
	if s.Status().Code != codes.Error {
		t.Errorf("Expected error status, got %v", s.Status().Code)
	}
	if v, ok := attrValue(s.Attributes(), AttrProvider); !ok || v.AsString() != "openai" {
		t.Errorf("Expected provider attribute, got %v", v)
	}
	if v, ok := attrValue(s.Attributes(), AttrTokensOutput); !ok || v.AsInt64() != 200 {
		t.Errorf("Expected 200 output tokens, got %v", v)
	}
	if v, ok := attrValue(s.Attributes(), AttrCostUSD); !ok || v.AsString() != "0.0070" {
		t.Errorf("Expected cost 0.0070, got %v", v)
	}
	if len(s.Events()) != 1 {
		t.Errorf("Expected one recorded error event, got %d", len(s.Events()))
	}
}

func TestSetHTTPStatus_ClientErrorsAreNotFailures(t *testing.T) {
	tr, rec := recordingTracer(t)

	_, span := tr.Start(context.Background(), "proxy.request")
	SetHTTPStatus(span, http.StatusPaymentRequired)
	span.End()

	if got := rec.Ended()[0].Status().Code; got == codes.Error {
		t.Error("402 should not mark the span failed")
	}
}

func TestPropagation(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	tr, _ := recordingTracer(t)
	ctx, span := tr.Start(context.Background(), "client")
	defer span.End()

	headers := http.Header{}
	Inject(ctx, headers)
	if headers.Get("traceparent") == "" {
		t.Fatal("Expected traceparent header")
	}

	extracted := Extract(context.Background(), headers)
	if got, want := TraceID(extracted), TraceID(ctx); got != want {
		t.Errorf("TraceID() = %q, want %q", got, want)
	}
}
