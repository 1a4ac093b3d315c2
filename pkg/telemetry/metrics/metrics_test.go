package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"tollbooth-hq/tollbooth/pkg/config"
	"tollbooth-hq/tollbooth/pkg/money"
	"tollbooth-hq/tollbooth/pkg/usage"
)

func boolPtr(b bool) *bool { return &b }

func testCollector(enabled bool) *Collector {
	return NewCollector(&config.MetricsConfig{
		Enabled:   boolPtr(enabled),
		Namespace: "test",
	}, prometheus.NewRegistry())
}

func TestCollector_Admission(t *testing.T) {
	c := testCollector(true)

	c.ObserveAdmit("admitted", "openai", 200)
	c.ObserveAdmit("admitted", "openai", 300)
	c.ObserveAdmit("budget_exhausted", "", 0)

	am := c.admissionMetrics
	if got := testutil.ToFloat64(am.admissions.WithLabelValues("admitted")); got != 2 {
		t.Errorf("Expected 2 admitted, got %v", got)
	}
	if got := testutil.ToFloat64(am.admissions.WithLabelValues("budget_exhausted")); got != 1 {
		t.Errorf("Expected 1 budget_exhausted, got %v", got)
	}
	if got := testutil.CollectAndCount(am.ceiling); got != 1 {
		t.Errorf("Expected one ceiling histogram, got %d", got)
	}
}

func TestCollector_Settle(t *testing.T) {
	c := testCollector(true)

	c.ObserveSettle("openai", "gpt-4o-mini", usage.Record{InputTokens: 300, OutputTokens: 200}, 70, 200)
	c.ObserveSettle("openai", "gpt-4o-mini", usage.Record{InputTokens: 100, OutputTokens: 50}, 250, 200)

	am := c.admissionMetrics
	if got := testutil.ToFloat64(am.settledCost.WithLabelValues("openai", "gpt-4o-mini")); got < 0.0319 || got > 0.0321 {
		t.Errorf("Expected $0.032 settled, got %v", got)
	}
	if got := testutil.ToFloat64(am.tokens.WithLabelValues("openai", "gpt-4o-mini", "input")); got != 400 {
		t.Errorf("Expected 400 input tokens, got %v", got)
	}
	if got := testutil.ToFloat64(am.tokens.WithLabelValues("openai", "gpt-4o-mini", "output")); got != 250 {
		t.Errorf("Expected 250 output tokens, got %v", got)
	}
	if got := testutil.ToFloat64(am.ceilingExceeded.WithLabelValues("gpt-4o-mini")); got != 1 {
		t.Errorf("Expected 1 ceiling overshoot, got %v", got)
	}
}

func TestCollector_ReleasesAndViolations(t *testing.T) {
	c := testCollector(true)

	c.ObserveRelease("anthropic", "upstream_error")
	c.ObserveRelease("anthropic", "upstream_error")
	c.ObserveInvariantViolation("settle")

	if got := testutil.ToFloat64(c.admissionMetrics.releases.WithLabelValues("anthropic", "upstream_error")); got != 2 {
		t.Errorf("Expected 2 releases, got %v", got)
	}
	if got := testutil.ToFloat64(c.admissionMetrics.violations.WithLabelValues("settle")); got != 1 {
		t.Errorf("Expected 1 violation, got %v", got)
	}
}

func TestCollector_Flush(t *testing.T) {
	c := testCollector(true)

	c.ObserveFlush(false, 1, 500, 10*time.Millisecond)
	c.ObservePending(1, 500)
	c.ObserveFlush(true, 1, 800, 5*time.Millisecond)
	c.ObservePending(0, 0)

	lm := c.ledgerMetrics
	if got := testutil.ToFloat64(lm.flushes.WithLabelValues("failure")); got != 1 {
		t.Errorf("Expected 1 failed flush, got %v", got)
	}
	if got := testutil.ToFloat64(lm.flushes.WithLabelValues("success")); got != 1 {
		t.Errorf("Expected 1 successful flush, got %v", got)
	}
	if got := testutil.ToFloat64(lm.flushed); got < 0.0799 || got > 0.0801 {
		t.Errorf("Expected $0.08 flushed, got %v", got)
	}
	if got := testutil.ToFloat64(lm.pendingUSD); got != 0 {
		t.Errorf("Expected no pending spend, got %v", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	c := testCollector(false)

	c.ObserveAdmit("admitted", "openai", 100)
	c.RecordHTTPRequest("/v1/chat/completions", "200", time.Second)
	c.ObserveInvariantViolation("release")

	if got := testutil.ToFloat64(c.admissionMetrics.admissions.WithLabelValues("admitted")); got != 0 {
		t.Errorf("Expected no admissions recorded, got %v", got)
	}
	if got := testutil.ToFloat64(c.admissionMetrics.violations.WithLabelValues("release")); got != 1 {
		t.Errorf("Invariant violations must be counted even when disabled, got %v", got)
	}
}

func TestCollector_UpstreamAndLedgerSize(t *testing.T) {
	c := testCollector(true)
	c.RegisterLedgerSize(func() int { return 42 })

	c.RecordUpstream("openai", "ok", 150*time.Millisecond, true)
	c.RecordUpstream("openai", "rate_limited", 20*time.Millisecond, true)
	c.RecordUpstream("xai", "provider_error", time.Second, false)

	pm := c.providerMetrics
	if got := testutil.ToFloat64(pm.requests.WithLabelValues("openai", "ok")); got != 1 {
		t.Errorf("Expected 1 ok call, got %v", got)
	}
	if got := testutil.ToFloat64(pm.health.WithLabelValues("xai")); got != 0 {
		t.Errorf("Expected xai unhealthy, got %v", got)
	}

	expected := `
# HELP test_ledger_accounts Number of user accounts held in memory
# TYPE test_ledger_accounts gauge
test_ledger_accounts 42
`
	if err := testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "test_ledger_accounts"); err != nil {
		t.Error(err)
	}
}

func TestCollector_Routes(t *testing.T) {
	c := testCollector(true)

	c.ObserveRoute("openai", "gpt-*")
	c.ObserveRoute("openai", "gpt-*")
	c.ObserveRoute("", "")

	pm := c.providerMetrics
	if got := testutil.ToFloat64(pm.routes.WithLabelValues("openai", "gpt-*")); got != 2 {
		t.Errorf("Expected 2 gpt-* matches, got %v", got)
	}
	if got := testutil.ToFloat64(pm.routes.WithLabelValues("none", "none")); got != 1 {
		t.Errorf("Expected 1 unrouted model, got %v", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := testCollector(true)
	c.RecordHTTPRequest("/v1/chat/completions", "402", 3*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `test_http_requests_total{route="/v1/chat/completions",status="402"} 1`) {
		t.Errorf("Expected request counter in output:\n%s", body)
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)

	if !cl.Allow("a") || !cl.Allow("b") {
		t.Fatal("Expected first two label sets to be allowed")
	}
	if cl.Allow("c") {
		t.Error("Expected third label set to be rejected")
	}
	if !cl.Allow("a") {
		t.Error("Expected existing label set to be allowed")
	}
	if cl.Count() != 2 {
		t.Errorf("Expected count 2, got %d", cl.Count())
	}
}

func TestCollector_ModelLabelOverflow(t *testing.T) {
	c := testCollector(true)
	c.cardinalityLimiter = NewCardinalityLimiter(1)

	c.ObserveSettle("openai", "gpt-a", usage.Record{}, money.Amount(10), 10)
	c.ObserveSettle("openai", "gpt-b", usage.Record{}, money.Amount(10), 10)

	if got := testutil.ToFloat64(c.admissionMetrics.settledCost.WithLabelValues("openai", otherModel)); got == 0 {
		t.Error("Expected overflowing model to be recorded as other")
	}
}
