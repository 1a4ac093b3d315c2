package routing

import (
	"errors"
	"testing"

	"tollbooth-hq/tollbooth/pkg/config"
)

func TestRouter_DefaultRoutes(t *testing.T) {
	all := make([]string, 0)
	for id := range config.DefaultProviderBaseURLs() {
		all = append(all, id)
	}
	router, err := NewRouter(config.DefaultRoutes(), all)
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}

	tests := []struct {
		model string
		want  string
	}{
		{"gpt-4o-mini", "openai"},
		{"GPT-4o", "openai"},
		{"o3-mini", "openai"},
		{"text-embedding-3-small", "openai"},
		{"claude-sonnet-4-5", "anthropic"},
		{"llama-3.3-70b", "cerebras"},
		{"gemini-2.5-flash", "google"},
		{"grok-4", "xai"},
		{"anthropic/claude-sonnet-4.5", "gateway"},
		{"openai/gpt-4o", "gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got, err := router.Route(tt.model)
			if err != nil {
				t.Fatalf("Route failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Route(%s) = %s, want %s", tt.model, got, tt.want)
			}
		})
	}
}

func TestRouter_ExactBeatsWildcard(t *testing.T) {
	router, err := NewRouter([]config.RouteConfig{
		{Pattern: "gpt-*", Provider: "gateway"},
		{Pattern: "gpt-4o-mini", Provider: "openai"},
	}, []string{"openai", "gateway"})
	if err != nil {
		t.Fatal(err)
	}

	d, err := router.Resolve("gpt-4o-mini")
	if err != nil {
		t.Fatal(err)
	}
	if d.Provider != "openai" || d.Pattern != "gpt-4o-mini" {
		t.Errorf("Expected exact route to openai, got %+v", d)
	}
	if p, _ := router.Route("gpt-4o"); p != "gateway" {
		t.Errorf("Expected wildcard route to gateway, got %s", p)
	}
}

func TestRouter_UnavailableProviderFallsThrough(t *testing.T) {
	router, err := NewRouter([]config.RouteConfig{
		{Pattern: "claude-*", Provider: "anthropic"},
		{Pattern: "*", Provider: "gateway"},
	}, []string{"gateway"})
	if err != nil {
		t.Fatal(err)
	}

	if p, err := router.Route("claude-haiku-4-5"); err != nil || p != "gateway" {
		t.Errorf("Expected gateway fallback, got %s (%v)", p, err)
	}
}

func TestRouter_UnknownModel(t *testing.T) {
	router, err := NewRouter([]config.RouteConfig{
		{Pattern: "claude-*", Provider: "anthropic"},
		{Pattern: "gpt-*", Provider: "openai"},
	}, []string{"openai"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = router.Route("claude-haiku-4-5")
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("Expected ErrUnknownModel, got %v", err)
	}
	var ume *UnknownModelError
	if !errors.As(err, &ume) || ume.Model != "claude-haiku-4-5" {
		t.Errorf("Expected UnknownModelError, got %v", err)
	}
}

func TestNewRouter_NoProviders(t *testing.T) {
	router, err := NewRouter(config.DefaultRoutes(), nil)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}

	_, err = router.Route("gpt-4o")
	if !errors.Is(err, ErrNoProvidersConfigured) {
		t.Errorf("Expected ErrNoProvidersConfigured, got %v", err)
	}
	if !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Expected ErrUnknownModel, got %v", err)
	}
}

type routeLog struct {
	decisions []string
}

func (l *routeLog) ObserveRoute(provider, pattern string) {
	l.decisions = append(l.decisions, provider+"|"+pattern)
}

func TestRouter_Observer(t *testing.T) {
	log := &routeLog{}
	router, err := NewRouter([]config.RouteConfig{
		{Pattern: "gpt-4o-mini", Provider: "openai"},
		{Pattern: "gpt-*", Provider: "openai"},
	}, []string{"openai"}, WithObserver(log))
	if err != nil {
		t.Fatal(err)
	}

	for _, model := range []string{"gpt-4o-mini", "gpt-4o", "mistral-large"} {
		_, _ = router.Route(model)
	}

	want := []string{"openai|gpt-4o-mini", "openai|gpt-*", "|"}
	if len(log.decisions) != len(want) {
		t.Fatalf("Expected %d decisions, got %v", len(want), log.decisions)
	}
	for i := range want {
		if log.decisions[i] != want[i] {
			t.Errorf("decision %d = %q, want %q", i, log.decisions[i], want[i])
		}
	}
}

func TestNewRouter_ValidatesRoutesOfUnavailableProviders(t *testing.T) {
	_, err := NewRouter([]config.RouteConfig{
		{Pattern: "gpt-*", Provider: "openai"},
		{Pattern: "claude-*-sonnet", Provider: "anthropic"},
	}, []string{"openai"})
	if err == nil {
		t.Fatal("Expected malformed route for a keyless provider to be rejected")
	}
}
