package pricing

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"tollbooth-hq/tollbooth/pkg/config"
	"tollbooth-hq/tollbooth/pkg/money"
	"tollbooth-hq/tollbooth/pkg/usage"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestCalculator(t *testing.T) *Calculator {
	t.Helper()
	table, err := NewTable([]Rule{
		{Pattern: "gpt-*", Price: Price{InputPer1K: d("0.005"), OutputPer1K: d("0.015")}},
		{Pattern: "gpt-4o-mini", Price: Price{InputPer1K: d("0.00015"), OutputPer1K: d("0.0006")}},
		{Pattern: "*claude-sonnet-4*", Price: Price{InputPer1K: d("0.003"), OutputPer1K: d("0.015")}},
		{Pattern: "text-embedding-*", Price: Price{InputPer1K: d("0.0001")}},
	})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	return NewCalculator(table)
}

func TestCalculator_Cost(t *testing.T) {
	calc := newTestCalculator(t)

	tests := []struct {
		name  string
		model string
		rec   usage.Record
		want  money.Amount
	}{
		{
			// 1000/1000*0.005 + 500/1000*0.015 = 0.0125
			name:  "generic gpt rule",
			model: "gpt-4-turbo",
			rec:   usage.Record{InputTokens: 1000, OutputTokens: 500},
			want:  125,
		},
		{
			// 1000/1000*0.00015 + 1000/1000*0.0006 = 0.00075
			name:  "exact rule beats wildcard",
			model: "gpt-4o-mini",
			rec:   usage.Record{InputTokens: 1000, OutputTokens: 1000},
			want:  8, // 7.5 units rounds half-up
		},
		{
			name:  "substring rule through a gateway prefix",
			model: "anthropic/claude-sonnet-4.5",
			rec:   usage.Record{InputTokens: 2000, OutputTokens: 1000},
			want:  210, // 0.006 + 0.015
		},
		{
			name:  "embedding has no output price",
			model: "text-embedding-3-small",
			rec:   usage.Record{InputTokens: 8000},
			want:  8,
		},
		{
			name:  "zero usage costs nothing",
			model: "gpt-4o",
			rec:   usage.Record{},
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.Cost(tt.model, tt.rec)
			if err != nil {
				t.Fatalf("Cost failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Cost(%s, %+v) = %d, want %d", tt.model, tt.rec, got, tt.want)
			}
		})
	}
}

func TestCalculator_FailsClosed(t *testing.T) {
	calc := newTestCalculator(t)

	_, err := calc.Cost("mistral-large", usage.Record{InputTokens: 10, OutputTokens: 10})
	if !errors.Is(err, ErrNoPricing) {
		t.Fatalf("Expected ErrNoPricing, got %v", err)
	}
	var npe *NoPricingError
	if !errors.As(err, &npe) || npe.Model != "mistral-large" {
		t.Errorf("Expected NoPricingError for mistral-large, got %v", err)
	}

	if _, err := calc.Ceiling("mistral-large", Estimate{MaxOutputTokens: 100}); !errors.Is(err, ErrNoPricing) {
		t.Errorf("Expected Ceiling to fail closed, got %v", err)
	}
}

func TestCalculator_Deterministic(t *testing.T) {
	calc := newTestCalculator(t)
	rec := usage.Record{InputTokens: 1234, OutputTokens: 5678}

	first, err := calc.Cost("gpt-4o", rec)
	if err != nil {
		t.Fatalf("Cost failed: %v", err)
	}
	for i := 0; i < 100; i++ {
		got, _ := calc.Cost("gpt-4o", rec)
		if got != first {
			t.Fatalf("Cost changed between calls: %d vs %d", got, first)
		}
	}
}

func TestCalculator_OutputTermDoubles(t *testing.T) {
	calc := newTestCalculator(t)

	for _, out := range []int64{1, 7, 333, 4096, 123457} {
		one, err := calc.Breakdown("gpt-4o-mini", usage.Record{InputTokens: 100, OutputTokens: out})
		if err != nil {
			t.Fatalf("Breakdown failed: %v", err)
		}
		two, err := calc.Breakdown("gpt-4o-mini", usage.Record{InputTokens: 100, OutputTokens: 2 * out})
		if err != nil {
			t.Fatalf("Breakdown failed: %v", err)
		}
		if !two.Output.Equal(one.Output.Mul(decimal.NewFromInt(2))) {
			t.Errorf("output=%d: doubled term %s != 2 x %s", out, two.Output, one.Output)
		}
		if !two.Input.Equal(one.Input) {
			t.Errorf("output=%d: input term changed (%s vs %s)", out, one.Input, two.Input)
		}
		if two.Total < one.Total {
			t.Errorf("output=%d: total decreased (%d -> %d)", out, one.Total, two.Total)
		}
	}
}

func TestCalculator_Ceiling(t *testing.T) {
	calc := newTestCalculator(t)

	// 1/1000*0.00015 + 1/1000*0.0006 = 0.00000075 USD, far below one unit.
	got, err := calc.Ceiling("gpt-4o-mini", Estimate{InputTokens: 1, MaxOutputTokens: 1})
	if err != nil {
		t.Fatalf("Ceiling failed: %v", err)
	}
	if got != 1 {
		t.Errorf("Expected ceiling to round up to 1 unit, got %d", got)
	}

	// 4096/1000*0.015 + 500/1000*0.005 = 0.06144 + 0.0025 = 0.06394
	got, err = calc.Ceiling("gpt-4o", Estimate{InputTokens: 500, MaxOutputTokens: 4096})
	if err != nil {
		t.Fatalf("Ceiling failed: %v", err)
	}
	if got != 640 {
		t.Errorf("Expected ceiling 640 units, got %d", got)
	}

	cost, _ := calc.Cost("gpt-4o", usage.Record{InputTokens: 500, OutputTokens: 4096})
	if cost > got {
		t.Errorf("Ceiling %d must cover the cost of the same usage (%d)", got, cost)
	}
}

func TestCalculator_CeilingSaturates(t *testing.T) {
	table, err := NewTable([]Rule{
		{Pattern: "o1-pro", Price: Price{InputPer1K: d("0.15"), OutputPer1K: d("0.6")}},
	})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	calc := NewCalculator(table)

	tests := []struct {
		name      string
		maxOutput int64
		want      money.Amount
	}{
		{name: "ordinary", maxOutput: 1000, want: 6000},
		{name: "just past int64 units", maxOutput: 3074457345618258603, want: money.Max},
		{name: "next token", maxOutput: 3074457345618258604, want: money.Max},
		{name: "max int64 tokens", maxOutput: math.MaxInt64, want: money.Max},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.Ceiling("o1-pro", Estimate{MaxOutputTokens: tt.maxOutput})
			if err != nil {
				t.Fatalf("Ceiling failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Ceiling(max_output=%d) = %d, want %d", tt.maxOutput, got, tt.want)
			}
		})
	}

	cost, err := calc.Cost("o1-pro", usage.Record{OutputTokens: math.MaxInt64})
	if err != nil {
		t.Fatalf("Cost failed: %v", err)
	}
	if cost != money.Max {
		t.Errorf("Expected cost to saturate, got %d", cost)
	}
}

func TestNewTable_Validation(t *testing.T) {
	tests := []struct {
		name  string
		rules []Rule
	}{
		{
			name:  "negative price",
			rules: []Rule{{Pattern: "gpt-*", Price: Price{InputPer1K: d("-1")}}},
		},
		{
			name: "shadowed rule",
			rules: []Rule{
				{Pattern: "*gpt-4o*", Price: Price{InputPer1K: d("0.005")}},
				{Pattern: "*gpt-4o-mini*", Price: Price{InputPer1K: d("0.00015")}},
			},
		},
		{
			name:  "bad pattern",
			rules: []Rule{{Pattern: "gpt*mini"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTable(tt.rules); err == nil {
				t.Error("Expected NewTable to fail")
			}
		})
	}
}

func TestNewTableFromConfig(t *testing.T) {
	table, err := NewTableFromConfig([]config.PricingRuleConfig{
		{Pattern: "gpt-4o-mini", InputPer1K: 0.00015, OutputPer1K: 0.0006},
	})
	if err != nil {
		t.Fatalf("NewTableFromConfig failed: %v", err)
	}
	price, pat, ok := table.Lookup("GPT-4o-mini")
	if !ok {
		t.Fatal("Expected a match")
	}
	if pat != "gpt-4o-mini" {
		t.Errorf("Expected pattern gpt-4o-mini, got %s", pat)
	}
	if !price.OutputPer1K.Equal(d("0.0006")) {
		t.Errorf("Expected exact decimal conversion, got %s", price.OutputPer1K)
	}
}

func TestDefaultPricingTable(t *testing.T) {
	table, err := NewTableFromConfig(config.DefaultPricingRules())
	if err != nil {
		t.Fatalf("Default pricing rules must build: %v", err)
	}
	calc := NewCalculator(table)

	_, pat, err := calc.Price("gpt-4o-mini")
	if err != nil {
		t.Fatalf("Price failed: %v", err)
	}
	if pat != "*gpt-4o-mini*" {
		t.Errorf("Expected gpt-4o-mini to hit its own rule, got %s", pat)
	}
}
