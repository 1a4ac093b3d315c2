package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tollbooth-hq/tollbooth/pkg/config"
	"tollbooth-hq/tollbooth/pkg/pattern"
)

// Price is the per-1000-token price of a model in USD.
type Price struct {
	// InputPer1K is the price of 1000 prompt tokens.
	InputPer1K decimal.Decimal

	// OutputPer1K is the price of 1000 completion tokens.
	OutputPer1K decimal.Decimal
}

// Rule maps a model-name pattern to a price.
type Rule struct {
	Pattern string
	Price
}

// Table is the immutable pricing table loaded at startup.
type Table struct {
	rules *pattern.Table[Price]
}

// NewTable builds a pricing table from rules in priority order. Negative
// prices, duplicate literals and unreachable wildcard rules are rejected.
func NewTable(rules []Rule) (*Table, error) {
	entries := make([]pattern.Entry[Price], 0, len(rules))
	for i, r := range rules {
		p, err := pattern.Parse(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("pricing rule %d: %w", i, err)
		}
		if r.InputPer1K.IsNegative() || r.OutputPer1K.IsNegative() {
			return nil, fmt.Errorf("pricing rule %d (%s): prices cannot be negative", i, r.Pattern)
		}
		entries = append(entries, pattern.Entry[Price]{Pattern: p, Value: r.Price})
	}

	t, err := pattern.NewTable(entries)
	if err != nil {
		return nil, fmt.Errorf("pricing table: %w", err)
	}
	if shadows := t.Shadowed(); len(shadows) > 0 {
		s := shadows[0]
		return nil, fmt.Errorf("pricing rule %q is unreachable: shadowed by earlier rule %q", s.Pattern, s.ShadowedBy)
	}
	return &Table{rules: t}, nil
}

// NewTableFromConfig converts configured rules into a Table.
func NewTableFromConfig(cfg []config.PricingRuleConfig) (*Table, error) {
	rules := make([]Rule, 0, len(cfg))
	for _, rc := range cfg {
		rules = append(rules, Rule{
			Pattern: rc.Pattern,
			Price: Price{
				InputPer1K:  decimal.NewFromFloat(rc.InputPer1K),
				OutputPer1K: decimal.NewFromFloat(rc.OutputPer1K),
			},
		})
	}
	return NewTable(rules)
}

// Lookup returns the price for model and the pattern that matched.
func (t *Table) Lookup(model string) (Price, string, bool) {
	price, p, ok := t.rules.Lookup(model)
	if !ok {
		return Price{}, "", false
	}
	return price, p.String(), true
}

// Len returns the number of rules.
func (t *Table) Len() int { return t.rules.Len() }
