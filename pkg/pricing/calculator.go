package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"tollbooth-hq/tollbooth/pkg/money"
	"tollbooth-hq/tollbooth/pkg/usage"
)

// ErrNoPricing is returned when no rule prices a model. The calculator fails
// closed: an unpriced model is an error, never a zero charge.
var ErrNoPricing = errors.New("no pricing rule for model")

// NoPricingError carries the model that could not be priced.
type NoPricingError struct {
	Model string
}

// Error implements the error interface.
func (e *NoPricingError) Error() string {
	return fmt.Sprintf("no pricing rule for model %q", e.Model)
}

// Is implements error matching for errors.Is().
func (e *NoPricingError) Is(target error) bool {
	return target == ErrNoPricing
}

// Breakdown is an exact, unrounded cost split plus the rounded total.
type Breakdown struct {
	Model   string
	Pattern string

	// Input is input_tokens/1000 * input price, unrounded.
	Input decimal.Decimal

	// Output is output_tokens/1000 * output price, unrounded.
	Output decimal.Decimal

	// Total is Input+Output rounded half-up to minor units.
	Total money.Amount
}

// Estimate describes the worst case of a request before it is forwarded.
type Estimate struct {
	InputTokens     int64
	MaxOutputTokens int64
}

// Calculator converts token usage into money. It holds no mutable state and is
// safe for concurrent use.
type Calculator struct {
	table *Table
}

// NewCalculator creates a calculator over an immutable pricing table.
func NewCalculator(table *Table) *Calculator {
	return &Calculator{table: table}
}

// Price returns the price for a model or a NoPricingError.
func (c *Calculator) Price(model string) (Price, string, error) {
	price, pat, ok := c.table.Lookup(model)
	if !ok {
		return Price{}, "", &NoPricingError{Model: model}
	}
	return price, pat, nil
}

// Breakdown computes the exact cost of rec when billed as model.
func (c *Calculator) Breakdown(model string, rec usage.Record) (Breakdown, error) {
	if rec.InputTokens < 0 || rec.OutputTokens < 0 {
		return Breakdown{}, fmt.Errorf("negative token counts (input=%d, output=%d)", rec.InputTokens, rec.OutputTokens)
	}
	price, pat, err := c.Price(model)
	if err != nil {
		return Breakdown{}, err
	}

	in := tokenCost(rec.InputTokens, price.InputPer1K)
	out := tokenCost(rec.OutputTokens, price.OutputPer1K)
	return Breakdown{
		Model:   model,
		Pattern: pat,
		Input:   in,
		Output:  out,
		Total:   money.FromDecimal(in.Add(out)),
	}, nil
}

// Cost returns the cost of rec billed as model, rounded half-up.
func (c *Calculator) Cost(model string, rec usage.Record) (money.Amount, error) {
	b, err := c.Breakdown(model, rec)
	if err != nil {
		return 0, err
	}
	return b.Total, nil
}

// Ceiling returns the worst-case cost of a request, rounded up.
func (c *Calculator) Ceiling(model string, est Estimate) (money.Amount, error) {
	if est.InputTokens < 0 || est.MaxOutputTokens < 0 {
		return 0, fmt.Errorf("negative estimate (input=%d, max_output=%d)", est.InputTokens, est.MaxOutputTokens)
	}
	price, _, err := c.Price(model)
	if err != nil {
		return 0, err
	}

	worst := tokenCost(est.InputTokens, price.InputPer1K).
		Add(tokenCost(est.MaxOutputTokens, price.OutputPer1K))
	return money.FromDecimalCeil(worst), nil
}

// tokenCost is tokens/1000 * per1K. Shift keeps the division exact.
func tokenCost(tokens int64, per1K decimal.Decimal) decimal.Decimal {
	if tokens <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(tokens).Mul(per1K).Shift(-3)
}
