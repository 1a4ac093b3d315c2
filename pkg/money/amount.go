// Package money defines the fixed-point currency type shared by the ledger,
// the pricing table and the durable stores.
//
// Amounts are integer minor units of one hundredth of a cent, so 1 USD is
// 10000 units. Conversions from decimal USD values round half-up; ceilings
// round toward positive infinity.
package money

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// UnitsPerUSD is the number of minor units in one US dollar.
const UnitsPerUSD = 10000

// Precision is the number of decimal places an Amount carries in USD.
const Precision = 4

// Max is the largest representable amount. Conversions saturate to it.
const Max Amount = math.MaxInt64

var (
	unitsPerUSD = decimal.NewFromInt(UnitsPerUSD)
	maxUnits    = decimal.NewFromInt(math.MaxInt64)
	minUnits    = decimal.NewFromInt(math.MinInt64)
)

// Amount is a signed quantity of money in minor units.
type Amount int64

// Zero is the zero amount.
const Zero Amount = 0

// FromDecimal converts a USD value to minor units, rounding half-up.
func FromDecimal(usd decimal.Decimal) Amount {
	return saturate(usd.Mul(unitsPerUSD).Round(0))
}

// FromDecimalCeil converts a USD value to minor units, rounding toward
// positive infinity. Used for reservations, which must never be underestimated.
func FromDecimalCeil(usd decimal.Decimal) Amount {
	return saturate(usd.Mul(unitsPerUSD).RoundCeil(0))
}

// saturate clamps an integral unit count to the int64 range; IntPart
// alone wraps.
func saturate(units decimal.Decimal) Amount {
	switch {
	case units.GreaterThan(maxUnits):
		return Max
	case units.LessThan(minUnits):
		return math.MinInt64
	}
	return Amount(units.IntPart())
}

// ParseUSD parses a decimal USD string such as "5.00" or "-0.0125".
// A leading "$" is accepted.
func ParseUSD(s string) (Amount, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

// Decimal returns the amount in USD.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -Precision)
}

// USD formats the amount as a plain decimal string with four places.
func (a Amount) USD() string {
	return a.Decimal().StringFixed(Precision)
}

// String formats the amount with a currency sign, e.g. "$1.2345" or "-$0.0100".
func (a Amount) String() string {
	if a < 0 {
		return "-$" + (-a).USD()
	}
	return "$" + a.USD()
}
