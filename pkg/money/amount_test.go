package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFromDecimal_RoundsHalfUp(t *testing.T) {
	tests := []struct {
		name string
		usd  string
		want Amount
	}{
		{name: "exact", usd: "1.2345", want: 12345},
		{name: "half rounds up", usd: "0.00005", want: 1},
		{name: "below half rounds down", usd: "0.000049", want: 0},
		{name: "whole dollars", usd: "5", want: 50000},
		{name: "zero", usd: "0", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromDecimal(decimal.RequireFromString(tt.usd))
			if got != tt.want {
				t.Errorf("FromDecimal(%s) = %d, want %d", tt.usd, got, tt.want)
			}
		})
	}
}

func TestFromDecimalCeil(t *testing.T) {
	if got := FromDecimalCeil(decimal.RequireFromString("0.000001")); got != 1 {
		t.Errorf("Expected tiny positive value to round up to 1 unit, got %d", got)
	}
	if got := FromDecimalCeil(decimal.RequireFromString("0.0002")); got != 2 {
		t.Errorf("Expected exact value to stay at 2 units, got %d", got)
	}
}

func TestParseUSD(t *testing.T) {
	tests := []struct {
		in      string
		want    Amount
		wantErr bool
	}{
		{in: "5.00", want: 50000},
		{in: "$1.50", want: 15000},
		{in: " 0.0125 ", want: 125},
		{in: "-2", want: -20000},
		{in: "", wantErr: true},
		{in: "five", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseUSD(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseUSD(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseUSD(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestAmount_String(t *testing.T) {
	if s := Amount(12345).String(); s != "$1.2345" {
		t.Errorf("Expected $1.2345, got %s", s)
	}
	if s := Amount(-100).String(); s != "-$0.0100" {
		t.Errorf("Expected -$0.0100, got %s", s)
	}
	if s := Amount(50000).USD(); s != "5.0000" {
		t.Errorf("Expected 5.0000, got %s", s)
	}
}

func TestFromDecimal_Saturates(t *testing.T) {
	huge := decimal.RequireFromString("1844674407370955161.6")
	if got := FromDecimalCeil(huge); got != Max {
		t.Errorf("FromDecimalCeil(%s) = %d, want Max", huge, got)
	}
	if got := FromDecimal(huge); got != Max {
		t.Errorf("FromDecimal(%s) = %d, want Max", huge, got)
	}
	if got := FromDecimal(huge.Neg()); got >= 0 {
		t.Errorf("FromDecimal(%s) = %d, want a negative amount", huge.Neg(), got)
	}
}
