package taxcalc

import (
	"github.com/shopspring/decimal"
)

// DefaultTolerance is the rounding noise allowed between a declared gross
// and the sum of its components.
var DefaultTolerance = decimal.RequireFromString("0.01")

// DefaultCeilingPercent is the hard ceiling on a gross mismatch, as a
// percentage of the line value.
var DefaultCeilingPercent = decimal.NewFromInt(1)

// Ceiling returns the largest gross mismatch that can still be absorbed for a
// line of the given value. It is never below tolerance.
func Ceiling(lineValue, percent, tolerance decimal.Decimal) decimal.Decimal {
	c := lineValue.Abs().Mul(percent).Div(hundred).Round(2)
	if c.LessThan(tolerance) {
		return tolerance
	}
	return c
}

// Mismatch compares a declared gross with its computed value. Both are taken
// at two fraction digits.
func Mismatch(declared, computed decimal.Decimal) decimal.Decimal {
	return declared.Round(2).Sub(computed.Round(2))
}
