// =============================================================================
// GST Tally Vouchers - Tax Bifurcation Resolver
// =============================================================================
//
// Pure functions that decide split-tax vs single-tax treatment and derive
// rate bands from amounts.
//
// RULES:
//   Cross-jurisdiction:  single = taxable * rate / 100, split components zero
//   Same-jurisdiction:   split_a = split_b = taxable * rate / 200
//   Derived rate:        round(tax / taxable * 100) to the nearest whole percent
//
// All results are rounded to two fraction digits (paise).
//
// =============================================================================

package taxcalc

import (
	"github.com/shopspring/decimal"
)

var (
	hundred    = decimal.NewFromInt(100)
	twoHundred = decimal.NewFromInt(200)
	two        = decimal.NewFromInt(2)
)

// Split is the three-way tax breakdown of one line.
type Split struct {
	SplitA decimal.Decimal
	SplitB decimal.Decimal
	Single decimal.Decimal
}

// Total is the sum of all three components.
func (s Split) Total() decimal.Decimal {
	return s.SplitA.Add(s.SplitB).Add(s.Single)
}

// Warning is returned alongside a zero result when the inputs do not allow
// a rate to be computed.
type Warning struct {
	Reason string
}

func (w *Warning) Error() string {
	return w.Reason
}

// =============================================================================
// RESOLVE
// =============================================================================

// Resolve bifurcates tax on taxableValue at the given total rate. A zero
// taxable value yields all-zero components and a warning.
func Resolve(crossJurisdiction bool, taxableValue, rate decimal.Decimal) (Split, *Warning) {
	if taxableValue.IsZero() {
		return Split{SplitA: decimal.Zero, SplitB: decimal.Zero, Single: decimal.Zero},
			&Warning{Reason: "taxable value is zero; tax components cannot be derived"}
	}
	if crossJurisdiction {
		return Split{
			SplitA: decimal.Zero,
			SplitB: decimal.Zero,
			Single: taxableValue.Mul(rate).Div(hundred).Round(2),
		}, nil
	}
	half := taxableValue.Mul(rate).Div(twoHundred).Round(2)
	return Split{SplitA: half, SplitB: half, Single: decimal.Zero}, nil
}

// DeriveRate computes the whole-percent total rate from a tax amount. When
// the taxable value is zero the rate is undefined and a warning is returned.
func DeriveRate(taxAmount, taxableValue decimal.Decimal) (decimal.Decimal, *Warning) {
	if taxableValue.IsZero() {
		return decimal.Zero, &Warning{Reason: "taxable value is zero; rate is undefined"}
	}
	return taxAmount.Div(taxableValue).Mul(hundred).Round(0), nil
}

// ComponentRate is the rate carried by each split component: half the total.
func ComponentRate(totalRate decimal.Decimal) decimal.Decimal {
	return totalRate.Div(two)
}

// FormatRate renders a rate without trailing zeros: 18, 2.5, 0.25.
func FormatRate(rate decimal.Decimal) string {
	return rate.String()
}
