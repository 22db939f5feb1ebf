// =============================================================================
// GST Tally Vouchers - Ledger Name Resolver
// =============================================================================
//
// Maps (direction, component, rate) to a ledger name. The mapping is pure:
// identical arguments always give the identical string, so the name doubles
// as the dedup key for master creation.
//
// NAMING:
//   Input IGST 18%            cross-jurisdiction tax, total rate
//   Input CGST 9%             split tax A, component rate (half of total)
//   Output SGST 2.5%          split tax B, component rate
//   Input Cess                cess, never rate-banded
//   Local Purchase 18%        primary account, same jurisdiction
//   Interstate Sales 12%      primary account, cross-jurisdiction
//
// OVERRIDES:
//   A generated name can be mapped to an existing ledger in the books. The
//   override is applied after generation, so it stays deterministic.
//
// =============================================================================

package ledger

import (
	"fmt"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/taxcalc"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/types"
	"github.com/shopspring/decimal"
)

// Component is the role an entry plays in a voucher.
type Component int

const (
	CrossJurisdictionTax Component = iota
	SplitTaxA
	SplitTaxB
	Cess
	PrimaryLocal
	PrimaryInterstate
)

// IsPrimary reports whether the component is a primary-account variant.
func (c Component) IsPrimary() bool {
	return c == PrimaryLocal || c == PrimaryInterstate
}

// IsTax reports whether the component is a tax head.
func (c Component) IsTax() bool {
	return !c.IsPrimary()
}

// Primary returns the primary-account component for the classification.
func Primary(crossJurisdiction bool) Component {
	if crossJurisdiction {
		return PrimaryInterstate
	}
	return PrimaryLocal
}

// DutyHead is the Tally GST duty head for a tax component.
func (c Component) DutyHead() string {
	switch c {
	case CrossJurisdictionTax:
		return "Integrated Tax"
	case SplitTaxA:
		return "Central Tax"
	case SplitTaxB:
		return "State Tax"
	case Cess:
		return "Cess"
	default:
		return ""
	}
}

// Rate is a total tax rate that may be unknown.
type Rate struct {
	Value decimal.Decimal
	Known bool
}

// KnownRate wraps a rate value.
func KnownRate(v decimal.Decimal) Rate {
	return Rate{Value: v, Known: true}
}

// UnknownRate is used when the taxable value is zero.
var UnknownRate = Rate{}

// Resolver generates ledger names and applies overrides. The zero value is
// ready to use and applies no overrides.
type Resolver struct {
	overrides map[string]string
}

// NewResolver returns a resolver with a copy of the override map.
func NewResolver(overrides map[string]string) *Resolver {
	r := &Resolver{overrides: make(map[string]string, len(overrides))}
	for k, v := range overrides {
		if v != "" {
			r.overrides[k] = v
		}
	}
	return r
}

// Name returns the ledger for (direction, component, rate).
func (r *Resolver) Name(direction types.Direction, component Component, rate Rate) string {
	return r.apply(Generate(direction, component, rate))
}

// Override returns the mapped ledger for a fixed name, or the name itself.
func (r *Resolver) Override(name string) string {
	return r.apply(name)
}

func (r *Resolver) apply(name string) string {
	if r == nil || r.overrides == nil {
		return name
	}
	if mapped, ok := r.overrides[name]; ok {
		return mapped
	}
	return name
}

// Generate is the override-free naming rule.
func Generate(direction types.Direction, component Component, rate Rate) string {
	side := "Input"
	account := "Purchase"
	if direction == types.Outbound {
		side = "Output"
		account = "Sales"
	}

	switch component {
	case CrossJurisdictionTax:
		return withRate(side+" IGST", rate, false)
	case SplitTaxA:
		return withRate(side+" CGST", rate, true)
	case SplitTaxB:
		return withRate(side+" SGST", rate, true)
	case Cess:
		return side + " Cess"
	case PrimaryInterstate:
		return withRate("Interstate "+account, rate, false)
	default:
		return withRate("Local "+account, rate, false)
	}
}

func withRate(base string, rate Rate, half bool) string {
	if !rate.Known {
		return base
	}
	v := rate.Value
	if half {
		v = taxcalc.ComponentRate(v)
	}
	return fmt.Sprintf("%s %s%%", base, taxcalc.FormatRate(v))
}
