package ledger

import (
	"strings"
	"unicode"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/jurisdiction"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/types"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxNameLength is the longest ledger name Tally accepts.
const MaxNameLength = 99

// Canon cleans a party name into a ledger name:
//   - accents are folded (Café -> Cafe)
//   - only letters, digits, spaces and "-._" survive
//   - whitespace runs collapse to a single space
//   - the result is cut to MaxNameLength runes and trimmed
//
// Canon(Canon(x)) == Canon(x) for every x.
func Canon(name string) string {
	folded, _, err := transform.String(foldChain(), name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	pendingSpace := false
	for _, r := range folded {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.' || r == '_':
			if pendingSpace {
				b.WriteRune(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}

	out := []rune(norm.NFC.String(b.String()))
	if len(out) > MaxNameLength {
		out = out[:MaxNameLength]
	}
	return strings.TrimSpace(string(out))
}

// foldChain decomposes, drops combining marks, and leaves the text
// decomposed. Recomposition happens after filtering.
func foldChain() transform.Transformer {
	return transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
}

// =============================================================================
// PARTY NAMES
// =============================================================================

// SynthesizePartyName builds the fallback party name from a tax ID:
// Vendor-27-AAAPL1234C1Z5. An empty tax ID gives the placeholder name.
func SynthesizePartyName(direction types.Direction, taxID string) string {
	role := "Vendor"
	if direction == types.Outbound {
		role = "Customer"
	}
	id := strings.ToUpper(strings.TrimSpace(taxID))
	if id == "" {
		return PlaceholderPartyName(direction)
	}
	code := jurisdiction.CodeFromTaxID(id)
	if code == "" {
		return Canon(role + "-" + id)
	}
	return Canon(role + "-" + code + "-" + id[2:])
}

// PlaceholderPartyName is used when neither a name nor a tax ID is known.
func PlaceholderPartyName(direction types.Direction) string {
	if direction == types.Outbound {
		return "Unknown Customer"
	}
	return "Unknown Vendor"
}

// PartyLedger returns the canonical ledger name for a party, falling back
// to the synthesized name when the display name cleans to nothing.
func (r *Resolver) PartyLedger(direction types.Direction, displayName, taxID string) string {
	if name := Canon(displayName); name != "" {
		return r.apply(name)
	}
	return r.apply(SynthesizePartyName(direction, taxID))
}
