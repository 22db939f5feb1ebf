package normalizer

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// signals are the independent hints about whether a supply crosses
// jurisdictions.
type signals struct {
	single     decimal.Decimal
	split      decimal.Decimal
	supplyType string // INTER, INTRA or empty
	partyCode  string // the counterparty side of the comparison
	forced     bool   // section is cross-jurisdiction by definition
	forcedWhy  string
}

// classification is the decision plus a description of any disagreeing
// lower-precedence signal.
type classification struct {
	cross    bool
	decider  string
	conflict string
}

// classify applies the precedence: tax amounts, then the section rule, then
// the explicit supply-type marker, then jurisdiction comparison. Every signal
// that is present is checked against the decision.
func classify(s signals, home string) classification {
	var c classification

	hasSingle := !s.single.IsZero()
	hasSplit := !s.split.IsZero()

	switch {
	case hasSingle:
		c.cross, c.decider = true, "cross-jurisdiction tax amount"
	case hasSplit:
		c.cross, c.decider = false, "split tax amount"
	case s.forced:
		c.cross, c.decider = true, s.forcedWhy
	case s.supplyType != "":
		c.cross, c.decider = s.supplyType == "INTER", "supply type "+s.supplyType
	case s.partyCode != "" && home != "":
		c.cross, c.decider = s.partyCode != home, "jurisdiction comparison"
	default:
		c.cross, c.decider = false, "default"
		if home == "" {
			c.conflict = "home jurisdiction unknown; treated as same-jurisdiction"
		}
		return c
	}

	var disagreements []string
	if hasSingle && hasSplit {
		disagreements = append(disagreements, "both split and cross-jurisdiction tax present")
	}
	if s.forced && !c.cross {
		disagreements = append(disagreements, s.forcedWhy)
	}
	if s.supplyType != "" && (s.supplyType == "INTER") != c.cross {
		disagreements = append(disagreements, "supply type "+s.supplyType)
	}
	if s.partyCode != "" && home != "" && (s.partyCode != home) != c.cross {
		disagreements = append(disagreements,
			fmt.Sprintf("jurisdiction %s vs %s", s.partyCode, home))
	}
	if len(disagreements) > 0 {
		c.conflict = fmt.Sprintf("classified %s by %s, disagreeing: %s",
			crossLabel(c.cross), c.decider, strings.Join(disagreements, "; "))
	}
	return c
}

func crossLabel(cross bool) string {
	if cross {
		return "cross-jurisdiction"
	}
	return "same-jurisdiction"
}

func normalizeSupplyType(v string) string {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "INTER", "INTERSTATE", "INTER-STATE":
		return "INTER"
	case "INTRA", "INTRASTATE", "INTRA-STATE":
		return "INTRA"
	default:
		return ""
	}
}
