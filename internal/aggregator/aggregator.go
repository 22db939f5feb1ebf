// =============================================================================
// GST Tally Vouchers - Party Aggregator
// =============================================================================
//
// Groups canonical transactions by party and accumulates per-party totals.
// One PartyAggregate is produced per distinct tax ID, or per distinct party
// name when the party has none. Batches are merged, so the same supplier in
// two returns yields one aggregate.
//
// LEDGER NAME COLLISIONS:
//   Two different parties can clean to the same ledger name. They are never
//   merged. The later party gets a distinguishing suffix (its tax ID, or a
//   counter) and the collision is reported.
//
// Bank statement rows carry no party and are not aggregated.
//
// =============================================================================

package aggregator

import (
	"fmt"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/jurisdiction"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/ledger"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/types"
)

// Collision reports a ledger name claimed by more than one party.
type Collision struct {
	LedgerName string

	// FirstKey is the party that kept the plain name.
	FirstKey string

	// Key, TaxID and Assigned describe the party that was renamed. TaxID is
	// empty when the party is keyed by name.
	Key      string
	TaxID    string
	Assigned string
}

func (c Collision) String() string {
	return fmt.Sprintf("parties %s and %s both map to ledger '%s'; %s renamed to '%s'",
		c.FirstKey, c.Key, c.LedgerName, c.Key, c.Assigned)
}

// Result is the aggregation of one run.
type Result struct {
	// Parties in first-seen order.
	Parties    []types.PartyAggregate
	Collisions []Collision

	byKey map[string]int
}

// Party returns the aggregate for a party key.
func (r *Result) Party(key string) (*types.PartyAggregate, bool) {
	i, ok := r.byKey[key]
	if !ok {
		return nil, false
	}
	return &r.Parties[i], true
}

// LedgerFor returns the party ledger assigned to a transaction's party. The
// boolean is false for transactions that were not aggregated.
func (r *Result) LedgerFor(txn types.CanonicalTransaction) (string, bool) {
	p, ok := r.Party(txn.PartyKey())
	if !ok {
		return "", false
	}
	return p.LedgerName, true
}

// Aggregator accumulates parties across batches.
type Aggregator struct {
	resolver *ledger.Resolver
	table    *jurisdiction.Table
}

// New returns an Aggregator. A nil resolver applies no overrides.
func New(resolver *ledger.Resolver, table *jurisdiction.Table) *Aggregator {
	if table == nil {
		table = jurisdiction.Default()
	}
	return &Aggregator{resolver: resolver, table: table}
}

// Aggregate groups every batch into one result.
func (a *Aggregator) Aggregate(batches ...[]types.CanonicalTransaction) *Result {
	res := &Result{byKey: make(map[string]int)}

	for _, batch := range batches {
		for _, txn := range batch {
			if txn.Kind == types.KindBank {
				continue
			}
			key := txn.PartyKey()
			i, ok := res.byKey[key]
			if !ok {
				i = len(res.Parties)
				res.byKey[key] = i
				res.Parties = append(res.Parties, types.PartyAggregate{
					Key:          key,
					TaxID:        txn.PartyTaxID,
					DisplayName:  txn.PartyName,
					Jurisdiction: a.jurisdictionOf(txn),
					Direction:    txn.Direction,
					Kind:         txn.Kind,
				})
			}
			accumulate(&res.Parties[i], txn)
		}
	}

	a.assignLedgers(res)
	return res
}

func (a *Aggregator) jurisdictionOf(txn types.CanonicalTransaction) string {
	if code := jurisdiction.CodeFromTaxID(txn.PartyTaxID); a.table.Valid(code) {
		return code
	}
	if a.table.Valid(txn.PartyJurisdiction) {
		return txn.PartyJurisdiction
	}
	return ""
}

func accumulate(p *types.PartyAggregate, txn types.CanonicalTransaction) {
	p.InvoiceCount++
	p.SumTaxable = p.SumTaxable.Add(txn.TaxableValue)
	p.SumSplitA = p.SumSplitA.Add(txn.SplitTaxA)
	p.SumSplitB = p.SumSplitB.Add(txn.SplitTaxB)
	p.SumSingle = p.SumSingle.Add(txn.SingleTax)
	p.SumCess = p.SumCess.Add(txn.Cess)
	p.SumGross = p.SumGross.Add(txn.GrossValue)
	p.Invoices = append(p.Invoices, txn)

	if !p.Kind.BillTracked() && txn.Kind.BillTracked() {
		p.Kind = txn.Kind
	}
	if p.DisplayName == "" {
		p.DisplayName = txn.PartyName
	}
}

// assignLedgers gives every party a unique ledger name in first-seen order.
func (a *Aggregator) assignLedgers(res *Result) {
	owner := make(map[string]string, len(res.Parties))
	for i := range res.Parties {
		p := &res.Parties[i]
		name := a.resolver.PartyLedger(p.Direction, p.DisplayName, p.TaxID)

		first, taken := owner[name]
		if !taken {
			owner[name] = p.Key
			p.LedgerName = name
			continue
		}

		assigned := distinguish(name, p.TaxID, owner)
		owner[assigned] = p.Key
		p.LedgerName = assigned
		res.Collisions = append(res.Collisions, Collision{
			LedgerName: name,
			FirstKey:   first,
			Key:        p.Key,
			TaxID:      p.TaxID,
			Assigned:   assigned,
		})
	}
}

// distinguish suffixes name with the tax ID, or with a counter when there is
// no tax ID or the tax-ID form is itself taken.
func distinguish(name, taxID string, owner map[string]string) string {
	if taxID != "" {
		if candidate := suffixed(name, taxID); owner[candidate] == "" {
			return candidate
		}
	}
	for n := 2; ; n++ {
		if candidate := suffixed(name, fmt.Sprint(n)); owner[candidate] == "" {
			return candidate
		}
	}
}

// suffixed appends suffix, trimming the base so the result still fits.
func suffixed(base, suffix string) string {
	room := ledger.MaxNameLength - len([]rune(suffix)) - 1
	r := []rune(base)
	if len(r) > room {
		r = r[:room]
	}
	return ledger.Canon(string(r) + " " + suffix)
}
