// =============================================================================
// GST Tally Vouchers - Voucher Builder
// =============================================================================
//
// Turns canonical transactions into balanced double-entry vouchers.
//
// SIGN CONVENTION:
//   Credits are positive, debits negative. Every voucher sums to exactly
//   zero at two fraction digits.
//
//   Purchase / Receipt   party credited, primary and tax debited
//   Sales / Payment      party debited, primary and tax credited
//
// ENTRIES (in order):
//   1. party        gross value, with a bill allocation when bill-tracked
//   2. primary      taxable value
//   3. tax heads    one per nonzero component: IGST, CGST, SGST, Cess
//   4. round off    declared gross minus the sum of components, when nonzero
//
// DETERMINISM:
//   Vouchers may be built in parallel, but results are placed by input index,
//   sorted by sequence, and numbered in a final sequential pass. GUIDs are
//   name-based, so identical input yields identical output.
//
// FAILURE SEMANTICS:
//   A bad date is replaced with a default and recorded as a recovery. A gross
//   mismatch above the hard ceiling aborts the whole build.
//
// =============================================================================

package voucher

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/ledger"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/normalizer"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/taxcalc"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// GSTStartDate is the fallback date when neither a configured default nor a
// return period is available.
var GSTStartDate = time.Date(2017, 7, 1, 0, 0, 0, 0, time.UTC)

// BillTypeNewRef is the only bill allocation type produced.
const BillTypeNewRef = "New Ref"

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a Builder.
type Options struct {
	Company string

	BankLedger     string
	SuspenseLedger string
	RoundOffLedger string

	// DefaultDate replaces unreadable dates. When zero, the return period
	// start is used, then GSTStartDate.
	DefaultDate time.Time

	// NumberFormat takes the schema prefix and the sequence. Default "%s-%04d".
	NumberFormat string

	// BillWise adds bill allocations to bill-tracked party entries.
	BillWise bool

	// Workers > 1 builds vouchers concurrently.
	Workers int

	Tolerance      decimal.Decimal
	CeilingPercent decimal.Decimal
}

func (o *Options) applyDefaults() {
	if o.BankLedger == "" {
		o.BankLedger = "Bank"
	}
	if o.SuspenseLedger == "" {
		o.SuspenseLedger = "Suspense"
	}
	if o.RoundOffLedger == "" {
		o.RoundOffLedger = "Round Off"
	}
	if o.NumberFormat == "" {
		o.NumberFormat = "%s-%04d"
	}
	if o.Tolerance.IsZero() {
		o.Tolerance = taxcalc.DefaultTolerance
	}
	if o.CeilingPercent.IsZero() {
		o.CeilingPercent = taxcalc.DefaultCeilingPercent
	}
}

// PartyLedgers resolves the ledger assigned to a transaction's party.
type PartyLedgers interface {
	LedgerFor(txn types.CanonicalTransaction) (string, bool)
}

// Builder constructs vouchers. It holds no per-run state and is safe for
// concurrent use.
type Builder struct {
	opts     Options
	resolver *ledger.Resolver
}

// New returns a Builder. A nil resolver applies no ledger overrides.
func New(resolver *ledger.Resolver, opts Options) *Builder {
	opts.applyDefaults()
	return &Builder{opts: opts, resolver: resolver}
}

// Input is one document's worth of records.
type Input struct {
	Schema types.SchemaTag

	// Period is the return period (MMYYYY), used for default dates.
	Period string

	Records []types.Record

	// Parties resolves party ledgers. When nil, names are derived directly.
	Parties PartyLedgers
}

// Output is the builder result: the voucher set and every recovery made
// while building it.
type Output struct {
	Set        types.VoucherSet
	Recoveries []types.Recovery
}

type built struct {
	voucher    types.Voucher
	recoveries []types.Recovery
	err        error
}

// =============================================================================
// BUILD
// =============================================================================

// Build produces one voucher per record. The error is an
// ArithmeticInconsistencyError or a context error; no partial output is
// returned with it.
func (b *Builder) Build(ctx context.Context, in Input) (*Output, error) {
	results := make([]built, len(in.Records))

	if b.opts.Workers > 1 && len(in.Records) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.opts.Workers)
		for i := range in.Records {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = b.buildOne(in, in.Records[i])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range in.Records {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = b.buildOne(in, in.Records[i])
		}
	}

	// The first failing record by input order wins, so the error does not
	// depend on scheduling.
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].voucher.Seq < results[j].voucher.Seq
	})

	out := &Output{Set: types.VoucherSet{
		Company:  b.opts.Company,
		Schema:   in.Schema,
		Vouchers: make([]types.Voucher, 0, len(results)),
	}}
	prefix := Prefix(in.Schema)
	for i, r := range results {
		v := r.voucher
		v.Number = fmt.Sprintf(b.opts.NumberFormat, prefix, i+1)
		v.GUID = GUID(b.opts.Company, v.Number, v.Document, v.PartyLedger)
		out.Set.Vouchers = append(out.Set.Vouchers, v)
		out.Recoveries = append(out.Recoveries, r.recoveries...)
	}
	return out, nil
}

// Prefix is the voucher-number prefix for a schema.
func Prefix(schema types.SchemaTag) string {
	switch schema {
	case types.SchemaGSTR1:
		return "GSTR1"
	case types.SchemaGSTR2A:
		return "GSTR2A"
	case types.SchemaGSTR2B, types.SchemaGSTR2BDocData:
		return "GSTR2B"
	case types.SchemaBank:
		return "BANK"
	case types.SchemaInvoice:
		return "INV"
	default:
		return "VCH"
	}
}

// GUID derives a stable identifier from the voucher identity.
func GUID(company, number, document, party string) string {
	name := strings.Join([]string{company, number, document, party}, "|")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// =============================================================================
// SINGLE VOUCHER
// =============================================================================

func (b *Builder) buildOne(in Input, rec types.Record) built {
	txn := rec.Txn
	var res built

	date := txn.TransactionDate
	if date.IsZero() {
		substitute, reason := b.defaultDate(in.Period)
		date = substitute
		res.recoveries = append(res.recoveries, types.Recovery{
			Kind:       types.RecoveryDefaultDate,
			Seq:        txn.Seq,
			SourceRef:  txn.SourceRef,
			Document:   txn.DocumentNumber,
			Field:      "transaction_date",
			Original:   txn.RawDate,
			Substitute: substitute.Format("2006-01-02"),
			Reason:     reason,
		})
	}

	v := types.Voucher{
		Seq:           txn.Seq,
		Direction:     txn.Direction,
		Schema:        in.Schema,
		Type:          voucherType(txn),
		Date:          date,
		Reference:     txn.DocumentNumber,
		Document:      txn.DocumentNumber,
		PartyTaxID:    txn.PartyTaxID,
		PlaceOfSupply: txn.PlaceOfSupply,
		Narration:     narration(txn),
	}

	entries, err := b.entries(in, txn, date, &v)
	if err != nil {
		res.err = err
		return res
	}
	v.Entries = entries
	res.voucher = v
	return res
}

func (b *Builder) defaultDate(period string) (time.Time, string) {
	if !b.opts.DefaultDate.IsZero() {
		return b.opts.DefaultDate, "date missing or unreadable; used configured default date"
	}
	if start, ok := normalizer.PeriodStart(period); ok {
		return start, "date missing or unreadable; used return period start"
	}
	return GSTStartDate, "date missing or unreadable; used GST start date"
}

func voucherType(txn types.CanonicalTransaction) types.VoucherType {
	switch {
	case txn.Kind == types.KindBank && txn.Direction == types.Inbound:
		return types.VoucherReceipt
	case txn.Kind == types.KindBank:
		return types.VoucherPayment
	case txn.Direction == types.Inbound:
		return types.VoucherPurchase
	default:
		return types.VoucherSales
	}
}

func narration(txn types.CanonicalTransaction) string {
	if txn.Kind == types.KindBank {
		return txn.Narration
	}
	var base string
	switch {
	case txn.Kind == types.KindConsolidated:
		base = "Consolidated " + txn.DocumentNumber
	case txn.Direction == types.Inbound:
		base = fmt.Sprintf("Invoice %s from %s", txn.DocumentNumber, txn.PartyName)
	default:
		base = fmt.Sprintf("Invoice %s to %s", txn.DocumentNumber, txn.PartyName)
	}
	if txn.Narration != "" {
		base += "; " + txn.Narration
	}
	return base
}

// entries lays out the voucher lines. sign is +1 when the party is credited.
func (b *Builder) entries(in Input, txn types.CanonicalTransaction, date time.Time, v *types.Voucher) ([]types.LedgerEntry, error) {
	sign := decimal.NewFromInt(1)
	if txn.Direction == types.Outbound {
		sign = sign.Neg()
	}
	against := sign.Neg()

	taxable := txn.TaxableValue.Round(2)
	splitA := txn.SplitTaxA.Round(2)
	splitB := txn.SplitTaxB.Round(2)
	single := txn.SingleTax.Round(2)
	cess := txn.Cess.Round(2)
	gross := txn.GrossValue.Round(2)

	var entries []types.LedgerEntry
	add := func(e types.LedgerEntry, amount decimal.Decimal) {
		e.Amount = amount
		e.IsCredit = amount.IsPositive()
		entries = append(entries, e)
	}

	// Party.
	party := types.LedgerEntry{IsParty: true, Role: types.RoleParty}
	switch {
	case txn.Kind == types.KindBank:
		party.LedgerName = b.resolver.Override(b.opts.SuspenseLedger)
		party.Role = types.RoleSuspense
		party.IsParty = false
	case in.Parties != nil:
		if name, ok := in.Parties.LedgerFor(txn); ok {
			party.LedgerName = name
		}
	}
	if party.LedgerName == "" {
		party.LedgerName = b.resolver.PartyLedger(txn.Direction, txn.PartyName, txn.PartyTaxID)
	}
	partyAmount := gross.Mul(sign)
	if b.opts.BillWise && txn.Kind.BillTracked() && txn.DocumentNumber != "" {
		billDate := txn.DocumentDate
		if billDate.IsZero() {
			billDate = date
		}
		party.Bill = &types.BillAllocation{
			Name:   txn.DocumentNumber,
			Type:   BillTypeNewRef,
			Amount: partyAmount.Neg(),
			Date:   billDate,
		}
	}
	add(party, partyAmount)
	v.PartyLedger = party.LedgerName

	// Primary.
	rate := rateOf(txn)
	primary := types.LedgerEntry{Role: types.RolePrimary}
	if txn.Kind == types.KindBank {
		primary.LedgerName = b.resolver.Override(b.opts.BankLedger)
		primary.Role = types.RoleBank
	} else {
		primary.LedgerName = b.resolver.Name(txn.Direction, ledger.Primary(txn.IsCrossJurisdiction), rate)
	}
	if !taxable.IsZero() {
		add(primary, taxable.Mul(against))
	}

	// Tax heads.
	for _, t := range []struct {
		component ledger.Component
		amount    decimal.Decimal
	}{
		{ledger.CrossJurisdictionTax, single},
		{ledger.SplitTaxA, splitA},
		{ledger.SplitTaxB, splitB},
		{ledger.Cess, cess},
	} {
		if t.amount.IsZero() {
			continue
		}
		e := types.LedgerEntry{
			LedgerName: b.resolver.Name(txn.Direction, t.component, rate),
			Role:       types.RoleTax,
			DutyHead:   t.component.DutyHead(),
		}
		if rate.Known && t.component != ledger.Cess {
			e.Rate, e.RateKnown = rate.Value, true
			if t.component == ledger.SplitTaxA || t.component == ledger.SplitTaxB {
				e.Rate = taxcalc.ComponentRate(rate.Value)
			}
		}
		add(e, t.amount.Mul(against))
	}

	if len(entries) == 1 {
		add(primary, decimal.Zero)
	}

	// Round off.
	computed := taxable.Add(splitA).Add(splitB).Add(single).Add(cess)
	diff := gross.Sub(computed)
	if !diff.IsZero() {
		ceiling := taxcalc.Ceiling(computed, b.opts.CeilingPercent, b.opts.Tolerance)
		if diff.Abs().GreaterThan(ceiling) {
			return nil, &types.ArithmeticInconsistencyError{
				Seq:        txn.Seq,
				Document:   txn.DocumentNumber,
				Declared:   gross,
				Computed:   computed,
				Difference: diff,
				Ceiling:    ceiling,
			}
		}
		add(types.LedgerEntry{
			LedgerName: b.resolver.Override(b.opts.RoundOffLedger),
			Role:       types.RoleRoundOff,
		}, diff.Mul(against))
	}
	return entries, nil
}

// rateOf picks the declared rate, or derives one from the amounts.
func rateOf(txn types.CanonicalTransaction) ledger.Rate {
	if txn.RateDeclared {
		return ledger.KnownRate(txn.DeclaredRate)
	}
	rate, warn := taxcalc.DeriveRate(txn.TotalTax, txn.TaxableValue)
	if warn != nil {
		return ledger.UnknownRate
	}
	return ledger.KnownRate(rate)
}
