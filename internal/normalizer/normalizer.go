// =============================================================================
// GST Tally Vouchers - Schema Normalizer
// =============================================================================
//
// This module turns raw return documents into canonical transactions. Each
// source schema has its own parser; all parsers sit behind one entry point:
//
//   NormalizeDocument(raw, tag) -> []types.Record | MalformedDocumentError
//
// SUPPORTED SCHEMAS:
//   gstr1           outward supplies (b2b, b2cl, b2cs)
//   gstr2a          auto-drafted inward supplies (b2b, impg)
//   gstr2b          portal ITC statement (itc_avl.b2b, itc_avl.impg, isd_credit)
//   gstr2b-docdata  official GSTR-2B JSON (data.docdata.b2b, data.docdata.impg)
//   bank            flat array of statement rows
//   invoice         extracted purchase or sales invoices (one or "invoices")
//
// An explicit tag always wins. Structural sniffing is used only when the
// caller passes an empty tag.
//
// TOLERANCE:
//   A missing optional field becomes zero or empty. A missing section that
//   defines the document is a MalformedDocumentError.
//
// =============================================================================

package normalizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/jurisdiction"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/ledger"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/taxcalc"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/types"
	"github.com/shopspring/decimal"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a Normalizer.
type Options struct {
	// Table is the jurisdiction table. Defaults to jurisdiction.Default().
	Table *jurisdiction.Table

	// HomeJurisdiction is the company's 2-digit code. When empty, the
	// document's own GSTIN prefix is used.
	HomeJurisdiction string

	// SuspenseLedger is the counter-party for bank statement rows.
	SuspenseLedger string

	// MaxNarration caps bank narrations. Defaults to 250.
	MaxNarration int
}

// StructureNote is a non-fatal structural observation, such as an expected
// but empty section.
type StructureNote struct {
	Section string
	Message string
}

// Normalizer holds the configured parsers. It is safe for concurrent use;
// each call builds its own state.
type Normalizer struct {
	opts    Options
	parsers map[types.SchemaTag]parser
}

type parser interface {
	checkStructure(doc any) ([]StructureNote, error)
	normalize(doc any, r *run) error
}

// New returns a Normalizer with every schema parser registered.
func New(opts Options) *Normalizer {
	if opts.Table == nil {
		opts.Table = jurisdiction.Default()
	}
	if opts.SuspenseLedger == "" {
		opts.SuspenseLedger = "Suspense"
	}
	if opts.MaxNarration <= 0 {
		opts.MaxNarration = 250
	}
	return &Normalizer{
		opts: opts,
		parsers: map[types.SchemaTag]parser{
			types.SchemaGSTR1:         gstr1Parser{},
			types.SchemaGSTR2A:        gstr2aParser{},
			types.SchemaGSTR2B:        gstr2bParser{},
			types.SchemaGSTR2BDocData: docDataParser{},
			types.SchemaBank:          bankParser{},
			types.SchemaInvoice:       invoiceParser{},
		},
	}
}

// Tags lists the supported schema tags.
func Tags() []types.SchemaTag {
	return []types.SchemaTag{
		types.SchemaGSTR1,
		types.SchemaGSTR2A,
		types.SchemaGSTR2B,
		types.SchemaGSTR2BDocData,
		types.SchemaBank,
		types.SchemaInvoice,
	}
}

// ParseTag validates a user-supplied tag. An empty string is allowed and
// means "sniff".
func ParseTag(s string) (types.SchemaTag, error) {
	tag := types.SchemaTag(strings.ToLower(strings.TrimSpace(s)))
	if tag == "" {
		return "", nil
	}
	for _, t := range Tags() {
		if t == tag {
			return tag, nil
		}
	}
	return "", fmt.Errorf("unknown schema tag %q", s)
}

// =============================================================================
// ENTRY POINTS
// =============================================================================

// Resolve returns the tag to use for raw: the explicit tag when given,
// otherwise the sniffed one.
func (n *Normalizer) Resolve(raw any, tag types.SchemaTag) (types.SchemaTag, error) {
	if tag != "" {
		if _, ok := n.parsers[tag]; !ok {
			return "", fmt.Errorf("unknown schema tag %q", tag)
		}
		return tag, nil
	}
	return Sniff(raw)
}

// CheckStructure runs the structural phase for raw under tag. The error is
// a MalformedDocumentError when a defining section is absent.
func (n *Normalizer) CheckStructure(raw any, tag types.SchemaTag) ([]StructureNote, error) {
	p, ok := n.parsers[tag]
	if !ok {
		return nil, fmt.Errorf("unknown schema tag %q", tag)
	}
	return p.checkStructure(raw)
}

// Result is everything one document produced.
type Result struct {
	Schema types.SchemaTag

	// Home is the home jurisdiction actually used.
	Home string

	// Period is the return period (MMYYYY) when the document carries one.
	Period string

	Records []types.Record

	// Dropped are recoveries for source entries that produced no
	// transaction at all, such as empty bank rows.
	Dropped []types.Recovery

	Notes []StructureNote
}

// Recoveries lists every recovery in input order, dropped rows included.
func (res *Result) Recoveries() []types.Recovery {
	var out []types.Recovery
	for _, rec := range res.Records {
		out = append(out, rec.Recoveries...)
	}
	return append(out, res.Dropped...)
}

// Transactions strips the recoveries.
func (res *Result) Transactions() []types.CanonicalTransaction {
	out := make([]types.CanonicalTransaction, len(res.Records))
	for i, rec := range res.Records {
		out[i] = rec.Txn
	}
	return out
}

// NormalizeDocument converts raw into canonical records in input order.
func (n *Normalizer) NormalizeDocument(raw any, tag types.SchemaTag) ([]types.Record, error) {
	res, err := n.Normalize(raw, tag)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// Normalize is NormalizeDocument with the structure notes, the resolved
// schema and rows that were dropped.
func (n *Normalizer) Normalize(raw any, tag types.SchemaTag) (*Result, error) {
	resolved, err := n.Resolve(raw, tag)
	if err != nil {
		return nil, err
	}
	p := n.parsers[resolved]
	notes, err := p.checkStructure(raw)
	if err != nil {
		return nil, err
	}

	r := &run{opts: n.opts, schema: resolved, home: n.opts.HomeJurisdiction}
	if err := p.normalize(raw, r); err != nil {
		return nil, err
	}
	return &Result{
		Schema:  resolved,
		Home:    r.home,
		Period:  r.period,
		Records: r.records,
		Dropped: r.dropped,
		Notes:   notes,
	}, nil
}

// ErrHomeUnknown is returned for a tax return when neither the options nor
// the document name the company's jurisdiction.
var ErrHomeUnknown = errors.New("home jurisdiction unknown: set company.state or provide the return gstin")

// Sniff identifies the schema from distinguishing top-level keys.
func Sniff(raw any) (types.SchemaTag, error) {
	if _, ok := list(raw); ok {
		return types.SchemaBank, nil
	}
	doc, ok := object(raw)
	if !ok {
		return "", &types.MalformedDocumentError{Reason: "document is neither an object nor an array"}
	}

	if _, ok := doc["invoices"]; ok {
		return types.SchemaInvoice, nil
	}
	if _, ok := doc["invoice_number"]; ok {
		return types.SchemaInvoice, nil
	}
	if data, ok := object(doc["data"]); ok {
		if _, ok := data["docdata"]; ok {
			return types.SchemaGSTR2BDocData, nil
		}
	}
	if _, ok := doc["itc_avl"]; ok {
		return types.SchemaGSTR2B, nil
	}
	if _, ok := doc["b2cs"]; ok {
		return types.SchemaGSTR1, nil
	}
	if _, ok := doc["b2cl"]; ok {
		return types.SchemaGSTR1, nil
	}
	if b2b := children(doc, "b2b"); len(b2b) > 0 {
		switch itemDetailShape(b2b) {
		case "object":
			return types.SchemaGSTR1, nil
		case "list":
			return types.SchemaGSTR2A, nil
		}
	}
	if _, ok := doc["impg"]; ok {
		return types.SchemaGSTR2A, nil
	}
	if _, ok := doc["b2b"]; ok {
		return types.SchemaGSTR2A, nil
	}
	return "", &types.MalformedDocumentError{Reason: "no recognizable return or statement sections"}
}

// itemDetailShape looks at the first itm_det under b2b[].inv[].itms[].
func itemDetailShape(b2b []any) string {
	for _, p := range b2b {
		party, _ := object(p)
		for _, i := range children(party, "inv") {
			inv, _ := object(i)
			for _, it := range children(inv, "itms") {
				item, _ := object(it)
				switch item["itm_det"].(type) {
				case map[string]any:
					return "object"
				case []any:
					return "list"
				}
			}
		}
	}
	return ""
}

// =============================================================================
// RUN STATE
// =============================================================================

// run accumulates records for one NormalizeDocument call.
type run struct {
	opts    Options
	schema  types.SchemaTag
	home    string
	period  string
	records []types.Record
	dropped []types.Recovery
	seq     int
}

// adoptHome sets the home jurisdiction from the document GSTIN when none
// was configured.
func (r *run) adoptHome(docTaxID string) error {
	if r.home == "" {
		r.home = jurisdiction.CodeFromTaxID(docTaxID)
	}
	if r.home == "" {
		return ErrHomeUnknown
	}
	if !r.opts.Table.Valid(r.home) {
		return fmt.Errorf("home jurisdiction %q is not in the jurisdiction table", r.home)
	}
	return nil
}

// drop records a source entry that yields no transaction.
func (r *run) drop(kind types.RecoveryKind, sourceRef, reason string) {
	r.dropped = append(r.dropped, types.Recovery{
		Kind:      kind,
		SourceRef: sourceRef,
		Reason:    reason,
	})
}

func (r *run) nextSeq() int {
	r.seq++
	return r.seq
}

// itemKeys names the amount fields of one tax breakdown.
type itemKeys struct {
	taxable []string
	single  []string
	splitA  []string
	splitB  []string
	cess    []string
	rate    []string
}

var (
	portalKeys = itemKeys{
		taxable: []string{"txval"},
		single:  []string{"iamt"},
		splitA:  []string{"camt"},
		splitB:  []string{"samt"},
		cess:    []string{"csamt"},
		rate:    []string{"rt"},
	}
	docDataKeys = itemKeys{
		taxable: []string{"txval"},
		single:  []string{"igst"},
		splitA:  []string{"cgst"},
		splitB:  []string{"sgst"},
		cess:    []string{"cess"},
		rate:    []string{"rt"},
	}
)

// totals sums the breakdowns of one document.
type totals struct {
	taxable decimal.Decimal
	single  decimal.Decimal
	splitA  decimal.Decimal
	splitB  decimal.Decimal
	cess    decimal.Decimal

	rates    []decimal.Decimal
	hasRate  bool
	badField []string
}

func (t *totals) add(m map[string]any, keys itemKeys) {
	t.taxable = t.taxable.Add(t.read(m, keys.taxable))
	t.single = t.single.Add(t.read(m, keys.single))
	t.splitA = t.splitA.Add(t.read(m, keys.splitA))
	t.splitB = t.splitB.Add(t.read(m, keys.splitB))
	t.cess = t.cess.Add(t.read(m, keys.cess))

	if field(m, keys.rate...) != nil {
		if rt, ok := amount(m, keys.rate...); ok {
			t.addRate(rt)
		}
	}
}

func (t *totals) addRate(rt decimal.Decimal) {
	t.hasRate = true
	for _, seen := range t.rates {
		if seen.Equal(rt) {
			return
		}
	}
	t.rates = append(t.rates, rt)
}

func (t *totals) read(m map[string]any, keys []string) decimal.Decimal {
	d, ok := amount(m, keys...)
	if !ok {
		t.badField = append(t.badField, keys[0])
		return decimal.Zero
	}
	return d
}

// singleRate returns the declared rate when every line shares one.
func (t *totals) singleRate() (decimal.Decimal, bool) {
	if t.hasRate && len(t.rates) == 1 {
		return t.rates[0], true
	}
	return decimal.Zero, false
}

// entry is the schema-independent description of one source document,
// filled in by each parser and turned into a Record by emit.
type entry struct {
	kind      types.SourceKind
	direction types.Direction
	sourceRef string

	partyName  string
	taxID      string
	partyCode  string // used when the tax ID does not carry one
	pos        string
	supplyType string
	forced     bool
	forcedWhy  string

	document string
	rawDate  string

	gross        decimal.Decimal
	grossPresent bool
	grossBad     bool

	totals totals

	narration string
}

// emit classifies, fills derivable gaps and appends the record.
func (r *run) emit(e entry) {
	seq := r.nextSeq()
	rec := types.Record{}
	note := func(kind types.RecoveryKind, fieldName, original, substitute, reason string) {
		rec.Recoveries = append(rec.Recoveries, types.Recovery{
			Kind:       kind,
			Seq:        seq,
			SourceRef:  e.sourceRef,
			Document:   e.document,
			Field:      fieldName,
			Original:   original,
			Substitute: substitute,
			Reason:     reason,
		})
	}

	for _, f := range e.totals.badField {
		note(types.RecoveryBadAmount, f, "", "0", "amount could not be read as a number")
	}

	taxID := strings.ToUpper(strings.TrimSpace(e.taxID))
	partyCode := jurisdiction.CodeFromTaxID(taxID)
	if partyCode == "" {
		partyCode = e.partyCode
	}
	pos := normalizePOS(e.pos)

	// Outbound: place of supply against home. Inbound: the supplier's
	// jurisdiction against the place of supply, or home when absent.
	other, against := pos, r.home
	if other == "" {
		other = partyCode
	}
	if e.direction == types.Inbound && partyCode != "" {
		other = partyCode
		if pos != "" {
			against = pos
		}
	}

	var c classification
	if e.kind != types.KindBank {
		c = classify(signals{
			single:     e.totals.single,
			split:      e.totals.splitA.Add(e.totals.splitB),
			supplyType: normalizeSupplyType(e.supplyType),
			partyCode:  other,
			forced:     e.forced,
			forcedWhy:  e.forcedWhy,
		}, against)
	}
	if c.conflict != "" {
		note(types.RecoveryJurisdictionConflict, "is_cross_jurisdiction", "", crossLabel(c.cross), c.conflict)
	}

	t := types.CanonicalTransaction{
		Seq:                 seq,
		Schema:              r.schema,
		Kind:                e.kind,
		Direction:           e.direction,
		SourceRef:           e.sourceRef,
		RawDate:             e.rawDate,
		PartyTaxID:          taxID,
		PartyJurisdiction:   partyCode,
		PlaceOfSupply:       pos,
		DocumentNumber:      strings.TrimSpace(e.document),
		TaxableValue:        e.totals.taxable,
		SplitTaxA:           e.totals.splitA,
		SplitTaxB:           e.totals.splitB,
		SingleTax:           e.totals.single,
		Cess:                e.totals.cess,
		IsCrossJurisdiction: c.cross,
		Narration:           e.narration,
		Period:              r.period,
	}
	if t.PartyJurisdiction == "" {
		t.PartyJurisdiction = pos
	}
	if d, ok := ParseDate(e.rawDate); ok {
		t.TransactionDate = d
		t.DocumentDate = d
	}

	if rt, ok := e.totals.singleRate(); ok {
		t.DeclaredRate, t.RateDeclared = rt, true
	}

	// Amounts absent but a rate given: derive the components.
	if t.SplitTaxA.IsZero() && t.SplitTaxB.IsZero() && t.SingleTax.IsZero() &&
		t.RateDeclared && t.DeclaredRate.IsPositive() && t.TaxableValue.IsPositive() {
		split, _ := taxcalc.Resolve(t.IsCrossJurisdiction, t.TaxableValue, t.DeclaredRate)
		t.SplitTaxA, t.SplitTaxB, t.SingleTax = split.SplitA, split.SplitB, split.Single
		note(types.RecoveryComputedTax, "tax", "", split.Total().StringFixed(2),
			fmt.Sprintf("tax amounts absent; computed at declared rate %s%%", taxcalc.FormatRate(t.DeclaredRate)))
	}
	t.SumTaxes()

	if t.TaxableValue.IsZero() && !t.TotalTax.IsZero() && e.kind != types.KindISD {
		note(types.RecoveryRateUndefined, "rate", "", "", "taxable value is zero; rate band cannot be derived")
	}

	switch {
	case e.grossBad:
		t.GrossValue = t.ComputedGross()
		note(types.RecoveryBadAmount, "val", "", t.GrossValue.StringFixed(2), "declared gross unreadable; using computed gross")
	case !e.grossPresent || (e.gross.IsZero() && !t.ComputedGross().IsZero()):
		t.GrossValue = t.ComputedGross()
		if !t.GrossValue.IsZero() && e.kind != types.KindConsolidated && e.kind != types.KindBank {
			note(types.RecoveryComputedGross, "val", "", t.GrossValue.StringFixed(2), "declared gross absent; using computed gross")
		}
	default:
		t.GrossValue = e.gross
	}

	name := strings.TrimSpace(e.partyName)
	switch {
	case name != "":
		t.PartyName = name
	case taxID != "":
		t.PartyName = ledger.SynthesizePartyName(e.direction, taxID)
	default:
		t.PartyName = ledger.PlaceholderPartyName(e.direction)
		note(types.RecoveryPlaceholderParty, "party_name", "", t.PartyName, "no party name or tax ID")
	}

	rec.Txn = t
	r.records = append(r.records, rec)
}

// normalizePOS turns "27", "27-Maharashtra" or "7" into a 2-digit code.
func normalizePOS(pos string) string {
	p := strings.TrimSpace(pos)
	if i := strings.IndexAny(p, "- "); i > 0 {
		p = p[:i]
	}
	if len(p) == 1 && p[0] >= '0' && p[0] <= '9' {
		p = "0" + p
	}
	if len(p) != 2 || p[0] < '0' || p[0] > '9' || p[1] < '0' || p[1] > '9' {
		return ""
	}
	return p
}

func ref(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
