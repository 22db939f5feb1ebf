// =============================================================================
// GST Tally Vouchers - Shared Types
// =============================================================================
//
// This package contains the canonical data model shared by every stage of the
// pipeline. Keeping the model here avoids import cycles between:
//   - normalizer
//   - validation
//   - aggregator
//   - voucher
//   - xmlwriter
//
// All amounts are decimal.Decimal. Floats never carry money in this module.
//
// =============================================================================

package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

// Direction is the flow of a transaction relative to the company.
type Direction int

const (
	// Inbound is a purchase (or money received, for bank statements).
	Inbound Direction = iota
	// Outbound is a sale (or money paid, for bank statements).
	Outbound
)

func (d Direction) String() string {
	if d == Outbound {
		return "outbound"
	}
	return "inbound"
}

// SchemaTag identifies one of the closed set of source document variants.
type SchemaTag string

const (
	SchemaGSTR1         SchemaTag = "gstr1"
	SchemaGSTR2A        SchemaTag = "gstr2a"
	SchemaGSTR2B        SchemaTag = "gstr2b"
	SchemaGSTR2BDocData SchemaTag = "gstr2b-docdata"
	SchemaBank          SchemaTag = "bank"
	SchemaInvoice       SchemaTag = "invoice"
)

// SourceKind tells apart the sections a transaction came from. It decides
// the voucher type and whether the party is bill-tracked.
type SourceKind int

const (
	KindInvoice SourceKind = iota
	KindConsolidated
	KindImport
	KindISD
	KindBank
)

func (k SourceKind) String() string {
	switch k {
	case KindConsolidated:
		return "consolidated"
	case KindImport:
		return "import"
	case KindISD:
		return "isd"
	case KindBank:
		return "bank"
	default:
		return "invoice"
	}
}

// BillTracked reports whether parties of this kind carry bill-wise allocations.
func (k SourceKind) BillTracked() bool {
	return k == KindInvoice || k == KindImport || k == KindISD
}

// =============================================================================
// CANONICAL TRANSACTION
// =============================================================================

// CanonicalTransaction is one document-level record after normalization,
// independent of the schema it came from.
type CanonicalTransaction struct {
	// Seq is the 1-based position in input order. Voucher numbering follows it.
	Seq int

	Schema    SchemaTag
	Kind      SourceKind
	Direction Direction

	// SourceRef points back into the raw document, e.g. "b2b[2].inv[0]".
	SourceRef string

	// TransactionDate is zero when the source date could not be parsed.
	// RawDate keeps the original text for the recovery report.
	TransactionDate time.Time
	RawDate         string

	PartyName         string
	PartyTaxID        string
	PartyJurisdiction string
	PlaceOfSupply     string

	DocumentNumber string
	DocumentDate   time.Time

	TaxableValue decimal.Decimal
	SplitTaxA    decimal.Decimal
	SplitTaxB    decimal.Decimal
	SingleTax    decimal.Decimal
	Cess         decimal.Decimal
	TotalTax     decimal.Decimal
	GrossValue   decimal.Decimal

	// DeclaredRate is the total rate carried by the source, when it has one.
	DeclaredRate decimal.Decimal
	RateDeclared bool

	IsCrossJurisdiction bool

	Narration string

	// Period is the return period (MMYYYY) of the enclosing document, if any.
	Period string
}

// ComputedGross is taxable value plus all tax components including cess.
func (t CanonicalTransaction) ComputedGross() decimal.Decimal {
	return t.TaxableValue.Add(t.TotalTax).Add(t.Cess)
}

// SumTaxes recomputes TotalTax from the components.
func (t *CanonicalTransaction) SumTaxes() {
	t.TotalTax = t.SplitTaxA.Add(t.SplitTaxB).Add(t.SingleTax)
}

// PartyKey is the aggregation key: the tax ID, or the party name when the
// party has no tax ID.
func (t CanonicalTransaction) PartyKey() string {
	if t.PartyTaxID != "" {
		return t.PartyTaxID
	}
	return "name:" + t.PartyName
}

// =============================================================================
// RECOVERIES
// =============================================================================

// RecoveryKind classifies a best-effort substitution.
type RecoveryKind string

const (
	RecoveryDefaultDate          RecoveryKind = "default_date"
	RecoveryPlaceholderParty     RecoveryKind = "placeholder_party"
	RecoveryJurisdictionConflict RecoveryKind = "jurisdiction_conflict"
	RecoveryRateUndefined        RecoveryKind = "rate_undefined"
	RecoveryBadAmount            RecoveryKind = "bad_amount"
	RecoverySkippedRow           RecoveryKind = "skipped_row"
	RecoveryNettedRow            RecoveryKind = "netted_row"
	RecoveryComputedTax          RecoveryKind = "computed_tax"
	RecoveryComputedGross        RecoveryKind = "computed_gross"
)

// Recovery records that a value was substituted rather than read.
type Recovery struct {
	Kind       RecoveryKind
	Seq        int
	SourceRef  string
	Document   string
	Field      string
	Original   string
	Substitute string
	Reason     string
}

// Record is the result of normalizing one source entry: the best-effort
// transaction together with every recovery applied while producing it.
type Record struct {
	Txn        CanonicalTransaction
	Recoveries []Recovery
}

// Recovered reports whether any substitution was needed.
func (r Record) Recovered() bool {
	return len(r.Recoveries) > 0
}
