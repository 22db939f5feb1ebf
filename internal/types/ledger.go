package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PARTY AGGREGATE
// =============================================================================

// PartyAggregate holds the per-party totals for one run.
type PartyAggregate struct {
	Key          string
	TaxID        string
	DisplayName  string
	LedgerName   string
	Jurisdiction string
	Direction    Direction
	Kind         SourceKind

	InvoiceCount int
	SumTaxable   decimal.Decimal
	SumSplitA    decimal.Decimal
	SumSplitB    decimal.Decimal
	SumSingle    decimal.Decimal
	SumCess      decimal.Decimal
	SumGross     decimal.Decimal

	// Invoices keeps the contributing transactions in input order.
	Invoices []CanonicalTransaction
}

// BillTracked reports whether the party ledger is maintained bill-by-bill.
func (p PartyAggregate) BillTracked() bool {
	return p.Kind.BillTracked()
}

// =============================================================================
// VOUCHERS
// =============================================================================

// VoucherType is the Tally voucher type tag.
type VoucherType string

const (
	VoucherPurchase VoucherType = "Purchase"
	VoucherSales    VoucherType = "Sales"
	VoucherReceipt  VoucherType = "Receipt"
	VoucherPayment  VoucherType = "Payment"
)

// BillAllocation ties a party entry to the source document.
type BillAllocation struct {
	Name   string
	Type   string
	Amount decimal.Decimal
	Date   time.Time
}

// EntryRole is what a ledger entry stands for. Masters are derived from it.
type EntryRole string

const (
	RoleParty    EntryRole = "party"
	RolePrimary  EntryRole = "primary"
	RoleTax      EntryRole = "tax"
	RoleBank     EntryRole = "bank"
	RoleSuspense EntryRole = "suspense"
	RoleRoundOff EntryRole = "round_off"
)

// LedgerEntry is one line of a voucher. Amount is signed: credits are
// positive, debits negative.
type LedgerEntry struct {
	LedgerName string
	IsCredit   bool
	Amount     decimal.Decimal
	IsParty    bool
	Bill       *BillAllocation

	Role EntryRole

	// Tax entries only.
	DutyHead  string
	Rate      decimal.Decimal
	RateKnown bool
}

// IsDeemedPositive follows the Tally flag: debits are deemed positive.
func (e LedgerEntry) IsDeemedPositive() bool {
	return !e.IsCredit
}

// Voucher is one balanced set of entries for one transaction.
type Voucher struct {
	Seq           int
	Direction     Direction
	Schema        SchemaTag
	Type          VoucherType
	Number        string
	GUID          string
	Date          time.Time
	Reference     string
	Narration     string
	PartyLedger   string
	PartyTaxID    string
	PlaceOfSupply string
	Document      string
	Entries       []LedgerEntry
}

// Sum is the signed sum of all entries. Balanced vouchers sum to zero.
func (v Voucher) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range v.Entries {
		sum = sum.Add(e.Amount)
	}
	return sum
}

// VoucherSet is the builder output for one run, in voucher-number order.
type VoucherSet struct {
	Company  string
	Schema   SchemaTag
	Vouchers []Voucher
}

// LedgerNames lists every ledger referenced by the set, in first-use order.
func (s VoucherSet) LedgerNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, v := range s.Vouchers {
		for _, e := range v.Entries {
			if !seen[e.LedgerName] {
				seen[e.LedgerName] = true
				names = append(names, e.LedgerName)
			}
		}
	}
	return names
}

// =============================================================================
// MASTERS
// =============================================================================

// MasterKind distinguishes group and ledger master records.
type MasterKind int

const (
	MasterGroup MasterKind = iota
	MasterLedger
)

// Master is one ledger or group to create before vouchers are imported.
type Master struct {
	Kind   MasterKind
	Name   string
	Parent string

	// Party ledgers
	IsParty          bool
	BillWise         bool
	TaxID            string
	StateName        string
	RegistrationType string

	// Tax ledgers
	IsTax    bool
	DutyHead string
	Rate     decimal.Decimal
	HasRate  bool
}
