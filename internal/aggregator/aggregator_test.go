package aggregator

import (
	"strings"
	"testing"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/ledger"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func txn(name, taxID, doc, tv, a, b, single, cess string) types.CanonicalTransaction {
	t := types.CanonicalTransaction{
		Kind:           types.KindInvoice,
		Direction:      types.Inbound,
		PartyName:      name,
		PartyTaxID:     taxID,
		DocumentNumber: doc,
		TaxableValue:   d(tv),
		SplitTaxA:      d(a),
		SplitTaxB:      d(b),
		SingleTax:      d(single),
		Cess:           d(cess),
	}
	t.SumTaxes()
	t.GrossValue = t.ComputedGross()
	return t
}

func TestSamePartyAcrossBatches(t *testing.T) {
	first := []types.CanonicalTransaction{
		txn("Sharma Traders", "27AAAPL1234C1Z5", "A-1", "1000", "90", "90", "0", "0"),
	}
	second := []types.CanonicalTransaction{
		txn("Sharma Traders Pvt", "27AAAPL1234C1Z5", "A-2", "500", "0", "0", "90", "5"),
		txn("Gupta & Co", "29AABCG1111K1Z2", "G-1", "100", "0", "0", "18", "0"),
	}

	res := New(nil, nil).Aggregate(first, second)
	require.Len(t, res.Parties, 2)

	p, ok := res.Party("27AAAPL1234C1Z5")
	require.True(t, ok)
	assert.Equal(t, 2, p.InvoiceCount)
	assert.True(t, d("1500").Equal(p.SumTaxable))
	assert.True(t, d("90").Equal(p.SumSplitA))
	assert.True(t, d("90").Equal(p.SumSplitB))
	assert.True(t, d("90").Equal(p.SumSingle))
	assert.True(t, d("5").Equal(p.SumCess))
	assert.True(t, d("1775").Equal(p.SumGross))
	assert.Equal(t, "Sharma Traders", p.DisplayName)
	assert.Equal(t, "Sharma Traders", p.LedgerName)
	assert.Equal(t, "27", p.Jurisdiction)
	assert.Equal(t, []string{"A-1", "A-2"}, []string{p.Invoices[0].DocumentNumber, p.Invoices[1].DocumentNumber})

	assert.Equal(t, "Gupta Co", res.Parties[1].LedgerName)
	assert.Empty(t, res.Collisions)

	name, ok := res.LedgerFor(second[1])
	assert.True(t, ok)
	assert.Equal(t, "Gupta Co", name)
}

func TestLedgerCollisionsAreSuffixed(t *testing.T) {
	batch := []types.CanonicalTransaction{
		txn("A.B.C. Traders", "27AAAPL1234C1Z5", "1", "10", "0", "0", "0", "0"),
		txn("A.B.C. Traders!", "29AABCG1111K1Z2", "2", "10", "0", "0", "0", "0"),
		txn("A.B.C. Traders", "", "3", "10", "0", "0", "0", "0"),
	}
	res := New(nil, nil).Aggregate(batch)
	require.Len(t, res.Parties, 3)

	assert.Equal(t, "A.B.C. Traders", res.Parties[0].LedgerName)
	assert.Equal(t, "A.B.C. Traders 29AABCG1111K1Z2", res.Parties[1].LedgerName)
	assert.Equal(t, "A.B.C. Traders 2", res.Parties[2].LedgerName)

	require.Len(t, res.Collisions, 2)
	assert.Equal(t, "27AAAPL1234C1Z5", res.Collisions[0].FirstKey)
	assert.Equal(t, "29AABCG1111K1Z2", res.Collisions[0].Key)
	assert.Equal(t, "29AABCG1111K1Z2", res.Collisions[0].TaxID)
	assert.Contains(t, res.Collisions[1].String(), "name:A.B.C. Traders")
	assert.Equal(t, "name:A.B.C. Traders", res.Collisions[1].Key)
	assert.Empty(t, res.Collisions[1].TaxID)
}

func TestSuffixedFitsLedgerLimit(t *testing.T) {
	long := strings.Repeat("x", 120)
	got := suffixed(long, "27AAAPL1234C1Z5")
	assert.LessOrEqual(t, len([]rune(got)), ledger.MaxNameLength)
	assert.True(t, strings.HasSuffix(got, " 27AAAPL1234C1Z5"))
}

func TestBankRowsAreNotParties(t *testing.T) {
	bank := types.CanonicalTransaction{Kind: types.KindBank, PartyName: "Suspense", TaxableValue: d("10")}
	res := New(nil, nil).Aggregate([]types.CanonicalTransaction{bank})
	assert.Empty(t, res.Parties)
	_, ok := res.LedgerFor(bank)
	assert.False(t, ok)
}

func TestOverridesApplyToPartyLedgers(t *testing.T) {
	r := ledger.NewResolver(map[string]string{"Sharma Traders": "Sharma Traders (Mumbai)"})
	res := New(r, nil).Aggregate([]types.CanonicalTransaction{
		txn("Sharma Traders", "27AAAPL1234C1Z5", "A-1", "1000", "90", "90", "0", "0"),
	})
	assert.Equal(t, "Sharma Traders (Mumbai)", res.Parties[0].LedgerName)
}

func TestCollectMasters(t *testing.T) {
	agg := New(nil, nil).Aggregate([]types.CanonicalTransaction{
		txn("Sharma Traders", "27AAAPL1234C1Z5", "A-1", "1000", "90", "90", "0", "0"),
	})
	set := types.VoucherSet{Vouchers: []types.Voucher{
		{
			Direction: types.Inbound,
			Entries: []types.LedgerEntry{
				{LedgerName: "Sharma Traders", IsCredit: true, Amount: d("1180"), IsParty: true, Role: types.RoleParty},
				{LedgerName: "Local Purchase 18%", Amount: d("-1000"), Role: types.RolePrimary},
				{LedgerName: "Input CGST 9%", Amount: d("-90"), Role: types.RoleTax, DutyHead: "Central Tax", Rate: d("9"), RateKnown: true},
				{LedgerName: "Input SGST 9%", Amount: d("-90"), Role: types.RoleTax, DutyHead: "State Tax", Rate: d("9"), RateKnown: true},
			},
		},
		{
			Direction: types.Inbound,
			Entries: []types.LedgerEntry{
				{LedgerName: "Suspense", IsCredit: true, Amount: d("50"), Role: types.RoleSuspense},
				{LedgerName: "HDFC Bank", Amount: d("-50"), Role: types.RoleBank},
				{LedgerName: "Input CGST 9%", Amount: d("0"), Role: types.RoleTax},
			},
		},
	}}

	masters := CollectMasters(set, agg, MasterOptions{
		Groups:   DefaultGroups(),
		BillWise: true,
		Parents:  map[string]string{"HDFC Bank": "Bank OCC A/c"},
	})

	var names, parents []string
	for _, m := range masters {
		names = append(names, m.Name)
		parents = append(parents, m.Parent)
	}
	assert.Equal(t, []string{
		"GST Suppliers", "GST Purchases", "GST Input Tax",
		"Sharma Traders", "Local Purchase 18%", "Input CGST 9%", "Input SGST 9%", "Suspense", "HDFC Bank",
	}, names)
	assert.Equal(t, []string{
		GroupSundryCreditors, GroupPurchaseAccounts, GroupDutiesTaxes,
		"GST Suppliers", "GST Purchases", "GST Input Tax", "GST Input Tax", GroupSuspense, "Bank OCC A/c",
	}, parents)

	party := masters[3]
	assert.True(t, party.IsParty)
	assert.True(t, party.BillWise)
	assert.Equal(t, "27AAAPL1234C1Z5", party.TaxID)
	assert.Equal(t, "Maharashtra", party.StateName)
	assert.Equal(t, "Regular", party.RegistrationType)

	cgst := masters[5]
	assert.True(t, cgst.IsTax)
	assert.Equal(t, "Central Tax", cgst.DutyHead)
	assert.True(t, cgst.HasRate)
}

func TestCollectMastersWithoutSubGroups(t *testing.T) {
	set := types.VoucherSet{Vouchers: []types.Voucher{{
		Direction: types.Outbound,
		Entries: []types.LedgerEntry{
			{LedgerName: "B2CS INTRA 27", Role: types.RoleParty},
			{LedgerName: "Local Sales 5%", Role: types.RolePrimary},
			{LedgerName: "Round Off", Role: types.RoleRoundOff},
		},
	}}}
	masters := CollectMasters(set, nil, MasterOptions{})
	require.Len(t, masters, 3)
	assert.Equal(t, GroupSundryDebtors, masters[0].Parent)
	assert.Equal(t, "Unregistered", masters[0].RegistrationType)
	assert.Equal(t, GroupSalesAccounts, masters[1].Parent)
	assert.Equal(t, GroupIndirectExpenses, masters[2].Parent)
}
