package normalizer

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	require.NoError(t, dec.Decode(&v))
	return v
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func kinds(recs []types.Recovery) []types.RecoveryKind {
	out := make([]types.RecoveryKind, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Kind)
	}
	return out
}

const gstr1Doc = `{
  "gstin": "27AAACM1234F1Z5",
  "fp": "042024",
  "b2b": [{
    "ctin": "27AABCT1332L1ZZ",
    "inv": [{
      "inum": "S-001", "idt": "05-04-2024", "val": 2360, "pos": "27",
      "itms": [
        {"num": 1, "itm_det": {"txval": 1000, "rt": 18, "camt": 90, "samt": 90, "csamt": 0}},
        {"num": 2, "itm_det": {"txval": 1000, "rt": 18, "camt": 90, "samt": 90, "csamt": 0}}
      ]
    }]
  }],
  "b2cs": [
    {"sply_ty": "INTER", "pos": "29", "typ": "OE", "rt": 18, "txval": 1000}
  ]
}`

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want types.SchemaTag
	}{
		{"docdata", `{"data": {"gstin": "x", "docdata": {}}}`, types.SchemaGSTR2BDocData},
		{"itc_avl", `{"itc_avl": {"b2b": []}}`, types.SchemaGSTR2B},
		{"b2cs", `{"b2cs": []}`, types.SchemaGSTR1},
		{"object itm_det", gstr1Doc, types.SchemaGSTR1},
		{"list itm_det", `{"b2b": [{"inv": [{"itms": [{"itm_det": [{"txval": 1}]}]}]}]}`, types.SchemaGSTR2A},
		{"impg", `{"impg": []}`, types.SchemaGSTR2A},
		{"bank", `[{"date": "01-04-2024"}]`, types.SchemaBank},
		{"invoice list", `{"invoices": []}`, types.SchemaInvoice},
		{"single invoice", `{"invoice_number": "A-1", "invoice_type": "sales"}`, types.SchemaInvoice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sniff(decode(t, tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Sniff(decode(t, `{"summary": {}}`))
	assert.True(t, errors.Is(err, types.ErrMalformedDocument))
}

func TestExplicitTagWinsOverSniffing(t *testing.T) {
	n := New(Options{})
	// Looks like GSTR-1 but the caller says GSTR-2B, which needs itc_avl.
	_, err := n.NormalizeDocument(decode(t, gstr1Doc), types.SchemaGSTR2B)

	var malformed *types.MalformedDocumentError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "itc_avl", malformed.Section)
}

func TestGSTR1SumsItemsAndConsolidates(t *testing.T) {
	n := New(Options{})
	res, err := n.Normalize(decode(t, gstr1Doc), types.SchemaGSTR1)
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "27", res.Home)
	assert.Equal(t, "042024", res.Period)

	inv := res.Records[0].Txn
	assert.Equal(t, 1, inv.Seq)
	assert.Equal(t, types.Outbound, inv.Direction)
	assert.Equal(t, "S-001", inv.DocumentNumber)
	assert.True(t, dec("2000").Equal(inv.TaxableValue))
	assert.True(t, dec("180").Equal(inv.SplitTaxA))
	assert.True(t, dec("180").Equal(inv.SplitTaxB))
	assert.True(t, dec("360").Equal(inv.TotalTax))
	assert.True(t, dec("2360").Equal(inv.GrossValue))
	assert.False(t, inv.IsCrossJurisdiction)
	assert.True(t, inv.RateDeclared)
	assert.Equal(t, time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC), inv.TransactionDate)
	assert.Equal(t, "Customer-27-AABCT1332L1ZZ", inv.PartyName)
	assert.Empty(t, res.Records[0].Recoveries)

	b2cs := res.Records[1]
	assert.Equal(t, types.KindConsolidated, b2cs.Txn.Kind)
	assert.Equal(t, "B2CS INTER 29", b2cs.Txn.PartyName)
	assert.Equal(t, "B2CS-INTER-29-18-OE", b2cs.Txn.DocumentNumber)
	assert.True(t, b2cs.Txn.IsCrossJurisdiction)
	assert.True(t, dec("180").Equal(b2cs.Txn.SingleTax))
	assert.True(t, dec("1180").Equal(b2cs.Txn.GrossValue))
	assert.Contains(t, kinds(b2cs.Recoveries), types.RecoveryComputedTax)
}

func TestGSTR1RequiresASection(t *testing.T) {
	n := New(Options{})
	_, err := n.NormalizeDocument(decode(t, `{"gstin": "27AAACM1234F1Z5", "fp": "042024"}`), types.SchemaGSTR1)
	assert.True(t, errors.Is(err, types.ErrMalformedDocument))
}

func TestTaxAmountSignalWins(t *testing.T) {
	doc := `{
	  "gstin": "27AAACM1234F1Z5",
	  "b2b": [{"ctin": "27AAAPL1234C1Z5", "trdnm": "Local Supplier",
	    "inv": [{"inum": "P-9", "idt": "10-04-2024", "val": 1180, "pos": "27",
	      "itms": [{"itm_det": [{"txval": 1000, "rt": 18, "iamt": 180}]}]}]}]
	}`
	n := New(Options{})
	recs, err := n.NormalizeDocument(decode(t, doc), types.SchemaGSTR2A)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	txn := recs[0].Txn
	assert.True(t, txn.IsCrossJurisdiction)
	assert.Equal(t, "Local Supplier", txn.PartyName)
	require.Len(t, recs[0].Recoveries, 1)
	assert.Equal(t, types.RecoveryJurisdictionConflict, recs[0].Recoveries[0].Kind)
	assert.Contains(t, recs[0].Recoveries[0].Reason, "jurisdiction 27 vs 27")
}

func TestImportsAreCrossJurisdiction(t *testing.T) {
	doc := `{
	  "gstin": "29AAACM1234F1Z5",
	  "impg": [{"port_code": "INNSA1", "bill_num": "BE-77", "bill_date": "01-05-2024",
	    "txval": 50000, "iamt": 9000}]
	}`
	n := New(Options{})
	recs, err := n.NormalizeDocument(decode(t, doc), "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, types.KindImport, recs[0].Txn.Kind)
	assert.Equal(t, "Import-INNSA1", recs[0].Txn.PartyName)
	assert.Equal(t, "BE-77", recs[0].Txn.DocumentNumber)
	assert.True(t, recs[0].Txn.IsCrossJurisdiction)
	assert.Contains(t, kinds(recs[0].Recoveries), types.RecoveryComputedGross)
}

func TestGSTR2BWithISDCredit(t *testing.T) {
	doc := `{
	  "gstin": "07AAACM1234F1Z5",
	  "rtnprd": "052024",
	  "itc_avl": {"b2b": [{"ctin": "07AAAPL1234C1Z5", "trdnm": "Delhi Vendor",
	    "inv": [{"inum": "D-1", "dt": "2024-05-03", "val": "1,050.00",
	      "items": [{"txval": 1000, "rt": 5, "camt": 25, "samt": 25}]}]}]},
	  "isd_credit": [{"isd_gstin": "07AAACH7409R1Z8", "doc_num": "ISD-4", "doc_date": "06-05-2024",
	    "iamt": 0, "camt": 450, "samt": 450, "csamt": 0}]
	}`
	n := New(Options{})
	recs, err := n.NormalizeDocument(decode(t, doc), types.SchemaGSTR2B)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.True(t, dec("1050").Equal(recs[0].Txn.GrossValue))
	assert.False(t, recs[0].Txn.IsCrossJurisdiction)

	isd := recs[1].Txn
	assert.Equal(t, types.KindISD, isd.Kind)
	assert.True(t, isd.TaxableValue.IsZero())
	assert.True(t, dec("900").Equal(isd.GrossValue))
	assert.Equal(t, "Vendor-07-AAACH7409R1Z8", isd.PartyName)
	assert.Empty(t, recs[1].Recoveries)
}

func TestDocDataStructure(t *testing.T) {
	p := docDataParser{}

	_, err := p.checkStructure(decode(t, `{"data": {"gstin": "27AAACM1234F1Z5", "docdata": {}}}`))
	var malformed *types.MalformedDocumentError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "data.rtnprd", malformed.Section)

	notes, err := p.checkStructure(decode(t, `{"data": {"gstin": "27AAACM1234F1Z5", "rtnprd": "062024",
	  "docdata": {"b2b": [{"ctin": "27AAAPL1234C1Z5", "inv": []}]}}}`))
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "has no invoices")

	notes, err = p.checkStructure(decode(t, `{"data": {"gstin": "27AAACM1234F1Z5", "rtnprd": "062024", "docdata": {}}}`))
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "data.docdata.b2b", notes[0].Section)
}

func TestDocDataInvoices(t *testing.T) {
	doc := `{"data": {"gstin": "27AAACM1234F1Z5", "rtnprd": "062024", "docdata": {
	  "b2b": [{"ctin": "24AAAPL1234C1Z5", "trdnm": "Gujarat Mills",
	    "inv": [{"inum": "GM/44", "dt": "12-06-2024", "val": 11800, "txval": 10000, "igst": 1800,
	      "cgst": 0, "sgst": 0, "cess": 0, "pos": "27", "rev": "Y", "itcavl": "Y"}]}],
	  "impg": [{"portcode": "INBOM4", "boenum": "889", "boedt": "20-06-2024", "txval": 2000, "igst": 360, "cess": 0}]
	}}}`
	n := New(Options{})
	res, err := n.Normalize(decode(t, doc), "")
	require.NoError(t, err)
	assert.Equal(t, types.SchemaGSTR2BDocData, res.Schema)
	require.Len(t, res.Records, 2)

	inv := res.Records[0].Txn
	assert.True(t, inv.IsCrossJurisdiction)
	assert.True(t, dec("1800").Equal(inv.SingleTax))
	assert.Equal(t, "Reverse charge", inv.Narration)
	assert.Equal(t, "24", inv.PartyJurisdiction)

	imp := res.Records[1].Txn
	assert.Equal(t, "Import-INBOM4", imp.PartyName)
	assert.True(t, dec("2360").Equal(imp.GrossValue))
}

func TestHomeJurisdiction(t *testing.T) {
	doc := `{"b2cs": [{"sply_ty": "INTRA", "pos": "27", "rt": 5, "txval": 100, "camt": 2.5, "samt": 2.5}]}`

	_, err := New(Options{}).NormalizeDocument(decode(t, doc), types.SchemaGSTR1)
	assert.ErrorIs(t, err, ErrHomeUnknown)

	recs, err := New(Options{HomeJurisdiction: "27"}).NormalizeDocument(decode(t, doc), types.SchemaGSTR1)
	require.NoError(t, err)
	assert.False(t, recs[0].Txn.IsCrossJurisdiction)
}

func TestPlaceholderParty(t *testing.T) {
	doc := `{"gstin": "27AAACM1234F1Z5", "b2b": [{"inv": [{"inum": "X1", "idt": "bad",
	  "itms": [{"itm_det": [{"txval": 100, "camt": 9, "samt": 9}]}]}]}]}`
	recs, err := New(Options{}).NormalizeDocument(decode(t, doc), types.SchemaGSTR2A)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	txn := recs[0].Txn
	assert.Equal(t, "Unknown Vendor", txn.PartyName)
	assert.True(t, txn.TransactionDate.IsZero())
	assert.Equal(t, "bad", txn.RawDate)
	assert.ElementsMatch(t,
		[]types.RecoveryKind{types.RecoveryPlaceholderParty, types.RecoveryComputedGross},
		kinds(recs[0].Recoveries))
}

func TestBankRows(t *testing.T) {
	long := strings.Repeat("x", 300)
	doc := `[
	  {"date": "01/04/2024", "narration": "NEFT from customer", "debit_amount": "", "credit_amount": "₹1,500.00", "running_balance": "10,000"},
	  {"date": "02/04/2024", "narration": "` + long + `", "debit_amount": "250", "credit_amount": "", "running_balance": "9,750"},
	  {"date": "03/04/2024", "narration": "empty", "debit_amount": "", "credit_amount": ""},
	  {"date": "04/04/2024", "narration": "both", "debit_amount": "100", "credit_amount": "40"},
	  {"date": "05/04/2024", "narration": "reversal", "debit_amount": "(75.00)", "credit_amount": ""}
	]`
	n := New(Options{SuspenseLedger: "Bank Suspense"})
	res, err := n.Normalize(decode(t, doc), "")
	require.NoError(t, err)
	assert.Equal(t, types.SchemaBank, res.Schema)
	require.Len(t, res.Records, 4)

	in := res.Records[0].Txn
	assert.Equal(t, types.Inbound, in.Direction)
	assert.Equal(t, types.KindBank, in.Kind)
	assert.Equal(t, "Bank Suspense", in.PartyName)
	assert.True(t, dec("1500").Equal(in.GrossValue))
	assert.Empty(t, res.Records[0].Recoveries)

	out := res.Records[1].Txn
	assert.Equal(t, types.Outbound, out.Direction)
	assert.Len(t, []rune(out.Narration), 250)

	netted := res.Records[2]
	assert.Equal(t, types.Outbound, netted.Txn.Direction)
	assert.True(t, dec("60").Equal(netted.Txn.GrossValue))
	assert.Equal(t, []types.RecoveryKind{types.RecoveryNettedRow}, kinds(netted.Recoveries))

	flipped := res.Records[3].Txn
	assert.Equal(t, types.Inbound, flipped.Direction)
	assert.True(t, dec("75").Equal(flipped.GrossValue))

	require.Len(t, res.Dropped, 1)
	assert.Equal(t, types.RecoverySkippedRow, res.Dropped[0].Kind)
	assert.Equal(t, "row[3]", res.Dropped[0].SourceRef)
	assert.Len(t, res.Recoveries(), 2)
}

func TestParseAmount(t *testing.T) {
	tests := map[string]string{
		"1,234.50":   "1234.5",
		"₹ 2,000":    "2000",
		"Rs. 15.25":  "15.25",
		"(120.00)":   "-120",
		"500.00 Dr":  "-500",
		"500.00 Cr":  "500",
		"":           "0",
		"$9":         "9",
		"-42.10":     "-42.1",
		"123-":       "-123",
		"1,050.00 -": "-1050",
	}
	for in, want := range tests {
		got, ok := ParseAmount(in)
		require.True(t, ok, in)
		assert.True(t, dec(want).Equal(got), "%q -> %s", in, got)
	}

	_, ok := ParseAmount("twelve")
	assert.False(t, ok)
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"07-03-2024", "7-3-2024", "2024-03-07", "07/03/2024", "2024/03/07", "07.03.2024", "07-Mar-2024", "45358"} {
		got, ok := ParseDate(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseDate("not a date")
	assert.False(t, ok)

	start, ok := PeriodStart("062024")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), start)
}

func TestParseTag(t *testing.T) {
	tag, err := ParseTag(" GSTR2B-DocData ")
	require.NoError(t, err)
	assert.Equal(t, types.SchemaGSTR2BDocData, tag)

	tag, err = ParseTag("")
	require.NoError(t, err)
	assert.Empty(t, tag)

	_, err = ParseTag("gstr9")
	assert.Error(t, err)
}

func TestSectionRuleYieldsToTaxAmounts(t *testing.T) {
	doc := `{
	  "gstin": "27AAACM1234F1Z5",
	  "b2cl": [{"pos": "27", "inv": [{"inum": "L-1", "idt": "09-04-2024", "val": 1180,
	    "itms": [{"itm_det": {"txval": 1000, "rt": 18, "camt": 90, "samt": 90}}]}]}]
	}`
	recs, err := New(Options{}).NormalizeDocument(decode(t, doc), types.SchemaGSTR1)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	txn := recs[0].Txn
	assert.False(t, txn.IsCrossJurisdiction)
	assert.True(t, dec("90").Equal(txn.SplitTaxA))
	assert.True(t, dec("90").Equal(txn.SplitTaxB))
	assert.True(t, txn.SingleTax.IsZero())
	require.Len(t, recs[0].Recoveries, 1)
	assert.Equal(t, types.RecoveryJurisdictionConflict, recs[0].Recoveries[0].Kind)
	assert.Contains(t, recs[0].Recoveries[0].Reason, "large unregistered supply section")
}

func TestB2CSBucketsKeepTypeAndOperator(t *testing.T) {
	doc := `{
	  "gstin": "27AAACM1234F1Z5",
	  "b2cs": [
	    {"sply_ty": "INTRA", "pos": "27", "typ": "OE", "rt": 5, "txval": 100, "camt": 2.5, "samt": 2.5},
	    {"sply_ty": "INTRA", "pos": "27", "typ": "E", "etin": "27AAACF1234E1ZK", "rt": 5, "txval": 100, "camt": 2.5, "samt": 2.5},
	    {"sply_ty": "INTRA", "pos": "27", "rt": 5, "txval": 100, "camt": 2.5, "samt": 2.5}
	  ]
	}`
	recs, err := New(Options{}).NormalizeDocument(decode(t, doc), types.SchemaGSTR1)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "B2CS-INTRA-27-5-OE", recs[0].Txn.DocumentNumber)
	assert.Equal(t, "B2CS-INTRA-27-5-E-27AAACF1234E1ZK", recs[1].Txn.DocumentNumber)
	assert.Equal(t, "B2CS-INTRA-27-5", recs[2].Txn.DocumentNumber)
}

const invoiceDoc = `{
  "invoices": [
    {"invoice_type": "purchase", "invoice_number": "KA/101", "invoice_date": "2024-05-03",
     "vendor_name": "Bengaluru Castings", "vendor_gstin": "29AAACB1234C1Z2", "vendor_state": "Karnataka",
     "buyer_name": "Mehta Traders", "buyer_gstin": "27AAACM1234F1Z5", "buyer_state": "Maharashtra",
     "total_invoice_value": 2360,
     "items": [
       {"description": "Flanges", "hsn_code": "7307", "quantity": 10, "taxable_value": 1000, "igst_rate": 18, "igst_amount": 180},
       {"description": "Bolts", "hsn_code": "7318", "quantity": 100, "taxable_value": 1000, "igst_rate": 18, "igst_amount": 180}
     ]},
    {"invoice_type": "sales", "invoice_number": "MT-55", "invoice_date": "04-05-2024",
     "vendor_name": "Mehta Traders", "vendor_gstin": "27AAACM1234F1Z5",
     "buyer_name": "Pune Retail", "buyer_state": "Maharashtra",
     "total_invoice_value": "590.00",
     "items": [{"description": "Valves", "taxable_value": 500, "cgst_rate": 9, "cgst_amount": 45, "sgst_rate": 9, "sgst_amount": 45}]}
  ]
}`

func TestInvoices(t *testing.T) {
	res, err := New(Options{}).Normalize(decode(t, invoiceDoc), "")
	require.NoError(t, err)
	assert.Equal(t, types.SchemaInvoice, res.Schema)
	assert.Equal(t, "27", res.Home)
	require.Len(t, res.Records, 2)

	purchase := res.Records[0].Txn
	assert.Equal(t, types.KindInvoice, purchase.Kind)
	assert.Equal(t, types.Inbound, purchase.Direction)
	assert.Equal(t, "Bengaluru Castings", purchase.PartyName)
	assert.Equal(t, "29AAACB1234C1Z2", purchase.PartyTaxID)
	assert.Equal(t, "KA/101", purchase.DocumentNumber)
	assert.Equal(t, time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), purchase.TransactionDate)
	assert.True(t, purchase.IsCrossJurisdiction)
	assert.True(t, dec("2000").Equal(purchase.TaxableValue))
	assert.True(t, dec("360").Equal(purchase.SingleTax))
	assert.True(t, dec("2360").Equal(purchase.GrossValue))
	assert.True(t, dec("18").Equal(purchase.DeclaredRate))
	assert.Empty(t, res.Records[0].Recoveries)

	sale := res.Records[1].Txn
	assert.Equal(t, types.Outbound, sale.Direction)
	assert.Equal(t, "Pune Retail", sale.PartyName)
	assert.Empty(t, sale.PartyTaxID)
	assert.Equal(t, "27", sale.PartyJurisdiction)
	assert.False(t, sale.IsCrossJurisdiction)
	assert.True(t, dec("45").Equal(sale.SplitTaxA))
	assert.True(t, dec("90").Equal(sale.TotalTax))
	assert.True(t, dec("590").Equal(sale.GrossValue))
	assert.True(t, sale.RateDeclared)
	assert.True(t, dec("18").Equal(sale.DeclaredRate))
	assert.Empty(t, res.Records[1].Recoveries)
}

func TestInvoiceTotalsWithoutItems(t *testing.T) {
	doc := `{"invoice_type": "purchase", "invoice_number": "B-7", "invoice_date": "2024-06-11",
	  "vendor_name": "Ravi Stores", "vendor_state": "Karnataka", "buyer_state": "Karnataka",
	  "total_taxable_value": 200, "total_cgst": 5, "total_sgst": 5, "total_invoice_value": 210}`
	res, err := New(Options{}).Normalize(decode(t, doc), "")
	require.NoError(t, err)
	assert.Equal(t, types.SchemaInvoice, res.Schema)
	assert.Equal(t, "29", res.Home)
	require.Len(t, res.Records, 1)

	txn := res.Records[0].Txn
	assert.Equal(t, "29", txn.PartyJurisdiction)
	assert.False(t, txn.IsCrossJurisdiction)
	assert.True(t, dec("200").Equal(txn.TaxableValue))
	assert.True(t, dec("10").Equal(txn.TotalTax))
	assert.True(t, dec("210").Equal(txn.GrossValue))
	assert.Empty(t, res.Records[0].Recoveries)
}

func TestInvoiceTypeIsRequired(t *testing.T) {
	_, err := New(Options{HomeJurisdiction: "27"}).NormalizeDocument(
		decode(t, `{"invoices": [{"invoice_number": "X-1", "invoice_type": "credit"}]}`), types.SchemaInvoice)

	var malformed *types.MalformedDocumentError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "invoices[0].invoice_type", malformed.Section)

	notes, err := New(Options{}).CheckStructure(decode(t, `{"invoices": []}`), types.SchemaInvoice)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "invoices", notes[0].Section)
}

// assertInvariants checks the amount relations every canonical transaction
// must satisfy. Cess sits outside total_tax, so it is part of the gross.
func assertInvariants(t *testing.T, txn types.CanonicalTransaction) {
	t.Helper()
	tolerance := dec("0.01")
	diff := txn.GrossValue.Sub(txn.TaxableValue.Add(txn.TotalTax).Add(txn.Cess)).Abs()
	assert.True(t, diff.LessThanOrEqual(tolerance), "%s: gross %s off by %s", txn.SourceRef, txn.GrossValue, diff)
	assert.True(t, txn.TotalTax.Equal(txn.SplitTaxA.Add(txn.SplitTaxB).Add(txn.SingleTax)), txn.SourceRef)
	if txn.IsCrossJurisdiction {
		assert.True(t, txn.SplitTaxA.IsZero() && txn.SplitTaxB.IsZero(), "%s: cross with split tax", txn.SourceRef)
	} else {
		assert.True(t, txn.SingleTax.IsZero(), "%s: same-jurisdiction with single tax", txn.SourceRef)
	}
	assert.False(t, txn.TaxableValue.IsNegative(), txn.SourceRef)
}

func TestEverySchemaKeepsAmountInvariants(t *testing.T) {
	tests := []struct {
		name string
		tag  types.SchemaTag
		doc  string
	}{
		{"gstr1", types.SchemaGSTR1, gstr1Doc},
		{"gstr2a", types.SchemaGSTR2A, `{"gstin": "29AAACM1234F1Z5",
		  "b2b": [{"ctin": "29AAAPL1234C1Z5", "inv": [{"inum": "A-1", "idt": "02-05-2024", "val": 1290,
		    "itms": [{"itm_det": [{"txval": 1000, "rt": 28, "camt": 140, "samt": 140, "csamt": 10}]}]}]}],
		  "impg": [{"port_code": "INNSA1", "bill_num": "BE-77", "bill_date": "01-05-2024", "txval": 50000, "iamt": 9000}]}`},
		{"gstr2b", types.SchemaGSTR2B, `{"gstin": "07AAACM1234F1Z5",
		  "itc_avl": {"b2b": [{"ctin": "07AAAPL1234C1Z5", "inv": [{"inum": "D-1", "dt": "2024-05-03", "val": 1290,
		    "items": [{"txval": 1000, "rt": 28, "camt": 140, "samt": 140, "csamt": 10}]}]}]},
		  "isd_credit": [{"isd_gstin": "07AAACH7409R1Z8", "doc_num": "ISD-4", "camt": 450, "samt": 450, "csamt": 25}]}`},
		{"docdata", types.SchemaGSTR2BDocData, `{"data": {"gstin": "27AAACM1234F1Z5", "rtnprd": "062024", "docdata": {
		  "b2b": [{"ctin": "24AAAPL1234C1Z5", "inv": [{"inum": "GM/44", "dt": "12-06-2024", "val": 11850,
		    "txval": 10000, "igst": 1800, "cgst": 0, "sgst": 0, "cess": 50}]}]}}}`},
		{"bank", types.SchemaBank, `[{"date": "01/04/2024", "narration": "NEFT", "credit_amount": "1,500.00"},
		  {"date": "02/04/2024", "narration": "fee", "debit_amount": "25.00"}]`},
		{"invoice", types.SchemaInvoice, invoiceDoc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := New(Options{}).NormalizeDocument(decode(t, tt.doc), tt.tag)
			require.NoError(t, err)
			require.NotEmpty(t, recs)
			for _, rec := range recs {
				assertInvariants(t, rec.Txn)
			}
		})
	}
}

// randomGSTR2B builds a portal statement whose invoices carry consistent
// amounts, sometimes with cess, sometimes without a declared gross.
func randomGSTR2B(faker *gofakeit.Faker, n int) map[string]any {
	rates := []int64{0, 5, 12, 18, 28}
	suppliers := make([]any, 0, n)
	for i := 0; i < n; i++ {
		tv := decimal.NewFromFloat(faker.Float64Range(1, 500000)).Round(2)
		rate := decimal.NewFromInt(rates[faker.Number(0, len(rates)-1)])
		cross := faker.Bool()

		item := map[string]any{"txval": tv.StringFixed(2), "rt": rate.String()}
		tax := decimal.Zero
		ctin := "27" + strings.ToUpper(faker.LetterN(13))
		if cross {
			ctin = "29" + strings.ToUpper(faker.LetterN(13))
			tax = tv.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
			item["iamt"] = tax.StringFixed(2)
		} else {
			half := tv.Mul(rate).Div(decimal.NewFromInt(200)).Round(2)
			tax = half.Add(half)
			item["camt"], item["samt"] = half.StringFixed(2), half.StringFixed(2)
		}
		if faker.Bool() {
			cess := decimal.NewFromFloat(faker.Float64Range(0, 500)).Round(2)
			tax = tax.Add(cess)
			item["csamt"] = cess.StringFixed(2)
		}

		inv := map[string]any{
			"inum":  faker.Regex("[A-Z]{2}/[0-9]{4}"),
			"dt":    faker.Date().Format("02-01-2006"),
			"items": []any{item},
		}
		if faker.Bool() {
			inv["val"] = tv.Add(tax).StringFixed(2)
		}
		suppliers = append(suppliers, map[string]any{
			"ctin":  ctin,
			"trdnm": faker.Company(),
			"inv":   []any{inv},
		})
	}
	return map[string]any{
		"gstin":   "27AAACM1234F1Z5",
		"rtnprd":  "052024",
		"itc_avl": map[string]any{"b2b": suppliers},
	}
}

func TestRandomStatementsKeepAmountInvariants(t *testing.T) {
	doc := randomGSTR2B(gofakeit.New(2024), 250)
	recs, err := New(Options{}).NormalizeDocument(doc, types.SchemaGSTR2B)
	require.NoError(t, err)
	require.Len(t, recs, 250)
	for _, rec := range recs {
		assertInvariants(t, rec.Txn)
		assert.NotContains(t, kinds(rec.Recoveries), types.RecoveryJurisdictionConflict)
	}
}
