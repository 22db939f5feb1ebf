package normalizer

import (
	"strings"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/types"
	"github.com/shopspring/decimal"
)

// =============================================================================
// EXTRACTED INVOICES
// =============================================================================
// Invoices read off scanned bills, either one object or {"invoices": [...]}.
// invoice_type "purchase" makes the vendor the party and the company the
// buyer; "sales" the other way round. Line items carry taxable_value and
// cgst/sgst/igst rate and amount; without items the total_* fields are used.

type invoiceParser struct{}

var (
	invoiceItemKeys = itemKeys{
		taxable: []string{"taxable_value"},
		single:  []string{"igst_amount"},
		splitA:  []string{"cgst_amount"},
		splitB:  []string{"sgst_amount"},
		cess:    []string{"cess_amount"},
	}
	invoiceTotalKeys = itemKeys{
		taxable: []string{"total_taxable_value"},
		single:  []string{"total_igst"},
		splitA:  []string{"total_cgst"},
		splitB:  []string{"total_sgst"},
		cess:    []string{"total_cess"},
	}
)

// invoices returns the invoice objects and the default invoice_type.
func invoices(raw any) ([]any, string, bool) {
	doc, ok := object(raw)
	if !ok {
		return nil, "", false
	}
	if _, present := doc["invoices"]; present {
		l, ok := list(doc["invoices"])
		return l, str(doc, "invoice_type"), ok
	}
	return []any{doc}, "", true
}

func invoiceType(inv map[string]any, fallback string) string {
	t := strings.ToLower(str(inv, "invoice_type"))
	if t == "" {
		t = strings.ToLower(strings.TrimSpace(fallback))
	}
	return t
}

func (invoiceParser) checkStructure(raw any) ([]StructureNote, error) {
	if _, ok := object(raw); !ok {
		return nil, &types.MalformedDocumentError{Schema: types.SchemaInvoice, Reason: "top level is not an object"}
	}
	items, fallback, ok := invoices(raw)
	if !ok {
		return nil, &types.MalformedDocumentError{Schema: types.SchemaInvoice, Section: "invoices", Reason: "is not a list"}
	}
	if len(items) == 0 {
		return []StructureNote{{Section: "invoices", Message: "section is empty"}}, nil
	}
	for i, v := range items {
		inv, ok := object(v)
		if !ok {
			return nil, &types.MalformedDocumentError{Schema: types.SchemaInvoice, Section: ref("invoices[%d]", i), Reason: "is not an object"}
		}
		switch invoiceType(inv, fallback) {
		case "purchase", "sales":
		default:
			return nil, &types.MalformedDocumentError{
				Schema:  types.SchemaInvoice,
				Section: ref("invoices[%d].invoice_type", i),
				Reason:  "must be purchase or sales",
			}
		}
	}
	return nil, nil
}

func (invoiceParser) normalize(raw any, r *run) error {
	items, fallback, _ := invoices(raw)
	for i, v := range items {
		inv, _ := object(v)

		party, own := "vendor", "buyer"
		direction := types.Inbound
		if invoiceType(inv, fallback) == "sales" {
			party, own = "buyer", "vendor"
			direction = types.Outbound
		}

		if r.home == "" {
			if code, ok := r.opts.Table.CodeForName(str(inv, own+"_state")); ok {
				r.home = code
			}
		}
		if err := r.adoptHome(str(inv, own+"_gstin")); err != nil {
			return err
		}

		e := entry{
			kind:      types.KindInvoice,
			direction: direction,
			sourceRef: ref("invoices[%d]", i),
			partyName: str(inv, party+"_name"),
			taxID:     str(inv, party+"_gstin"),
			document:  str(inv, "invoice_number"),
			rawDate:   str(inv, "invoice_date"),
		}
		if code, ok := r.opts.Table.CodeForName(str(inv, party+"_state")); ok {
			e.partyCode = code
		}
		if v := field(inv, "total_invoice_value"); v != nil {
			g, ok := toDecimal(v)
			e.gross, e.grossPresent, e.grossBad = g, ok, !ok
		}

		lines := children(inv, "items")
		if len(lines) == 0 {
			e.totals.add(inv, invoiceTotalKeys)
		}
		for _, l := range lines {
			line, _ := object(l)
			e.totals.add(line, invoiceItemKeys)
			if rt, ok := lineRate(line); ok {
				e.totals.addRate(rt)
			}
		}
		r.emit(e)
	}
	return nil
}

// lineRate is the combined rate of one line: igst_rate, or cgst_rate plus
// sgst_rate.
func lineRate(line map[string]any) (decimal.Decimal, bool) {
	if field(line, "igst_rate") != nil {
		if rt, ok := amount(line, "igst_rate"); ok && rt.IsPositive() {
			return rt, true
		}
	}
	if field(line, "cgst_rate", "sgst_rate") == nil {
		return decimal.Zero, false
	}
	a, okA := amount(line, "cgst_rate")
	b, okB := amount(line, "sgst_rate")
	if !okA || !okB {
		return decimal.Zero, false
	}
	return a.Add(b), true
}
