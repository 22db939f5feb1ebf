package normalizer

import (
	"github.com/ginjaninja78/gst-tally-vouchers/internal/types"
	"github.com/shopspring/decimal"
)

// =============================================================================
// GSTR-2B (PORTAL ITC STATEMENT)
// =============================================================================
// itc_avl.b2b    supplier invoices, tax per item under items[]
// itc_avl.impg   imports of goods
// isd_credit     input service distributor credits (no taxable value)

type gstr2bParser struct{}

func (gstr2bParser) checkStructure(raw any) ([]StructureNote, error) {
	doc, ok := object(raw)
	if !ok {
		return nil, &types.MalformedDocumentError{Schema: types.SchemaGSTR2B, Reason: "top level is not an object"}
	}
	avl, present := doc["itc_avl"]
	if !present {
		return nil, types.Malformed(types.SchemaGSTR2B, "itc_avl")
	}
	itc, ok := object(avl)
	if !ok {
		return nil, &types.MalformedDocumentError{Schema: types.SchemaGSTR2B, Section: "itc_avl", Reason: "is not an object"}
	}

	var notes []StructureNote
	if len(children(itc, "b2b")) == 0 && len(children(itc, "impg")) == 0 && len(isdRows(doc)) == 0 {
		notes = append(notes, StructureNote{Section: "itc_avl", Message: "no b2b, impg or isd_credit entries"})
	}
	return notes, nil
}

func (gstr2bParser) normalize(raw any, r *run) error {
	doc, _ := object(raw)
	itc, _ := object(doc["itc_avl"])
	r.period = str(doc, "rtnprd", "fp", "ret_period")
	if err := r.adoptHome(str(doc, "gstin")); err != nil {
		return err
	}

	for pi, p := range children(itc, "b2b") {
		party, _ := object(p)
		for ii, i := range children(party, "inv") {
			inv, _ := object(i)
			e := invoiceEntry(inv, portalKeys)
			e.kind = types.KindInvoice
			e.direction = types.Inbound
			e.sourceRef = ref("itc_avl.b2b[%d].inv[%d]", pi, ii)
			e.partyName = str(party, "trdnm", "supname")
			e.taxID = str(party, "ctin", "gstin")
			r.emit(e)
		}
	}

	emitImports(r, children(itc, "impg"), "itc_avl.impg", portalKeys)

	for i, row := range isdRows(doc) {
		isd, _ := object(row)
		var t totals
		t.add(isd, portalKeys)

		e := entry{
			kind:      types.KindISD,
			direction: types.Inbound,
			sourceRef: ref("isd_credit[%d]", i),
			partyName: str(isd, "trdnm"),
			taxID:     str(isd, "isd_gstin", "ctin"),
			document:  str(isd, "doc_num", "docnum"),
			rawDate:   str(isd, "doc_date", "docdt"),
			totals:    t,
		}
		e.totals.taxable = decimal.Zero
		e.gross = t.single.Add(t.splitA).Add(t.splitB).Add(t.cess)
		e.grossPresent = true
		r.emit(e)
	}
	return nil
}

// isdRows accepts isd_credit at the top level or under itc_avl.
func isdRows(doc map[string]any) []any {
	if rows := children(doc, "isd_credit"); len(rows) > 0 {
		return rows
	}
	itc, _ := object(doc["itc_avl"])
	return children(itc, "isd_credit")
}
