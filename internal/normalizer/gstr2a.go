package normalizer

import (
	"github.com/ginjaninja78/gst-tally-vouchers/internal/types"
)

// =============================================================================
// GSTR-2A (AUTO-DRAFTED INWARD SUPPLIES)
// =============================================================================

type gstr2aParser struct{}

func (gstr2aParser) checkStructure(raw any) ([]StructureNote, error) {
	doc, ok := object(raw)
	if !ok {
		return nil, &types.MalformedDocumentError{Schema: types.SchemaGSTR2A, Reason: "top level is not an object"}
	}
	_, hasB2B := doc["b2b"]
	_, hasImpg := doc["impg"]
	if !hasB2B && !hasImpg {
		return nil, types.Malformed(types.SchemaGSTR2A, "b2b|impg")
	}

	var notes []StructureNote
	for _, section := range []string{"b2b", "impg"} {
		v, present := doc[section]
		if !present {
			continue
		}
		l, ok := list(v)
		if !ok {
			return nil, &types.MalformedDocumentError{Schema: types.SchemaGSTR2A, Section: section, Reason: "is not a list"}
		}
		if len(l) == 0 {
			notes = append(notes, StructureNote{Section: section, Message: "section is empty"})
		}
	}
	return notes, nil
}

func (gstr2aParser) normalize(raw any, r *run) error {
	doc, _ := object(raw)
	r.period = str(doc, "fp", "ret_period")
	if err := r.adoptHome(str(doc, "gstin")); err != nil {
		return err
	}

	for pi, p := range children(doc, "b2b") {
		party, _ := object(p)
		for ii, i := range children(party, "inv") {
			inv, _ := object(i)
			e := invoiceEntry(inv, portalKeys)
			e.kind = types.KindInvoice
			e.direction = types.Inbound
			e.sourceRef = ref("b2b[%d].inv[%d]", pi, ii)
			e.partyName = str(party, "trdnm", "cname")
			e.taxID = str(party, "ctin")
			r.emit(e)
		}
	}

	emitImports(r, children(doc, "impg"), "impg", portalKeys)
	return nil
}

// emitImports handles bill-of-entry rows. The same shape appears in three
// schemas with different spellings.
func emitImports(r *run, rows []any, section string, keys itemKeys) {
	for i, row := range rows {
		boe, _ := object(row)
		port := str(boe, "port_code", "portcode")

		var t totals
		t.add(boe, keys)
		e := entry{
			kind:      types.KindImport,
			direction: types.Inbound,
			sourceRef: ref("%s[%d]", section, i),
			partyName: "Import-" + port,
			document:  str(boe, "bill_num", "boenum", "be_num"),
			rawDate:   str(boe, "bill_date", "boedt", "be_dt"),
			forced:    true,
			forcedWhy: "import of goods",
			totals:    t,
		}
		if port == "" {
			e.partyName = "Import"
		}
		r.emit(e)
	}
}
