package normalizer

import (
	"strings"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/types"
)

// =============================================================================
// GSTR-2B OFFICIAL JSON (data.docdata)
// =============================================================================
// Amounts sit on the invoice itself and are spelled igst/cgst/sgst/cess.

type docDataParser struct{}

func (docDataParser) checkStructure(raw any) ([]StructureNote, error) {
	doc, ok := object(raw)
	if !ok {
		return nil, &types.MalformedDocumentError{Schema: types.SchemaGSTR2BDocData, Reason: "top level is not an object"}
	}
	data, ok := object(doc["data"])
	if !ok {
		return nil, types.Malformed(types.SchemaGSTR2BDocData, "data")
	}
	for _, key := range []string{"gstin", "rtnprd"} {
		if str(data, key) == "" {
			return nil, types.Malformed(types.SchemaGSTR2BDocData, "data."+key)
		}
	}
	docdata, ok := object(data["docdata"])
	if !ok {
		return nil, types.Malformed(types.SchemaGSTR2BDocData, "data.docdata")
	}

	var notes []StructureNote
	b2b, present := docdata["b2b"]
	if !present {
		notes = append(notes, StructureNote{Section: "data.docdata.b2b", Message: "no B2B section; only imports will be converted"})
	} else if suppliers, ok := list(b2b); !ok {
		return nil, &types.MalformedDocumentError{Schema: types.SchemaGSTR2BDocData, Section: "data.docdata.b2b", Reason: "is not a list"}
	} else {
		for i, s := range suppliers {
			supplier, _ := object(s)
			if len(children(supplier, "inv")) == 0 {
				notes = append(notes, StructureNote{
					Section: ref("data.docdata.b2b[%d]", i),
					Message: "supplier " + str(supplier, "ctin") + " has no invoices",
				})
			}
		}
	}
	return notes, nil
}

func (docDataParser) normalize(raw any, r *run) error {
	doc, _ := object(raw)
	data, _ := object(doc["data"])
	docdata, _ := object(data["docdata"])
	r.period = str(data, "rtnprd")
	if err := r.adoptHome(str(data, "gstin")); err != nil {
		return err
	}

	for pi, p := range children(docdata, "b2b") {
		supplier, _ := object(p)
		for ii, i := range children(supplier, "inv") {
			inv, _ := object(i)
			e := invoiceEntry(inv, docDataKeys)
			e.kind = types.KindInvoice
			e.direction = types.Inbound
			e.sourceRef = ref("data.docdata.b2b[%d].inv[%d]", pi, ii)
			e.partyName = str(supplier, "trdnm")
			e.taxID = str(supplier, "ctin")
			if strings.EqualFold(str(inv, "rev"), "Y") {
				e.narration = "Reverse charge"
			}
			if strings.EqualFold(str(inv, "itcavl"), "N") {
				e.narration = joinNarration(e.narration, "ITC not available")
			}
			r.emit(e)
		}
	}

	emitImports(r, children(docdata, "impg"), "data.docdata.impg", docDataKeys)
	return nil
}

func joinNarration(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}
