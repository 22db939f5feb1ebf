package normalizer

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/types"
)

// =============================================================================
// GSTR-1 (OUTWARD SUPPLIES)
// =============================================================================
// b2b   registered customers, tax per item under itms[].itm_det (object)
// b2cl  large unregistered invoices, always inter-state
// b2cs  consolidated small-consumer buckets with no party identity

type gstr1Parser struct{}

var gstr1Sections = []string{"b2b", "b2cl", "b2cs"}

func (gstr1Parser) checkStructure(raw any) ([]StructureNote, error) {
	doc, ok := object(raw)
	if !ok {
		return nil, &types.MalformedDocumentError{Schema: types.SchemaGSTR1, Reason: "top level is not an object"}
	}
	var notes []StructureNote
	found := false
	for _, section := range gstr1Sections {
		v, present := doc[section]
		if !present {
			continue
		}
		found = true
		if l, ok := list(v); !ok {
			return nil, &types.MalformedDocumentError{Schema: types.SchemaGSTR1, Section: section, Reason: "is not a list"}
		} else if len(l) == 0 {
			notes = append(notes, StructureNote{Section: section, Message: "section is empty"})
		}
	}
	if !found {
		return nil, types.Malformed(types.SchemaGSTR1, "b2b|b2cl|b2cs")
	}
	return notes, nil
}

func (gstr1Parser) normalize(raw any, r *run) error {
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
			e.direction = types.Outbound
			e.sourceRef = ref("b2b[%d].inv[%d]", pi, ii)
			e.partyName = str(party, "trdnm", "cname")
			e.taxID = str(party, "ctin")
			r.emit(e)
		}
	}

	for pi, p := range children(doc, "b2cl") {
		group, _ := object(p)
		pos := normalizePOS(str(group, "pos"))
		for ii, i := range children(group, "inv") {
			inv, _ := object(i)
			e := invoiceEntry(inv, portalKeys)
			e.kind = types.KindConsolidated
			e.direction = types.Outbound
			e.sourceRef = ref("b2cl[%d].inv[%d]", pi, ii)
			e.partyName = "B2CL " + pos
			if e.pos == "" {
				e.pos = pos
			}
			e.forced, e.forcedWhy = true, "large unregistered supply section"
			r.emit(e)
		}
	}

	for bi, b := range children(doc, "b2cs") {
		bucket, _ := object(b)
		supply := normalizeSupplyType(str(bucket, "sply_ty"))
		pos := normalizePOS(str(bucket, "pos"))

		var t totals
		t.add(bucket, portalKeys)
		e := entry{
			kind:       types.KindConsolidated,
			direction:  types.Outbound,
			sourceRef:  ref("b2cs[%d]", bi),
			partyName:  fmt.Sprintf("B2CS %s %s", supplyLabel(supply), pos),
			pos:        pos,
			supplyType: supply,
			document:   b2csDocument(bucket, pos),
			totals:     t,
		}
		r.emit(e)
	}
	return nil
}

// b2csDocument names a consolidated bucket by every field the portal keys it
// on, so buckets that differ only in type or e-commerce operator stay apart.
func b2csDocument(bucket map[string]any, pos string) string {
	parts := []string{"B2CS", str(bucket, "sply_ty"), pos, str(bucket, "rt")}
	for _, key := range []string{"typ", "etin"} {
		if v := str(bucket, key); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "-")
}

// invoiceEntry reads the invoice header and sums its items. Items may hold
// the breakdown directly, under itm_det as an object, or under itm_det as a
// list.
func invoiceEntry(inv map[string]any, keys itemKeys) entry {
	e := entry{
		document:   str(inv, "inum", "doc_num"),
		rawDate:    str(inv, "idt", "dt"),
		pos:        str(inv, "pos"),
		supplyType: str(inv, "sply_ty"),
	}
	if v := field(inv, "val"); v != nil {
		g, ok := toDecimal(v)
		e.gross, e.grossPresent, e.grossBad = g, ok, !ok
	}

	items := children(inv, "itms")
	if len(items) == 0 {
		items = children(inv, "items")
	}
	if len(items) == 0 {
		e.totals.add(inv, keys)
		return e
	}
	for _, it := range items {
		item, _ := object(it)
		switch det := item["itm_det"].(type) {
		case map[string]any:
			e.totals.add(det, keys)
		case []any:
			for _, d := range det {
				m, _ := object(d)
				e.totals.add(m, keys)
			}
		default:
			e.totals.add(item, keys)
		}
	}
	return e
}

func supplyLabel(supply string) string {
	if supply == "" {
		return "INTRA"
	}
	return supply
}
