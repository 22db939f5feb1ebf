package normalizer

import (
	"github.com/ginjaninja78/gst-tally-vouchers/internal/types"
)

// =============================================================================
// BANK STATEMENT ROWS
// =============================================================================
// Each row: date, narration, debit_amount, credit_amount, running_balance.
// A credit is money in, a debit is money out. Negative amounts count on the
// opposite side.

type bankParser struct{}

func (bankParser) checkStructure(raw any) ([]StructureNote, error) {
	rows, ok := list(raw)
	if !ok {
		return nil, &types.MalformedDocumentError{Schema: types.SchemaBank, Reason: "statement is not an array of rows"}
	}
	if len(rows) == 0 {
		return []StructureNote{{Section: "rows", Message: "statement has no rows"}}, nil
	}
	return nil, nil
}

func (bankParser) normalize(raw any, r *run) error {
	rows, _ := list(raw)
	for i, v := range rows {
		source := ref("row[%d]", i+1)
		row, ok := object(v)
		if !ok {
			r.drop(types.RecoverySkippedRow, source, "row is not an object")
			continue
		}

		debit, debitOK := amount(row, "debit_amount", "debit", "withdrawal")
		credit, creditOK := amount(row, "credit_amount", "credit", "deposit")
		if !debitOK || !creditOK {
			r.drop(types.RecoveryBadAmount, source, "debit or credit amount could not be read as a number")
			continue
		}

		hasDebit, hasCredit := !debit.IsZero(), !credit.IsZero()
		if !hasDebit && !hasCredit {
			r.drop(types.RecoverySkippedRow, source, "row has neither debit nor credit amount")
			continue
		}

		net := credit.Sub(debit)
		if net.IsZero() {
			r.drop(types.RecoverySkippedRow, source, "debit and credit net to zero")
			continue
		}

		direction := types.Inbound
		if net.IsNegative() {
			direction = types.Outbound
		}

		var t totals
		t.taxable = net.Abs()
		e := entry{
			kind:         types.KindBank,
			direction:    direction,
			sourceRef:    source,
			partyName:    r.opts.SuspenseLedger,
			document:     str(row, "reference", "ref_no", "cheque_no", "chq_no"),
			rawDate:      str(row, "date", "txn_date", "value_date"),
			gross:        net.Abs(),
			grossPresent: true,
			totals:       t,
			narration:    capRunes(str(row, "narration", "description", "particulars"), r.opts.MaxNarration),
		}
		r.emit(e)

		if hasDebit && hasCredit {
			rec := &r.records[len(r.records)-1]
			rec.Recoveries = append(rec.Recoveries, types.Recovery{
				Kind:       types.RecoveryNettedRow,
				Seq:        rec.Txn.Seq,
				SourceRef:  source,
				Field:      "debit_amount/credit_amount",
				Original:   debit.StringFixed(2) + "/" + credit.StringFixed(2),
				Substitute: net.StringFixed(2),
				Reason:     "row has both debit and credit; netted",
			})
		}
	}
	return nil
}

func capRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
