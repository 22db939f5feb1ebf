package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func invoice(seq int, doc, taxID string, tv, a, b, single, gross string) types.Record {
	txn := types.CanonicalTransaction{
		Seq:            seq,
		Kind:           types.KindInvoice,
		Direction:      types.Inbound,
		PartyName:      "Party " + taxID,
		PartyTaxID:     taxID,
		DocumentNumber: doc,
		TaxableValue:   d(tv),
		SplitTaxA:      d(a),
		SplitTaxB:      d(b),
		SingleTax:      d(single),
		Cess:           decimal.Zero,
		GrossValue:     d(gross),
	}
	txn.SumTaxes()
	return types.Record{Txn: txn}
}

func rules(errs []*ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Rule)
	}
	return out
}

func TestValidateStructure(t *testing.T) {
	v := NewValidator(nil, nil)

	tag, result := v.ValidateStructure(map[string]any{"gstin": "27AAACM1234F1Z5"}, types.SchemaGSTR1)
	assert.Equal(t, types.SchemaGSTR1, tag)
	assert.False(t, result.IsValid)
	assert.Equal(t, 1, result.ErrorCount)
	assert.True(t, errors.Is(result.Fatal, types.ErrMalformedDocument))
	assert.Equal(t, KindMalformedDocument, result.Errors[0].Kind)

	tag, result = v.ValidateStructure(map[string]any{"b2cs": []any{}}, "")
	assert.Equal(t, types.SchemaGSTR1, tag)
	assert.True(t, result.IsValid)
	assert.Nil(t, result.Fatal)
	assert.Equal(t, []string{RuleStructureNote}, rules(result.Errors))
}

func TestCleanTransactionHasNoIssues(t *testing.T) {
	v := NewValidator(nil, nil)
	result := v.ValidateTransactions([]types.Record{
		invoice(1, "INV-1", "27AAAPL1234C1Z5", "1000", "90", "90", "0", "1180"),
	})
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, result.TransactionsValidated)
}

func TestSemanticWarnings(t *testing.T) {
	v := NewValidator(nil, nil)
	records := []types.Record{
		invoice(1, "INV-1", "27AAAPL1234C1Z5", "1000", "90", "90", "0", "1180"),
		invoice(2, "inv-1", "27AAAPL1234C1Z5", "500", "45", "45", "0", "590"),
		invoice(3, "", "99ZZZ", "0", "0", "0", "0", "0"),
		invoice(4, "INV-4", "29AAAPL1234C1Z5", "1000", "90", "80", "10", "1180.50"),
	}
	result := v.ValidateTransactions(records)

	assert.True(t, result.IsValid, "semantic issues are warnings")
	assert.Nil(t, result.Fatal)
	assert.Zero(t, result.ErrorCount)
	assert.Equal(t, []string{
		RuleDuplicateDocument,
		RuleZeroAmount, RuleMissingDocument, RuleTaxIDLength, RuleTaxIDPrefix,
		RuleGrossMismatch, RuleSplitUnequal, RuleMixedTax,
	}, rules(result.Errors))

	dup := result.Errors[0]
	assert.Equal(t, 2, dup.TransactionID)
	assert.Contains(t, dup.Message, "first seen in transaction 1")
	assert.Equal(t, KindArithmeticInconsistency, result.Errors[5].Kind)
}

func TestGrossMismatchAboveCeilingIsFatal(t *testing.T) {
	v := NewValidator(nil, nil)
	result := v.ValidateTransactions([]types.Record{
		invoice(7, "INV-7", "27AAAPL1234C1Z5", "1000", "90", "90", "0", "1250"),
	})
	assert.False(t, result.IsValid)
	require.Error(t, result.Fatal)

	var arith *types.ArithmeticInconsistencyError
	require.ErrorAs(t, result.Fatal, &arith)
	assert.Equal(t, 7, arith.Seq)
	assert.Equal(t, "70.00", arith.Difference.StringFixed(2))
	assert.Equal(t, "11.80", arith.Ceiling.StringFixed(2))
}

func TestRecoveriesBecomeWarnings(t *testing.T) {
	v := NewValidator(nil, nil)
	rec := invoice(1, "INV-1", "27AAAPL1234C1Z5", "1000", "90", "90", "0", "1180")
	rec.Recoveries = []types.Recovery{
		{Kind: types.RecoveryPlaceholderParty, Seq: 1, Document: "INV-1", Substitute: "Unknown Vendor"},
		{Kind: types.RecoveryDefaultDate, Seq: 1, Document: "INV-1", Original: "31-02-2024", Substitute: "20170701", Reason: "used default date"},
	}
	result := v.ValidateTransactions([]types.Record{rec})

	require.Len(t, result.Errors, 2)
	assert.Equal(t, KindUnresolvedReference, result.Errors[0].Kind)
	assert.Equal(t, "recovery.placeholder_party", result.Errors[0].Rule)
	assert.Equal(t, KindValidationWarning, result.Errors[1].Kind)
	assert.Equal(t,
		"[WARNING] Transaction 1, Document 'INV-1': Date could not be read; used default date (value: '31-02-2024 -> 20170701')",
		result.Errors[1].Error())
}

func TestOptions(t *testing.T) {
	records := []types.Record{
		invoice(1, "", "27AAAPL1234C1Z5", "1000", "90", "90", "0", "1180"),
		invoice(2, "A", "27AAAPL1234C1Z5", "1000", "90", "90", "0", "1300"),
		invoice(3, "B", "27AAAPL1234C1Z5", "1000", "90", "90", "0", "1300"),
	}

	strict := NewValidatorWithOptions(nil, nil, ValidationOptions{TreatWarningsAsErrors: true})
	result := strict.ValidateTransactions(records[:1])
	assert.False(t, result.IsValid)
	assert.Nil(t, result.Fatal)
	assert.Equal(t, 1, result.WarningCount)

	stop := NewValidatorWithOptions(nil, nil, ValidationOptions{StopOnFirstError: true})
	result = stop.ValidateTransactions(records)
	assert.Equal(t, 1, result.ErrorCount)
	assert.Equal(t, 2, result.Errors[len(result.Errors)-1].TransactionID)
	assert.Equal(t, 3, result.TransactionsValidated)
	assert.Equal(t, 1, result.Suppressed)

	merged := NewResult()
	merged.Merge(result)
	assert.Equal(t, 1, merged.Suppressed)
	assert.Contains(t, merged.Format(), "[ERROR] document: 1 further issue(s) not listed: validation stopped at the first error")
	assert.Equal(t, RuleStopped, merged.SuppressedIssue().Rule)

	assert.Nil(t, NewResult().SuppressedIssue())
	assert.Equal(t, "No validation errors.", NewResult().Format())
}

func TestFormatErrors(t *testing.T) {
	assert.Equal(t, "No validation errors.", FormatErrors(nil))

	out := FormatErrors([]*ValidationError{
		{Severity: SeverityError, Message: "section 'itc_avl' is missing", SourceRef: "itc_avl"},
		{Severity: SeverityWarning, TransactionID: 3, Document: "INV-9", Message: "Document number is missing"},
	})
	assert.True(t, strings.HasPrefix(out, "Validation completed with 2 issue(s):"))
	assert.Contains(t, out, "1. [ERROR] itc_avl: section 'itc_avl' is missing")
	assert.Contains(t, out, "2. [WARNING] Transaction 3, Document 'INV-9': Document number is missing")
}
