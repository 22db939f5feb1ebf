// =============================================================================
// GST Tally Vouchers - Validation Engine
// =============================================================================
//
// This module validates documents and canonical transactions before any
// voucher is built. Validation runs in two phases:
//
//   1. Structural: the document-defining sections are present. Runs before
//      normalization. Any failure is fatal and the run stops here.
//   2. Semantic: runs after normalization over the canonical transactions:
//        - zero-amount transactions
//        - missing or duplicate document numbers within one party
//        - declared gross vs sum of components
//        - unequal split components, split and single tax together
//        - tax ID length and jurisdiction prefix anomalies
//        - every recovery made by the normalizer or voucher builder
//
// ERROR HANDLING:
//   - Issues are collected, not thrown.
//   - Each issue carries the transaction sequence, document and source path.
//   - Semantic issues are warnings. The one exception is a gross mismatch
//     above the hard ceiling, which is an ArithmeticInconsistency error.
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/jurisdiction"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/normalizer"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/taxcalc"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/types"
	"github.com/shopspring/decimal"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// Severity tells fatal issues apart from warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// IssueKind is the place of an issue in the error taxonomy.
type IssueKind string

const (
	KindMalformedDocument       IssueKind = "MalformedDocument"
	KindValidationWarning       IssueKind = "ValidationWarning"
	KindArithmeticInconsistency IssueKind = "ArithmeticInconsistency"
	KindUnresolvedReference     IssueKind = "UnresolvedReference"
)

// Rule names. They appear in logs and in the error log file.
const (
	RuleStructure         = "structure"
	RuleStructureNote     = "structure_note"
	RuleZeroAmount        = "zero_amount"
	RuleMissingDocument   = "missing_document"
	RuleDuplicateDocument = "duplicate_document"
	RuleGrossMismatch     = "gross_mismatch"
	RuleSplitUnequal      = "split_unequal"
	RuleMixedTax          = "mixed_tax"
	RuleTaxIDLength       = "tax_id_length"
	RuleTaxIDPrefix       = "tax_id_prefix"
	RuleMissingTaxID      = "missing_tax_id"
	RuleLedgerCollision   = "ledger_collision"
	RuleStopped           = "stop_on_first_error"
	rulePrefixRecovery    = "recovery."
)

// ValidationError represents a single validation issue.
type ValidationError struct {
	Severity Severity
	Kind     IssueKind
	Rule     string

	// Field is the canonical field the issue is about.
	Field string

	// Value is the offending value, rendered as text.
	Value string

	Message string

	// TransactionID is the 1-based input sequence, 0 for document-level issues.
	TransactionID int

	Document   string
	PartyTaxID string

	// SourceRef points into the raw document, e.g. "b2b[0].inv[3]".
	SourceRef string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.TransactionID == 0 && e.Document == "" {
		where := e.SourceRef
		if where == "" {
			where = "document"
		}
		return fmt.Sprintf("[%s] %s: %s%s",
			strings.ToUpper(string(e.Severity)), where, e.Message, valueSuffix(e.Value))
	}
	return fmt.Sprintf("[%s] Transaction %d, Document '%s': %s%s",
		strings.ToUpper(string(e.Severity)),
		e.TransactionID,
		e.Document,
		e.Message,
		valueSuffix(e.Value),
	)
}

func valueSuffix(v string) string {
	if v == "" {
		return ""
	}
	return fmt.Sprintf(" (value: '%s')", v)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is false when there is any error, or any warning under
	// TreatWarningsAsErrors.
	IsValid bool

	// Errors contains all issues, warnings included, in discovery order.
	Errors []*ValidationError

	ErrorCount   int
	WarningCount int

	TransactionsValidated int

	// Fatal is the error that must stop the run: a MalformedDocumentError
	// or an ArithmeticInconsistencyError. Nil when the run may proceed.
	Fatal error

	// Suppressed counts issues found after StopOnFirstError stopped the
	// listing. They are counted here instead of in Errors.
	Suppressed int

	stopped bool
}

// NewResult returns an empty, valid result.
func NewResult() *ValidationResult {
	return &ValidationResult{IsValid: true}
}

// Warnings returns only the non-fatal issues.
func (r *ValidationResult) Warnings() []*ValidationError {
	var out []*ValidationError
	for _, e := range r.Errors {
		if e.Severity == SeverityWarning {
			out = append(out, e)
		}
	}
	return out
}

// Merge appends other's issues to r.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.ErrorCount += other.ErrorCount
	r.WarningCount += other.WarningCount
	r.TransactionsValidated += other.TransactionsValidated
	r.Suppressed += other.Suppressed
	r.IsValid = r.IsValid && other.IsValid
	if r.Fatal == nil {
		r.Fatal = other.Fatal
	}
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator performs validation on documents and transactions.
type Validator struct {
	normalizer *normalizer.Normalizer
	table      *jurisdiction.Table
	options    ValidationOptions
}

// ValidationOptions contains options for validation.
type ValidationOptions struct {
	// StopOnFirstError stops validation after the first fatal error.
	StopOnFirstError bool

	// TreatWarningsAsErrors makes any warning turn IsValid false. It does
	// not make a warning fatal.
	TreatWarningsAsErrors bool

	// Tolerance is the rounding noise allowed on gross and split
	// comparisons. Default: 0.01.
	Tolerance decimal.Decimal

	// CeilingPercent is the hard ceiling on gross mismatch as a percentage
	// of line value. Default: 1.
	CeilingPercent decimal.Decimal
}

// DefaultValidationOptions returns the default validation options.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		Tolerance:      taxcalc.DefaultTolerance,
		CeilingPercent: taxcalc.DefaultCeilingPercent,
	}
}

// NewValidator creates a new Validator instance.
func NewValidator(n *normalizer.Normalizer, table *jurisdiction.Table) *Validator {
	return NewValidatorWithOptions(n, table, DefaultValidationOptions())
}

// NewValidatorWithOptions creates a new Validator with custom options.
func NewValidatorWithOptions(n *normalizer.Normalizer, table *jurisdiction.Table, options ValidationOptions) *Validator {
	if n == nil {
		n = normalizer.New(normalizer.Options{Table: table})
	}
	if table == nil {
		table = jurisdiction.Default()
	}
	if options.Tolerance.IsZero() {
		options.Tolerance = taxcalc.DefaultTolerance
	}
	if options.CeilingPercent.IsZero() {
		options.CeilingPercent = taxcalc.DefaultCeilingPercent
	}
	return &Validator{normalizer: n, table: table, options: options}
}

// Options returns the effective options.
func (v *Validator) Options() ValidationOptions {
	return v.options
}

// =============================================================================
// STRUCTURAL PHASE
// =============================================================================

// ValidateStructure checks that raw has every section its schema requires.
// An empty tag means the schema is sniffed.
func (v *Validator) ValidateStructure(raw any, tag types.SchemaTag) (types.SchemaTag, *ValidationResult) {
	result := NewResult()

	resolved, err := v.normalizer.Resolve(raw, tag)
	if err == nil {
		var notes []normalizer.StructureNote
		notes, err = v.normalizer.CheckStructure(raw, resolved)
		for _, n := range notes {
			v.add(result, &ValidationError{
				Severity:  SeverityWarning,
				Kind:      KindValidationWarning,
				Rule:      RuleStructureNote,
				Message:   n.Message,
				SourceRef: n.Section,
			})
		}
	}
	if err != nil {
		issue := &ValidationError{
			Severity: SeverityError,
			Kind:     KindMalformedDocument,
			Rule:     RuleStructure,
			Message:  err.Error(),
		}
		var malformed *types.MalformedDocumentError
		if errors.As(err, &malformed) {
			issue.SourceRef = malformed.Section
		}
		v.add(result, issue)
		result.Fatal = err
	}
	return resolved, result
}

// =============================================================================
// SEMANTIC PHASE
// =============================================================================

// ValidateTransactions runs the semantic checks over records and reports
// their recoveries.
func (v *Validator) ValidateTransactions(records []types.Record) *ValidationResult {
	result := NewResult()
	result.TransactionsValidated = len(records)

	seen := make(map[string]map[string]int)
	for i := range records {
		rec := &records[i]
		v.validateTransaction(result, &rec.Txn, seen)
		v.AddRecoveries(result, rec.Recoveries)
	}
	return result
}

// ValidateTransaction checks one transaction in isolation.
func (v *Validator) ValidateTransaction(txn *types.CanonicalTransaction) []*ValidationError {
	result := NewResult()
	v.validateTransaction(result, txn, nil)
	return result.Errors
}

func (v *Validator) validateTransaction(result *ValidationResult, txn *types.CanonicalTransaction, seen map[string]map[string]int) {
	issue := func(severity Severity, kind IssueKind, rule, field, value, msg string) {
		v.add(result, &ValidationError{
			Severity:      severity,
			Kind:          kind,
			Rule:          rule,
			Field:         field,
			Value:         value,
			Message:       msg,
			TransactionID: txn.Seq,
			Document:      txn.DocumentNumber,
			PartyTaxID:    txn.PartyTaxID,
			SourceRef:     txn.SourceRef,
		})
	}
	warn := func(rule, field, value, msg string) {
		issue(SeverityWarning, KindValidationWarning, rule, field, value, msg)
	}

	// =========================================================================
	// ZERO AMOUNTS
	// =========================================================================

	computed := txn.ComputedGross()
	if txn.GrossValue.IsZero() && computed.IsZero() {
		warn(RuleZeroAmount, "gross_value", "0.00", "Transaction has no taxable value, tax or gross amount")
	}

	// =========================================================================
	// DOCUMENT NUMBERS
	// =========================================================================

	if txn.Kind != types.KindBank {
		doc := strings.TrimSpace(txn.DocumentNumber)
		if doc == "" {
			warn(RuleMissingDocument, "document_number", "", "Document number is missing")
		} else if seen != nil {
			key := txn.PartyKey()
			if seen[key] == nil {
				seen[key] = make(map[string]int)
			}
			norm := strings.ToUpper(doc)
			if first, dup := seen[key][norm]; dup {
				warn(RuleDuplicateDocument, "document_number", doc,
					fmt.Sprintf("Duplicate document number for party '%s' (first seen in transaction %d)", txn.PartyName, first))
			} else {
				seen[key][norm] = txn.Seq
			}
		}
	}

	// =========================================================================
	// ARITHMETIC
	// =========================================================================

	diff := taxcalc.Mismatch(txn.GrossValue, computed)
	if diff.Abs().GreaterThan(v.options.Tolerance) {
		ceiling := taxcalc.Ceiling(computed, v.options.CeilingPercent, v.options.Tolerance)
		msg := fmt.Sprintf("Declared gross %s differs from taxable value plus taxes %s by %s",
			txn.GrossValue.StringFixed(2), computed.StringFixed(2), diff.StringFixed(2))
		if diff.Abs().GreaterThan(ceiling) {
			issue(SeverityError, KindArithmeticInconsistency, RuleGrossMismatch, "gross_value",
				txn.GrossValue.StringFixed(2), msg+fmt.Sprintf(", above the hard ceiling %s", ceiling.StringFixed(2)))
			if result.Fatal == nil {
				result.Fatal = &types.ArithmeticInconsistencyError{
					Seq:        txn.Seq,
					Document:   txn.DocumentNumber,
					Declared:   txn.GrossValue,
					Computed:   computed,
					Difference: diff,
					Ceiling:    ceiling,
				}
			}
		} else {
			issue(SeverityWarning, KindArithmeticInconsistency, RuleGrossMismatch, "gross_value",
				txn.GrossValue.StringFixed(2), msg+"; rounded off")
		}
	}

	if txn.SplitTaxA.Sub(txn.SplitTaxB).Abs().GreaterThan(v.options.Tolerance) {
		warn(RuleSplitUnequal, "split_tax_amount_b", txn.SplitTaxB.StringFixed(2),
			fmt.Sprintf("Split tax components differ (%s vs %s)", txn.SplitTaxA.StringFixed(2), txn.SplitTaxB.StringFixed(2)))
	}
	split := txn.SplitTaxA.Add(txn.SplitTaxB)
	if !split.IsZero() && !txn.SingleTax.IsZero() {
		warn(RuleMixedTax, "single_tax_amount", txn.SingleTax.StringFixed(2),
			"Both split and cross-jurisdiction tax are present")
	}

	// =========================================================================
	// TAX IDENTIFIERS
	// =========================================================================

	id := txn.PartyTaxID
	switch {
	case id == "":
		if txn.Kind == types.KindInvoice {
			warn(RuleMissingTaxID, "party_tax_id", "", "Bill-tracked invoice has no party tax ID")
		}
	case len(id) != 15:
		warn(RuleTaxIDLength, "party_tax_id", id,
			fmt.Sprintf("Tax ID has %d characters, expected 15", len(id)))
		fallthrough
	default:
		if code := jurisdiction.CodeFromTaxID(id); !v.table.Valid(code) {
			warn(RuleTaxIDPrefix, "party_tax_id", id, "Tax ID prefix is not a known jurisdiction code")
		}
	}
}

// =============================================================================
// RECOVERIES
// =============================================================================

// AddRecoveries reports each recovery as a warning. Placeholder parties are
// unresolved references; everything else is a validation warning.
func (v *Validator) AddRecoveries(result *ValidationResult, recoveries []types.Recovery) {
	for _, r := range recoveries {
		kind := KindValidationWarning
		if r.Kind == types.RecoveryPlaceholderParty {
			kind = KindUnresolvedReference
		}
		v.add(result, &ValidationError{
			Severity:      SeverityWarning,
			Kind:          kind,
			Rule:          rulePrefixRecovery + string(r.Kind),
			Field:         r.Field,
			Value:         recoveryValue(r),
			Message:       recoveryMessage(r),
			TransactionID: r.Seq,
			Document:      r.Document,
			SourceRef:     r.SourceRef,
		})
	}
}

func recoveryMessage(r types.Recovery) string {
	switch r.Kind {
	case types.RecoveryDefaultDate:
		return "Date could not be read; " + r.Reason
	case types.RecoveryPlaceholderParty:
		return "Party could not be identified; posted to placeholder ledger"
	case types.RecoverySkippedRow:
		return "Row skipped: " + r.Reason
	case types.RecoveryNettedRow:
		return "Row netted: " + r.Reason
	default:
		return r.Reason
	}
}

func recoveryValue(r types.Recovery) string {
	switch {
	case r.Original != "" && r.Substitute != "":
		return r.Original + " -> " + r.Substitute
	case r.Substitute != "":
		return r.Substitute
	default:
		return r.Original
	}
}

// AddIssue records an externally detected issue, such as a ledger-name
// collision found by the aggregator.
func (v *Validator) AddIssue(result *ValidationResult, issue *ValidationError) {
	v.add(result, issue)
}

func (v *Validator) add(result *ValidationResult, issue *ValidationError) {
	if result.stopped {
		result.Suppressed++
		return
	}
	result.Errors = append(result.Errors, issue)
	if issue.Severity == SeverityError {
		result.ErrorCount++
		result.IsValid = false
		if v.options.StopOnFirstError {
			result.stopped = true
		}
		return
	}
	result.WarningCount++
	if v.options.TreatWarningsAsErrors {
		result.IsValid = false
	}
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// SuppressedIssue describes the issues left out of Errors, or nil when none
// were.
func (r *ValidationResult) SuppressedIssue() *ValidationError {
	if r.Suppressed == 0 {
		return nil
	}
	return &ValidationError{
		Severity: SeverityError,
		Kind:     KindValidationWarning,
		Rule:     RuleStopped,
		Message:  fmt.Sprintf("%d further issue(s) not listed: validation stopped at the first error", r.Suppressed),
	}
}

// Format is FormatErrors over Errors plus the suppressed-issue line.
func (r *ValidationResult) Format() string {
	out := FormatErrors(r.Errors)
	if s := r.SuppressedIssue(); s != nil {
		out += s.Error() + "\n"
	}
	return out
}

// FormatErrors formats validation issues for display or logging.
func FormatErrors(errs []*ValidationError) string {
	if len(errs) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Validation completed with %d issue(s):\n\n", len(errs)))
	for i, err := range errs {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}
	return builder.String()
}
