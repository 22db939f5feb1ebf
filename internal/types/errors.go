package types

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors for errors.Is checks.
var (
	ErrMalformedDocument       = errors.New("malformed document")
	ErrArithmeticInconsistency = errors.New("arithmetic inconsistency")
)

// MalformedDocumentError reports a missing structural section. It is always
// fatal for the run.
type MalformedDocumentError struct {
	Schema  SchemaTag
	Section string
	Reason  string
}

func (e *MalformedDocumentError) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("malformed %s document: %s", schemaOrUnknown(e.Schema), e.Reason)
	}
	return fmt.Sprintf("malformed %s document: section '%s' %s", schemaOrUnknown(e.Schema), e.Section, e.Reason)
}

func (e *MalformedDocumentError) Unwrap() error {
	return ErrMalformedDocument
}

// Malformed builds a MalformedDocumentError for a missing section.
func Malformed(schema SchemaTag, section string) error {
	return &MalformedDocumentError{Schema: schema, Section: section, Reason: "is missing"}
}

// ArithmeticInconsistencyError reports a declared gross that differs from the
// sum of its components by more than the hard ceiling.
type ArithmeticInconsistencyError struct {
	Seq        int
	Document   string
	Declared   decimal.Decimal
	Computed   decimal.Decimal
	Difference decimal.Decimal
	Ceiling    decimal.Decimal
}

func (e *ArithmeticInconsistencyError) Error() string {
	return fmt.Sprintf("transaction %d (document '%s'): declared gross %s differs from computed %s by %s, above ceiling %s",
		e.Seq, e.Document,
		e.Declared.StringFixed(2), e.Computed.StringFixed(2),
		e.Difference.StringFixed(2), e.Ceiling.StringFixed(2))
}

func (e *ArithmeticInconsistencyError) Unwrap() error {
	return ErrArithmeticInconsistency
}

func schemaOrUnknown(s SchemaTag) string {
	if s == "" {
		return "unrecognized"
	}
	return string(s)
}
