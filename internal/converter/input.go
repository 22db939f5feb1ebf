package converter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/config"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/csvparser"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/types"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/xlsxparser"
)

// =============================================================================
// INPUT DOCUMENTS
// =============================================================================

// Document is one decoded input, ready for conversion.
type Document struct {
	// Source is the file path, or a label for in-memory documents.
	Source string

	// Raw is the untyped document tree: a JSON object for returns, an
	// array of bank row objects for statements.
	Raw any

	// Schema is the tag to convert under. Empty means sniff.
	Schema types.SchemaTag

	// Profile is the bank profile used to read a statement.
	Profile *config.BankProfile

	// StatementRows is the number of rows read from a statement.
	StatementRows int
}

// BankLedger is the ledger this document's statement vouchers post to, or
// "" for the configured default.
func (d *Document) BankLedger() string {
	if d.Profile == nil {
		return ""
	}
	return d.Profile.BankLedger
}

// Supported input extensions.
var inputExtensions = map[string]bool{
	".json": true,
	".csv":  true,
	".xlsx": true,
	".xlsm": true,
	".xls":  true,
}

// IsInputFile reports whether path has a supported extension.
func IsInputFile(path string) bool {
	return inputExtensions[strings.ToLower(filepath.Ext(path))]
}

// DecodeJSON reads one JSON document. Numbers are kept as json.Number so
// amounts are never read through a float.
func DecodeJSON(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("document is empty")
		}
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after the JSON document")
	}
	return doc, nil
}

// Decode reads the file at path. JSON files are tax returns (or already
// mapped statements); .csv, .xlsx and .xls files are bank statements read
// through the matching bank profile.
func (c *Converter) Decode(path string) (*Document, error) {
	doc := &Document{Source: path, Schema: c.opts.Schema}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		defer f.Close()
		raw, err := DecodeJSON(f)
		if err != nil {
			return nil, err
		}
		doc.Raw = raw
		return doc, nil

	case ".csv", ".xlsx", ".xlsm", ".xls":
		profile, err := c.profileFor(path)
		if err != nil {
			return nil, err
		}

		var headers []string
		var rows []map[string]string
		if ext == ".csv" {
			data, err := csvparser.ParseFile(path, profile.CSVSettings)
			if err != nil {
				return nil, fmt.Errorf("failed to parse CSV: %w", err)
			}
			headers, rows = data.Headers, data.Rows
		} else {
			table, err := xlsxparser.ReadStatement(path, profile.SheetName,
				profile.CSVSettings.HeaderRow, profile.CSVSettings.DataStartRow)
			if err != nil {
				return nil, fmt.Errorf("failed to read workbook: %w", err)
			}
			headers, rows = table.Headers, table.Rows
		}

		raw, err := StatementRows(headers, rows, profile, c.transformers[profile.Code])
		if err != nil {
			return nil, fmt.Errorf("profile '%s': %w", profile.Code, err)
		}
		doc.Raw = raw
		doc.Schema = types.SchemaBank
		doc.Profile = profile
		doc.StatementRows = len(rows)
		return doc, nil

	default:
		return nil, fmt.Errorf("unsupported input type '%s'", filepath.Ext(path))
	}
}

// profileFor picks the forced profile, else the first matching one, else
// the default layout.
func (c *Converter) profileFor(path string) (*config.BankProfile, error) {
	if c.opts.Profile != "" {
		p, ok := c.opts.Profiles[c.opts.Profile]
		if !ok {
			return nil, fmt.Errorf("no bank profile with code '%s'", c.opts.Profile)
		}
		return p, nil
	}
	if p, ok := config.MatchProfile(c.opts.Profiles, path); ok {
		return p, nil
	}
	return c.defaultProfile, nil
}

// =============================================================================
// STATEMENT ROW MAPPING
// =============================================================================

// StatementRows maps statement rows to bank row objects using the profile's
// column mapping, then applies the profile's transformations. The date
// column and at least one amount column must exist.
func StatementRows(headers []string, rows []map[string]string, profile *config.BankProfile, t *Transformer) ([]any, error) {
	columns := make(map[string]string)
	for _, pair := range profile.Columns.Fields() {
		field, want := pair[0], pair[1]
		if want == "" {
			continue
		}
		for _, h := range headers {
			if strings.EqualFold(h, strings.TrimSpace(want)) {
				columns[field] = h
				break
			}
		}
	}

	if _, ok := columns["date"]; !ok {
		return nil, fmt.Errorf("statement has no '%s' column for date", profile.Columns.Date)
	}
	_, hasDebit := columns["debit_amount"]
	_, hasCredit := columns["credit_amount"]
	if !hasDebit && !hasCredit {
		return nil, fmt.Errorf("statement has neither '%s' nor '%s' column",
			profile.Columns.DebitAmount, profile.Columns.CreditAmount)
	}

	out := make([]any, 0, len(rows))
	for i, row := range rows {
		m := make(map[string]any, len(columns))
		for _, pair := range profile.Columns.Fields() {
			field := pair[0]
			header, mapped := columns[field]
			if !mapped && !t.HasRules(field) {
				continue
			}
			value, err := t.Transform(field, row[header], row)
			if err != nil {
				return nil, fmt.Errorf("row %d, %s: %w", i+1, field, err)
			}
			m[field] = value
		}
		out = append(out, m)
	}
	return out, nil
}
