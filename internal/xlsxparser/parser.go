// =============================================================================
// GST Tally Vouchers - Spreadsheet Reader
// =============================================================================
//
// Reads two kinds of workbooks:
//   1. Bank statements exported as .xlsx or legacy .xls
//   2. The ledger mapping workbook that maps generated ledger names to the
//      ledgers already present in the books
//
// LEDGER MAPPING WORKBOOK (first sheet, header on row 1):
//
//   | Generated          | Ledger              | Parent          |
//   |--------------------|---------------------|-----------------|
//   | Input IGST 18%     | IGST Input @18      |                 |
//   | Sharma Traders     | Sharma Traders (MH) | Mumbai Vendors  |
//   | Bank               | HDFC Current A/c    | Bank Accounts   |
//
//   Header matching is case-insensitive. Parent is optional. A row with no
//   Ledger keeps the generated name and only sets the parent.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// STATEMENT TABLES
// =============================================================================

// Table is a header row plus the data rows below it.
type Table struct {
	Headers []string

	// Rows contains the data rows as maps of header -> value.
	Rows []map[string]string

	// Lines holds the 1-based sheet row of each entry in Rows.
	Lines []int

	SourceFile string
	Sheet      string
}

// Header returns the header matching name case-insensitively.
func (t *Table) Header(name string) (string, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, h := range t.Headers {
		if strings.ToLower(h) == want {
			return h, true
		}
	}
	return "", false
}

// ReadStatement reads a bank statement workbook (.xlsx or .xls). sheetName
// selects the worksheet of .xlsx files; empty means the first sheet. Rows are
// 1-based.
func ReadStatement(path, sheetName string, headerRow, dataStartRow int) (*Table, error) {
	var (
		rows  [][]string
		sheet string
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, sheet, err = ReadXLSX(path, sheetName)
	case ".xls":
		rows, sheet, err = ReadXLS(path)
	default:
		return nil, fmt.Errorf("unsupported workbook type '%s'", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	table, err := ToTable(rows, headerRow, dataStartRow)
	if err != nil {
		return nil, fmt.Errorf("sheet '%s': %w", sheet, err)
	}
	table.SourceFile = path
	table.Sheet = sheet
	return table, nil
}

// ReadXLSX returns the raw cell values of one worksheet. Dates come back as
// Excel serial numbers.
func ReadXLSX(path, sheetName string) ([][]string, string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheetName == "" {
		sheetName = f.GetSheetName(0)
		if sheetName == "" {
			return nil, "", fmt.Errorf("workbook has no sheets")
		}
	}
	if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
		return nil, "", fmt.Errorf("workbook has no sheet '%s'", sheetName)
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, "", fmt.Errorf("failed to read rows: %w", err)
	}
	return rows, sheetName, nil
}

// ReadXLS returns the cell values of the first worksheet of a legacy
// BIFF (.xls) workbook.
func ReadXLS(path string) ([][]string, string, error) {
	book, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, "", fmt.Errorf("failed to open workbook: %w", err)
	}
	sheet := book.GetSheet(0)
	if sheet == nil {
		return nil, "", fmt.Errorf("workbook has no sheets")
	}

	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol()+1)
		for j := 0; j <= row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}
		rows = append(rows, cells)
	}
	return rows, sheet.Name, nil
}

// ToTable takes headers from headerRow and data from dataStartRow onward
// (both 1-based). Empty rows are skipped.
func ToTable(rows [][]string, headerRow, dataStartRow int) (*Table, error) {
	if headerRow <= 0 {
		headerRow = 1
	}
	if dataStartRow <= headerRow {
		dataStartRow = headerRow + 1
	}
	if len(rows) < headerRow || isRowEmpty(rows[headerRow-1]) {
		return nil, fmt.Errorf("header row %d is blank or missing", headerRow)
	}

	table := &Table{Headers: cleanHeaders(rows[headerRow-1])}
	for i := dataStartRow - 1; i < len(rows); i++ {
		row := rows[i]
		if isRowEmpty(row) {
			continue
		}
		m := make(map[string]string, len(table.Headers))
		for col, header := range table.Headers {
			if col < len(row) {
				m[header] = strings.TrimSpace(row[col])
			} else {
				m[header] = ""
			}
		}
		table.Rows = append(table.Rows, m)
		table.Lines = append(table.Lines, i+1)
	}
	return table, nil
}

// =============================================================================
// LEDGER MAPPING WORKBOOK
// =============================================================================

// MappingRow is one row of the ledger mapping workbook.
type MappingRow struct {
	Generated string
	Ledger    string
	Parent    string
}

// LedgerMapping is the parsed mapping workbook.
type LedgerMapping struct {
	// Overrides maps a generated ledger name to the ledger in the books.
	Overrides map[string]string

	// Parents maps a final ledger name to its parent group. Keys are names
	// after Overrides are applied.
	Parents map[string]string

	Rows []MappingRow
}

// Mapping headers.
const (
	HeaderGenerated = "Generated"
	HeaderLedger    = "Ledger"
	HeaderParent    = "Parent"
)

// LoadLedgerMapping reads the first sheet of a mapping workbook.
func LoadLedgerMapping(path string) (*LedgerMapping, error) {
	rows, sheet, err := ReadXLSX(path, "")
	if err != nil {
		return nil, err
	}
	table, err := ToTable(rows, 1, 2)
	if err != nil {
		return nil, fmt.Errorf("sheet '%s': %w", sheet, err)
	}

	generated, ok := table.Header(HeaderGenerated)
	if !ok {
		return nil, fmt.Errorf("sheet '%s' has no '%s' column", sheet, HeaderGenerated)
	}
	ledgerCol, ok := table.Header(HeaderLedger)
	if !ok {
		return nil, fmt.Errorf("sheet '%s' has no '%s' column", sheet, HeaderLedger)
	}
	parentCol, hasParent := table.Header(HeaderParent)

	mapping := &LedgerMapping{
		Overrides: make(map[string]string),
		Parents:   make(map[string]string),
	}
	for i, row := range table.Rows {
		r := MappingRow{Generated: row[generated], Ledger: row[ledgerCol]}
		if hasParent {
			r.Parent = row[parentCol]
		}
		if r.Generated == "" {
			continue
		}
		if prev, dup := mapping.Overrides[r.Generated]; dup && prev != r.Ledger {
			return nil, fmt.Errorf("row %d: '%s' is mapped twice", table.Lines[i], r.Generated)
		}

		final := r.Generated
		if r.Ledger != "" {
			mapping.Overrides[r.Generated] = r.Ledger
			final = r.Ledger
		}
		if r.Parent != "" {
			mapping.Parents[final] = r.Parent
		}
		mapping.Rows = append(mapping.Rows, r)
	}
	return mapping, nil
}

// WriteLedgerMapping writes rows as a mapping workbook, ready to be filled in
// and passed back through ledgers.mapping_workbook.
func WriteLedgerMapping(path string, rows []MappingRow) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Ledgers"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{HeaderGenerated, HeaderLedger, HeaderParent}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &[]interface{}{r.Generated, r.Ledger, r.Parent}); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(sheet, "A", "C", 36); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}
	return cleaned
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
