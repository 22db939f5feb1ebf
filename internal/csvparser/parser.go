// =============================================================================
// GST Tally Vouchers - CSV Parser Module
// =============================================================================
//
// Reads bank statement CSV exports. Banks differ in:
//   - Delimiter (comma, pipe, tab, semicolon)
//   - Account details printed above the header row
//   - Encoding (older exports are often Windows-1252)
//
// HEADER HANDLING:
//   The header row and data start row come from the bank profile, as 1-based
//   line numbers of the file. Lines above the header are ignored. Empty rows
//   are skipped.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/config"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// CSV DATA STRUCTURE
// =============================================================================

// CSVData represents the parsed CSV file.
type CSVData struct {
	// Headers contains the column headers from the header row.
	Headers []string

	// Rows contains the data rows as maps of header -> value.
	Rows []map[string]string

	// Lines holds the 1-based source line of each row in Rows.
	Lines []int

	// SourceFile is the path to the source CSV file.
	SourceFile string

	// RowCount is the total number of data rows (excluding headers).
	RowCount int
}

// Header returns the header matching name case-insensitively.
func (d *CSVData) Header(name string) (string, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, h := range d.Headers {
		if strings.ToLower(h) == want {
			return h, true
		}
	}
	return "", false
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// ParseFile reads a CSV file and returns the parsed data.
func ParseFile(filePath string, settings config.CSVSettings) (*CSVData, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	data, err := Parse(file, settings)
	if err != nil {
		return nil, err
	}
	data.SourceFile = filePath
	return data, nil
}

// Parse reads CSV from r.
//
// PARSING PROCESS:
//   1. Decode the configured encoding to UTF-8
//   2. Configure the CSV reader with the delimiter and quote settings
//   3. Take headers from the header row
//   4. Read data rows starting from the data start row
//   5. Convert each row to a map of header -> value
func Parse(r io.Reader, settings config.CSVSettings) (*CSVData, error) {
	decoder, err := decoderFor(settings.Encoding)
	if err != nil {
		return nil, err
	}

	csvReader := csv.NewReader(transform.NewReader(bufio.NewReader(r), decoder))
	configureReader(csvReader, settings)

	headerRow := settings.HeaderRow
	if headerRow <= 0 {
		headerRow = 1
	}
	start := settings.DataStartRow
	if start <= headerRow {
		start = headerRow + 1
	}

	var data *CSVData
	records := 0
	for {
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		records++

		line, _ := csvReader.FieldPos(0)
		switch {
		case line < headerRow:
			continue
		case data == nil:
			if line != headerRow {
				return nil, fmt.Errorf("header row %d is blank or missing", headerRow)
			}
			data = &CSVData{Headers: cleanHeaders(row)}
			continue
		case line < start || isRowEmpty(row):
			continue
		}

		rowMap := make(map[string]string, len(data.Headers))
		for col, header := range data.Headers {
			if col < len(row) {
				rowMap[header] = strings.TrimSpace(row[col])
			} else {
				rowMap[header] = ""
			}
		}
		data.Rows = append(data.Rows, rowMap)
		data.Lines = append(data.Lines, line)
	}

	if records == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}
	if data == nil {
		return nil, fmt.Errorf("file ends before header row %d", headerRow)
	}
	data.RowCount = len(data.Rows)

	return data, nil
}

// decoderFor returns a UTF-8 decoder for the named encoding.
func decoderFor(name string) (transform.Transformer, error) {
	var enc encoding.Encoding
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", "UTF-8", "UTF8":
		return unicode.BOMOverride(encoding.Nop.NewDecoder()), nil
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		enc = charmap.ISO8859_1
	case "WINDOWS-1252", "CP1252":
		enc = charmap.Windows1252
	default:
		return nil, fmt.Errorf("unsupported encoding '%s'", name)
	}
	return enc.NewDecoder(), nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Statements carry preamble lines with fewer columns than the table.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// cleanHeaders trims headers and names empty ones by column index.
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
