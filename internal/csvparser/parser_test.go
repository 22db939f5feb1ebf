package csvparser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const statement = `HDFC BANK LTD
Account No,50100012345678

Txn Date|Narration|Withdrawal Amt.|Deposit Amt.|Closing Balance
01/04/2024|NEFT CR-SHARMA TRADERS||"11,800.00"|"61,800.00"
02/04/2024|ATM WDL|2000.00||59800.00

|||
`

func TestParseWithPreamble(t *testing.T) {
	data, err := Parse(strings.NewReader(statement), config.CSVSettings{Delimiter: "|", HeaderRow: 4})
	require.NoError(t, err)

	assert.Equal(t, []string{"Txn Date", "Narration", "Withdrawal Amt.", "Deposit Amt.", "Closing Balance"}, data.Headers)
	require.Equal(t, 2, data.RowCount)
	assert.Equal(t, "11,800.00", data.Rows[0]["Deposit Amt."])
	assert.Equal(t, "", data.Rows[0]["Withdrawal Amt."])
	assert.Equal(t, "ATM WDL", data.Rows[1]["Narration"])
	assert.Equal(t, []int{5, 6}, data.Lines)

	h, ok := data.Header("deposit amt.")
	assert.True(t, ok)
	assert.Equal(t, "Deposit Amt.", h)
	_, ok = data.Header("Cheque No")
	assert.False(t, ok)
}

func TestParseWindows1252(t *testing.T) {
	raw, err := charmap.Windows1252.NewEncoder().String("Date,Narration,Credit\n01/04/2024,Café Mocha,10\n")
	require.NoError(t, err)

	data, err := Parse(strings.NewReader(raw), config.CSVSettings{Encoding: "Windows-1252"})
	require.NoError(t, err)
	assert.Equal(t, "Café Mocha", data.Rows[0]["Narration"])
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(strings.NewReader(""), config.CSVSettings{})
	assert.Error(t, err)

	_, err = Parse(strings.NewReader("a,b\n"), config.CSVSettings{HeaderRow: 5})
	assert.Error(t, err)

	_, err = Parse(strings.NewReader("a,b\n"), config.CSVSettings{Encoding: "EBCDIC"})
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stmt.csv")
	require.NoError(t, os.WriteFile(path, []byte("\xef\xbb\xbfDate,Debit\n2024-04-01,5\n"), 0644))

	data, err := ParseFile(path, config.CSVSettings{})
	require.NoError(t, err)
	assert.Equal(t, path, data.SourceFile)
	assert.Equal(t, []string{"Date", "Debit"}, data.Headers)
	assert.Equal(t, "5", data.Rows[0]["Debit"])
}
