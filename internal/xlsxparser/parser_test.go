package xlsxparser

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadStatement(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icici_apr.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"ICICI Bank statement"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"Value Date", "Particulars", "Withdrawals", "Deposits", "Balance"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), "UPI/GUPTA", "", 2500.5, 10000}))
	require.NoError(t, f.SetSheetRow(sheet, "A5", &[]interface{}{"02/04/2024", "CHQ 1234", 700, "", 9300}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	table, err := ReadStatement(path, "", 2, 3)
	require.NoError(t, err)

	assert.Equal(t, sheet, table.Sheet)
	assert.Equal(t, []string{"Value Date", "Particulars", "Withdrawals", "Deposits", "Balance"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []int{3, 5}, table.Lines)

	assert.Equal(t, "45383", table.Rows[0]["Value Date"])
	assert.Equal(t, "2500.5", table.Rows[0]["Deposits"])
	assert.Equal(t, "", table.Rows[0]["Withdrawals"])
	assert.Equal(t, "CHQ 1234", table.Rows[1]["Particulars"])

	h, ok := table.Header("particulars")
	assert.True(t, ok)
	assert.Equal(t, "Particulars", h)

	_, err = ReadStatement(path, "Missing", 1, 2)
	assert.Error(t, err)
}

func TestReadStatementRejectsOtherFiles(t *testing.T) {
	_, err := ReadStatement("statement.pdf", "", 1, 2)
	assert.Error(t, err)

	_, err = ReadStatement(filepath.Join(t.TempDir(), "none.xlsx"), "", 1, 2)
	assert.Error(t, err)
}

func TestToTable(t *testing.T) {
	rows := [][]string{
		{"Date", "", "Credit"},
		{},
		{"01-04-2024", "x", "5"},
		{"02-04-2024"},
	}
	table, err := ToTable(rows, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Column_2", "Credit"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "", table.Rows[1]["Credit"])

	_, err = ToTable(rows, 2, 3)
	assert.Error(t, err)
}

func TestLedgerMappingRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledgers.xlsx")
	require.NoError(t, WriteLedgerMapping(path, []MappingRow{
		{Generated: "Input IGST 18%", Ledger: "IGST Input @18"},
		{Generated: "Sharma Traders", Ledger: "Sharma Traders (MH)", Parent: "Mumbai Vendors"},
		{Generated: "Round Off", Parent: "Indirect Expenses"},
		{Generated: "Local Purchase 5%"},
	}))

	mapping, err := LoadLedgerMapping(path)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"Input IGST 18%": "IGST Input @18",
		"Sharma Traders": "Sharma Traders (MH)",
	}, mapping.Overrides)
	assert.Equal(t, map[string]string{
		"Sharma Traders (MH)": "Mumbai Vendors",
		"Round Off":           "Indirect Expenses",
	}, mapping.Parents)
	assert.Len(t, mapping.Rows, 4)
}

func TestLedgerMappingNeedsHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow(f.GetSheetName(0), "A1", &[]interface{}{"Name", "Ledger"}))
	require.NoError(t, f.SetSheetRow(f.GetSheetName(0), "A2", &[]interface{}{"x", "y"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	_, err := LoadLedgerMapping(path)
	assert.ErrorContains(t, err, "Generated")
}

func TestLedgerMappingRejectsConflicts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.xlsx")
	require.NoError(t, WriteLedgerMapping(path, []MappingRow{
		{Generated: "Bank", Ledger: "HDFC"},
		{Generated: "Bank", Ledger: "ICICI"},
	}))
	_, err := LoadLedgerMapping(path)
	assert.ErrorContains(t, err, "mapped twice")
}
