package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *FileManager {
	t.Helper()
	root := t.TempDir()
	fm := NewFileManager(
		filepath.Join(root, "input"),
		filepath.Join(root, "output"),
		filepath.Join(root, "input_archive"),
		filepath.Join(root, "output_archive"),
	)
	fm.ExtraDirs = []string{filepath.Join(root, "logs")}
	require.NoError(t, fm.EnsureDirectories())
	return fm
}

func touch(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestEnsureDirectories(t *testing.T) {
	fm := newManager(t)
	for _, dir := range append([]string{fm.InputDir, fm.OutputDir, fm.InputArchiveDir, fm.OutputArchiveDir}, fm.ExtraDirs...) {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestDiscoverInputFiles(t *testing.T) {
	fm := newManager(t)
	for _, name := range []string{"b_gstr2b.json", "a_hdfc.csv", "notes.txt", ".hidden.json", "~$book.xlsx"} {
		touch(t, filepath.Join(fm.InputDir, name), "x")
	}
	require.NoError(t, os.Mkdir(filepath.Join(fm.InputDir, "nested.json"), 0755))

	files, err := fm.DiscoverInputFiles(func(p string) bool {
		ext := filepath.Ext(p)
		return ext == ".json" || ext == ".csv"
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(fm.InputDir, "a_hdfc.csv"),
		filepath.Join(fm.InputDir, "b_gstr2b.json"),
	}, files)

	fm.InputDir = filepath.Join(fm.InputDir, "missing")
	_, err = fm.DiscoverInputFiles(nil)
	assert.Error(t, err)
}

func TestArchiveNeverOverwrites(t *testing.T) {
	fm := newManager(t)
	src := filepath.Join(fm.InputDir, "apr.json")

	touch(t, src, "first")
	first, err := fm.ArchiveInputFile(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.InputArchiveDir, "apr.json"), first)
	assert.False(t, FileExists(src))

	touch(t, src, "second")
	second, err := fm.ArchiveInputFile(src)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestArchiveOutputFileCopies(t *testing.T) {
	fm := newManager(t)
	out, err := WriteOutputFile(fm.OutputDir, "apr_vouchers.xml", []byte("<ENVELOPE/>"))
	require.NoError(t, err)

	archived, err := fm.ArchiveOutputFile(out)
	require.NoError(t, err)
	assert.True(t, FileExists(out))
	data, err := os.ReadFile(archived)
	require.NoError(t, err)
	assert.Equal(t, "<ENVELOPE/>", string(data))

	entries, err := os.ReadDir(fm.OutputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestGenerateOutputFileName(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	name := GenerateOutputFileName("{schema}_{name}_{timestamp}", map[string]string{"schema": "gstr2b", "name": "apr_2024"}, now)
	assert.Equal(t, "gstr2b_apr_2024_20240501_093000", name)

	name = GenerateOutputFileName("{date}-{uuid}", nil, now)
	assert.True(t, strings.HasPrefix(name, "20240501-"))
	assert.Len(t, name, len("20240501-")+36)

	assert.Equal(t, ".._etc_passwd", GenerateOutputFileName("{name}", map[string]string{"name": "../etc/passwd"}, now))
	assert.Equal(t, "output_20240501_093000", GenerateOutputFileName("{name}", map[string]string{"name": ""}, now))
}

func TestWriteErrorLog(t *testing.T) {
	fm := newManager(t)

	path, err := WriteErrorLog(nil, fm.OutputDir, "apr")
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = WriteErrorLog([]ErrorLogEntry{
		{FileName: "apr.json", Severity: "warning", ErrorType: "ValidationWarning", Rule: "missing_document", ErrorMessage: "Document number is missing", TransactionID: 3},
		{FileName: "apr.json", Severity: "error", ErrorType: "MalformedDocument", ErrorMessage: "section 'itc_avl' is missing"},
	}, fm.OutputDir, "apr")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.OutputDir, "apr_errors.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Errors: 1  Warnings: 1")
	assert.Contains(t, text, "Rule:           missing_document")
	assert.Contains(t, text, "Transaction:    3")
	assert.Contains(t, text, "section 'itc_avl' is missing")
}

func TestWriteSummaryLog(t *testing.T) {
	fm := newManager(t)
	start := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	path, err := WriteSummaryLog(ProcessingSummary{
		StartTime:       start,
		EndTime:         start.Add(2 * time.Second),
		TotalFiles:      2,
		SuccessfulFiles: 1,
		FailedFiles:     1,
		TotalVouchers:   12,
		ProcessedFiles:  []ProcessedFileInfo{{InputFile: "apr.json", Schema: "gstr2b", Vouchers: 12}},
		FailedFilesList: []FailedFileInfo{{InputFile: "may.json", ErrorMessage: "malformed"}},
	}, fm.OutputDir)
	require.NoError(t, err)
	assert.Equal(t, "processing_summary_20240501_093002.txt", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Duration:       2s")
	assert.Contains(t, text, "Total Vouchers:     12")
	assert.Contains(t, text, "Schema:       gstr2b")
	assert.Contains(t, text, "Error: malformed")
}
