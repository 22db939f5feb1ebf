// =============================================================================
// GST Tally Vouchers - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the CLI, including:
//   - Input discovery (return JSON and bank statements)
//   - Archival of processed inputs and generated XML
//   - Output naming and writing
//   - Error log and processing summary files
//
// ARCHIVAL STRATEGY:
//   - Input files are moved to input_archive after successful processing
//   - Output files are copied to output_archive for long-term storage
//   - Failed files remain in their original location
//   - An existing archive entry is never overwritten; a timestamp is added
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the CLI.
type FileManager struct {
	InputDir         string
	OutputDir        string
	InputArchiveDir  string
	OutputArchiveDir string

	// ExtraDirs are created alongside the working directories, such as the
	// log file's directory.
	ExtraDirs []string
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, inputArchiveDir, outputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:         inputDir,
		OutputDir:        outputDir,
		InputArchiveDir:  inputArchiveDir,
		OutputArchiveDir: outputArchiveDir,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates all required directories if they don't exist.
func (fm *FileManager) EnsureDirectories() error {
	dirs := append([]string{
		fm.InputDir,
		fm.OutputDir,
		fm.InputArchiveDir,
		fm.OutputArchiveDir,
	}, fm.ExtraDirs...)

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles lists the files directly under the input directory
// whose extension satisfies accept, sorted by name. Hidden files and
// spreadsheet lock files ("~$book.xlsx") are skipped.
func (fm *FileManager) DiscoverInputFiles(accept func(path string) bool) ([]string, error) {
	entries, err := os.ReadDir(fm.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var result []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		path := filepath.Join(fm.InputDir, name)
		if accept == nil || accept(path) {
			result = append(result, path)
		}
	}
	sort.Strings(result)
	return result, nil
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves an input file to the archive directory and returns
// its new path.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	if err := os.MkdirAll(fm.InputArchiveDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	archivePath := uniquePath(filepath.Join(fm.InputArchiveDir, filepath.Base(filePath)))

	if err := os.Rename(filePath, archivePath); err != nil {
		// If rename fails (e.g., cross-device), try copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}
	return archivePath, nil
}

// ArchiveOutputFile copies an output file to the archive directory. Output
// files stay in the output directory.
func (fm *FileManager) ArchiveOutputFile(filePath string) (string, error) {
	if err := os.MkdirAll(fm.OutputArchiveDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	archivePath := uniquePath(filepath.Join(fm.OutputArchiveDir, filepath.Base(filePath)))
	if err := copyFile(filePath, archivePath); err != nil {
		return "", fmt.Errorf("failed to copy file to archive: %w", err)
	}
	return archivePath, nil
}

// uniquePath returns path, or path with a timestamp before the extension when
// path already exists.
func uniquePath(path string) string {
	if !FileExists(path) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	stamp := time.Now().Format("20060102_150405")
	candidate := fmt.Sprintf("%s_%s%s", stem, stamp, ext)
	for i := 2; FileExists(candidate); i++ {
		candidate = fmt.Sprintf("%s_%s_%d%s", stem, stamp, i, ext)
	}
	return candidate
}

// =============================================================================
// OUTPUT FILES
// =============================================================================

// GenerateOutputFileName expands an output name format. The result has no
// extension; callers append "_masters.xml" and the like.
//
// PARAMETERS:
//   - format: The format string for the file name.
//             Placeholders:
//               {uuid}      - A random UUID
//               {timestamp} - now as YYYYMMDD_HHMMSS
//               {date}      - now as YYYYMMDD
//               {name}      - Input file name without extension
//               {schema}    - Schema tag
//   - params: Values for the custom placeholders.
//
// EXAMPLE:
//   format: "{schema}_{name}_{timestamp}"
//   params: {"schema": "gstr2b", "name": "apr_2024"}
//   output: "gstr2b_apr_2024_20240501_093000"
func GenerateOutputFileName(format string, params map[string]string, now time.Time) string {
	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	// A name never leaves its directory.
	result = strings.NewReplacer("/", "_", "\\", "_").Replace(result)
	if strings.Trim(result, "._ ") == "" {
		result = "output_" + now.Format("20060102_150405")
	}
	return result
}

// WriteOutputFile writes data to dir/name through a temporary file, so a
// reader never sees a partial document.
func WriteOutputFile(dir, name string, data []byte) (string, error) {
	path := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to move output file into place: %w", err)
	}
	return path, nil
}

// =============================================================================
// ERROR LOG GENERATION
// =============================================================================

// ErrorLogEntry represents a single error log entry.
type ErrorLogEntry struct {
	Timestamp time.Time
	FileName  string

	// Severity is "error" or "warning".
	Severity string

	// ErrorType is the issue kind, such as MalformedDocument.
	ErrorType    string
	Rule         string
	ErrorMessage string

	TransactionID int
	Document      string
	FieldName     string
	FieldValue    string
	SourceRef     string
}

// WriteErrorLog writes error entries to outputDir/{baseName}_errors.txt.
// Nothing is written for an empty list.
func WriteErrorLog(entries []ErrorLogEntry, outputDir, baseName string) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	if baseName == "" {
		baseName = "error_log_" + time.Now().Format("20060102_150405")
	}
	logPath := filepath.Join(outputDir, baseName+"_errors.txt")

	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	errorsN, warnings := 0, 0
	for _, e := range entries {
		if e.Severity == "warning" {
			warnings++
		} else {
			errorsN++
		}
	}

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "GST Tally Vouchers - Error Log\n"+
		"Generated: %s\n"+
		"Errors: %d  Warnings: %d\n"+
		"================================================================================\n\n",
		time.Now().Format("2006-01-02 15:04:05"), errorsN, warnings)

	for i, entry := range entries {
		fmt.Fprintf(writer, "Issue #%d\n"+
			"  Timestamp:      %s\n"+
			"  File:           %s\n"+
			"  Severity:       %s\n"+
			"  Error Type:     %s\n"+
			"  Message:        %s\n",
			i+1,
			entry.Timestamp.Format("2006-01-02 15:04:05"),
			entry.FileName,
			entry.Severity,
			entry.ErrorType,
			entry.ErrorMessage)

		if entry.Rule != "" {
			fmt.Fprintf(writer, "  Rule:           %s\n", entry.Rule)
		}
		if entry.TransactionID > 0 {
			fmt.Fprintf(writer, "  Transaction:    %d\n", entry.TransactionID)
		}
		if entry.Document != "" {
			fmt.Fprintf(writer, "  Document:       %s\n", entry.Document)
		}
		if entry.FieldName != "" {
			fmt.Fprintf(writer, "  Field:          %s\n", entry.FieldName)
		}
		if entry.FieldValue != "" {
			fmt.Fprintf(writer, "  Value:          %s\n", entry.FieldValue)
		}
		if entry.SourceRef != "" {
			fmt.Fprintf(writer, "  Source:         %s\n", entry.SourceRef)
		}
		writer.WriteString("\n")
	}

	writer.WriteString("================================================================================\n" +
		"End of Error Log\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush error log: %w", err)
	}
	return logPath, nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a processing run.
type ProcessingSummary struct {
	StartTime         time.Time
	EndTime           time.Time
	DryRun            bool
	TotalFiles        int
	SuccessfulFiles   int
	FailedFiles       int
	TotalTransactions int
	TotalVouchers     int
	TotalWarnings     int
	TotalErrors       int
	ProcessedFiles    []ProcessedFileInfo
	FailedFilesList   []FailedFileInfo
}

// ProcessedFileInfo contains information about a successfully processed file.
type ProcessedFileInfo struct {
	InputFile    string
	Schema       string
	MastersFile  string
	VouchersFile string
	ErrorLog     string
	ArchivePath  string
	Transactions int
	Vouchers     int
	Warnings     int
	ProcessTime  time.Duration
}

// FailedFileInfo contains information about a failed file.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
	ErrorLog     string
}

// WriteSummaryLog writes a processing summary to
// outputDir/processing_summary_{timestamp}.txt.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	summaryFileName := fmt.Sprintf("processing_summary_%s.txt", summary.EndTime.Format("20060102_150405"))
	summaryPath := uniquePath(filepath.Join(outputDir, summaryFileName))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	mode := "write"
	if summary.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(writer, "GST Tally Vouchers - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n"+
		"  Mode:           %s\n\n"+
		"Statistics:\n"+
		"  Total Files:        %d\n"+
		"  Successful:         %d\n"+
		"  Failed:             %d\n"+
		"  Total Transactions: %d\n"+
		"  Total Vouchers:     %d\n"+
		"  Warnings:           %d\n"+
		"  Errors:             %d\n\n",
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String(),
		mode,
		summary.TotalFiles,
		summary.SuccessfulFiles,
		summary.FailedFiles,
		summary.TotalTransactions,
		summary.TotalVouchers,
		summary.TotalWarnings,
		summary.TotalErrors)

	if len(summary.ProcessedFiles) > 0 {
		writer.WriteString("Successful Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, pf := range summary.ProcessedFiles {
			fmt.Fprintf(writer, "  Input:        %s\n", pf.InputFile)
			fmt.Fprintf(writer, "  Schema:       %s\n", pf.Schema)
			if pf.MastersFile != "" {
				fmt.Fprintf(writer, "  Masters:      %s\n", pf.MastersFile)
				fmt.Fprintf(writer, "  Vouchers:     %s\n", pf.VouchersFile)
			}
			if pf.ErrorLog != "" {
				fmt.Fprintf(writer, "  Error Log:    %s\n", pf.ErrorLog)
			}
			fmt.Fprintf(writer, "  Transactions: %d\n", pf.Transactions)
			fmt.Fprintf(writer, "  Vouchers:     %d\n", pf.Vouchers)
			fmt.Fprintf(writer, "  Warnings:     %d\n", pf.Warnings)
			fmt.Fprintf(writer, "  Process Time: %s\n\n", pf.ProcessTime.String())
		}
	}

	if len(summary.FailedFilesList) > 0 {
		writer.WriteString("Failed Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, ff := range summary.FailedFilesList {
			fmt.Fprintf(writer, "  File:  %s\n", ff.InputFile)
			fmt.Fprintf(writer, "  Error: %s\n", ff.ErrorMessage)
			if ff.ErrorLog != "" {
				fmt.Fprintf(writer, "  Log:   %s\n", ff.ErrorLog)
			}
			writer.WriteString("\n")
		}
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}
	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}
	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
