// =============================================================================
// GST Tally Vouchers - Process Command
// =============================================================================
//
// This file defines the 'process' command, the main command for converting
// returns and statements into Tally import files.
//
// COMMAND USAGE:
//   gst-tally process [flags]
//
// FLAGS:
//   --dry-run  : Convert and report without writing or archiving anything
//   --single   : Process only a single file (specify with --file)
//   --file     : Path to a specific file to process (used with --single)
//   --schema   : Force a schema tag for JSON inputs (default: detect)
//   --profile  : Force a bank profile for statements (default: match name)
//
// PROCESSING PIPELINE:
//   1. Load configuration, bank profiles and the ledger mapping workbook
//   2. Discover inputs in the input directory
//   3. For each file (concurrently, up to max_concurrency):
//      a. Decode the file
//      b. Validate, normalize, aggregate
//      c. Build vouchers and collect masters
//      d. Write {name}_masters.xml and {name}_vouchers.xml
//      e. Write {name}_errors.txt when there are issues
//      f. Archive the input and the generated XML
//   4. Write the processing summary
//
// A file whose report is invalid (any error, or any warning under
// treat_warnings_as_errors) gets an error log but no XML, and stays in the
// input directory.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/converter"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/logging"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/normalizer"
	"github.com/ginjaninja78/gst-tally-vouchers/pkg/utils"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// processOptions are the flags shared by process and watch.
type processOptions struct {
	dryRun     bool
	singleFile bool
	filePath   string
	schema     string
	profile    string
}

var processFlags processOptions

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Convert GST returns and bank statements into Tally XML",
	Long: `The process command scans the input directory for return JSON files and bank
statements (.csv, .xlsx, .xls), converts each into a masters envelope and a
vouchers envelope, and writes them to the output directory.

Files are processed concurrently and independently; an error in one file does
not affect the others unless continue_on_error is false.

On successful processing:
  - {name}_masters.xml and {name}_vouchers.xml are written to the output directory
  - Copies are placed in the output archive
  - The input is moved to the input archive

On error or an invalid report:
  - {name}_errors.txt lists every issue
  - The input remains in the input directory`,

	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.log.Sync()

		summary, err := runProcess(cmd.Context(), a, processFlags)
		if err != nil {
			return err
		}
		if summary.FailedFiles > 0 {
			return fmt.Errorf("%d of %d file(s) failed", summary.FailedFiles, summary.TotalFiles)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(&processFlags.dryRun, "dry-run", false,
		"Convert and report without writing or archiving anything")
	processCmd.Flags().BoolVar(&processFlags.singleFile, "single", false,
		"Process only a single file (use with --file)")
	processCmd.Flags().StringVar(&processFlags.filePath, "file", "",
		"Path to a specific file to process (used with --single)")
	processCmd.Flags().StringVar(&processFlags.schema, "schema", "",
		"Force a schema tag: gstr1, gstr2a, gstr2b, gstr2b-docdata, bank or invoice")
	processCmd.Flags().StringVar(&processFlags.profile, "profile", "",
		"Force a bank profile by code")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runProcess converts every discovered input and returns the run summary.
// The error is reserved for failures that stop the whole run.
func runProcess(ctx context.Context, a *app, opts processOptions) (*utils.ProcessingSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	summary := &utils.ProcessingSummary{StartTime: time.Now(), DryRun: opts.dryRun}

	// =========================================================================
	// STEP 1: BUILD THE CONVERTER
	// =========================================================================

	tag, err := normalizer.ParseTag(opts.schema)
	if err != nil {
		return nil, err
	}
	conv, err := converter.New(converter.Options{
		Config:   a.cfg,
		Logger:   a.log,
		Profiles: a.profiles,
		Mapping:  a.mapping,
		Schema:   tag,
		Profile:  opts.profile,
	})
	if err != nil {
		return nil, err
	}

	// =========================================================================
	// STEP 2: DISCOVER INPUT FILES
	// =========================================================================

	inputFiles, err := inputsFor(a, opts)
	if err != nil {
		return nil, err
	}
	summary.TotalFiles = len(inputFiles)
	if len(inputFiles) == 0 {
		fmt.Println("No input files found in the input directory.")
		summary.EndTime = time.Now()
		return summary, nil
	}
	fmt.Printf("Found %d file(s) to process\n", len(inputFiles))

	// =========================================================================
	// STEP 3: PROCESS FILES CONCURRENTLY
	// =========================================================================
	// A fixed pool of workers takes files in discovery order. Results are
	// stored by input index so the summary order does not depend on
	// scheduling. Once the run is cancelled, files not yet taken are
	// reported as skipped.

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]fileOutcome, len(inputFiles))
	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := min(a.cfg.MaxConcurrency, len(inputFiles))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					results[i] = skipped(inputFiles[i], ctx.Err())
					continue
				}
				results[i] = handleFile(ctx, a, conv, inputFiles[i], opts.dryRun)
				if !results[i].ok() && !a.cfg.ContinueOnError {
					cancel()
				}
			}
		}()
	}

	dispatched := 0
feed:
	for i := range inputFiles {
		select {
		case jobs <- i:
			dispatched++
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	for i := dispatched; i < len(inputFiles); i++ {
		results[i] = skipped(inputFiles[i], ctx.Err())
	}

	// =========================================================================
	// STEP 4: COLLECT RESULTS AND GENERATE SUMMARY
	// =========================================================================

	var firstFailure *fileOutcome
	for i := range results {
		r := &results[i]
		summary.TotalTransactions += r.Stats.Transactions
		summary.TotalWarnings += r.Stats.Warnings
		summary.TotalErrors += r.Stats.Errors

		name := filepath.Base(r.FilePath)
		if r.ok() {
			summary.SuccessfulFiles++
			summary.TotalVouchers += r.Stats.Vouchers
			summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
				InputFile:    r.FilePath,
				Schema:       string(r.Stats.Schema),
				MastersFile:  r.mastersFile,
				VouchersFile: r.vouchersFile,
				ErrorLog:     r.errorLog,
				ArchivePath:  r.archivePath,
				Transactions: r.Stats.Transactions,
				Vouchers:     r.Stats.Vouchers,
				Warnings:     r.Stats.Warnings,
				ProcessTime:  r.Stats.ProcessingTime,
			})
			target := r.vouchersFile
			if target == "" {
				target = "(dry run)"
			}
			fmt.Printf("  ✓ %s -> %s (%d vouchers, %d warnings)\n", name, target, r.Stats.Vouchers, r.Stats.Warnings)
			continue
		}

		summary.FailedFiles++
		summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
			InputFile:    r.FilePath,
			ErrorMessage: r.failure().Error(),
			ErrorLog:     r.errorLog,
		})
		fmt.Printf("  ✗ %s: %v\n", name, r.failure())
		if firstFailure == nil && !errors.Is(r.Error, context.Canceled) {
			firstFailure = r
		}
	}

	summary.EndTime = time.Now()
	fmt.Println("\n=== Processing Complete ===")
	fmt.Printf("Total files:     %d\n", summary.TotalFiles)
	fmt.Printf("Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Printf("Failed:          %d\n", summary.FailedFiles)
	fmt.Printf("Vouchers:        %d\n", summary.TotalVouchers)
	fmt.Printf("Time elapsed:    %s\n", summary.EndTime.Sub(summary.StartTime))

	if !opts.dryRun {
		path, err := utils.WriteSummaryLog(*summary, a.cfg.OutputDir)
		if err != nil {
			a.log.Error("failed to write summary", logging.Err(err))
		} else {
			fmt.Printf("Summary:         %s\n", path)
		}
	}

	if firstFailure != nil && !a.cfg.ContinueOnError {
		return summary, fmt.Errorf("processing stopped after %s failed: %w", filepath.Base(firstFailure.FilePath), firstFailure.failure())
	}
	return summary, nil
}

// inputsFor returns --file for --single runs, otherwise the input directory
// listing.
func inputsFor(a *app, opts processOptions) ([]string, error) {
	if opts.singleFile || opts.filePath != "" {
		if opts.filePath == "" {
			return nil, fmt.Errorf("--single needs --file")
		}
		if !utils.FileExists(opts.filePath) {
			return nil, fmt.Errorf("input file not found: %s", opts.filePath)
		}
		return []string{opts.filePath}, nil
	}
	files, err := a.files.DiscoverInputFiles(converter.IsInputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to discover input files: %w", err)
	}
	return files, nil
}

// =============================================================================
// PER-FILE HANDLING
// =============================================================================

// fileOutcome is a conversion result plus what was written for it.
type fileOutcome struct {
	converter.Result

	mastersFile  string
	vouchersFile string
	errorLog     string
	archivePath  string

	// rejected is set when the conversion succeeded but the report is
	// invalid, so nothing was written.
	rejected error

	writeErr error
}

func (o *fileOutcome) ok() bool {
	return o.Success && o.rejected == nil && o.writeErr == nil
}

func (o *fileOutcome) failure() error {
	switch {
	case o.Error != nil:
		return o.Error
	case o.rejected != nil:
		return o.rejected
	case o.writeErr != nil:
		return o.writeErr
	default:
		return nil
	}
}

func skipped(file string, cause error) fileOutcome {
	return fileOutcome{Result: converter.Result{FilePath: file, Error: fmt.Errorf("skipped: %w", cause)}}
}

// handleFile converts one file and writes its outputs.
func handleFile(ctx context.Context, a *app, conv *converter.Converter, file string, dryRun bool) fileOutcome {
	out := fileOutcome{Result: conv.Run(ctx, file)}
	log := a.log.With(logging.File(file))

	if out.Success && !out.Report.IsValid {
		out.rejected = fmt.Errorf("report is invalid (%d errors, %d warnings); no XML written",
			out.Report.ErrorCount, out.Report.WarningCount)
	}
	if dryRun {
		return out
	}

	stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	base := utils.GenerateOutputFileName(a.cfg.OutputNameFormat, map[string]string{
		"name":   stem,
		"schema": string(out.Stats.Schema),
	}, time.Now())

	if entries := errorLogEntries(out.Result); len(entries) > 0 {
		path, err := utils.WriteErrorLog(entries, a.cfg.OutputDir, base)
		if err != nil {
			log.Error("failed to write error log", logging.Err(err))
		}
		out.errorLog = path
	}

	if !out.Success || out.rejected != nil {
		return out
	}

	masters, err := utils.WriteOutputFile(a.cfg.OutputDir, base+"_masters.xml", out.Output.MastersXML)
	if err != nil {
		out.writeErr = err
		log.Error("failed to write output", logging.Err(err))
		return out
	}
	vouchers, err := utils.WriteOutputFile(a.cfg.OutputDir, base+"_vouchers.xml", out.Output.VouchersXML)
	if err != nil {
		out.writeErr = err
		log.Error("failed to write output", logging.Err(err))
		return out
	}
	out.mastersFile, out.vouchersFile = masters, vouchers

	// Archival failures are logged; the conversion itself succeeded.
	for _, path := range []string{masters, vouchers} {
		if _, err := a.files.ArchiveOutputFile(path); err != nil {
			log.Warn("failed to archive output", logging.Err(err))
		}
	}
	archived, err := a.files.ArchiveInputFile(file)
	if err != nil {
		log.Warn("failed to archive input", logging.Err(err))
	}
	out.archivePath = archived
	return out
}

// errorLogEntries lists every issue of a result. An error not already
// reported as an issue is added as a processing error.
func errorLogEntries(r converter.Result) []utils.ErrorLogEntry {
	now := time.Now()
	name := filepath.Base(r.FilePath)

	var entries []utils.ErrorLogEntry
	if r.Report != nil {
		issues := r.Report.Errors
		if s := r.Report.SuppressedIssue(); s != nil {
			issues = append(issues[:len(issues):len(issues)], s)
		}
		for _, issue := range issues {
			entries = append(entries, utils.ErrorLogEntry{
				Timestamp:     now,
				FileName:      name,
				Severity:      string(issue.Severity),
				ErrorType:     string(issue.Kind),
				Rule:          issue.Rule,
				ErrorMessage:  issue.Message,
				TransactionID: issue.TransactionID,
				Document:      issue.Document,
				FieldName:     issue.Field,
				FieldValue:    issue.Value,
				SourceRef:     issue.SourceRef,
			})
		}
	}
	if r.Error != nil && (r.Report == nil || r.Report.ErrorCount == 0) {
		entries = append(entries, utils.ErrorLogEntry{
			Timestamp:    now,
			FileName:     name,
			Severity:     "error",
			ErrorType:    "ProcessingError",
			ErrorMessage: r.Error.Error(),
		})
	}
	return entries
}
