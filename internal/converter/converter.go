// =============================================================================
// GST Tally Vouchers - Converter Module
// =============================================================================
//
// This module contains the conversion pipeline. It takes one input document
// from decoded tree to masters and vouchers XML.
//
// CONVERSION PIPELINE:
//   1. Structural validation (schema sniffing, required sections)
//   2. Normalization into canonical transactions
//   3. Semantic validation (arithmetic, tax IDs, duplicates, recoveries)
//   4. Party aggregation and ledger collision checks
//   5. Voucher building
//   6. Master collection
//   7. XML rendering
//
// A fatal condition (malformed document, unknown home jurisdiction, gross
// mismatch above the ceiling) stops the pipeline. The error is returned with
// the report collected so far and no XML.
//
// CONCURRENCY:
//   A Converter holds only immutable configuration and may convert several
//   documents at once.
//
// =============================================================================

package converter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/aggregator"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/config"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/jurisdiction"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/ledger"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/logging"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/normalizer"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/types"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/validation"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/voucher"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/xlsxparser"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/xmlwriter"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// Output holds the conversion. It is nil when processing failed.
	Output *Output

	// Report holds every issue found, including for failed files when the
	// document could be decoded.
	Report *validation.ValidationResult

	// Success indicates whether XML was produced.
	Success bool

	// Error contains the error if processing failed.
	Error error

	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	Schema types.SchemaTag

	// StatementRows is the number of rows read from a bank statement.
	StatementRows int

	Transactions int
	Vouchers     int
	Parties      int
	Masters      int

	Warnings int
	Errors   int

	ProcessingTime time.Duration
}

// Output is the conversion of one document.
type Output struct {
	Schema types.SchemaTag

	// Home is the home jurisdiction code used for classification.
	Home string

	// Period is the return period (MMYYYY), if the document has one.
	Period string

	Set     types.VoucherSet
	Masters []types.Master

	MastersXML  []byte
	VouchersXML []byte

	Report *validation.ValidationResult
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Options configures a Converter.
type Options struct {
	Config *config.MainConfig

	// Logger defaults to a no-op logger.
	Logger *logging.Logger

	// Profiles are the bank profiles, keyed by code.
	Profiles map[string]*config.BankProfile

	// Mapping is the optional ledger mapping workbook.
	Mapping *xlsxparser.LedgerMapping

	// Schema forces a schema tag for JSON inputs. Empty means sniff.
	Schema types.SchemaTag

	// Profile forces a bank profile by code.
	Profile string
}

// Converter runs the conversion pipeline.
type Converter struct {
	opts     Options
	cfg      *config.MainConfig
	log      *logging.Logger
	table    *jurisdiction.Table
	resolver *ledger.Resolver
	norm     *normalizer.Normalizer
	validate *validation.Validator
	parents  map[string]string

	defaultProfile *config.BankProfile
	transformers   map[string]*Transformer
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// New creates a Converter. Every bank profile's transformation rules are
// compiled here, so a bad rule fails before any file is read.
func New(opts Options) (*Converter, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("converter needs a configuration")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	cfg := opts.Config

	overrides := make(map[string]string, len(cfg.Ledgers.Overrides))
	for k, v := range cfg.Ledgers.Overrides {
		overrides[k] = v
	}
	var parents map[string]string
	if opts.Mapping != nil {
		for k, v := range opts.Mapping.Overrides {
			overrides[k] = v
		}
		parents = opts.Mapping.Parents
	}

	table := jurisdiction.Default()
	norm := normalizer.New(normalizer.Options{
		Table:            table,
		HomeJurisdiction: cfg.HomeJurisdiction(),
		SuspenseLedger:   cfg.Ledgers.Suspense,
	})

	c := &Converter{
		opts:     opts,
		cfg:      cfg,
		log:      opts.Logger,
		table:    table,
		resolver: ledger.NewResolver(overrides),
		norm:     norm,
		validate: validation.NewValidatorWithOptions(norm, table, validation.ValidationOptions{
			StopOnFirstError:      cfg.Validation.StopOnFirstError,
			TreatWarningsAsErrors: cfg.Validation.TreatWarningsAsErrors,
			Tolerance:             cfg.Tolerance(),
			CeilingPercent:        cfg.CeilingPercent(),
		}),
		parents:        parents,
		defaultProfile: config.DefaultBankProfile(),
		transformers:   make(map[string]*Transformer),
	}

	all := map[string]*config.BankProfile{c.defaultProfile.Code: c.defaultProfile}
	for code, p := range opts.Profiles {
		all[code] = p
	}
	for code, p := range all {
		t, err := NewTransformer(p.TransformationRules)
		if err != nil {
			return nil, fmt.Errorf("bank profile '%s': %w", code, err)
		}
		c.transformers[code] = t
	}
	return c, nil
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run decodes and converts the file at path. Nothing is written; the caller
// decides where the XML goes.
func (c *Converter) Run(ctx context.Context, path string) Result {
	startTime := time.Now()
	result := Result{FilePath: path}
	log := c.log.With(logging.File(path))

	doc, err := c.Decode(path)
	if err != nil {
		result.Error = fmt.Errorf("failed to decode input: %w", err)
		log.Error("conversion failed", logging.Stage("decode"), logging.Err(err))
		return result
	}
	result.Stats.StatementRows = doc.StatementRows

	out, err := c.ConvertDocument(ctx, doc)
	if out != nil {
		result.Report = out.Report
		result.Stats.Schema = out.Schema
		result.Stats.Transactions = out.Report.TransactionsValidated
		result.Stats.Warnings = out.Report.WarningCount
		result.Stats.Errors = out.Report.ErrorCount
	}
	result.Stats.ProcessingTime = time.Since(startTime)
	if err != nil {
		result.Error = err
		return result
	}

	result.Output = out
	result.Success = true
	result.Stats.Vouchers = len(out.Set.Vouchers)
	result.Stats.Masters = len(out.Masters)
	result.Stats.Parties = countParties(out.Masters)
	return result
}

// ConvertDocument runs the pipeline over one decoded document. On a fatal
// condition the returned Output carries the report but no XML.
//
// PROCESSING STEPS:
//   1. Validate structure
//   2. Normalize
//   3. Validate transactions
//   4. Aggregate parties
//   5. Build vouchers
//   6. Collect masters
//   7. Render XML
func (c *Converter) ConvertDocument(ctx context.Context, doc *Document) (*Output, error) {
	log := c.log.With(logging.File(doc.Source))

	// =========================================================================
	// STEPS 1-4: VALIDATE, NORMALIZE, AGGREGATE
	// =========================================================================

	out, norm, agg, err := c.analyze(doc, log)
	if err != nil {
		return out, err
	}
	report := out.Report

	// =========================================================================
	// STEP 5: BUILD VOUCHERS
	// =========================================================================

	bankLedger := c.cfg.Ledgers.Bank
	if l := doc.BankLedger(); l != "" {
		bankLedger = l
	}
	builder := voucher.New(c.resolver, voucher.Options{
		Company:        c.cfg.Company.Name,
		BankLedger:     bankLedger,
		SuspenseLedger: c.cfg.Ledgers.Suspense,
		RoundOffLedger: c.cfg.Ledgers.RoundOff,
		DefaultDate:    c.cfg.DefaultDate(),
		NumberFormat:   c.cfg.Vouchers.NumberFormat,
		BillWise:       c.cfg.Vouchers.BillWise,
		Workers:        c.cfg.Vouchers.BuildWorkers,
		Tolerance:      c.cfg.Tolerance(),
		CeilingPercent: c.cfg.CeilingPercent(),
	})
	built, err := builder.Build(ctx, voucher.Input{
		Schema:  norm.Schema,
		Period:  norm.Period,
		Records: norm.Records,
		Parties: agg,
	})
	if err != nil {
		var mismatch *types.ArithmeticInconsistencyError
		if errors.As(err, &mismatch) {
			c.validate.AddIssue(report, &validation.ValidationError{
				Severity:      validation.SeverityError,
				Kind:          validation.KindArithmeticInconsistency,
				Rule:          validation.RuleGrossMismatch,
				Message:       err.Error(),
				TransactionID: mismatch.Seq,
				Document:      mismatch.Document,
			})
		}
		report.Fatal = err
		log.Error("conversion failed", logging.Stage("build"), logging.Err(err))
		return out, fmt.Errorf("failed to build vouchers: %w", err)
	}
	before := len(report.Errors)
	c.validate.AddRecoveries(report, built.Recoveries)
	logWarnings(log, report.Errors[before:])
	out.Set = built.Set
	log.Debug("vouchers built", logging.Stage("build"), logging.Vouchers(len(built.Set.Vouchers)))

	// =========================================================================
	// STEP 6: COLLECT MASTERS
	// =========================================================================

	out.Masters = aggregator.CollectMasters(built.Set, agg, aggregator.MasterOptions{
		Groups: aggregator.Groups{
			Suppliers: c.cfg.Groups.Suppliers,
			Customers: c.cfg.Groups.Customers,
			InputTax:  c.cfg.Groups.InputTax,
			OutputTax: c.cfg.Groups.OutputTax,
			Purchases: c.cfg.Groups.Purchases,
			Sales:     c.cfg.Groups.Sales,
		},
		Table:    c.table,
		BillWise: c.cfg.Vouchers.BillWise,
		Parents:  c.parents,
	})
	log.Debug("masters collected", logging.Stage("masters"), logging.Parties(countParties(out.Masters)))

	// =========================================================================
	// STEP 7: RENDER XML
	// =========================================================================

	options := xmlwriter.DefaultGenerateOptions()
	options.DateFormat = c.cfg.DateFormat()
	out.MastersXML = xmlwriter.MastersWithOptions(c.cfg.Company.Name, out.Masters, options)
	out.VouchersXML = xmlwriter.VouchersWithOptions(built.Set, options)

	log.Info("file converted",
		logging.Schema(string(out.Schema)),
		logging.Transactions(len(norm.Records)),
		logging.Vouchers(len(built.Set.Vouchers)),
		logging.Warnings(report.WarningCount),
		logging.Errors(report.ErrorCount))
	return out, nil
}

// Validate runs the structural and semantic phases only. The report is
// always returned; the error is the fatal condition, if any.
func (c *Converter) Validate(doc *Document) (*validation.ValidationResult, error) {
	log := c.log.With(logging.File(doc.Source))
	out, _, _, err := c.analyze(doc, log)
	if err == nil {
		log.Info("file validated",
			logging.Schema(string(out.Schema)),
			logging.Transactions(out.Report.TransactionsValidated),
			logging.Warnings(out.Report.WarningCount),
			logging.Errors(out.Report.ErrorCount))
	}
	return out.Report, err
}

// analyze runs structure validation, normalization, semantic validation and
// aggregation. out is never nil.
func (c *Converter) analyze(doc *Document, log *logging.Logger) (*Output, *normalizer.Result, *aggregator.Result, error) {
	// =========================================================================
	// STEP 1: VALIDATE STRUCTURE
	// =========================================================================

	schema, report := c.validate.ValidateStructure(doc.Raw, doc.Schema)
	out := &Output{Schema: schema, Report: report}
	if report.Fatal != nil {
		log.Error("conversion failed", logging.Stage("structure"), logging.Err(report.Fatal))
		return out, nil, nil, fmt.Errorf("failed to validate structure: %w", report.Fatal)
	}
	log.Debug("structure checked", logging.Stage("structure"), logging.Schema(string(schema)),
		logging.Warnings(report.WarningCount))

	// =========================================================================
	// STEP 2: NORMALIZE
	// =========================================================================

	norm, err := c.norm.Normalize(doc.Raw, schema)
	if err != nil {
		report.Fatal = err
		report.IsValid = false
		log.Error("conversion failed", logging.Stage("normalize"), logging.Err(err))
		return out, nil, nil, fmt.Errorf("failed to normalize: %w", err)
	}
	out.Home, out.Period = norm.Home, norm.Period
	log.Debug("document normalized", logging.Stage("normalize"), logging.Transactions(len(norm.Records)))

	// =========================================================================
	// STEP 3: VALIDATE TRANSACTIONS
	// =========================================================================

	semantic := c.validate.ValidateTransactions(norm.Records)
	c.validate.AddRecoveries(semantic, norm.Dropped)
	report.Merge(semantic)
	log.Debug("transactions validated", logging.Stage("validate"),
		logging.Transactions(semantic.TransactionsValidated),
		logging.Warnings(semantic.WarningCount), logging.Errors(semantic.ErrorCount))

	// =========================================================================
	// STEP 4: AGGREGATE PARTIES
	// =========================================================================

	agg := aggregator.New(c.resolver, c.table).Aggregate(norm.Transactions())
	for _, collision := range agg.Collisions {
		c.validate.AddIssue(report, &validation.ValidationError{
			Severity:   validation.SeverityWarning,
			Kind:       validation.KindUnresolvedReference,
			Rule:       validation.RuleLedgerCollision,
			Message:    collision.String(),
			PartyTaxID: collision.TaxID,
		})
	}
	log.Debug("parties aggregated", logging.Stage("aggregate"), logging.Parties(len(agg.Parties)))

	logWarnings(log, report.Errors)
	if report.Fatal != nil {
		return out, nil, nil, fmt.Errorf("failed to validate transactions: %w", report.Fatal)
	}
	return out, norm, agg, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// logWarnings logs one line per warning in issues.
func logWarnings(log *logging.Logger, issues []*validation.ValidationError) {
	for _, w := range issues {
		if w.Severity == validation.SeverityWarning {
			log.Warn(w.Message, logging.Rule(w.Rule), logging.Document(w.Document))
		}
	}
}

func countParties(masters []types.Master) int {
	n := 0
	for _, m := range masters {
		if m.IsParty {
			n++
		}
	}
	return n
}
