// =============================================================================
// GST Tally Vouchers - Configuration Module
// =============================================================================
//
// This module loads the main application configuration and the per-bank
// statement profiles.
//
// CONFIGURATION FILES:
//   1. Main Config (config.yaml): Global settings, company, ledgers, vouchers
//   2. Bank Profiles (configs/*.yaml): Column layout of each bank's statement
//
// LOAD ORDER:
//   1. Decode YAML
//   2. Apply environment overrides (GST_*)
//   3. Apply defaults
//   4. Validate and parse (decimals, dates, state, date format)
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/jurisdiction"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/xmlwriter"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
// This is loaded from the main config.yaml file.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned for return JSON files and bank statements.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir receives the generated masters and vouchers XML.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// InputArchiveDir receives inputs after successful processing.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir"`

	// OutputArchiveDir is for long-term storage of generated XML.
	// Default: "./output_archive"
	OutputArchiveDir string `yaml:"output_archive_dir"`

	// TemplatesDir holds the ledger mapping workbook.
	// Default: "./templates"
	TemplatesDir string `yaml:"templates_dir"`

	// ConfigsDir holds the bank profiles.
	// Default: "./configs"
	ConfigsDir string `yaml:"configs_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogFile receives a copy of every log line. Empty logs to stderr only.
	// Default: "./logs/gst-tally.log"
	LogFile string `yaml:"log_file"`

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat is "console" or "json".
	// Default: "console"
	LogFormat string `yaml:"log_format"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputNameFormat defines the base name of output files. The suffixes
	// "_masters.xml" and "_vouchers.xml" are appended.
	// Placeholders:
	//   {name}      - Input file name without extension
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {schema}    - Schema tag (gstr1, gstr2b, bank, ...)
	// Default: "{name}_{timestamp}"
	OutputNameFormat string `yaml:"output_name_format"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency is the maximum number of files to process concurrently.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// ContinueOnError determines whether to continue processing other files
	// if one file fails.
	// Default: true
	ContinueOnError bool `yaml:"continue_on_error"`

	// Schedule is the cron expression used by the watch command.
	// Default: "@every 15m"
	Schedule string `yaml:"schedule"`

	// =========================================================================
	// ACCOUNTING SETTINGS
	// =========================================================================

	Company    CompanyConfig    `yaml:"company"`
	Ledgers    LedgerConfig     `yaml:"ledgers"`
	Groups     GroupConfig      `yaml:"groups"`
	Vouchers   VoucherConfig    `yaml:"vouchers"`
	Validation ValidationConfig `yaml:"validation"`

	parsed parsedValues
}

// CompanyConfig identifies the books the vouchers are imported into.
type CompanyConfig struct {
	// Name is written as SVCURRENTCOMPANY.
	Name string `yaml:"name"`

	// GSTIN is the company's own registration.
	GSTIN string `yaml:"gstin"`

	// State is the home jurisdiction, as a state name or two-digit code.
	// When empty, the GSTIN prefix is used, then the document's own GSTIN.
	State string `yaml:"state"`
}

// LedgerConfig names the fixed ledgers and user overrides.
type LedgerConfig struct {
	// Bank is the primary ledger for bank statement vouchers.
	// Default: "Bank"
	Bank string `yaml:"bank"`

	// Suspense is the counter ledger for bank statement vouchers.
	// Default: "Suspense"
	Suspense string `yaml:"suspense"`

	// RoundOff absorbs small gross differences.
	// Default: "Round Off"
	RoundOff string `yaml:"round_off"`

	// Overrides maps a generated ledger name to an existing ledger.
	Overrides map[string]string `yaml:"overrides"`

	// MappingWorkbook is an .xlsx with columns Generated, Ledger and an
	// optional Parent. Relative paths resolve against templates_dir.
	// Rows override Overrides.
	MappingWorkbook string `yaml:"mapping_workbook"`
}

// GroupConfig names the sub-groups created under the reserved groups.
type GroupConfig struct {
	// Flat places every ledger directly under its reserved group.
	Flat bool `yaml:"flat"`

	Suppliers string `yaml:"suppliers"`
	Customers string `yaml:"customers"`
	InputTax  string `yaml:"input_tax"`
	OutputTax string `yaml:"output_tax"`
	Purchases string `yaml:"purchases"`
	Sales     string `yaml:"sales"`
}

// VoucherConfig controls voucher construction and rendering.
type VoucherConfig struct {
	// DefaultDate (YYYY-MM-DD) replaces unreadable dates. When empty, the
	// return period start is used, then 2017-07-01.
	DefaultDate string `yaml:"default_date"`

	// DateFormat is "tally" (YYYYMMDD) or "locale" (DD-MM-YYYY).
	// Default: "tally"
	DateFormat string `yaml:"date_format"`

	// NumberFormat takes the schema prefix and the sequence number.
	// Default: "%s-%04d"
	NumberFormat string `yaml:"number_format"`

	// BillWise adds bill allocations for bill-tracked parties.
	// Default: true
	BillWise bool `yaml:"bill_wise"`

	// BuildWorkers > 1 builds vouchers of one file in parallel.
	// Default: 1
	BuildWorkers int `yaml:"build_workers"`
}

// ValidationConfig holds the arithmetic thresholds and severity policy.
// Decimals are strings so they are never read through a float.
type ValidationConfig struct {
	// Tolerance is the absolute difference treated as rounding.
	// Default: "0.01"
	Tolerance string `yaml:"tolerance"`

	// CeilingPercent is the hard ceiling on a gross mismatch, as a
	// percentage of the line value.
	// Default: "1"
	CeilingPercent string `yaml:"ceiling_percent"`

	// TreatWarningsAsErrors marks a run with warnings as invalid, and the
	// CLI then writes no output.
	TreatWarningsAsErrors bool `yaml:"treat_warnings_as_errors"`

	// StopOnFirstError stops validation at the first error.
	StopOnFirstError bool `yaml:"stop_on_first_error"`
}

type parsedValues struct {
	home           string
	defaultDate    time.Time
	dateFormat     xmlwriter.DateFormat
	tolerance      decimal.Decimal
	ceilingPercent decimal.Decimal
}

// HomeJurisdiction returns the configured home code, or "" to take it from
// the document.
func (c *MainConfig) HomeJurisdiction() string { return c.parsed.home }

// DefaultDate returns the parsed default date, or the zero time.
func (c *MainConfig) DefaultDate() time.Time { return c.parsed.defaultDate }

// DateFormat returns the parsed output date format.
func (c *MainConfig) DateFormat() xmlwriter.DateFormat { return c.parsed.dateFormat }

// Tolerance returns the parsed rounding tolerance.
func (c *MainConfig) Tolerance() decimal.Decimal { return c.parsed.tolerance }

// CeilingPercent returns the parsed hard ceiling percentage.
func (c *MainConfig) CeilingPercent() decimal.Decimal { return c.parsed.ceilingPercent }

// MappingWorkbookPath resolves the mapping workbook path, or "" if unset.
func (c *MainConfig) MappingWorkbookPath() string {
	p := c.Ledgers.MappingWorkbook
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.TemplatesDir, p)
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the main configuration from a YAML file.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Default returns the configuration used when no config file exists.
// Environment overrides still apply.
func Default() (*MainConfig, error) {
	return Parse(nil)
}

// Parse decodes, overrides, defaults and validates a configuration.
func Parse(data []byte) (*MainConfig, error) {
	config := MainConfig{
		ContinueOnError: true,
		Vouchers:        VoucherConfig{BillWise: true},
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&config, os.LookupEnv)
	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config, jurisdiction.Default()); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// Environment variables that override YAML values.
const (
	EnvCompanyName  = "GST_COMPANY_NAME"
	EnvCompanyGSTIN = "GST_COMPANY_GSTIN"
	EnvHomeState    = "GST_HOME_STATE"
	EnvLogLevel     = "GST_LOG_LEVEL"
	EnvInputDir     = "GST_INPUT_DIR"
	EnvOutputDir    = "GST_OUTPUT_DIR"
	EnvBankLedger   = "GST_BANK_LEDGER"
)

func applyEnvOverrides(config *MainConfig, lookup func(string) (string, bool)) {
	for key, target := range map[string]*string{
		EnvCompanyName:  &config.Company.Name,
		EnvCompanyGSTIN: &config.Company.GSTIN,
		EnvHomeState:    &config.Company.State,
		EnvLogLevel:     &config.LogLevel,
		EnvInputDir:     &config.InputDir,
		EnvOutputDir:    &config.OutputDir,
		EnvBankLedger:   &config.Ledgers.Bank,
	} {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*target = strings.TrimSpace(v)
		}
	}
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}
	if config.OutputArchiveDir == "" {
		config.OutputArchiveDir = "./output_archive"
	}
	if config.TemplatesDir == "" {
		config.TemplatesDir = "./templates"
	}
	if config.ConfigsDir == "" {
		config.ConfigsDir = "./configs"
	}
	if config.LogFile == "" {
		config.LogFile = "./logs/gst-tally.log"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "console"
	}
	if config.OutputNameFormat == "" {
		config.OutputNameFormat = "{name}_{timestamp}"
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Schedule == "" {
		config.Schedule = "@every 15m"
	}

	if config.Ledgers.Bank == "" {
		config.Ledgers.Bank = "Bank"
	}
	if config.Ledgers.Suspense == "" {
		config.Ledgers.Suspense = "Suspense"
	}
	if config.Ledgers.RoundOff == "" {
		config.Ledgers.RoundOff = "Round Off"
	}

	if !config.Groups.Flat {
		g := &config.Groups
		for target, value := range map[*string]string{
			&g.Suppliers: "GST Suppliers",
			&g.Customers: "GST Customers",
			&g.InputTax:  "GST Input Tax",
			&g.OutputTax: "GST Output Tax",
			&g.Purchases: "GST Purchases",
			&g.Sales:     "GST Sales",
		} {
			if *target == "" {
				*target = value
			}
		}
	}

	if config.Vouchers.DateFormat == "" {
		config.Vouchers.DateFormat = string(xmlwriter.DateTally)
	}
	if config.Vouchers.NumberFormat == "" {
		config.Vouchers.NumberFormat = "%s-%04d"
	}
	if config.Vouchers.BuildWorkers <= 0 {
		config.Vouchers.BuildWorkers = 1
	}

	if config.Validation.Tolerance == "" {
		config.Validation.Tolerance = "0.01"
	}
	if config.Validation.CeilingPercent == "" {
		config.Validation.CeilingPercent = "1"
	}
}

// validateMainConfig rejects inconsistent values and fills the parsed forms.
func validateMainConfig(config *MainConfig, table *jurisdiction.Table) error {
	p := &config.parsed

	var err error
	if p.tolerance, err = decimal.NewFromString(config.Validation.Tolerance); err != nil || p.tolerance.IsNegative() {
		return fmt.Errorf("validation.tolerance '%s' is not a non-negative decimal", config.Validation.Tolerance)
	}
	if p.ceilingPercent, err = decimal.NewFromString(config.Validation.CeilingPercent); err != nil || !p.ceilingPercent.IsPositive() {
		return fmt.Errorf("validation.ceiling_percent '%s' is not a positive decimal", config.Validation.CeilingPercent)
	}

	if config.Vouchers.DefaultDate != "" {
		if p.defaultDate, err = time.Parse("2006-01-02", config.Vouchers.DefaultDate); err != nil {
			return fmt.Errorf("vouchers.default_date '%s' is not YYYY-MM-DD", config.Vouchers.DefaultDate)
		}
	}
	if p.dateFormat, err = xmlwriter.ParseDateFormat(config.Vouchers.DateFormat); err != nil {
		return fmt.Errorf("vouchers.date_format: %w", err)
	}
	if strings.Count(config.Vouchers.NumberFormat, "%") != 2 ||
		!strings.Contains(config.Vouchers.NumberFormat, "%s") {
		return fmt.Errorf("vouchers.number_format '%s' must hold one %%s and one integer verb", config.Vouchers.NumberFormat)
	}

	switch {
	case config.Company.State != "":
		code, ok := table.CodeForName(config.Company.State)
		if !ok {
			return fmt.Errorf("company.state '%s' is not a known state", config.Company.State)
		}
		p.home = code
	case config.Company.GSTIN != "":
		code := jurisdiction.CodeFromTaxID(config.Company.GSTIN)
		if !table.Valid(code) {
			return fmt.Errorf("company.gstin '%s' has an unknown state prefix", config.Company.GSTIN)
		}
		p.home = code
	}

	return nil
}

// =============================================================================
// BANK PROFILE STRUCTURE
// =============================================================================

// BankProfile describes one bank's statement layout. Each bank gets its own
// YAML file in configs_dir.
type BankProfile struct {
	// Name is the human-readable name of the bank account.
	Name string `yaml:"name"`

	// Code is a short identifier, used as the profile key.
	Code string `yaml:"code"`

	// FileMatchingPatterns are glob patterns matched against statement
	// file names.
	// Examples:
	//   - "hdfc_*.csv"
	//   - "*_icici_statement.xlsx"
	FileMatchingPatterns []string `yaml:"file_matching_patterns"`

	// CSVSettings apply to .csv statements.
	CSVSettings CSVSettings `yaml:"csv_settings"`

	// SheetName selects the worksheet of .xlsx statements. Default: first.
	SheetName string `yaml:"sheet_name"`

	// Columns maps statement headers to the bank row fields.
	Columns ColumnMapping `yaml:"columns"`

	// TransformationRules are applied to cell values, keyed by the bank row
	// field name (date, narration, debit_amount, ...).
	TransformationRules []TransformationRule `yaml:"transformation_rules"`

	// BankLedger overrides ledgers.bank for this account.
	BankLedger string `yaml:"bank_ledger"`
}

// Matches reports whether fileName matches one of the profile's patterns.
func (p *BankProfile) Matches(fileName string) bool {
	base := strings.ToLower(filepath.Base(fileName))
	for _, pattern := range p.FileMatchingPatterns {
		if ok, _ := filepath.Match(strings.ToLower(pattern), base); ok {
			return true
		}
	}
	return false
}

// ColumnMapping names the statement header for each bank row field.
// Header matching is case-insensitive.
type ColumnMapping struct {
	Date           string `yaml:"date"`
	Narration      string `yaml:"narration"`
	DebitAmount    string `yaml:"debit_amount"`
	CreditAmount   string `yaml:"credit_amount"`
	RunningBalance string `yaml:"running_balance"`
}

// Fields returns (bank row field, header) pairs in a fixed order.
func (m ColumnMapping) Fields() [][2]string {
	return [][2]string{
		{"date", m.Date},
		{"narration", m.Narration},
		{"debit_amount", m.DebitAmount},
		{"credit_amount", m.CreditAmount},
		{"running_balance", m.RunningBalance},
	}
}

// =============================================================================
// CSV SETTINGS STRUCTURE
// =============================================================================

// CSVSettings contains settings for parsing CSV statements.
type CSVSettings struct {
	// Delimiter is the character used to separate fields.
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// HeaderRow is the 1-based row holding the column headers. Banks often
	// put account details above it.
	// Default: 1
	HeaderRow int `yaml:"header_row"`

	// DataStartRow is the 1-based row where the transactions begin.
	// Default: HeaderRow + 1
	DataStartRow int `yaml:"data_start_row"`

	// Encoding is "UTF-8", "ISO-8859-1" or "Windows-1252".
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`
}

// =============================================================================
// TRANSFORMATION RULE STRUCTURE
// =============================================================================

// TransformationRule defines a transformation to apply to a specific field.
type TransformationRule struct {
	// Field is the bank row field to transform.
	Field string `yaml:"field"`

	// Actions are applied in order.
	Actions []TransformationAction `yaml:"actions"`
}

// TransformationAction defines a single transformation action.
type TransformationAction struct {
	// Type is the type of transformation to apply.
	// Supported types:
	//   - "prepend_string"       : Add Value to the beginning of the value
	//   - "append_string"        : Add Value to the end of the value
	//   - "trim"                 : Remove leading and trailing whitespace
	//   - "trim_left"            : Remove leading whitespace, or Value's characters
	//   - "trim_right"           : Remove trailing whitespace, or Value's characters
	//   - "uppercase"            : Convert to uppercase
	//   - "lowercase"            : Convert to lowercase
	//   - "replace"              : Replace Find with Value
	//   - "regex_replace"        : Replace the Find pattern with Value
	//   - "normalize_whitespace" : Collapse runs of whitespace
	//   - "format_date"          : Reformat a date from layout Find to layout Value
	//   - "negate_amount"        : Flip the sign of an amount
	//   - "lookup"               : Replace value using LookupTable
	//   - "lookup_with_default"  : As lookup, with Value for unknown inputs
	//   - "if_empty_use_default" : Use Value when the cell is empty
	//   - "if_empty_use_field"   : Use the statement column named Value when empty
	Type string `yaml:"type"`

	// Value is the parameter for the transformation.
	Value string `yaml:"value"`

	// Find is the substring, pattern or source layout.
	Find string `yaml:"find,omitempty"`

	// LookupTable maps input values to output values for "lookup".
	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

// =============================================================================
// BANK PROFILE LOADING
// =============================================================================

// LoadBankProfiles loads all bank profiles from a directory, keyed by code.
// A missing directory yields no profiles.
func LoadBankProfiles(configsDir string) (map[string]*BankProfile, error) {
	profiles := make(map[string]*BankProfile)

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(configsDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to list config files: %w", err)
		}
		files = append(files, matches...)
	}

	for _, file := range files {
		profile, err := loadBankProfile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}

		key := profile.Code
		if key == "" {
			key = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			profile.Code = key
		}
		if _, dup := profiles[key]; dup {
			return nil, fmt.Errorf("duplicate bank profile code '%s' in %s", key, file)
		}
		profiles[key] = profile
	}

	return profiles, nil
}

// MatchProfile returns the first profile, in code order, whose patterns
// match fileName.
func MatchProfile(profiles map[string]*BankProfile, fileName string) (*BankProfile, bool) {
	codes := make([]string, 0, len(profiles))
	for code := range profiles {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		if profiles[code].Matches(fileName) {
			return profiles[code], true
		}
	}
	return nil, false
}

// DefaultBankProfile is used for statements no profile matches.
func DefaultBankProfile() *BankProfile {
	p := &BankProfile{Name: "Default", Code: "default"}
	applyBankProfileDefaults(p)
	return p
}

// loadBankProfile loads a single bank profile file.
func loadBankProfile(filePath string) (*BankProfile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var profile BankProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}

	applyBankProfileDefaults(&profile)
	return &profile, nil
}

// applyBankProfileDefaults sets default values for a bank profile.
func applyBankProfileDefaults(profile *BankProfile) {
	s := &profile.CSVSettings
	if s.Delimiter == "" {
		s.Delimiter = ","
	}
	if s.HeaderRow <= 0 {
		s.HeaderRow = 1
	}
	if s.DataStartRow <= s.HeaderRow {
		s.DataStartRow = s.HeaderRow + 1
	}
	if s.Encoding == "" {
		s.Encoding = "UTF-8"
	}

	c := &profile.Columns
	if c.Date == "" {
		c.Date = "Date"
	}
	if c.Narration == "" {
		c.Narration = "Narration"
	}
	if c.DebitAmount == "" {
		c.DebitAmount = "Debit"
	}
	if c.CreditAmount == "" {
		c.CreditAmount = "Credit"
	}
	if c.RunningBalance == "" {
		c.RunningBalance = "Balance"
	}
}
