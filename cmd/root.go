// =============================================================================
// GST Tally Vouchers - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (gst-tally)
//   ├── processCmd  (gst-tally process)
//   ├── validateCmd (gst-tally validate)
//   ├── verifyCmd   (gst-tally verify <file>)
//   ├── watchCmd    (gst-tally watch)
//   └── versionCmd  (gst-tally version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --env-file, --verbose)
//   2. Loading .env before the YAML so GST_* overrides apply
//   3. Building the shared application state (config, logger, profiles)
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/config"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/logging"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/xlsxparser"
	"github.com/ginjaninja78/gst-tally-vouchers/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// envFile holds the path to the dotenv file.
var envFile string

// verbose forces debug logging.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gst-tally",
	Short: "GST Tally Vouchers - Turn GST returns and bank statements into Tally vouchers",
	Long: `GST Tally Vouchers reads GST returns (GSTR-1, GSTR-2A, GSTR-2B) and bank
statements and writes Tally import files: one masters envelope with the groups
and ledgers the vouchers need, and one vouchers envelope with balanced
double-entry vouchers.

Key Features:
  - Schema detection for portal and official GSTR-2B JSON
  - Deterministic ledger naming, with overrides and a mapping workbook
  - Bank statements from CSV, XLSX and legacy XLS, one profile per bank
  - Validation with every warning written to an error log
  - Round-trip verification of generated voucher files

Example Usage:
  gst-tally process                        # Convert everything in input_dir
  gst-tally process --single --file b.json # Convert one file
  gst-tally validate                       # Report issues without writing XML
  gst-tally verify output/apr_vouchers.xml # Check a generated voucher file`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvironment(cmd)
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().StringVar(
		&envFile,
		"env-file",
		".env",
		"Path to a dotenv file with GST_* overrides",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// =============================================================================
// APPLICATION STATE
// =============================================================================

// loadEnvironment loads the dotenv file. A missing default .env is fine; a
// missing file named with --env-file is not. Variables already set in the
// environment win.
func loadEnvironment(cmd *cobra.Command) error {
	if !cmd.Flags().Changed("env-file") && !utils.FileExists(envFile) {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// app is the state shared by the commands that read inputs.
type app struct {
	cfg      *config.MainConfig
	log      *logging.Logger
	files    *utils.FileManager
	profiles map[string]*config.BankProfile
	mapping  *xlsxparser.LedgerMapping
}

// setup loads the configuration, creates the working directories, and
// builds the logger, bank profiles and ledger mapping.
func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	files := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.OutputArchiveDir)
	if cfg.LogFile != "" {
		files.ExtraDirs = append(files.ExtraDirs, filepath.Dir(cfg.LogFile))
	}
	if err := files.EnsureDirectories(); err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log, err := logging.New(logging.Options{Level: level, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		return nil, err
	}

	profiles, err := config.LoadBankProfiles(cfg.ConfigsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load bank profiles: %w", err)
	}

	var mapping *xlsxparser.LedgerMapping
	if path := cfg.MappingWorkbookPath(); path != "" {
		mapping, err = xlsxparser.LoadLedgerMapping(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load ledger mapping workbook: %w", err)
		}
	}

	log.Debug("configuration loaded",
		logging.File(cfgFile),
		zap.Int("profiles", len(profiles)))
	return &app{cfg: cfg, log: log, files: files, profiles: profiles, mapping: mapping}, nil
}

// loadConfig reads --config. When the flag is left at its default and the
// file does not exist, the built-in defaults are used.
func loadConfig(cmd *cobra.Command) (*config.MainConfig, error) {
	if !cmd.Flags().Changed("config") && !utils.FileExists(cfgFile) {
		cfg, err := config.Default()
		if err != nil {
			return nil, fmt.Errorf("failed to apply default config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load main config: %w", err)
	}
	return cfg, nil
}
