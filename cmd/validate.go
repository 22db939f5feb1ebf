// =============================================================================
// GST Tally Vouchers - Validate Command
// =============================================================================
//
// The 'validate' command runs the checks of the process pipeline without
// building vouchers or writing anything. It reports every issue it finds.
//
// COMMAND USAGE:
//   gst-tally validate [--file path] [--schema tag] [--profile code]
//
// The command fails when any file is invalid.
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/converter"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/normalizer"
	"github.com/ginjaninja78/gst-tally-vouchers/internal/validation"
	"github.com/spf13/cobra"
)

var validateFlags processOptions

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate inputs without writing Tally XML",
	Long: `Decode and validate every input file (or the one named by --file) and print
the issues found. Configuration, bank profiles and the ledger mapping workbook
are loaded as well, so a broken configuration is reported too.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.log.Sync()

		tag, err := normalizer.ParseTag(validateFlags.schema)
		if err != nil {
			return err
		}
		conv, err := converter.New(converter.Options{
			Config:   a.cfg,
			Logger:   a.log,
			Profiles: a.profiles,
			Mapping:  a.mapping,
			Schema:   tag,
			Profile:  validateFlags.profile,
		})
		if err != nil {
			return err
		}

		files, err := inputsFor(a, validateFlags)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Println("No input files found in the input directory.")
			return nil
		}

		invalid := 0
		for _, file := range files {
			report, err := validateFile(conv, file)
			name := filepath.Base(file)
			if err != nil {
				invalid++
				fmt.Printf("✗ %s: %v\n", name, err)
				if report != nil && len(report.Errors) > 0 {
					fmt.Println(report.Format())
				}
				continue
			}
			if !report.IsValid {
				invalid++
				fmt.Printf("✗ %s: %d errors, %d warnings\n", name, report.ErrorCount, report.WarningCount)
			} else {
				fmt.Printf("✓ %s: %d transactions, %d warnings\n", name, report.TransactionsValidated, report.WarningCount)
			}
			if len(report.Errors) > 0 {
				fmt.Println(report.Format())
			}
		}

		if invalid > 0 {
			return fmt.Errorf("%d of %d file(s) failed validation", invalid, len(files))
		}
		return nil
	},
}

func validateFile(conv *converter.Converter, file string) (*validation.ValidationResult, error) {
	doc, err := conv.Decode(file)
	if err != nil {
		return nil, err
	}
	return conv.Validate(doc)
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.filePath, "file", "",
		"Validate only this file")
	validateCmd.Flags().StringVar(&validateFlags.schema, "schema", "",
		"Force a schema tag: gstr1, gstr2a, gstr2b, gstr2b-docdata, bank or invoice")
	validateCmd.Flags().StringVar(&validateFlags.profile, "profile", "",
		"Force a bank profile by code")
}
