// =============================================================================
// GST Tally Vouchers - Verify Command
// =============================================================================
//
// The 'verify' command parses a generated vouchers file back and checks that
// every voucher balances and carries the fields Tally needs.
//
// COMMAND USAGE:
//   gst-tally verify <vouchers.xml>
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/xmlwriter"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <vouchers.xml>",
	Short: "Check a generated vouchers file",
	Args:  cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		set, err := xmlwriter.ParseVouchers(f)
		if err != nil {
			return err
		}
		report := xmlwriter.Verify(set)

		for _, issue := range report.Issues {
			fmt.Println(issue.String())
		}
		if !report.OK() {
			return fmt.Errorf("%s: %d issue(s) in %d voucher(s)", args[0], len(report.Issues), report.Vouchers)
		}
		fmt.Printf("✓ %s: %d vouchers balance\n", args[0], report.Vouchers)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
