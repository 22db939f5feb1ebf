// =============================================================================
// GST Tally Vouchers - Version Command
// =============================================================================
//
// COMMAND USAGE:
//   gst-tally version [--short]
//
// OUTPUT:
//   GST Tally Vouchers
//   Version:    0.3.0
//   Commit:     3f2c1ab
//   Build Date: 2024-05-01
//   Go Version: go1.24.11
//   Schemas:    gstr1, gstr2a, gstr2b, gstr2b-docdata, bank, invoice
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/ginjaninja78/gst-tally-vouchers/internal/normalizer"
	"github.com/spf13/cobra"
)

// Build information, set with ldflags:
//   go build -ldflags "-X 'github.com/ginjaninja78/gst-tally-vouchers/cmd.Version=0.3.0' \
//     -X 'github.com/ginjaninja78/gst-tally-vouchers/cmd.Commit=$(git rev-parse --short HEAD)'"
var (
	Version   = "0.3.0"
	Commit    = "none"
	BuildDate = "unknown"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	Long:  `Display the application version, build details, and the input schemas this build understands.`,
	Run: func(cmd *cobra.Command, args []string) {
		if versionShort {
			fmt.Println(Version)
			return
		}
		tags := make([]string, 0, len(normalizer.Tags()))
		for _, t := range normalizer.Tags() {
			tags = append(tags, string(t))
		}
		fmt.Println("GST Tally Vouchers")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Commit:     %s\n", Commit)
		fmt.Printf("Build Date: %s\n", BuildDate)
		fmt.Printf("Go Version: %s\n", runtime.Version())
		fmt.Printf("Schemas:    %s\n", strings.Join(tags, ", "))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")
}
