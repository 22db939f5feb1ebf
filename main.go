// =============================================================================
// GST Tally Vouchers - Main Entry Point
// =============================================================================
//
// gst-tally turns GST returns (GSTR-1, GSTR-2A, GSTR-2B) and bank statements
// into Tally import files. Command handling lives in the cmd package.
//
// USAGE:
//   gst-tally process       - Convert every input in the input directory
//   gst-tally validate      - Report issues without writing XML
//   gst-tally verify <file> - Check a generated vouchers file
//   gst-tally watch         - Run process on a schedule
//   gst-tally version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Normalization, validation, vouchers, serialization
//   - pkg/           : File management shared by the commands
//   - configs/       : Per-bank statement profiles (YAML)
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/gst-tally-vouchers/cmd"
)

func main() {
	cmd.Execute()
}
