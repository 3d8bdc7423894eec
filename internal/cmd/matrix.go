package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/gridrun/pkg/manifest"
	"github.com/3leaps/gridrun/pkg/matrix"
)

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Expand the task matrix and show each cell's plan",
	Long: `Expand the manifest's OS and channel axes into the full cross
product and print the plan each cell resolves to.

Example:
  gridrun matrix --job gridrun.yaml
  gridrun matrix --job gridrun.yaml --json`,
	RunE: runMatrix,
}

var (
	matrixJobPath string
	matrixJSON    bool
)

func init() {
	rootCmd.AddCommand(matrixCmd)

	matrixCmd.Flags().StringVarP(&matrixJobPath, "job", "j", "", "Path to job manifest (required)")
	matrixCmd.Flags().BoolVar(&matrixJSON, "json", false, "Emit cells as JSON instead of a table")

	_ = matrixCmd.MarkFlagRequired("job")
}

func runMatrix(cmd *cobra.Command, args []string) error {
	m, err := manifest.Load(matrixJobPath)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}

	oses := make([]matrix.OS, 0, len(m.Matrix.OS))
	for _, token := range m.Matrix.OS {
		parsed, err := matrix.ParseOS(token)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid matrix.os value", err)
		}
		oses = append(oses, parsed)
	}

	cells := matrix.Expand(oses, m.Toolchain.Channels, m.Toolchain.Stable, m.Toolchain.Nightly)

	if matrixJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(cells); err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to encode matrix", err)
		}
		return nil
	}

	// Table on stdout, summary on stderr, so the table stays pipeable.
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OS\tCHANNEL\tPLAN\tADDONS")
	active := 0
	for _, cell := range cells {
		if cell.Plan != matrix.PlanSkip {
			active++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", cell.OS, cell.Channel, cell.Plan, cell.Addons)
	}
	if err := w.Flush(); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write matrix table", err)
	}

	fmt.Fprintf(os.Stderr, "%d cells, %d active, %d skipped\n",
		len(cells), active, len(cells)-active)
	return nil
}
