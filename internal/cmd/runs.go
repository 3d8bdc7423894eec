package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/gridrun/internal/config"
	"github.com/3leaps/gridrun/pkg/runstore"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded job runs",
	Long: `List recorded runs, newest first.

Example:
  gridrun runs
  gridrun runs logs 2f1c9a44-...`,
	RunE: runRuns,
}

var runsLogsCmd = &cobra.Command{
	Use:   "logs <run-id>",
	Short: "Print a run's JSONL job log",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsLogs,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsLogsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	store := runstore.NewStore(config.GetConfig().Runs.Root)

	runs, err := store.List()
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to list runs", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTATE\tPLAN\tOS\tCHANNEL\tSTARTED")
	for _, r := range runs {
		started := ""
		if r.StartedAt != nil {
			started = r.StartedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.RunID, r.State, r.Plan, r.OS, r.Channel, started)
	}
	if err := w.Flush(); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write runs table", err)
	}

	fmt.Fprintf(os.Stderr, "%d runs\n", len(runs))
	return nil
}

func runRunsLogs(cmd *cobra.Command, args []string) error {
	store := runstore.NewStore(config.GetConfig().Runs.Root)

	record, err := store.Get(args[0])
	if err != nil {
		if os.IsNotExist(err) {
			return exitError(foundry.ExitFileNotFound, "Run not found", err)
		}
		return exitError(foundry.ExitFileReadError, "Failed to load run", err)
	}

	logPath := record.LogPath
	if logPath == "" {
		logPath = store.LogPath(record.RunID)
	}

	f, err := os.Open(logPath)
	if err != nil {
		return exitError(foundry.ExitFileNotFound, "Run log not found", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(cmd.OutOrStdout(), f); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to copy run log", err)
	}
	return nil
}
