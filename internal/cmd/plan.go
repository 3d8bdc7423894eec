package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/gridrun/pkg/manifest"
	"github.com/3leaps/gridrun/pkg/matrix"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the plan a cell would run, without executing",
	Long: `Resolve the plan for one matrix cell and print the exact command
sequence it would execute. Nothing runs.

Example:
  gridrun plan --job gridrun.yaml --os macos --channel 1.26.1
  gridrun plan --job gridrun.yaml --os linux --channel nightly-2018-05-29`,
	RunE: runPlan,
}

var (
	planJobPath string
	planOS      string
	planChannel string
)

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVarP(&planJobPath, "job", "j", "", "Path to job manifest (required)")
	planCmd.Flags().StringVar(&planOS, "os", "", "Operating system axis value (linux|macos|osx)")
	planCmd.Flags().StringVar(&planChannel, "channel", "", "Toolchain channel axis value")

	_ = planCmd.MarkFlagRequired("job")
}

func runPlan(cmd *cobra.Command, args []string) error {
	m, err := manifest.Load(planJobPath)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}

	jobCtx, err := resolveJobContext(m, planOS, planChannel)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --os value", err)
	}

	plan := matrix.Select(jobCtx)
	needsAddons := jobCtx.NeedsToolAddons() && len(m.Addons) > 0

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "os:      %s\n", jobCtx.OS)
	fmt.Fprintf(out, "channel: %s\n", jobCtx.Channel)
	fmt.Fprintf(out, "plan:    %s\n", plan)
	fmt.Fprintf(out, "addons:  %v\n", needsAddons)
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	if needsAddons {
		for _, addon := range m.Addons {
			fmt.Fprintf(w, "install\t%s@%s\t%s\n", addon.Name, addon.Version, shellJoin(addon.Install))
		}
	}

	steps := planSteps(m, plan)
	if len(steps) == 0 {
		fmt.Fprintln(out, "(no commands: skip plan)")
		return nil
	}
	for _, step := range steps {
		fmt.Fprintf(w, "%s\t%s\t%s\n", step.Stage, step.Name, shellJoin(step.Argv))
	}
	return nil
}

// shellJoin renders an argv for display. Arguments containing spaces are
// quoted; this is presentation only, never execution.
func shellJoin(argv []string) string {
	parts := make([]string, 0, len(argv))
	for _, a := range argv {
		if strings.ContainsAny(a, " \t") {
			parts = append(parts, fmt.Sprintf("%q", a))
			continue
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
