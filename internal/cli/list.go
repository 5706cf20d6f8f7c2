package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lakebench/lakebench/internal/manifest"
	"github.com/lakebench/lakebench/internal/suites"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [target]",
		Short: "List suite targets and their planned cases",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "all"
			if len(args) == 1 {
				target = args[0]
			}

			planner := manifest.NewPlanner(log)
			planner.NativeManifestPath = cfg.NativeManifest
			planner.PythonManifestPath = cfg.PythonManifest
			planned, err := planner.Plan(target, manifest.RunnerAll, "")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Targets:")
			for _, t := range suites.Targets() {
				fmt.Fprintf(out, "  %s\n", t)
			}
			fmt.Fprintf(out, "\nPlanned cases for target '%s' (%d total):\n", target, len(planned))
			for _, c := range planned {
				fmt.Fprintf(out, "  %-40s [%s, %s]\n", c.ID, c.Target, c.Runner)
			}
			return nil
		},
	}
}
