package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lakebench v%s (%s)\n", Version, GitCommit)
			fmt.Fprintln(cmd.OutOrStdout(), "Benchmark orchestration built with Go and DuckDB")
		},
	}
}
