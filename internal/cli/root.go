// Package cli provides the lakebench command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lakebench/lakebench/internal/config"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
	log     *slog.Logger
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lakebench",
		Short: "Lakebench - benchmark orchestration for table-format runtimes",
		Long: `Lakebench generates deterministic fixture tables, runs planned benchmark
suites against them, verifies the results, and stores run artifacts for
longitudinal comparison across revisions.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			var err error
			cfg, err = config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Built with Go and DuckDB
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./lakebench.yaml)")
	rootCmd.PersistentFlags().String("fixtures-dir", "", "Path to the fixtures directory")
	rootCmd.PersistentFlags().String("results-dir", "", "Path to the results directory")
	rootCmd.PersistentFlags().String("label", "", "Label naming the results subdirectory")
	rootCmd.PersistentFlags().String("git-sha", "", "Git revision of the code under test")
	rootCmd.PersistentFlags().String("storage-backend", "", "Storage backend (local|s3)")
	rootCmd.PersistentFlags().StringSlice("storage-option", nil, "Storage option as KEY=VALUE (repeatable)")
	rootCmd.PersistentFlags().String("backend-profile", "", "Backend profile name under backends/<name>.env")
	rootCmd.PersistentFlags().String("store-path", "", "Path to the longitudinal result store")
	rootCmd.PersistentFlags().String("native-manifest", "", "Override path for the native case manifest")
	rootCmd.PersistentFlags().String("python-manifest", "", "Override path for the python case manifest")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newDataCommand())
	rootCmd.AddCommand(newStoreCommand())
	rootCmd.AddCommand(newDoctorCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
