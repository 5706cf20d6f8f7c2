package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lakebench/lakebench/internal/config"
	"github.com/lakebench/lakebench/internal/engine"
	"github.com/lakebench/lakebench/internal/fixtures"
)

// dataOptions holds options for the data command.
type dataOptions struct {
	Scale     string
	Seed      uint64
	Force     bool
	DatasetID string
}

func newDataCommand() *cobra.Command {
	opts := &dataOptions{}

	cmd := &cobra.Command{
		Use:   "data",
		Short: "Generate deterministic fixture tables",
		Long: `Materialize the fixture tables for a scale under the fixtures directory.
Generation is skipped when an existing manifest matches the requested
parameters; use --force to rebuild.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runData(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Scale, "scale", "sf1", "Fixture scale (sf1|sf10)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 42, "Deterministic generation seed")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Rebuild even when fixtures already exist")
	cmd.Flags().StringVar(&opts.DatasetID, "dataset-id", "", "Dataset scenario id (overrides --scale)")

	return cmd
}

func runData(cmd *cobra.Command, opts *dataOptions) error {
	scale, err := config.ResolveScale(opts.Scale, opts.DatasetID)
	if err != nil {
		return err
	}
	if err := fixtures.ValidateScale(scale); err != nil {
		return err
	}
	store, err := buildStorage(cfg)
	if err != nil {
		return err
	}

	writer, err := engine.NewDuckDB(log)
	if err != nil {
		return err
	}
	defer writer.Close()

	gen := fixtures.NewGenerator(cfg.FixturesDir, store, writer, log)
	if err := gen.Generate(cmd.Context(), scale, opts.Seed, opts.Force); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "fixtures ready: %s (scale=%s seed=%d)\n",
		cfg.FixturesDir, scale, opts.Seed)
	return nil
}
