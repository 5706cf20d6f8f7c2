package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lakebench/lakebench/internal/config"
	"github.com/lakebench/lakebench/internal/fixtures"
	"github.com/lakebench/lakebench/internal/manifest"
	"github.com/lakebench/lakebench/internal/results"
	"github.com/lakebench/lakebench/internal/storage"
	"github.com/lakebench/lakebench/internal/suites"
	"github.com/lakebench/lakebench/internal/system"
)

// runOptions holds options for the run command.
type runOptions struct {
	Scale      string
	Target     string
	Runner     string
	CaseFilter string
	Warmup     uint32
	Iterations uint32
	DatasetID  string
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a benchmark suite and write the result artifact",
		Long: `Plan the enabled cases for a target, execute them against the configured
storage backend, and write the result document to results/<label>/<target>.json.`,
		Example: `  # Run every planned case at scale sf1
  lakebench run

  # Run only the read scan suite
  lakebench run --target read_scan

  # Run the tiny smoke scenario with more iterations
  lakebench run --dataset-id tiny_smoke --iterations 10`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Scale, "scale", "sf1", "Fixture scale (sf1|sf10)")
	cmd.Flags().StringVar(&opts.Target, "target", "all", "Suite target to run")
	cmd.Flags().StringVar(&opts.Runner, "runner", "all", "Runner selection (native|python|all)")
	cmd.Flags().StringVar(&opts.CaseFilter, "case-filter", "", "Substring filter over planned case ids")
	cmd.Flags().Uint32Var(&opts.Warmup, "warmup", 1, "Untimed warmup iterations per case")
	cmd.Flags().Uint32Var(&opts.Iterations, "iterations", 5, "Measured iterations per case")
	cmd.Flags().StringVar(&opts.DatasetID, "dataset-id", "", "Dataset scenario id (overrides --scale)")

	return cmd
}

func runRun(cmd *cobra.Command, opts *runOptions) error {
	scale, err := config.ResolveScale(opts.Scale, opts.DatasetID)
	if err != nil {
		return err
	}
	if err := fixtures.ValidateScale(scale); err != nil {
		return err
	}
	if err := config.ValidateLabel(cfg.Label); err != nil {
		return err
	}
	runnerMode, err := manifest.ParseRunnerMode(opts.Runner)
	if err != nil {
		return err
	}
	store, err := buildStorage(cfg)
	if err != nil {
		return err
	}

	planner := manifest.NewPlanner(log)
	planner.NativeManifestPath = cfg.NativeManifest
	planner.PythonManifestPath = cfg.PythonManifest
	planned, err := planner.Plan(opts.Target, runnerMode, opts.CaseFilter)
	if err != nil {
		return err
	}

	suite, err := suites.New(cfg.FixturesDir, scale, opts.Warmup, opts.Iterations, store, log)
	if err != nil {
		return err
	}
	defer suite.Close()

	log.Info("running planned cases",
		"target", opts.Target, "scale", scale, "cases", len(planned))
	started := time.Now()
	cases, err := suite.RunPlanned(cmd.Context(), planned)
	if err != nil {
		return err
	}

	benchCtx := results.BenchContext{
		SchemaVersion: results.SchemaVersion,
		Label:         cfg.Label,
		CreatedAt:     time.Now().UTC(),
		Host:          system.HostName(),
		Suite:         opts.Target,
		Scale:         scale,
		Iterations:    opts.Iterations,
		Warmup:        opts.Warmup,
		Runner:        results.String(string(runnerMode)),
	}
	if cfg.GitSHA != "" {
		benchCtx.GitSHA = results.String(cfg.GitSHA)
	}
	if opts.DatasetID != "" {
		benchCtx.DatasetID = results.String(opts.DatasetID)
	}
	if cfg.BackendProfile != "" {
		benchCtx.BackendProfile = results.String(cfg.BackendProfile)
	}
	system.Probe(system.OverridesFromEnv()).Apply(&benchCtx)

	result := &results.BenchRunResult{
		SchemaVersion: results.SchemaVersion,
		Context:       benchCtx,
		Cases:         cases,
	}
	path, err := writeResult(cfg, result, opts.Target)
	if err != nil {
		return err
	}

	renderSummary(cmd, cases)
	fmt.Fprintf(cmd.OutOrStdout(), "wrote result: %s\n", path)
	fmt.Fprintf(cmd.OutOrStdout(), "completed in %s\n", time.Since(started).Round(time.Millisecond))
	return nil
}

// buildStorage resolves the storage configuration. Profile options load
// first; explicit --storage-option values override them key by key.
func buildStorage(cfg *config.Config) (*storage.Config, error) {
	backend, err := storage.ParseBackend(cfg.StorageBackend)
	if err != nil {
		return nil, err
	}

	options, err := storage.LoadBackendProfileOptions(cfg.BackendProfile, ".")
	if err != nil {
		return nil, err
	}
	flagOptions, err := config.ParseStorageOptions(cfg.StorageOptions)
	if err != nil {
		return nil, err
	}
	for k, v := range flagOptions {
		options[k] = v
	}

	return storage.New(backend, options)
}

func writeResult(cfg *config.Config, result *results.BenchRunResult, target string) (string, error) {
	dir := filepath.Join(cfg.ResultsDir, cfg.Label)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}

	data, err := result.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to serialize result: %w", err)
	}
	path := filepath.Join(dir, target+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write result %s: %w", path, err)
	}
	return path, nil
}

func renderSummary(cmd *cobra.Command, cases []results.CaseResult) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Case", "Status", "Class", "Samples", "Median ms", "P95 ms"})

	for i := range cases {
		c := &cases[i]
		status := "PASS"
		if !c.Success {
			status = "FAIL"
		}

		elapsed := results.ElapsedSamples(c)
		median, p95 := "-", "-"
		if stats := results.ComputeStats(elapsed); stats != nil {
			median = fmt.Sprintf("%.2f", stats.MedianMS)
		}
		if summary := results.ComputeLatencySummary(elapsed); summary != nil {
			p95 = fmt.Sprintf("%.2f", summary.P95MS)
		}

		t.AppendRow(table.Row{c.Case, status, string(c.Classification), len(elapsed), median, p95})
	}
	t.Render()
}
