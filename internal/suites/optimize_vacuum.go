package suites

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/lakebench/lakebench/internal/engine"
	"github.com/lakebench/lakebench/internal/fixtures"
	"github.com/lakebench/lakebench/internal/results"
)

var optimizeVacuumCaseNames = []string{
	"optimize_compact_small_files",
	"optimize_noop_already_compact",
	"optimize_heavy_compaction",
	"vacuum_dry_run_lite",
	"vacuum_execute_lite",
}

// maintenanceCase names the fixture table a case starts from and the
// operation it measures.
type maintenanceCase struct {
	name        string
	sourceTable string
	op          func(s *Suite, ctx context.Context, t *engine.Table) (engine.OpMetrics, error)
	seed        func(s *Suite, ctx context.Context, u *url.URL, rows []fixtures.Row) error
}

var maintenanceCases = []maintenanceCase{
	{
		name:        "optimize_compact_small_files",
		sourceTable: fixtures.OptimizeSmallFilesTable,
		op: func(s *Suite, ctx context.Context, t *engine.Table) (engine.OpMetrics, error) {
			return s.engine.Compact(ctx, t)
		},
		seed: func(s *Suite, ctx context.Context, u *url.URL, rows []fixtures.Row) error {
			return s.engine.WriteTableSmallFiles(ctx, u, rows, 128)
		},
	},
	{
		name:        "optimize_noop_already_compact",
		sourceTable: fixtures.OptimizeCompactedTable,
		op: func(s *Suite, ctx context.Context, t *engine.Table) (engine.OpMetrics, error) {
			return s.engine.Compact(ctx, t)
		},
		seed: func(s *Suite, ctx context.Context, u *url.URL, rows []fixtures.Row) error {
			return s.engine.WriteTable(ctx, u, rows)
		},
	},
	{
		name:        "optimize_heavy_compaction",
		sourceTable: fixtures.OptimizeSmallFilesTable,
		op: func(s *Suite, ctx context.Context, t *engine.Table) (engine.OpMetrics, error) {
			return s.engine.Compact(ctx, t)
		},
		seed: func(s *Suite, ctx context.Context, u *url.URL, rows []fixtures.Row) error {
			return s.engine.WriteTableSmallFiles(ctx, u, rows, 128)
		},
	},
	{
		name:        "vacuum_dry_run_lite",
		sourceTable: fixtures.VacuumReadyTable,
		op: func(s *Suite, ctx context.Context, t *engine.Table) (engine.OpMetrics, error) {
			return s.engine.Vacuum(ctx, t, true)
		},
		seed: func(s *Suite, ctx context.Context, u *url.URL, rows []fixtures.Row) error {
			return s.engine.WriteVacuumReadyTable(ctx, u, rows)
		},
	},
	{
		name:        "vacuum_execute_lite",
		sourceTable: fixtures.VacuumReadyTable,
		op: func(s *Suite, ctx context.Context, t *engine.Table) (engine.OpMetrics, error) {
			return s.engine.Vacuum(ctx, t, false)
		},
		seed: func(s *Suite, ctx context.Context, u *url.URL, rows []fixtures.Row) error {
			return s.engine.WriteVacuumReadyTable(ctx, u, rows)
		},
	},
}

// Optimize and vacuum mutate table state, so every invocation starts from
// a fresh copy of its fixture table.
func (s *Suite) runOptimizeVacuum(ctx context.Context) ([]results.CaseResult, error) {
	if s.Storage.IsLocal() {
		missing, err := s.missingMaintenanceFixtures()
		if err != nil {
			return nil, err
		}
		if missing {
			return fixtureErrorCases(optimizeVacuumCaseNames,
				"missing optimize/vacuum fixture tables; run data generation first"), nil
		}

		out := []results.CaseResult{}
		for _, c := range maintenanceCases {
			sourceDir, err := fixtures.TablePath(s.FixturesDir, s.Scale, c.sourceTable)
			if err != nil {
				return nil, err
			}
			var setup *iterationTable
			outcome := s.harness.RunCaseWithSetup(ctx, c.name, s.Warmup, s.Iterations,
				func(ctx context.Context) error {
					if setup != nil {
						setup.cleanup()
						setup = nil
					}
					prepared, err := prepareIterationTable(sourceDir)
					if err != nil {
						return err
					}
					setup = prepared
					return nil
				},
				func(ctx context.Context) (results.SampleMetrics, error) {
					return s.runMaintenanceCase(ctx, setup.url, c)
				})
			if setup != nil {
				setup.cleanup()
			}
			out = append(out, outcome.Result)
		}
		return out, nil
	}

	rows, err := fixtures.LoadRows(s.FixturesDir, s.Scale)
	if err != nil {
		return fixtureErrorCases(optimizeVacuumCaseNames, err.Error()), nil
	}
	optimizeRows := rows[:minRowsFor(len(rows)/2, 2048, len(rows))]
	vacuumRows := rows[:minRowsFor(len(rows)/3, 1024, len(rows))]

	out := []results.CaseResult{}
	for _, c := range maintenanceCases {
		seedRows := optimizeRows
		if c.sourceTable == fixtures.VacuumReadyTable {
			seedRows = vacuumRows
		}
		var tableURL *url.URL
		outcome := s.harness.RunCaseWithSetup(ctx, c.name, s.Warmup, s.Iterations,
			func(ctx context.Context) error {
				u, err := s.Storage.IsolatedTableURL(s.Scale, c.sourceTable, c.name)
				if err != nil {
					return err
				}
				if err := c.seed(s, ctx, u, seedRows); err != nil {
					return err
				}
				tableURL = u
				return nil
			},
			func(ctx context.Context) (results.SampleMetrics, error) {
				return s.runMaintenanceCase(ctx, tableURL, c)
			})
		out = append(out, outcome.Result)
	}
	return out, nil
}

func (s *Suite) runMaintenanceCase(ctx context.Context, tableURL *url.URL, c maintenanceCase) (results.SampleMetrics, error) {
	table, err := s.engine.OpenTable(tableURL)
	if err != nil {
		return results.SampleMetrics{}, err
	}
	m, err := c.op(s, ctx, table)
	if err != nil {
		return results.SampleMetrics{}, fmt.Errorf("%s failed: %w", c.name, err)
	}
	return m.Sample(), nil
}

func (s *Suite) missingMaintenanceFixtures() (bool, error) {
	for _, table := range []string{
		fixtures.OptimizeSmallFilesTable,
		fixtures.OptimizeCompactedTable,
		fixtures.VacuumReadyTable,
	} {
		path, err := fixtures.TablePath(s.FixturesDir, s.Scale, table)
		if err != nil {
			return false, err
		}
		if _, err := os.Stat(path); err != nil {
			return true, nil
		}
	}
	return false, nil
}
