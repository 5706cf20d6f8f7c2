package suites

import (
	"context"

	"github.com/lakebench/lakebench/internal/engine"
	"github.com/lakebench/lakebench/internal/fixtures"
	"github.com/lakebench/lakebench/internal/results"
)

var readScanCaseNames = []string{
	"read_full_scan_narrow",
	"read_projection_region",
	"read_filter_flag_true",
}

func (s *Suite) runReadScan(ctx context.Context) ([]results.CaseResult, error) {
	tableURL, err := fixtures.TableURL(s.FixturesDir, s.Scale, fixtures.NarrowSalesTable, s.Storage)
	if err != nil {
		return nil, err
	}

	type scanOp func(ctx context.Context) (engine.OpMetrics, error)
	run := func(name string, op scanOp) results.CaseResult {
		outcome := s.harness.RunCase(ctx, name, s.Warmup, s.Iterations, func(ctx context.Context) (results.SampleMetrics, error) {
			m, err := op(ctx)
			if err != nil {
				return results.SampleMetrics{}, err
			}
			return m.Sample(), nil
		})
		return outcome.Result
	}

	out := []results.CaseResult{
		run("read_full_scan_narrow", func(ctx context.Context) (engine.OpMetrics, error) {
			table, err := s.engine.OpenTable(tableURL)
			if err != nil {
				return engine.OpMetrics{}, err
			}
			return s.engine.FullScanNarrow(ctx, table)
		}),
		run("read_projection_region", func(ctx context.Context) (engine.OpMetrics, error) {
			table, err := s.engine.OpenTable(tableURL)
			if err != nil {
				return engine.OpMetrics{}, err
			}
			return s.engine.RegionProjection(ctx, table)
		}),
		run("read_filter_flag_true", func(ctx context.Context) (engine.OpMetrics, error) {
			table, err := s.engine.OpenTable(tableURL)
			if err != nil {
				return engine.OpMetrics{}, err
			}
			return s.engine.FlagFilter(ctx, table)
		}),
	}
	return out, nil
}
