package suites

import (
	"context"
	"net/url"
	"os"
	"path/filepath"

	"github.com/lakebench/lakebench/internal/fixtures"
	"github.com/lakebench/lakebench/internal/results"
)

var writeCaseNames = []string{
	"write_append_small_batches",
	"write_append_large_batches",
	"write_overwrite",
}

// Write cases materialize a throwaway table per invocation; batch size is
// the only variable between the append cases.
func (s *Suite) runWrite(ctx context.Context) ([]results.CaseResult, error) {
	rows, err := fixtures.LoadRows(s.FixturesDir, s.Scale)
	if err != nil {
		return fixtureErrorCases(writeCaseNames, err.Error()), nil
	}

	out := []results.CaseResult{}

	small := s.harness.RunCase(ctx, "write_append_small_batches", s.Warmup, s.Iterations,
		func(ctx context.Context) (results.SampleMetrics, error) {
			return s.runAppendCase(ctx, rows, 128)
		})
	out = append(out, small.Result)

	large := s.harness.RunCase(ctx, "write_append_large_batches", s.Warmup, s.Iterations,
		func(ctx context.Context) (results.SampleMetrics, error) {
			return s.runAppendCase(ctx, rows, 4096)
		})
	out = append(out, large.Result)

	overwrite := s.harness.RunCase(ctx, "write_overwrite", s.Warmup, s.Iterations,
		func(ctx context.Context) (results.SampleMetrics, error) {
			return s.runOverwriteCase(ctx, rows)
		})
	out = append(out, overwrite.Result)

	return out, nil
}

func (s *Suite) runAppendCase(ctx context.Context, rows []fixtures.Row, chunk int) (results.SampleMetrics, error) {
	temp, err := os.MkdirTemp("", "lakebench-write-*")
	if err != nil {
		return results.SampleMetrics{}, err
	}
	defer os.RemoveAll(temp)

	tableDir := filepath.Join(temp, "table")
	tableURL := &url.URL{Scheme: "file", Path: tableDir + "/"}
	if err := s.engine.WriteTableSmallFiles(ctx, tableURL, rows, chunk); err != nil {
		return results.SampleMetrics{}, err
	}
	table, err := s.engine.OpenTable(tableURL)
	if err != nil {
		return results.SampleMetrics{}, err
	}

	operations := uint64((len(rows) + chunk - 1) / chunk)
	return results.SampleMetrics{
		RowsProcessed: results.Uint64(uint64(len(rows))),
		Operations:    results.Uint64(operations),
		TableVersion:  results.Uint64(table.Version()),
	}, nil
}

func (s *Suite) runOverwriteCase(ctx context.Context, rows []fixtures.Row) (results.SampleMetrics, error) {
	temp, err := os.MkdirTemp("", "lakebench-write-*")
	if err != nil {
		return results.SampleMetrics{}, err
	}
	defer os.RemoveAll(temp)

	tableDir := filepath.Join(temp, "table")
	tableURL := &url.URL{Scheme: "file", Path: tableDir + "/"}
	if err := s.engine.WriteTable(ctx, tableURL, rows); err != nil {
		return results.SampleMetrics{}, err
	}
	table, err := s.engine.OpenTable(tableURL)
	if err != nil {
		return results.SampleMetrics{}, err
	}
	m, err := s.engine.Overwrite(ctx, table, rows)
	if err != nil {
		return results.SampleMetrics{}, err
	}

	return results.SampleMetrics{
		RowsProcessed: results.Uint64(uint64(len(rows)) * 2),
		Operations:    results.Uint64(2),
		TableVersion:  m.TableVersion,
	}, nil
}
