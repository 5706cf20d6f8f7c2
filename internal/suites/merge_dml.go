package suites

import (
	"context"
	"net/url"

	"github.com/lakebench/lakebench/internal/fixtures"
	"github.com/lakebench/lakebench/internal/results"
)

// mergeCase fixes the fraction of the dataset the merge source overlaps
// with existing target ids.
type mergeCase struct {
	name       string
	matchRatio float64
}

var mergeCases = []mergeCase{
	{name: "merge_upsert_10pct", matchRatio: 0.10},
	{name: "merge_upsert_50pct", matchRatio: 0.50},
	{name: "merge_upsert_90pct", matchRatio: 0.90},
}

func mergeCaseNames() []string {
	names := make([]string, len(mergeCases))
	for i, c := range mergeCases {
		names[i] = c.name
	}
	return names
}

// Merge cases mutate the target, so each invocation gets a fresh copy of
// the merge_target fixture. On a non-local backend an isolated table URL
// keeps concurrent runs from sharing state; the native engine then reports
// the scheme as unsupported, which the manifest assertions classify.
func (s *Suite) runMergeDML(ctx context.Context) ([]results.CaseResult, error) {
	rows, err := fixtures.LoadRows(s.FixturesDir, s.Scale)
	if err != nil {
		return fixtureErrorCases(mergeCaseNames(), err.Error()), nil
	}

	if s.Storage.IsLocal() {
		fixtureTableDir, err := fixtures.TablePath(s.FixturesDir, s.Scale, fixtures.MergeTargetTable)
		if err != nil {
			return nil, err
		}
		out := make([]results.CaseResult, 0, len(mergeCases))
		for _, c := range mergeCases {
			var setup *iterationTable
			outcome := s.harness.RunCaseWithSetup(ctx, c.name, s.Warmup, s.Iterations,
				func(ctx context.Context) error {
					if setup != nil {
						setup.cleanup()
						setup = nil
					}
					prepared, err := prepareIterationTable(fixtureTableDir)
					if err != nil {
						return err
					}
					setup = prepared
					return nil
				},
				func(ctx context.Context) (results.SampleMetrics, error) {
					return s.runMergeCase(ctx, setup.url, rows, c.matchRatio)
				})
			if setup != nil {
				setup.cleanup()
			}
			out = append(out, outcome.Result)
		}
		return out, nil
	}

	out := make([]results.CaseResult, 0, len(mergeCases))
	for _, c := range mergeCases {
		var tableURL *url.URL
		outcome := s.harness.RunCaseWithSetup(ctx, c.name, s.Warmup, s.Iterations,
			func(ctx context.Context) error {
				u, err := s.Storage.IsolatedTableURL(s.Scale, fixtures.MergeTargetTable, c.name)
				if err != nil {
					return err
				}
				seed := rows[:minRowsFor(len(rows)/4, 1024, len(rows))]
				if err := s.engine.WriteTable(ctx, u, seed); err != nil {
					return err
				}
				tableURL = u
				return nil
			},
			func(ctx context.Context) (results.SampleMetrics, error) {
				return s.runMergeCase(ctx, tableURL, rows, c.matchRatio)
			})
		out = append(out, outcome.Result)
	}
	return out, nil
}

func (s *Suite) runMergeCase(ctx context.Context, tableURL *url.URL, rows []fixtures.Row, matchRatio float64) (results.SampleMetrics, error) {
	table, err := s.engine.OpenTable(tableURL)
	if err != nil {
		return results.SampleMetrics{}, err
	}
	source := buildMergeSource(rows, matchRatio)
	m, err := s.engine.MergeUpsert(ctx, table, source)
	if err != nil {
		return results.SampleMetrics{}, err
	}
	return m.Sample(), nil
}

// buildMergeSource takes the first matchRatio share of rows with bumped
// values as updates and appends a tenth of that count with shifted ids as
// inserts.
func buildMergeSource(rows []fixtures.Row, matchRatio float64) []fixtures.Row {
	if len(rows) == 0 {
		return nil
	}
	matched := int(float64(len(rows))*matchRatio + 0.5)
	if matched < 1 {
		matched = 1
	}
	if matched > len(rows) {
		matched = len(rows)
	}

	source := make([]fixtures.Row, 0, matched+matched/10+1)
	for _, row := range rows[:matched] {
		row.ValueI64 += 7
		source = append(source, row)
	}
	inserts := matched / 10
	if inserts < 1 {
		inserts = 1
	}
	for _, row := range rows[:inserts] {
		row.ID += 1_000_000_000
		source = append(source, row)
	}
	return source
}

func minRowsFor(fraction, floor, total int) int {
	n := fraction
	if n < floor {
		n = floor
	}
	if n > total {
		n = total
	}
	if n < 1 {
		n = 1
	}
	return n
}
