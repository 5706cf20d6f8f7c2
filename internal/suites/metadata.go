package suites

import (
	"context"
	"net/url"

	"github.com/lakebench/lakebench/internal/fixtures"
	"github.com/lakebench/lakebench/internal/results"
)

var metadataCaseNames = []string{
	"metadata_table_load",
	"metadata_time_travel_v0",
}

// Metadata cases measure log replay, not data scanning. On the local
// backend each invocation loads a fresh copy so filesystem caching of the
// log never favors later iterations.
func (s *Suite) runMetadata(ctx context.Context) ([]results.CaseResult, error) {
	if s.Storage.IsLocal() {
		tablePath, err := fixtures.TablePath(s.FixturesDir, s.Scale, fixtures.NarrowSalesTable)
		if err != nil {
			return nil, err
		}
		out := []results.CaseResult{}
		for _, name := range metadataCaseNames {
			timeTravel := name == "metadata_time_travel_v0"
			var setup *iterationTable
			outcome := s.harness.RunCaseWithSetup(ctx, name, s.Warmup, s.Iterations,
				func(ctx context.Context) error {
					if setup != nil {
						setup.cleanup()
						setup = nil
					}
					prepared, err := prepareIterationTable(tablePath)
					if err != nil {
						return err
					}
					setup = prepared
					return nil
				},
				func(ctx context.Context) (results.SampleMetrics, error) {
					return s.runMetadataCase(setup.url, timeTravel)
				})
			if setup != nil {
				setup.cleanup()
			}
			out = append(out, outcome.Result)
		}
		return out, nil
	}

	tableURL, err := fixtures.TableURL(s.FixturesDir, s.Scale, fixtures.NarrowSalesTable, s.Storage)
	if err != nil {
		return nil, err
	}
	out := []results.CaseResult{}
	for _, name := range metadataCaseNames {
		timeTravel := name == "metadata_time_travel_v0"
		outcome := s.harness.RunCase(ctx, name, s.Warmup, s.Iterations,
			func(ctx context.Context) (results.SampleMetrics, error) {
				return s.runMetadataCase(tableURL, timeTravel)
			})
		out = append(out, outcome.Result)
	}
	return out, nil
}

func (s *Suite) runMetadataCase(tableURL *url.URL, timeTravel bool) (results.SampleMetrics, error) {
	table, err := s.engine.OpenTable(tableURL)
	if err != nil {
		return results.SampleMetrics{}, err
	}
	version := table.Version()
	if timeTravel {
		if _, err := table.Log.FilesAt(0); err != nil {
			return results.SampleMetrics{}, err
		}
		version = 0
	}
	return results.SampleMetrics{
		Operations:   results.Uint64(1),
		TableVersion: results.Uint64(version),
	}, nil
}
