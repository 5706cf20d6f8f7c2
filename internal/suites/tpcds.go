package suites

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/lakebench/lakebench/internal/engine"
	"github.com/lakebench/lakebench/internal/results"
	"github.com/lakebench/lakebench/internal/tabledeps"
)

//go:embed tpcds/*.sql
var tpcdsFiles embed.FS

// tpcdsSQL is swapped in tests to simulate a broken catalog asset.
var tpcdsSQL fs.FS = tpcdsFiles

// tpcdsQuery is one catalog entry: a TPC-DS query shipped with the binary,
// either runnable or skipped with a reason.
type tpcdsQuery struct {
	ID         string
	Enabled    bool
	SkipReason string
}

// tpcdsCatalog is the phase-one query set. Disabled entries keep their slot
// in the case list and report a skipped failure instead of running.
var tpcdsCatalog = []tpcdsQuery{
	{ID: "q03", Enabled: true},
	{ID: "q07", Enabled: true},
	{ID: "q64", Enabled: true},
	{ID: "q72", Enabled: false,
		SkipReason: "blocked on validating q72 inventory correlation semantics against the native engine"},
}

func tpcdsCaseNames() []string {
	names := make([]string, 0, len(tpcdsCatalog))
	for _, q := range tpcdsCatalog {
		names = append(names, "tpcds_"+q.ID)
	}
	return names
}

// loadTpcdsSQL reads the embedded query text for a catalog entry.
func loadTpcdsSQL(id string) (string, error) {
	data, err := fs.ReadFile(tpcdsSQL, "tpcds/"+id+".sql")
	if err != nil {
		return "", err
	}
	query := strings.TrimSpace(string(data))
	if query == "" {
		return "", fmt.Errorf("query file for %s is empty", id)
	}
	return query, nil
}

func (s *Suite) runTpcds(ctx context.Context) ([]results.CaseResult, error) {
	out := make([]results.CaseResult, 0, len(tpcdsCatalog))
	for _, q := range tpcdsCatalog {
		out = append(out, s.runTpcdsQuery(ctx, q))
	}
	return out, nil
}

// runTpcdsQuery produces one case result. Catalog-level problems, a
// disabled entry or an unreadable query file, become case failures rather
// than aborting the target.
func (s *Suite) runTpcdsQuery(ctx context.Context, q tpcdsQuery) results.CaseResult {
	name := "tpcds_" + q.ID
	if !q.Enabled {
		return results.CaseResult{
			Case:           name,
			Success:        false,
			Classification: results.ClassificationSupported,
			Samples:        []results.IterationSample{},
			Failure:        &results.CaseFailure{Message: "skipped: " + q.SkipReason},
		}
	}
	query, err := loadTpcdsSQL(q.ID)
	if err != nil {
		return results.CaseResult{
			Case:           name,
			Success:        false,
			Classification: results.ClassificationSupported,
			Samples:        []results.IterationSample{},
			Failure: &results.CaseFailure{
				Message: fmt.Sprintf("failed to load SQL for enabled query %s: %v", q.ID, err),
			},
		}
	}

	outcome := s.harness.RunCase(ctx, name, s.Warmup, s.Iterations, func(ctx context.Context) (results.SampleMetrics, error) {
		m, err := s.runTpcdsOp(ctx, query)
		if err != nil {
			return results.SampleMetrics{}, err
		}
		return m.Sample(), nil
	})
	return outcome.Result
}

// runTpcdsOp resolves the tables the query references, opens them, and
// executes the query. Table registration counts toward the measured time.
func (s *Suite) runTpcdsOp(ctx context.Context, query string) (engine.OpMetrics, error) {
	names, err := tabledeps.Tables(query)
	if err != nil {
		return engine.OpMetrics{}, err
	}
	if len(names) == 0 {
		return engine.OpMetrics{}, errors.New("no table references found in TPC-DS SQL")
	}

	tables := make(map[string]*engine.Table, len(names))
	for _, name := range names {
		u, err := s.tpcdsTableURL(name)
		if err != nil {
			return engine.OpMetrics{}, err
		}
		table, err := s.engine.OpenTable(u)
		if err != nil {
			return engine.OpMetrics{}, fmt.Errorf("failed to open TPC-DS table %s: %w", name, err)
		}
		tables[name] = table
	}
	return s.engine.Query(ctx, tables, query)
}

// tpcdsTableURL resolves a TPC-DS fixture table. The tables live under a
// tpcds/ prefix next to the generated fixture tables.
func (s *Suite) tpcdsTableURL(name string) (*url.URL, error) {
	local := filepath.Join(s.FixturesDir, s.Scale, "tpcds", name)
	return s.Storage.TableURLFor(local, s.Scale, "tpcds/"+name)
}
