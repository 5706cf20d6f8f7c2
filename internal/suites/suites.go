// Package suites runs the benchmark case groups. Each target owns a fixed
// set of cases; planning picks and orders them through the manifests, and
// RunPlanned executes targets once and reassembles results in plan order.
package suites

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/lakebench/lakebench/internal/assertions"
	"github.com/lakebench/lakebench/internal/engine"
	"github.com/lakebench/lakebench/internal/harness"
	"github.com/lakebench/lakebench/internal/manifest"
	"github.com/lakebench/lakebench/internal/results"
	"github.com/lakebench/lakebench/internal/storage"
)

// Targets lists the runnable suite targets in execution order.
func Targets() []string {
	return []string{
		"read_scan",
		"write",
		"merge_dml",
		"metadata",
		"optimize_vacuum",
		"tpcds",
		"interop_py",
		"all",
	}
}

// Suite executes benchmark cases against the fixture tables.
type Suite struct {
	FixturesDir string
	Scale       string
	Warmup      uint32
	Iterations  uint32
	Storage     *storage.Config

	engine  *engine.DuckDB
	harness *harness.Runner
	log     *slog.Logger
}

// New builds a suite with its own engine instance. A nil logger discards
// output. Close releases the engine.
func New(fixturesDir, scale string, warmup, iterations uint32, store *storage.Config, log *slog.Logger) (*Suite, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	eng, err := engine.NewDuckDB(log)
	if err != nil {
		return nil, err
	}
	return &Suite{
		FixturesDir: fixturesDir,
		Scale:       scale,
		Warmup:      warmup,
		Iterations:  iterations,
		Storage:     store,
		engine:      eng,
		harness:     harness.New(log),
		log:         log,
	}, nil
}

// Close releases the engine.
func (s *Suite) Close() error {
	return s.engine.Close()
}

// CaseNames returns the case names a target produces, in execution order.
func CaseNames(target string) ([]string, error) {
	switch target {
	case "read_scan":
		return append([]string(nil), readScanCaseNames...), nil
	case "write":
		return append([]string(nil), writeCaseNames...), nil
	case "merge_dml":
		return mergeCaseNames(), nil
	case "metadata":
		return append([]string(nil), metadataCaseNames...), nil
	case "optimize_vacuum":
		return append([]string(nil), optimizeVacuumCaseNames...), nil
	case "tpcds":
		return tpcdsCaseNames(), nil
	case "interop_py":
		return append([]string(nil), interopCaseNames...), nil
	case "all":
		var names []string
		names = append(names, readScanCaseNames...)
		names = append(names, writeCaseNames...)
		names = append(names, mergeCaseNames()...)
		names = append(names, metadataCaseNames...)
		names = append(names, optimizeVacuumCaseNames...)
		names = append(names, tpcdsCaseNames()...)
		names = append(names, interopCaseNames...)
		return names, nil
	default:
		return nil, fmt.Errorf("unknown suite target: %s", target)
	}
}

// RunTarget executes one concrete target. The pseudo-target "all" only
// exists for planning and is rejected here.
func (s *Suite) RunTarget(ctx context.Context, target string) ([]results.CaseResult, error) {
	switch target {
	case "read_scan":
		return s.runReadScan(ctx)
	case "write":
		return s.runWrite(ctx)
	case "merge_dml":
		return s.runMergeDML(ctx)
	case "metadata":
		return s.runMetadata(ctx)
	case "optimize_vacuum":
		return s.runOptimizeVacuum(ctx)
	case "tpcds":
		return s.runTpcds(ctx)
	case "interop_py":
		return s.runInterop(ctx)
	case "all":
		return nil, fmt.Errorf("target=all requires manifest planning; use a planner and RunPlanned")
	default:
		return nil, fmt.Errorf("unknown suite target: %s", target)
	}
}

// RunPlanned executes every distinct target the plan touches, then
// reassembles the per-case results in plan order and applies the planned
// assertions. A case-level failure never aborts the run; only infrastructure
// errors do.
func (s *Suite) RunPlanned(ctx context.Context, planned []manifest.PlannedCase) ([]results.CaseResult, error) {
	var targetOrder []string
	seen := make(map[string]struct{})
	for _, c := range planned {
		if _, ok := seen[c.Target]; !ok {
			seen[c.Target] = struct{}{}
			targetOrder = append(targetOrder, c.Target)
		}
	}

	type key struct{ target, id string }
	byTargetAndCase := make(map[key]results.CaseResult)
	for _, target := range targetOrder {
		s.log.Info("running suite target", "target", target, "scale", s.Scale)
		targetResults, err := s.RunTarget(ctx, target)
		if err != nil {
			return nil, err
		}
		for _, c := range targetResults {
			byTargetAndCase[key{target, c.Case}] = c
		}
	}

	ordered := make([]results.CaseResult, 0, len(planned))
	for _, plan := range planned {
		c, ok := byTargetAndCase[key{plan.Target, plan.ID}]
		if !ok {
			return nil, fmt.Errorf("planned case '%s' for target '%s' was not produced by suite execution",
				plan.ID, plan.Target)
		}
		if len(plan.Assertions) > 0 {
			assertions.Apply(&c, plan.Assertions)
		}
		ordered = append(ordered, c)
	}
	return ordered, nil
}

// fixtureErrorCases marks every named case failed with a shared message,
// used when the fixtures a target depends on are unavailable.
func fixtureErrorCases(names []string, message string) []results.CaseResult {
	out := make([]results.CaseResult, 0, len(names))
	for _, name := range names {
		out = append(out, results.CaseResult{
			Case:           name,
			Success:        false,
			Classification: results.ClassificationSupported,
			Samples:        []results.IterationSample{},
			Failure:        &results.CaseFailure{Message: message},
		})
	}
	return out
}

// iterationTable is a disposable copy of a fixture table. Mutating cases
// get a fresh copy per invocation so iterations never observe each other.
type iterationTable struct {
	dir string
	url *url.URL
}

func (it *iterationTable) cleanup() {
	if it.dir != "" {
		os.RemoveAll(it.dir)
	}
}

// prepareIterationTable copies a fixture table into a fresh temp directory.
func prepareIterationTable(sourceTableDir string) (*iterationTable, error) {
	temp, err := os.MkdirTemp("", "lakebench-iter-*")
	if err != nil {
		return nil, err
	}
	tableDir := filepath.Join(temp, "table")
	if err := copyDirAll(sourceTableDir, tableDir); err != nil {
		os.RemoveAll(temp)
		return nil, err
	}
	return &iterationTable{
		dir: temp,
		url: &url.URL{Scheme: "file", Path: tableDir + "/"},
	}, nil
}

func copyDirAll(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())
		if entry.Type()&os.ModeSymlink != 0 {
			return fmt.Errorf("symlinks are not allowed in fixture tree: %s", from)
		}
		if entry.IsDir() {
			if err := copyDirAll(from, to); err != nil {
				return err
			}
			continue
		}
		data, err := os.ReadFile(from)
		if err != nil {
			return err
		}
		if err := os.WriteFile(to, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
