package suites

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lakebench/lakebench/internal/harness"
	"github.com/lakebench/lakebench/internal/results"
)

var interopCaseNames = []string{
	"pandas_roundtrip_smoke",
	"polars_roundtrip_smoke",
	"pyarrow_dataset_scan_perf",
}

const (
	defaultInteropTimeoutMS = 120_000
	defaultInteropRetries   = 1
	defaultInteropScript    = "python/lakebench_interop/run_case.py"
)

// interopRuntime is the environment-driven configuration of the python
// sidecar runner.
type interopRuntime struct {
	timeout          time.Duration
	retries          uint32
	pythonExecutable string
	script           string
}

func interopRuntimeFromEnv() (*interopRuntime, error) {
	timeoutMS, err := parseEnvUint64("LAKEBENCH_INTEROP_TIMEOUT_MS", defaultInteropTimeoutMS)
	if err != nil {
		return nil, err
	}
	if timeoutMS == 0 {
		return nil, fmt.Errorf("LAKEBENCH_INTEROP_TIMEOUT_MS must be > 0")
	}
	retries, err := parseEnvUint64("LAKEBENCH_INTEROP_RETRIES", defaultInteropRetries)
	if err != nil {
		return nil, err
	}
	if retries > uint64(^uint32(0)) {
		return nil, fmt.Errorf("LAKEBENCH_INTEROP_RETRIES is too large: %d", retries)
	}

	python := strings.TrimSpace(os.Getenv("LAKEBENCH_INTEROP_PYTHON"))
	if python == "" {
		python = "python3"
	}
	script := strings.TrimSpace(os.Getenv("LAKEBENCH_INTEROP_SCRIPT"))
	if script == "" {
		script = defaultInteropScript
	}

	return &interopRuntime{
		timeout:          time.Duration(timeoutMS) * time.Millisecond,
		retries:          uint32(retries),
		pythonExecutable: python,
		script:           script,
	}, nil
}

func parseEnvUint64(name string, fallback uint64) (uint64, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s='%s': %w", name, raw, err)
	}
	return value, nil
}

// runInterop drives the python cases through the subprocess runner. Remote
// backends are reported as expected failures rather than executed.
func (s *Suite) runInterop(ctx context.Context) ([]results.CaseResult, error) {
	if !s.Storage.IsLocal() {
		out := make([]results.CaseResult, 0, len(interopCaseNames))
		for _, name := range interopCaseNames {
			out = append(out, results.CaseResult{
				Case:           name,
				Success:        true,
				Classification: results.ClassificationExpectedFailure,
				Samples:        []results.IterationSample{},
				Failure: &results.CaseFailure{
					Message: "interop_py currently supports local backend only",
				},
			})
		}
		return out, nil
	}

	runtime, err := interopRuntimeFromEnv()
	if err != nil {
		return nil, err
	}
	runner, err := harness.NewSubprocessRunner(runtime.pythonExecutable, runtime.timeout, runtime.retries, s.log)
	if err != nil {
		return nil, err
	}

	out := make([]results.CaseResult, 0, len(interopCaseNames))
	for _, name := range interopCaseNames {
		out = append(out, s.runInteropCase(ctx, runner, runtime, name))
	}
	return out, nil
}

func (s *Suite) runInteropCase(ctx context.Context, runner *harness.SubprocessRunner, runtime *interopRuntime, name string) results.CaseResult {
	args := []string{
		runtime.script,
		"--case", name,
		"--fixtures-dir", s.FixturesDir,
		"--scale", s.Scale,
	}

	for i := uint32(0); i < s.Warmup; i++ {
		_, _ = runner.Run(ctx, name, args)
	}

	samples := []results.IterationSample{}
	classification := results.ClassificationSupported
	for i := uint32(0); i < s.Iterations; i++ {
		started := time.Now()
		output, err := runner.Run(ctx, name, args)
		if err != nil {
			return results.CaseResult{
				Case:           name,
				Success:        false,
				Classification: classification,
				Samples:        samples,
				Failure:        &results.CaseFailure{Message: err.Error()},
			}
		}
		classification = output.Classification
		metrics := output.Metrics()
		samples = append(samples, results.IterationSample{
			ElapsedMS: float64(time.Since(started)) / float64(time.Millisecond),
			Rows:      metrics.RowsProcessed,
			Bytes:     metrics.BytesProcessed,
			Metrics:   &metrics,
		})
	}

	return results.CaseResult{
		Case:           name,
		Success:        true,
		Classification: classification,
		Samples:        samples,
	}
}
