// Package harness drives the warmup and measured iterations of benchmark
// cases and turns operation outcomes into case results.
package harness

import (
	"context"
	"log/slog"
	"time"

	"github.com/lakebench/lakebench/internal/results"
)

// Op is one timed invocation of a benchmark case. The returned metrics are
// attached to the iteration sample.
type Op func(ctx context.Context) (results.SampleMetrics, error)

// Setup prepares state for one invocation. Its duration is never measured.
type Setup func(ctx context.Context) error

// Outcome is a completed case. Failed mirrors the result's Success field so
// callers can branch without inspecting the payload.
type Outcome struct {
	Result results.CaseResult
	Failed bool
}

// Runner executes cases. The zero value is not usable; construct with New.
type Runner struct {
	log *slog.Logger
}

// New returns a runner. A nil logger discards output.
func New(log *slog.Logger) *Runner {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Runner{log: log}
}

// RunCase performs warmup unmeasured invocations of op followed by up to
// iterations measured ones. Warmup errors are discarded. The first measured
// error stops the case: the outcome keeps the samples collected so far and
// carries the error message as the case failure.
func (r *Runner) RunCase(ctx context.Context, name string, warmup, iterations uint32, op Op) Outcome {
	for i := uint32(0); i < warmup; i++ {
		_, _ = op(ctx)
	}

	samples := make([]results.IterationSample, 0, iterations)
	for i := uint32(0); i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return r.failed(name, samples, err)
		}

		start := time.Now()
		metrics, err := op(ctx)
		if err != nil {
			r.log.Debug("case iteration failed", "case", name, "iteration", i, "error", err)
			return r.failed(name, samples, err)
		}
		samples = append(samples, sampleFrom(time.Since(start), metrics))
	}

	return Outcome{Result: results.CaseResult{
		Case:           name,
		Success:        true,
		Classification: results.ClassificationSupported,
		Samples:        samples,
	}}
}

// RunCaseWithSetup is RunCase with a per-invocation setup step that is
// excluded from the measured time. During warmup a setup error skips the
// invocation; during measurement it fails the case.
func (r *Runner) RunCaseWithSetup(ctx context.Context, name string, warmup, iterations uint32, setup Setup, op Op) Outcome {
	for i := uint32(0); i < warmup; i++ {
		if err := setup(ctx); err != nil {
			continue
		}
		_, _ = op(ctx)
	}

	samples := make([]results.IterationSample, 0, iterations)
	for i := uint32(0); i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return r.failed(name, samples, err)
		}
		if err := setup(ctx); err != nil {
			r.log.Debug("case setup failed", "case", name, "iteration", i, "error", err)
			return r.failed(name, samples, err)
		}

		start := time.Now()
		metrics, err := op(ctx)
		if err != nil {
			r.log.Debug("case iteration failed", "case", name, "iteration", i, "error", err)
			return r.failed(name, samples, err)
		}
		samples = append(samples, sampleFrom(time.Since(start), metrics))
	}

	return Outcome{Result: results.CaseResult{
		Case:           name,
		Success:        true,
		Classification: results.ClassificationSupported,
		Samples:        samples,
	}}
}

func (r *Runner) failed(name string, samples []results.IterationSample, err error) Outcome {
	return Outcome{
		Result: results.CaseResult{
			Case:           name,
			Success:        false,
			Classification: results.ClassificationSupported,
			Samples:        samples,
			Failure:        &results.CaseFailure{Message: err.Error()},
		},
		Failed: true,
	}
}

func sampleFrom(elapsed time.Duration, metrics results.SampleMetrics) results.IterationSample {
	return results.IterationSample{
		ElapsedMS: float64(elapsed) / float64(time.Millisecond),
		Rows:      metrics.RowsProcessed,
		Bytes:     metrics.BytesProcessed,
		Metrics:   &metrics,
	}
}
