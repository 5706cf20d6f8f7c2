package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/lakebench/lakebench/internal/results"
)

// SubprocessOutput is the JSON document an external runner prints on stdout
// for one case invocation. Every counter is optional; the classification is
// mandatory and validated against the closed enum.
type SubprocessOutput struct {
	RowsProcessed  *uint64                `json:"rows_processed,omitempty"`
	BytesProcessed *uint64                `json:"bytes_processed,omitempty"`
	Operations     *uint64                `json:"operations,omitempty"`
	TableVersion   *uint64                `json:"table_version,omitempty"`
	PeakRSSMB      *uint64                `json:"peak_rss_mb,omitempty"`
	CPUTimeMS      *uint64                `json:"cpu_time_ms,omitempty"`
	BytesRead      *uint64                `json:"bytes_read,omitempty"`
	BytesWritten   *uint64                `json:"bytes_written,omitempty"`
	FilesTouched   *uint64                `json:"files_touched,omitempty"`
	FilesSkipped   *uint64                `json:"files_skipped,omitempty"`
	SpillBytes     *uint64                `json:"spill_bytes,omitempty"`
	ResultHash     *string                `json:"result_hash,omitempty"`
	Classification results.Classification `json:"classification"`
}

// Metrics converts the output into sample metrics.
func (o *SubprocessOutput) Metrics() results.SampleMetrics {
	return results.SampleMetrics{
		RowsProcessed:  o.RowsProcessed,
		BytesProcessed: o.BytesProcessed,
		Operations:     o.Operations,
		TableVersion:   o.TableVersion,
		PeakRSSMB:      o.PeakRSSMB,
		CPUTimeMS:      o.CPUTimeMS,
		BytesRead:      o.BytesRead,
		BytesWritten:   o.BytesWritten,
		FilesTouched:   o.FilesTouched,
		FilesSkipped:   o.FilesSkipped,
		SpillBytes:     o.SpillBytes,
		ResultHash:     o.ResultHash,
	}
}

// SubprocessRunner invokes an external executable once per case attempt,
// retrying transient failures. Each attempt gets a fresh timeout; a timed
// out process is killed.
type SubprocessRunner struct {
	Executable string
	Timeout    time.Duration
	Retries    uint32

	log *slog.Logger
}

// NewSubprocessRunner returns a runner for the given executable. A nil
// logger discards output.
func NewSubprocessRunner(executable string, timeout time.Duration, retries uint32, log *slog.Logger) (*SubprocessRunner, error) {
	if executable == "" {
		return nil, errors.New("subprocess executable must not be empty")
	}
	if timeout <= 0 {
		return nil, errors.New("subprocess timeout must be > 0")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &SubprocessRunner{Executable: executable, Timeout: timeout, Retries: retries, log: log}, nil
}

// attemptState classifies the outcome of one subprocess attempt.
type attemptState int

const (
	attemptSuccess attemptState = iota
	attemptTimedOut
	attemptFailed
)

func (s attemptState) String() string {
	switch s {
	case attemptSuccess:
		return "success"
	case attemptTimedOut:
		return "timed_out"
	default:
		return "failed"
	}
}

// Run drives the per-case attempt state machine: each attempt ends in
// success, timed_out, or failed; a non-success attempt retries while the
// budget of Retries+1 attempts lasts and is terminal after that. The
// terminal error names the case and the attempt count.
func (r *SubprocessRunner) Run(ctx context.Context, caseName string, args []string) (*SubprocessOutput, error) {
	maxAttempts := r.Retries + 1
	for attempt := uint32(1); ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, state, err := r.attempt(ctx, caseName, args)
		if state == attemptSuccess {
			return out, nil
		}
		if attempt == maxAttempts {
			return nil, fmt.Errorf("subprocess case %q failed after %d attempt(s): %w", caseName, maxAttempts, err)
		}
		r.log.Debug("subprocess attempt failed, retrying",
			"case", caseName, "attempt", attempt, "state", state.String(), "error", err)
	}
}

// attempt runs the executable once under a fresh timeout and classifies
// the outcome.
func (r *SubprocessRunner) attempt(ctx context.Context, caseName string, args []string) (*SubprocessOutput, attemptState, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(attemptCtx, r.Executable, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if attemptCtx.Err() == context.DeadlineExceeded {
		return nil, attemptTimedOut, fmt.Errorf("subprocess case %q timed out after %d ms", caseName, r.Timeout.Milliseconds())
	}
	if err != nil {
		return nil, attemptFailed, fmt.Errorf("subprocess case %q failed: %s", caseName, strings.TrimSpace(stderr.String()))
	}

	var out SubprocessOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, attemptFailed, fmt.Errorf("failed to parse subprocess output for case %q: %w", caseName, err)
	}
	if err := results.ValidateClassification(string(out.Classification)); err != nil {
		return nil, attemptFailed, fmt.Errorf("failed to parse subprocess output for case %q: %w", caseName, err)
	}
	return &out, attemptSuccess, nil
}
