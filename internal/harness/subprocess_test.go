package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakebench/lakebench/internal/results"
	"github.com/lakebench/lakebench/internal/testutil"
)

// writeScript drops an executable shell script into a temp dir so the
// subprocess runner can be exercised without a real external runtime.
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestSubprocessRunnerParsesOutput(t *testing.T) {
	script := writeScript(t, "ok.sh",
		`echo '{"rows_processed":42,"operations":1,"classification":"supported"}'`)

	r, err := NewSubprocessRunner(script, time.Second, 0, testutil.NewTestLogger(t))
	require.NoError(t, err)

	out, err := r.Run(context.Background(), "ok_case", nil)
	require.NoError(t, err)
	assert.Equal(t, results.ClassificationSupported, out.Classification)
	require.NotNil(t, out.RowsProcessed)
	assert.Equal(t, uint64(42), *out.RowsProcessed)
	assert.Nil(t, out.BytesProcessed)

	metrics := out.Metrics()
	require.NotNil(t, metrics.RowsProcessed)
	assert.Equal(t, uint64(42), *metrics.RowsProcessed)
}

func TestSubprocessRunnerEnforcesTimeout(t *testing.T) {
	script := writeScript(t, "slow.sh",
		`sleep 5
echo '{"classification":"supported"}'`)

	r, err := NewSubprocessRunner(script, 50*time.Millisecond, 0, testutil.NewTestLogger(t))
	require.NoError(t, err)

	_, err = r.Run(context.Background(), "slow_case", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Contains(t, err.Error(), "slow_case")
}

func TestSubprocessRunnerRetriesTransientFailure(t *testing.T) {
	state := filepath.Join(t.TempDir(), "attempted")
	script := writeScript(t, "retry.sh",
		`if [ ! -f "`+state+`" ]; then
  touch "`+state+`"
  echo "first attempt fails" >&2
  exit 1
fi
echo '{"rows_processed":1,"classification":"supported"}'`)

	r, err := NewSubprocessRunner(script, time.Second, 1, testutil.NewTestLogger(t))
	require.NoError(t, err)

	out, err := r.Run(context.Background(), "retry_case", nil)
	require.NoError(t, err, "one retry should recover")
	assert.Equal(t, results.ClassificationSupported, out.Classification)
}

func TestSubprocessRunnerTimedOutAttemptsExhaustRetryBudget(t *testing.T) {
	script := writeScript(t, "hang.sh",
		`sleep 5
echo '{"classification":"supported"}'`)

	r, err := NewSubprocessRunner(script, 50*time.Millisecond, 1, testutil.NewTestLogger(t))
	require.NoError(t, err)

	// A timed-out attempt is retried like any other non-success state and
	// becomes terminal once the budget is spent.
	_, err = r.Run(context.Background(), "hang_case", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempt(s)")
	assert.Contains(t, err.Error(), "timed out")
}

func TestAttemptStateNames(t *testing.T) {
	assert.Equal(t, "success", attemptSuccess.String())
	assert.Equal(t, "timed_out", attemptTimedOut.String())
	assert.Equal(t, "failed", attemptFailed.String())
}

func TestSubprocessRunnerTerminalErrorNamesAttemptCount(t *testing.T) {
	script := writeScript(t, "always_fail.sh",
		`echo "broken pipe" >&2
exit 3`)

	r, err := NewSubprocessRunner(script, time.Second, 1, testutil.NewTestLogger(t))
	require.NoError(t, err)

	_, err = r.Run(context.Background(), "doomed_case", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempt(s)")
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestSubprocessRunnerRejectsInvalidClassification(t *testing.T) {
	script := writeScript(t, "bad.sh",
		`echo '{"rows_processed":1,"classification":"experimental"}'`)

	r, err := NewSubprocessRunner(script, time.Second, 0, testutil.NewTestLogger(t))
	require.NoError(t, err)

	_, err = r.Run(context.Background(), "bad_classification", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classification")
}

func TestSubprocessRunnerRejectsMissingClassification(t *testing.T) {
	script := writeScript(t, "missing.sh",
		`echo '{"rows_processed":1}'`)

	r, err := NewSubprocessRunner(script, time.Second, 0, nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), "missing_classification", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classification")
}

func TestNewSubprocessRunnerValidatesConfig(t *testing.T) {
	_, err := NewSubprocessRunner("", time.Second, 0, nil)
	require.Error(t, err)

	_, err = NewSubprocessRunner("python3", 0, 0, nil)
	require.Error(t, err)
}
