package suites

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakebench/lakebench/internal/assertions"
	"github.com/lakebench/lakebench/internal/engine"
	"github.com/lakebench/lakebench/internal/fixtures"
	"github.com/lakebench/lakebench/internal/manifest"
	"github.com/lakebench/lakebench/internal/results"
	"github.com/lakebench/lakebench/internal/storage"
	"github.com/lakebench/lakebench/internal/testutil"
)

func newLocalSuite(t *testing.T, fixturesDir string, warmup, iterations uint32) *Suite {
	t.Helper()
	s, err := New(fixturesDir, "sf1", warmup, iterations, storage.Local(), testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newRemoteSuite(t *testing.T, warmup, iterations uint32) *Suite {
	t.Helper()
	store, err := storage.New(storage.BackendS3, map[string]string{
		storage.TableRootKey: "s3://bench-bucket/fixtures",
	})
	require.NoError(t, err)
	s, err := New(t.TempDir(), "sf1", warmup, iterations, store, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// generateFixtures builds the sf1 fixture tree once per test that needs it.
func generateFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	eng, err := engine.NewDuckDB(testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	gen := fixtures.NewGenerator(dir, storage.Local(), eng, testutil.NewTestLogger(t))
	require.NoError(t, gen.Generate(context.Background(), "sf1", 42, false))
	return dir
}

func TestTargetsIncludeAll(t *testing.T) {
	targets := Targets()
	assert.Equal(t, "read_scan", targets[0])
	assert.Equal(t, "all", targets[len(targets)-1])
}

func TestCaseNames(t *testing.T) {
	names, err := CaseNames("read_scan")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"read_full_scan_narrow",
		"read_projection_region",
		"read_filter_flag_true",
	}, names)

	all, err := CaseNames("all")
	require.NoError(t, err)
	assert.Contains(t, all, "merge_upsert_50pct")
	assert.Contains(t, all, "pyarrow_dataset_scan_perf")
	assert.Contains(t, all, "tpcds_q03")
	assert.Len(t, all, 20)

	_, err = CaseNames("bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown suite target: bogus")
}

func TestRunTargetRejectsAllAndUnknown(t *testing.T) {
	s := newRemoteSuite(t, 0, 1)

	_, err := s.RunTarget(context.Background(), "all")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target=all requires manifest planning")

	_, err = s.RunTarget(context.Background(), "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown suite target")
}

func TestInteropRemoteBackendShortCircuits(t *testing.T) {
	s := newRemoteSuite(t, 1, 3)

	out, err := s.RunTarget(context.Background(), "interop_py")
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, c := range out {
		assert.True(t, c.Success)
		assert.Equal(t, results.ClassificationExpectedFailure, c.Classification)
		assert.Empty(t, c.Samples)
		require.NotNil(t, c.Failure)
		assert.Contains(t, c.Failure.Message, "supports local backend only")
	}
}

func TestRunPlannedMissingCaseFails(t *testing.T) {
	s := newRemoteSuite(t, 0, 1)

	_, err := s.RunPlanned(context.Background(), []manifest.PlannedCase{
		{ID: "no_such_case", Target: "interop_py", Runner: "python"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(),
		"planned case 'no_such_case' for target 'interop_py' was not produced by suite execution")
}

func TestRunPlannedAppliesAssertions(t *testing.T) {
	// On a remote backend the native engine cannot open the table, so the
	// scan case fails with an unsupported-scheme error that the assertion
	// reclassifies.
	s := newRemoteSuite(t, 0, 1)

	out, err := s.RunPlanned(context.Background(), []manifest.PlannedCase{
		{
			ID:     "read_full_scan_narrow",
			Target: "read_scan",
			Runner: "native",
			Assertions: []assertions.Assertion{
				{Kind: assertions.KindExpectedErrorContains, Value: "not supported"},
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Success)
	assert.Equal(t, results.ClassificationExpectedFailure, out[0].Classification)
	require.NotNil(t, out[0].Failure)
}

func TestFixtureErrorCases(t *testing.T) {
	out := fixtureErrorCases([]string{"a", "b"}, "dataset missing")
	require.Len(t, out, 2)
	for _, c := range out {
		assert.False(t, c.Success)
		assert.Equal(t, results.ClassificationSupported, c.Classification)
		assert.Empty(t, c.Samples)
		assert.Equal(t, "dataset missing", c.Failure.Message)
	}
}

func TestWriteTargetWithoutDatasetReportsFixtureError(t *testing.T) {
	s := newLocalSuite(t, t.TempDir(), 0, 1)

	out, err := s.RunTarget(context.Background(), "write")
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, c := range out {
		assert.False(t, c.Success)
		require.NotNil(t, c.Failure)
	}
}

func TestOptimizeVacuumMissingFixtures(t *testing.T) {
	s := newLocalSuite(t, t.TempDir(), 0, 1)

	out, err := s.RunTarget(context.Background(), "optimize_vacuum")
	require.NoError(t, err)
	require.Len(t, out, 5)
	for _, c := range out {
		assert.False(t, c.Success)
		assert.Contains(t, c.Failure.Message, "missing optimize/vacuum fixture tables")
	}
}

func TestBuildMergeSource(t *testing.T) {
	rows := fixtures.GenerateRows(1, 100)

	source := buildMergeSource(rows, 0.10)
	// 10 updates plus one insert.
	require.Len(t, source, 11)
	assert.Equal(t, rows[0].ValueI64+7, source[0].ValueI64)
	assert.Equal(t, rows[0].ID+1_000_000_000, source[10].ID)

	full := buildMergeSource(rows, 1.0)
	assert.Len(t, full, 110)

	tiny := buildMergeSource(rows[:1], 0.01)
	assert.Len(t, tiny, 2)
}

func TestRunAppendCase(t *testing.T) {
	s := newLocalSuite(t, t.TempDir(), 0, 1)
	rows := fixtures.GenerateRows(2, 300)

	m, err := s.runAppendCase(context.Background(), rows, 128)
	require.NoError(t, err)
	require.NotNil(t, m.RowsProcessed)
	assert.Equal(t, uint64(300), *m.RowsProcessed)
	require.NotNil(t, m.Operations)
	assert.Equal(t, uint64(3), *m.Operations)
	require.NotNil(t, m.TableVersion)
	assert.Equal(t, uint64(2), *m.TableVersion)
}

func TestRunOverwriteCase(t *testing.T) {
	s := newLocalSuite(t, t.TempDir(), 0, 1)
	rows := fixtures.GenerateRows(2, 200)

	m, err := s.runOverwriteCase(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), *m.RowsProcessed)
	assert.Equal(t, uint64(2), *m.Operations)
	assert.Equal(t, uint64(1), *m.TableVersion)
}

func TestReadScanAgainstGeneratedFixtures(t *testing.T) {
	if testing.Short() {
		t.Skip("fixture generation is slow")
	}
	dir := generateFixtures(t)
	s := newLocalSuite(t, dir, 0, 2)

	out, err := s.RunTarget(context.Background(), "read_scan")
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, c := range out {
		assert.True(t, c.Success, "case %s failed: %+v", c.Case, c.Failure)
		assert.Len(t, c.Samples, 2)
	}

	full := out[0]
	require.NotNil(t, full.Samples[0].Rows)
	assert.Equal(t, uint64(10_000), *full.Samples[0].Rows)
}

func TestMetadataAgainstGeneratedFixtures(t *testing.T) {
	if testing.Short() {
		t.Skip("fixture generation is slow")
	}
	dir := generateFixtures(t)
	s := newLocalSuite(t, dir, 1, 2)

	out, err := s.RunTarget(context.Background(), "metadata")
	require.NoError(t, err)
	require.Len(t, out, 2)

	load := out[0]
	assert.Equal(t, "metadata_table_load", load.Case)
	assert.True(t, load.Success)

	travel := out[1]
	assert.Equal(t, "metadata_time_travel_v0", travel.Case)
	require.Len(t, travel.Samples, 2)
	require.NotNil(t, travel.Samples[0].Metrics.TableVersion)
	assert.Equal(t, uint64(0), *travel.Samples[0].Metrics.TableVersion)
}

func TestMergeCaseAgainstGeneratedFixtures(t *testing.T) {
	if testing.Short() {
		t.Skip("fixture generation is slow")
	}
	dir := generateFixtures(t)
	s := newLocalSuite(t, dir, 0, 1)

	rows, err := fixtures.LoadRows(dir, "sf1")
	require.NoError(t, err)

	tablePath, err := fixtures.TablePath(dir, "sf1", fixtures.MergeTargetTable)
	require.NoError(t, err)
	prepared, err := prepareIterationTable(tablePath)
	require.NoError(t, err)
	defer prepared.cleanup()

	m, err := s.runMergeCase(context.Background(), prepared.url, rows, 0.10)
	require.NoError(t, err)
	require.NotNil(t, m.TableVersion)
	assert.Equal(t, uint64(1), *m.TableVersion)
	require.NotNil(t, m.RewriteTimeMS)
}

func TestCopyDirAllRejectsSymlinks(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "file.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(src, "file.txt"), filepath.Join(src, "link.txt")))

	err := copyDirAll(src, filepath.Join(t.TempDir(), "dst"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symlinks are not allowed in fixture tree")
}

func TestInteropRuntimeFromEnv(t *testing.T) {
	t.Setenv("LAKEBENCH_INTEROP_TIMEOUT_MS", "5000")
	t.Setenv("LAKEBENCH_INTEROP_RETRIES", "2")
	t.Setenv("LAKEBENCH_INTEROP_PYTHON", "python3.12")

	runtime, err := interopRuntimeFromEnv()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), runtime.retries)
	assert.Equal(t, "python3.12", runtime.pythonExecutable)
	assert.Equal(t, int64(5000), runtime.timeout.Milliseconds())

	t.Setenv("LAKEBENCH_INTEROP_TIMEOUT_MS", "0")
	_, err = interopRuntimeFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be > 0")

	t.Setenv("LAKEBENCH_INTEROP_TIMEOUT_MS", "not-a-number")
	_, err = interopRuntimeFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid value for LAKEBENCH_INTEROP_TIMEOUT_MS")
}
