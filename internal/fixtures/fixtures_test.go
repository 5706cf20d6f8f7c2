package fixtures

import (
	"bufio"
	"context"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakebench/lakebench/internal/storage"
	"github.com/lakebench/lakebench/internal/testutil"
)

func TestGenerateRowsDeterministic(t *testing.T) {
	first := GenerateRows(42, 500)
	second := GenerateRows(42, 500)
	assert.Equal(t, first, second)

	other := GenerateRows(43, 500)
	assert.NotEqual(t, first, other)
}

func TestGenerateRowsShape(t *testing.T) {
	rows := GenerateRows(7, 2000)
	require.Len(t, rows, 2000)

	validRegions := map[string]bool{
		"us": true, "eu": true, "apac": true, "latam": true, "mea": true, "ca": true,
	}
	flagged := 0
	for i, row := range rows {
		assert.Equal(t, int64(i), row.ID)
		assert.Equal(t, startTSMS+int64(i)*60_000, row.TSMS)
		assert.True(t, validRegions[row.Region], "unexpected region %q", row.Region)
		assert.GreaterOrEqual(t, row.ValueI64, int64(-5_000))
		assert.Less(t, row.ValueI64, int64(50_000+5*7))
		if row.Flag {
			flagged++
		}
	}
	// 35% flag rate with generous slack.
	assert.Greater(t, flagged, 500)
	assert.Less(t, flagged, 900)
}

func TestScaleRowCount(t *testing.T) {
	for scale, want := range map[string]int{"sf1": 10_000, "sf10": 100_000, "sf100": 1_000_000} {
		got, err := ScaleRowCount(scale)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ScaleRowCount("sf1000")
	require.Error(t, err)
}

func TestValidateScale(t *testing.T) {
	require.NoError(t, ValidateScale("sf1"))

	for _, bad := range []string{"", ".", "..", "sf1/../etc", "sf 1", "sf1000"} {
		assert.Error(t, ValidateScale(bad), "scale %q should be rejected", bad)
	}
}

// fakeWriter records table builds instead of touching an engine.
type fakeWriter struct {
	mu     sync.Mutex
	writes map[string]int
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{writes: map[string]int{}}
}

func (w *fakeWriter) record(u *url.URL, rows int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes[filepath.Base(filepath.Clean(u.Path))] += rows
}

func (w *fakeWriter) WriteTable(_ context.Context, u *url.URL, rows []Row) error {
	w.record(u, len(rows))
	return nil
}

func (w *fakeWriter) WriteTableSmallFiles(_ context.Context, u *url.URL, rows []Row, _ int) error {
	w.record(u, len(rows))
	return nil
}

func (w *fakeWriter) WriteTablePartitioned(_ context.Context, u *url.URL, rows []Row, _ int, _ []string) error {
	w.record(u, len(rows))
	return nil
}

func (w *fakeWriter) WriteVacuumReadyTable(_ context.Context, u *url.URL, rows []Row) error {
	w.record(u, len(rows))
	return nil
}

func (w *fakeWriter) totalWrites() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, c := range w.writes {
		n += c
	}
	return n
}

func TestGenerateBuildsAllTablesAndManifest(t *testing.T) {
	dir := t.TempDir()
	writer := newFakeWriter()
	g := NewGenerator(dir, storage.Local(), writer, testutil.NewTestLogger(t))

	require.NoError(t, g.Generate(context.Background(), "sf1", 42, false))

	assert.Equal(t, 10_000, writer.writes[NarrowSalesTable])
	assert.Equal(t, 10_000, writer.writes[ReadPartitionedTable])
	assert.Equal(t, 2_500, writer.writes[MergeTargetTable])
	assert.Equal(t, 2_500, writer.writes[MergePartitionedTable])
	assert.Equal(t, 5_000, writer.writes[OptimizeSmallFilesTable])
	assert.Equal(t, 5_000, writer.writes[OptimizeCompactedTable])
	assert.Equal(t, 3_333, writer.writes[VacuumReadyTable])

	m, err := LoadManifest(dir, "sf1")
	require.NoError(t, err)
	assert.Equal(t, ManifestSchemaVersion, m.SchemaVersion)
	assert.Equal(t, uint64(42), m.Seed)
	assert.Equal(t, "sf1", m.Scale)
	assert.Equal(t, 10_000, m.Rows)

	// rows.jsonl has one record per row.
	f, err := os.Open(filepath.Join(dir, "sf1", "narrow_sales_data", "rows.jsonl"))
	require.NoError(t, err)
	defer f.Close()
	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 10_000, lines)
}

func TestGenerateIdempotentWhenManifestMatches(t *testing.T) {
	dir := t.TempDir()
	writer := newFakeWriter()
	g := NewGenerator(dir, storage.Local(), writer, testutil.NewTestLogger(t))

	require.NoError(t, g.Generate(context.Background(), "sf1", 42, false))
	before := writer.totalWrites()

	require.NoError(t, g.Generate(context.Background(), "sf1", 42, false))
	assert.Equal(t, before, writer.totalWrites(), "matching manifest must skip regeneration")
}

func TestGenerateRebuildsOnSeedChangeOrForce(t *testing.T) {
	dir := t.TempDir()
	writer := newFakeWriter()
	g := NewGenerator(dir, storage.Local(), writer, testutil.NewTestLogger(t))

	require.NoError(t, g.Generate(context.Background(), "sf1", 42, false))
	before := writer.totalWrites()

	require.NoError(t, g.Generate(context.Background(), "sf1", 43, false))
	afterSeedChange := writer.totalWrites()
	assert.Greater(t, afterSeedChange, before)

	require.NoError(t, g.Generate(context.Background(), "sf1", 43, true))
	assert.Greater(t, writer.totalWrites(), afterSeedChange)
}

func TestGenerateRejectsUnknownScale(t *testing.T) {
	g := NewGenerator(t.TempDir(), storage.Local(), newFakeWriter(), nil)
	require.Error(t, g.Generate(context.Background(), "sf9", 42, false))
}
