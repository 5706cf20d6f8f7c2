package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakebench/lakebench/internal/fixtures"
)

func TestQueryJoinsRegisteredTables(t *testing.T) {
	e := newTestEngine(t)
	salesDir := filepath.Join(t.TempDir(), "sales")
	eventsDir := filepath.Join(t.TempDir(), "events")
	require.NoError(t, e.WriteTable(context.Background(), tableURL(t, salesDir), fixtures.GenerateRows(42, 200)))
	require.NoError(t, e.WriteTable(context.Background(), tableURL(t, eventsDir), fixtures.GenerateRows(42, 200)))

	sales, err := e.OpenTable(tableURL(t, salesDir))
	require.NoError(t, err)
	events, err := e.OpenTable(tableURL(t, eventsDir))
	require.NoError(t, err)

	m, err := e.Query(context.Background(),
		map[string]*Table{"sales": sales, "events": events},
		`SELECT s.region, count(*)
		 FROM sales s JOIN events e ON s.id = e.id
		 GROUP BY s.region ORDER BY s.region`)
	require.NoError(t, err)

	require.NotNil(t, m.Rows)
	assert.Positive(t, *m.Rows, "rows counts the result set")
	assert.Less(t, *m.Rows, uint64(200))
	require.NotNil(t, m.Scan.FilesScanned)
	assert.Equal(t, uint64(2), *m.Scan.FilesScanned)
	require.NotNil(t, m.ResultHash)
	assert.NotEmpty(t, *m.ResultHash)
	require.NotNil(t, m.Operations)
	assert.Equal(t, uint64(1), *m.Operations)
}

func TestQueryResultHashDeterministic(t *testing.T) {
	e := newTestEngine(t)
	dir := filepath.Join(t.TempDir(), "sales")
	require.NoError(t, e.WriteTable(context.Background(), tableURL(t, dir), fixtures.GenerateRows(7, 300)))

	table, err := e.OpenTable(tableURL(t, dir))
	require.NoError(t, err)
	tables := map[string]*Table{"sales": table}
	query := `SELECT region, sum(value_i64) FROM sales GROUP BY region ORDER BY region`

	first, err := e.Query(context.Background(), tables, query)
	require.NoError(t, err)
	second, err := e.Query(context.Background(), tables, query)
	require.NoError(t, err)
	assert.Equal(t, *first.ResultHash, *second.ResultHash)
}

func TestQueryViewsDoNotOutliveConnection(t *testing.T) {
	e := newTestEngine(t)
	dir := filepath.Join(t.TempDir(), "sales")
	require.NoError(t, e.WriteTable(context.Background(), tableURL(t, dir), fixtures.GenerateRows(1, 50)))

	table, err := e.OpenTable(tableURL(t, dir))
	require.NoError(t, err)
	_, err = e.Query(context.Background(), map[string]*Table{"sales": table}, `SELECT count(*) FROM sales`)
	require.NoError(t, err)

	// The temporary view was dropped when the first call finished.
	_, err = e.Query(context.Background(), map[string]*Table{}, `SELECT count(*) FROM sales`)
	require.Error(t, err)
}

func TestQueryRejectsEmptyTable(t *testing.T) {
	e := newTestEngine(t)
	dir := filepath.Join(t.TempDir(), "empty")
	log, err := InitTableLog(dir)
	require.NoError(t, err)
	_, err = log.Commit("overwrite", nil, nil)
	require.NoError(t, err)

	table, err := e.OpenTable(tableURL(t, dir))
	require.NoError(t, err)
	_, err = e.Query(context.Background(), map[string]*Table{"empty": table}, `SELECT 1`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no data files")
}
