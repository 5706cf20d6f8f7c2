package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lakebench/lakebench/internal/fixtures"
)

// Append commits rows as a new data file on top of the current version.
func (e *DuckDB) Append(ctx context.Context, t *Table, rows []fixtures.Row) (OpMetrics, error) {
	file, err := e.writeParquet(ctx, t.Log.Dir(), "", rows)
	if err != nil {
		return OpMetrics{}, err
	}
	version, err := t.Log.Commit("append", []AddFile{file}, nil)
	if err != nil {
		return OpMetrics{}, err
	}
	return OpMetrics{
		Rows:         uint64Ptr(uint64(len(rows))),
		Operations:   uint64Ptr(1),
		TableVersion: uint64Ptr(version),
		BytesWritten: uint64Ptr(file.SizeBytes),
		FilesTouched: uint64Ptr(1),
	}, nil
}

// Overwrite replaces the table contents with rows in a single commit.
func (e *DuckDB) Overwrite(ctx context.Context, t *Table, rows []fixtures.Row) (OpMetrics, error) {
	current, err := t.Log.Files()
	if err != nil {
		return OpMetrics{}, err
	}
	file, err := e.writeParquet(ctx, t.Log.Dir(), "", rows)
	if err != nil {
		return OpMetrics{}, err
	}
	removed := make([]string, len(current))
	for i, f := range current {
		removed[i] = f.Path
	}
	version, err := t.Log.Commit("overwrite", []AddFile{file}, removed)
	if err != nil {
		return OpMetrics{}, err
	}
	return OpMetrics{
		Rows:         uint64Ptr(uint64(len(rows))),
		Operations:   uint64Ptr(1),
		TableVersion: uint64Ptr(version),
		BytesWritten: uint64Ptr(file.SizeBytes),
		FilesTouched: uint64Ptr(uint64(len(removed) + 1)),
	}, nil
}

// MergeUpsert merges source rows into the table by id: matching rows are
// replaced, new ids are inserted. The merged state is rewritten as a single
// file.
func (e *DuckDB) MergeUpsert(ctx context.Context, t *Table, source []fixtures.Row) (OpMetrics, error) {
	current, err := t.Log.Files()
	if err != nil {
		return OpMetrics{}, err
	}

	src := "merge_src_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err := e.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TEMPORARY TABLE %s (id BIGINT, ts_ms BIGINT, region VARCHAR, value_i64 BIGINT, flag BOOLEAN)`, src)); err != nil {
		return OpMetrics{}, err
	}
	defer e.db.ExecContext(context.WithoutCancel(ctx), fmt.Sprintf(`DROP TABLE IF EXISTS %s`, src))

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return OpMetrics{}, err
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s VALUES (?, ?, ?, ?, ?)`, src))
	if err != nil {
		tx.Rollback()
		return OpMetrics{}, err
	}
	for _, row := range source {
		if _, err := stmt.ExecContext(ctx, row.ID, row.TSMS, row.Region, row.ValueI64, row.Flag); err != nil {
			stmt.Close()
			tx.Rollback()
			return OpMetrics{}, err
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return OpMetrics{}, err
	}

	mergeQuery := fmt.Sprintf(`
		SELECT
			coalesce(s.id, t.id)               AS id,
			coalesce(s.ts_ms, t.ts_ms)         AS ts_ms,
			coalesce(s.region, t.region)       AS region,
			coalesce(s.value_i64, t.value_i64) AS value_i64,
			coalesce(s.flag, t.flag)           AS flag
		FROM %s AS t
		FULL OUTER JOIN %s AS s ON t.id = s.id
		ORDER BY id`, parquetSource(t.Log.Dir(), current), src)

	start := time.Now()
	file, err := e.copyQueryToParquet(ctx, t.Log.Dir(), mergeQuery)
	if err != nil {
		return OpMetrics{}, fmt.Errorf("merge rewrite failed: %w", err)
	}
	rewriteMS := uint64(time.Since(start).Milliseconds())

	removed := make([]string, len(current))
	for i, f := range current {
		removed[i] = f.Path
	}
	version, err := t.Log.Commit("merge", []AddFile{file}, removed)
	if err != nil {
		return OpMetrics{}, err
	}
	return OpMetrics{
		Rows:          uint64Ptr(uint64(len(source))),
		Operations:    uint64Ptr(uint64(len(source))),
		TableVersion:  uint64Ptr(version),
		RewriteTimeMS: uint64Ptr(rewriteMS),
		BytesWritten:  uint64Ptr(file.SizeBytes),
		FilesTouched:  uint64Ptr(uint64(len(removed) + 1)),
	}, nil
}

// Compact rewrites a multi-file table into a single file. A table that is
// already compact is a no-op that still reports what it skipped.
func (e *DuckDB) Compact(ctx context.Context, t *Table) (OpMetrics, error) {
	current, err := t.Log.Files()
	if err != nil {
		return OpMetrics{}, err
	}
	if len(current) <= 1 {
		return OpMetrics{
			Operations:   uint64Ptr(0),
			TableVersion: uint64Ptr(t.Version()),
			FilesTouched: uint64Ptr(0),
			FilesSkipped: uint64Ptr(uint64(len(current))),
		}, nil
	}

	query := fmt.Sprintf(`SELECT * FROM %s ORDER BY id`, parquetSource(t.Log.Dir(), current))
	start := time.Now()
	file, err := e.copyQueryToParquet(ctx, t.Log.Dir(), query)
	if err != nil {
		return OpMetrics{}, fmt.Errorf("compaction rewrite failed: %w", err)
	}
	rewriteMS := uint64(time.Since(start).Milliseconds())

	removed := make([]string, len(current))
	for i, f := range current {
		removed[i] = f.Path
	}
	version, err := t.Log.Commit("optimize", []AddFile{file}, removed)
	if err != nil {
		return OpMetrics{}, err
	}
	return OpMetrics{
		Rows:          uint64Ptr(file.Rows),
		Operations:    uint64Ptr(1),
		TableVersion:  uint64Ptr(version),
		RewriteTimeMS: uint64Ptr(rewriteMS),
		BytesWritten:  uint64Ptr(file.SizeBytes),
		FilesTouched:  uint64Ptr(uint64(len(removed))),
	}, nil
}

// Vacuum removes files no version still references. In dry-run mode it
// only counts them.
func (e *DuckDB) Vacuum(ctx context.Context, t *Table, dryRun bool) (OpMetrics, error) {
	dead, err := t.Log.DeadFiles()
	if err != nil {
		return OpMetrics{}, err
	}
	metrics := OpMetrics{
		Operations:   uint64Ptr(uint64(len(dead))),
		TableVersion: uint64Ptr(t.Version()),
	}
	if dryRun {
		metrics.FilesSkipped = uint64Ptr(uint64(len(dead)))
		return metrics, nil
	}

	var reclaimed uint64
	for _, path := range dead {
		full := filepath.Join(t.Log.Dir(), filepath.FromSlash(path))
		if info, err := os.Stat(full); err == nil {
			reclaimed += uint64(info.Size())
		}
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return OpMetrics{}, fmt.Errorf("vacuum failed to remove %s: %w", path, err)
		}
	}
	metrics.FilesTouched = uint64Ptr(uint64(len(dead)))
	metrics.Bytes = uint64Ptr(reclaimed)
	return metrics, nil
}

// copyQueryToParquet materializes a query as a new parquet file in dir and
// returns its log record with recomputed statistics.
func (e *DuckDB) copyQueryToParquet(ctx context.Context, dir, query string) (AddFile, error) {
	fileName := "part-" + uuid.NewString() + ".parquet"
	absPath := filepath.Join(dir, fileName)

	if _, err := e.db.ExecContext(ctx, fmt.Sprintf(
		`COPY (%s) TO '%s' (FORMAT PARQUET)`, query, escapeSQL(absPath))); err != nil {
		return AddFile{}, err
	}

	row := e.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT count(*), coalesce(min(id), 0), coalesce(max(id), 0),
		        coalesce(min(ts_ms), 0), coalesce(max(ts_ms), 0)
		 FROM read_parquet('%s')`, escapeSQL(absPath)))
	var (
		rows  uint64
		stats FileStats
	)
	if err := row.Scan(&rows, &stats.MinID, &stats.MaxID, &stats.MinTSMS, &stats.MaxTSMS); err != nil {
		return AddFile{}, err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return AddFile{}, err
	}
	return AddFile{
		Path:      fileName,
		SizeBytes: uint64(info.Size()),
		Rows:      rows,
		Stats:     &stats,
	}, nil
}
