package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/lakebench/lakebench/internal/fixtures"
)

// DuckDB is the native query engine. One in-memory DuckDB instance serves
// all operations; table state lives in the parquet files and the commit
// log, never in the DuckDB catalog.
type DuckDB struct {
	db  *sql.DB
	log *slog.Logger
}

// NewDuckDB opens an in-memory engine. A nil logger discards output.
func NewDuckDB(log *slog.Logger) (*DuckDB, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	return &DuckDB{db: db, log: log}, nil
}

// Close releases the DuckDB instance.
func (e *DuckDB) Close() error {
	return e.db.Close()
}

// Table is an open handle to a versioned table.
type Table struct {
	Log *TableLog
}

// Version returns the current committed version.
func (t *Table) Version() uint64 { return t.Log.Version() }

// OpenTable opens the table behind a URL. The native engine only reaches
// local tables; any other scheme is reported as unsupported so manifest
// assertions can classify such cases.
func (e *DuckDB) OpenTable(u *url.URL) (*Table, error) {
	dir, err := localDir(u)
	if err != nil {
		return nil, err
	}
	log, err := OpenTableLog(dir)
	if err != nil {
		return nil, err
	}
	return &Table{Log: log}, nil
}

func localDir(u *url.URL) (string, error) {
	if u.Scheme != "file" {
		return "", fmt.Errorf("table url scheme '%s' is not supported by the native engine", u.Scheme)
	}
	return strings.TrimRight(u.Path, "/"), nil
}

// --- fixture writing -------------------------------------------------------

// WriteTable materializes rows as a single-file table at version 0.
func (e *DuckDB) WriteTable(ctx context.Context, u *url.URL, rows []fixtures.Row) error {
	dir, err := localDir(u)
	if err != nil {
		return err
	}
	log, err := InitTableLog(dir)
	if err != nil {
		return err
	}
	file, err := e.writeParquet(ctx, dir, "", rows)
	if err != nil {
		return err
	}
	_, err = log.Commit("overwrite", []AddFile{file}, nil)
	return err
}

// WriteTableSmallFiles writes rows in chunks, one commit per chunk, leaving
// a table with many small files.
func (e *DuckDB) WriteTableSmallFiles(ctx context.Context, u *url.URL, rows []fixtures.Row, chunkSize int) error {
	dir, err := localDir(u)
	if err != nil {
		return err
	}
	log, err := InitTableLog(dir)
	if err != nil {
		return err
	}
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		file, err := e.writeParquet(ctx, dir, "", rows[start:end])
		if err != nil {
			return err
		}
		op := "append"
		if start == 0 {
			op = "overwrite"
		}
		if _, err := log.Commit(op, []AddFile{file}, nil); err != nil {
			return err
		}
	}
	return nil
}

// WriteTablePartitioned writes rows chunked within hive-style partition
// directories, one commit per chunk.
func (e *DuckDB) WriteTablePartitioned(ctx context.Context, u *url.URL, rows []fixtures.Row, chunkSize int, partitionColumns []string) error {
	if len(partitionColumns) != 1 || partitionColumns[0] != "region" {
		return fmt.Errorf("unsupported partition columns %v; only [region] is available", partitionColumns)
	}
	dir, err := localDir(u)
	if err != nil {
		return err
	}
	log, err := InitTableLog(dir)
	if err != nil {
		return err
	}

	byRegion := make(map[string][]fixtures.Row)
	var regionOrder []string
	for _, row := range rows {
		if _, seen := byRegion[row.Region]; !seen {
			regionOrder = append(regionOrder, row.Region)
		}
		byRegion[row.Region] = append(byRegion[row.Region], row)
	}

	first := true
	for _, region := range regionOrder {
		partition := byRegion[region]
		for start := 0; start < len(partition); start += chunkSize {
			end := start + chunkSize
			if end > len(partition) {
				end = len(partition)
			}
			file, err := e.writeParquet(ctx, dir, "region="+region, partition[start:end])
			if err != nil {
				return err
			}
			op := "append"
			if first {
				op = "overwrite"
				first = false
			}
			if _, err := log.Commit(op, []AddFile{file}, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteVacuumReadyTable writes rows and then overwrites them with the same
// content, leaving the first generation of files dead in the log.
func (e *DuckDB) WriteVacuumReadyTable(ctx context.Context, u *url.URL, rows []fixtures.Row) error {
	dir, err := localDir(u)
	if err != nil {
		return err
	}
	log, err := InitTableLog(dir)
	if err != nil {
		return err
	}
	old, err := e.writeParquet(ctx, dir, "", rows)
	if err != nil {
		return err
	}
	if _, err := log.Commit("overwrite", []AddFile{old}, nil); err != nil {
		return err
	}
	replacement, err := e.writeParquet(ctx, dir, "", rows)
	if err != nil {
		return err
	}
	_, err = log.Commit("overwrite", []AddFile{replacement}, []string{old.Path})
	return err
}

// writeParquet stores rows as one parquet file under dir/subdir and returns
// its log record. Rows pass through a DuckDB temp table so the parquet
// encoding matches what the scan side expects.
func (e *DuckDB) writeParquet(ctx context.Context, dir, subdir string, rows []fixtures.Row) (AddFile, error) {
	target := dir
	if subdir != "" {
		target = filepath.Join(dir, subdir)
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return AddFile{}, err
	}
	fileName := "part-" + uuid.NewString() + ".parquet"
	absPath := filepath.Join(target, fileName)

	tmp := "load_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err := e.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TEMPORARY TABLE %s (id BIGINT, ts_ms BIGINT, region VARCHAR, value_i64 BIGINT, flag BOOLEAN)`, tmp)); err != nil {
		return AddFile{}, err
	}
	defer e.db.ExecContext(context.WithoutCancel(ctx), fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tmp))

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return AddFile{}, err
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s VALUES (?, ?, ?, ?, ?)`, tmp))
	if err != nil {
		tx.Rollback()
		return AddFile{}, err
	}
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.ID, row.TSMS, row.Region, row.ValueI64, row.Flag); err != nil {
			stmt.Close()
			tx.Rollback()
			return AddFile{}, err
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return AddFile{}, err
	}

	if _, err := e.db.ExecContext(ctx, fmt.Sprintf(
		`COPY (SELECT * FROM %s ORDER BY id) TO '%s' (FORMAT PARQUET)`, tmp, escapeSQL(absPath))); err != nil {
		return AddFile{}, err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return AddFile{}, err
	}

	relPath := fileName
	if subdir != "" {
		relPath = subdir + "/" + fileName
	}
	file := AddFile{
		Path:      relPath,
		SizeBytes: uint64(info.Size()),
		Rows:      uint64(len(rows)),
	}
	if len(rows) > 0 {
		stats := FileStats{MinID: rows[0].ID, MaxID: rows[0].ID, MinTSMS: rows[0].TSMS, MaxTSMS: rows[0].TSMS}
		for _, row := range rows[1:] {
			stats.MinID = min(stats.MinID, row.ID)
			stats.MaxID = max(stats.MaxID, row.ID)
			stats.MinTSMS = min(stats.MinTSMS, row.TSMS)
			stats.MaxTSMS = max(stats.MaxTSMS, row.TSMS)
		}
		file.Stats = &stats
	}
	return file, nil
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
