package engine

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"hash"
	"path/filepath"
	"strings"
	"time"

	"github.com/lakebench/lakebench/internal/planmetrics"
)

// TimeRange restricts a scan to rows with ts_ms inside [MinTSMS, MaxTSMS].
// File-level statistics prune files entirely outside the range before
// DuckDB sees them.
type TimeRange struct {
	MinTSMS int64
	MaxTSMS int64
}

// FullScanNarrow scans every column of every row at the current version.
func (e *DuckDB) FullScanNarrow(ctx context.Context, t *Table) (OpMetrics, error) {
	return e.runScan(ctx, t, t.Version(), nil,
		`SELECT count(*), sum(value_i64), min(id), max(id) FROM %s`)
}

// RegionProjection aggregates by the region column only.
func (e *DuckDB) RegionProjection(ctx context.Context, t *Table) (OpMetrics, error) {
	return e.runScan(ctx, t, t.Version(), nil,
		`SELECT region, count(*), sum(value_i64) FROM %s GROUP BY region ORDER BY region`)
}

// FlagFilter counts rows with the flag set.
func (e *DuckDB) FlagFilter(ctx context.Context, t *Table) (OpMetrics, error) {
	return e.runScan(ctx, t, t.Version(), nil,
		`SELECT count(*), sum(value_i64) FROM %s WHERE flag`)
}

// TimeRangeCount counts rows inside the range, pruning files by their
// ts_ms statistics first.
func (e *DuckDB) TimeRangeCount(ctx context.Context, t *Table, tr TimeRange) (OpMetrics, error) {
	query := fmt.Sprintf(`SELECT count(*), sum(value_i64) FROM %%s WHERE ts_ms BETWEEN %d AND %d`,
		tr.MinTSMS, tr.MaxTSMS)
	return e.runScan(ctx, t, t.Version(), &tr, query)
}

// TimeTravelScan runs a full scan against a historic version.
func (e *DuckDB) TimeTravelScan(ctx context.Context, t *Table, version uint64) (OpMetrics, error) {
	return e.runScan(ctx, t, version, nil,
		`SELECT count(*), sum(value_i64), min(id), max(id) FROM %s`)
}

// runScan resolves the active files for a version, prunes them, executes
// the query, and assembles the scan plan metrics. The query string must
// contain one %s placeholder for the parquet source.
func (e *DuckDB) runScan(ctx context.Context, t *Table, version uint64, tr *TimeRange, query string) (OpMetrics, error) {
	files, err := t.Log.FilesAt(version)
	if err != nil {
		return OpMetrics{}, err
	}
	scanned, pruned := pruneByTimeRange(files, tr)

	var (
		rowsInFiles  uint64
		bytesScanned uint64
	)
	for _, f := range scanned {
		rowsInFiles += f.Rows
		bytesScanned += f.SizeBytes
	}

	hash := sha256.New()
	start := time.Now()
	if len(scanned) > 0 {
		rows, err := e.db.QueryContext(ctx, fmt.Sprintf(query, parquetSource(t.Log.Dir(), scanned)))
		if err != nil {
			return OpMetrics{}, fmt.Errorf("scan failed: %w", err)
		}
		if _, err := hashRows(rows, hash); err != nil {
			rows.Close()
			return OpMetrics{}, err
		}
		if err := rows.Close(); err != nil {
			return OpMetrics{}, err
		}
	}
	elapsed := time.Since(start)

	resultHash := hex.EncodeToString(hash.Sum(nil))
	metrics := OpMetrics{
		Rows:         uint64Ptr(rowsInFiles),
		Bytes:        uint64Ptr(bytesScanned),
		Operations:   uint64Ptr(1),
		TableVersion: uint64Ptr(version),
		ResultHash:   &resultHash,
	}
	metrics.Scan = planmetrics.Aggregate(scanPlan(len(scanned), bytesScanned, pruned, tr != nil, elapsed))
	return metrics, nil
}

// scanPlan models the executed scan as a two-node plan: a result root over
// the parquet scan operator.
func scanPlan(filesScanned int, bytesScanned, pruned uint64, prunedEvaluated bool, elapsed time.Duration) *planmetrics.PlanNode {
	counters := []planmetrics.Counter{
		{Name: "files_scanned", Kind: planmetrics.CounterCount, Value: uint64(filesScanned)},
		{Name: "bytes_scanned", Kind: planmetrics.CounterCount, Value: bytesScanned},
	}
	if prunedEvaluated {
		counters = append(counters, planmetrics.Counter{
			Name:  "files_ranges_pruned_statistics",
			Kind:  planmetrics.CounterPruning,
			Value: pruned,
		})
	}
	nanos := uint64(elapsed.Nanoseconds())
	return &planmetrics.PlanNode{
		Children: []*planmetrics.PlanNode{
			{Metrics: &planmetrics.NodeMetrics{
				Counters:            counters,
				ElapsedComputeNanos: &nanos,
			}},
		},
	}
}

func pruneByTimeRange(files []AddFile, tr *TimeRange) (kept []AddFile, pruned uint64) {
	if tr == nil {
		return files, 0
	}
	for _, f := range files {
		if f.Stats != nil && (f.Stats.MaxTSMS < tr.MinTSMS || f.Stats.MinTSMS > tr.MaxTSMS) {
			pruned++
			continue
		}
		kept = append(kept, f)
	}
	return kept, pruned
}

// parquetSource renders the read_parquet call over the active file list.
func parquetSource(dir string, files []AddFile) string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = "'" + escapeSQL(filepath.Join(dir, filepath.FromSlash(f.Path))) + "'"
	}
	return "read_parquet([" + strings.Join(paths, ", ") + "])"
}

// hashRows folds every value of every result row into h in column order and
// returns the number of rows consumed.
func hashRows(rows *sql.Rows, h hash.Hash) (uint64, error) {
	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	var count uint64
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return count, err
		}
		for _, v := range values {
			fmt.Fprintf(h, "%v|", v)
		}
		h.Write([]byte("\n"))
		count++
	}
	return count, rows.Err()
}
