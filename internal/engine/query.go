package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lakebench/lakebench/internal/planmetrics"
)

// Query executes an ad-hoc SQL statement over a set of named tables. Each
// table is registered as a temporary view over its active parquet files;
// the views are scoped to the call and dropped before the connection goes
// back to the pool. Rows counts the result rows, not the rows in the files.
func (e *DuckDB) Query(ctx context.Context, tables map[string]*Table, query string) (OpMetrics, error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return OpMetrics{}, err
	}
	defer conn.Close()

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	// The connection returns to the pool on close; the views must not
	// leak into whatever operation draws it next.
	defer func() {
		for _, name := range names {
			_, _ = conn.ExecContext(ctx, `DROP VIEW IF EXISTS `+quoteIdent(name))
		}
	}()

	var (
		filesScanned int
		bytesScanned uint64
	)
	for _, name := range names {
		t := tables[name]
		files, err := t.Log.FilesAt(t.Version())
		if err != nil {
			return OpMetrics{}, err
		}
		if len(files) == 0 {
			return OpMetrics{}, fmt.Errorf("table %s has no data files", name)
		}
		if _, err := conn.ExecContext(ctx, fmt.Sprintf(
			`CREATE OR REPLACE TEMPORARY VIEW %s AS SELECT * FROM %s`,
			quoteIdent(name), parquetSource(t.Log.Dir(), files))); err != nil {
			return OpMetrics{}, fmt.Errorf("failed to register table %s: %w", name, err)
		}
		filesScanned += len(files)
		for _, f := range files {
			bytesScanned += f.SizeBytes
		}
	}

	hash := sha256.New()
	start := time.Now()
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return OpMetrics{}, fmt.Errorf("query failed: %w", err)
	}
	resultRows, err := hashRows(rows, hash)
	if err != nil {
		rows.Close()
		return OpMetrics{}, err
	}
	if err := rows.Close(); err != nil {
		return OpMetrics{}, err
	}
	elapsed := time.Since(start)

	resultHash := hex.EncodeToString(hash.Sum(nil))
	metrics := OpMetrics{
		Rows:       uint64Ptr(resultRows),
		Bytes:      uint64Ptr(bytesScanned),
		Operations: uint64Ptr(1),
		ResultHash: &resultHash,
	}
	metrics.Scan = planmetrics.Aggregate(scanPlan(filesScanned, bytesScanned, 0, false, elapsed))
	return metrics, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
