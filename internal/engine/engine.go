// Package engine implements the native table runtime: versioned tables made
// of parquet data files plus a JSON commit log, queried through DuckDB.
// Every operation reports the counters the result schema knows about.
package engine

import (
	"github.com/lakebench/lakebench/internal/planmetrics"
	"github.com/lakebench/lakebench/internal/results"
)

// OpMetrics is what one engine operation observed. Nil means the operation
// had nothing to report for that counter.
type OpMetrics struct {
	Rows         *uint64
	Bytes        *uint64
	Operations   *uint64
	TableVersion *uint64

	Scan          planmetrics.ScanMetrics
	RewriteTimeMS *uint64

	BytesWritten *uint64
	FilesTouched *uint64
	FilesSkipped *uint64
	ResultHash   *string
}

// Sample converts the operation metrics into the result-schema form.
func (m OpMetrics) Sample() results.SampleMetrics {
	return results.SampleMetrics{
		RowsProcessed:  m.Rows,
		BytesProcessed: m.Bytes,
		Operations:     m.Operations,
		TableVersion:   m.TableVersion,
		FilesScanned:   m.Scan.FilesScanned,
		FilesPruned:    m.Scan.FilesPruned,
		BytesScanned:   m.Scan.BytesScanned,
		ScanTimeMS:     m.Scan.ScanTimeMS,
		RewriteTimeMS:  m.RewriteTimeMS,
		BytesWritten:   m.BytesWritten,
		FilesTouched:   m.FilesTouched,
		FilesSkipped:   m.FilesSkipped,
		ResultHash:     m.ResultHash,
	}
}

func uint64Ptr(v uint64) *uint64 { return &v }
