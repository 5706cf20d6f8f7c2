// Package results defines the versioned benchmark result schema and its
// serialization contract. The JSON document produced here is consumed by
// downstream comparison tooling, so field presence and version handling are
// contractual: optional fields are omitted when unset, version fields are
// always emitted, and parsing is strict.
package results

import (
	"encoding/json"
	"fmt"
	"time"
)

// SchemaVersion is the single result-document version this build supports.
// Documents carrying any other version are rejected at parse time.
const SchemaVersion uint32 = 2

// Classification describes whether a case outcome is ordinary or an
// intentionally expected failure. It is a closed enumeration.
type Classification string

// Closed classification values.
const (
	ClassificationSupported       Classification = "supported"
	ClassificationExpectedFailure Classification = "expected_failure"
)

// ValidateClassification checks that value is one of the closed
// classification values.
func ValidateClassification(value string) error {
	switch Classification(value) {
	case ClassificationSupported, ClassificationExpectedFailure:
		return nil
	default:
		return fmt.Errorf("invalid classification %q (expected one of: %q, %q)",
			value, ClassificationSupported, ClassificationExpectedFailure)
	}
}

// UnmarshalJSON enforces the closed enumeration during decoding.
func (c *Classification) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := ValidateClassification(raw); err != nil {
		return err
	}
	*c = Classification(raw)
	return nil
}

// SampleMetrics is a flat set of independently-nullable counters attached to
// one iteration sample. Absence of one field never implies absence of
// another; a nil pointer means the counter was not observed.
type SampleMetrics struct {
	// Base counters reported by most engine operations.
	RowsProcessed  *uint64 `json:"rows_processed,omitempty"`
	BytesProcessed *uint64 `json:"bytes_processed,omitempty"`
	Operations     *uint64 `json:"operations,omitempty"`
	TableVersion   *uint64 `json:"table_version,omitempty"`

	// Scan/rewrite counters extracted from physical plans.
	FilesScanned  *uint64 `json:"files_scanned,omitempty"`
	FilesPruned   *uint64 `json:"files_pruned,omitempty"`
	BytesScanned  *uint64 `json:"bytes_scanned,omitempty"`
	ScanTimeMS    *uint64 `json:"scan_time_ms,omitempty"`
	RewriteTimeMS *uint64 `json:"rewrite_time_ms,omitempty"`

	// Runtime/IO counters reported by external-process runners.
	PeakRSSMB    *uint64 `json:"peak_rss_mb,omitempty"`
	CPUTimeMS    *uint64 `json:"cpu_time_ms,omitempty"`
	BytesRead    *uint64 `json:"bytes_read,omitempty"`
	BytesWritten *uint64 `json:"bytes_written,omitempty"`
	FilesTouched *uint64 `json:"files_touched,omitempty"`
	FilesSkipped *uint64 `json:"files_skipped,omitempty"`
	SpillBytes   *uint64 `json:"spill_bytes,omitempty"`
	ResultHash   *string `json:"result_hash,omitempty"`
}

// Uint64 returns a pointer to v for populating optional counters.
func Uint64(v uint64) *uint64 { return &v }

// String returns a pointer to s for populating optional string fields.
func String(s string) *string { return &s }

// BaseMetrics builds a SampleMetrics carrying only the base counters.
func BaseMetrics(rows, bytes, operations, tableVersion *uint64) SampleMetrics {
	return SampleMetrics{
		RowsProcessed:  rows,
		BytesProcessed: bytes,
		Operations:     operations,
		TableVersion:   tableVersion,
	}
}

// FromRowCount builds a SampleMetrics reporting only a processed row count.
func FromRowCount(rows uint64) SampleMetrics {
	return SampleMetrics{RowsProcessed: Uint64(rows)}
}

// IterationSample records one measured trial. ElapsedMS covers the measured
// operation only; untimed per-iteration setup is excluded by the harness.
type IterationSample struct {
	ElapsedMS float64        `json:"elapsed_ms"`
	Rows      *uint64        `json:"rows,omitempty"`
	Bytes     *uint64        `json:"bytes,omitempty"`
	Metrics   *SampleMetrics `json:"metrics,omitempty"`
}

// CaseFailure carries the stringified error that ended a case.
type CaseFailure struct {
	Message string `json:"message"`
}

// CaseResult is the per-case outcome. Success=true with classification
// expected_failure is only reachable through assertion reclassification.
type CaseResult struct {
	Case           string            `json:"case"`
	Success        bool              `json:"success"`
	Classification Classification    `json:"classification"`
	Samples        []IterationSample `json:"samples"`
	Failure        *CaseFailure      `json:"failure,omitempty"`
}

// BenchContext is the run metadata embedded in every result document.
type BenchContext struct {
	SchemaVersion uint32    `json:"schema_version"`
	Label         string    `json:"label"`
	GitSHA        *string   `json:"git_sha,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Host          string    `json:"host"`
	Suite         string    `json:"suite"`
	Scale         string    `json:"scale"`
	Iterations    uint32    `json:"iterations"`
	Warmup        uint32    `json:"warmup"`

	DatasetID          *string `json:"dataset_id,omitempty"`
	DatasetFingerprint *string `json:"dataset_fingerprint,omitempty"`
	Runner             *string `json:"runner,omitempty"`
	BackendProfile     *string `json:"backend_profile,omitempty"`

	// Machine-fidelity fields captured by the system prober.
	ImageVersion           *string  `json:"image_version,omitempty"`
	HardeningProfileID     *string  `json:"hardening_profile_id,omitempty"`
	HardeningProfileSHA256 *string  `json:"hardening_profile_sha256,omitempty"`
	CPUModel               *string  `json:"cpu_model,omitempty"`
	CPUMicrocode           *string  `json:"cpu_microcode,omitempty"`
	Kernel                 *string  `json:"kernel,omitempty"`
	BootParams             *string  `json:"boot_params,omitempty"`
	CPUStealPct            *float64 `json:"cpu_steal_pct,omitempty"`
	NUMATopology           *string  `json:"numa_topology,omitempty"`
	EgressPolicySHA256     *string  `json:"egress_policy_sha256,omitempty"`
	RunMode                *string  `json:"run_mode,omitempty"`
	MaintenanceWindowID    *string  `json:"maintenance_window_id,omitempty"`
}

// BenchRunResult is the externally persisted artifact of one run.
type BenchRunResult struct {
	SchemaVersion uint32       `json:"schema_version"`
	Context       BenchContext `json:"context"`
	Cases         []CaseResult `json:"cases"`
}

// Marshal serializes the document with stable indentation for on-disk
// artifacts.
func (r *BenchRunResult) Marshal() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ParseRunResult decodes and validates a result document. Parsing is strict:
// the schema version at the document root and inside the context must both
// equal SchemaVersion, and every classification must be a closed enum value.
// There is no partial or best-effort parse.
func ParseRunResult(data []byte) (*BenchRunResult, error) {
	var out BenchRunResult
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("invalid result document: %w", err)
	}
	if out.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf(
			"unsupported result schema_version %d: this build requires version %d",
			out.SchemaVersion, SchemaVersion)
	}
	if out.Context.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf(
			"unsupported context schema_version %d: this build requires version %d",
			out.Context.SchemaVersion, SchemaVersion)
	}
	return &out, nil
}
