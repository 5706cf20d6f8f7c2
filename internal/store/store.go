// Package store persists benchmark runs into a local SQLite database for
// longitudinal comparison across revisions. Ingestion is idempotent: the
// run id is derived from the revision and the full result payload, so
// re-ingesting the same artifact is a no-op.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lakebench/lakebench/internal/results"
)

// Store is a SQLite-backed longitudinal result store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the database at path, creating and migrating it as needed.
// Use ":memory:" for an in-memory store.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
	if path == ":memory:" {
		dsn = ":memory:?_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open result store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping result store: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// IngestSummary reports what one ingestion did.
type IngestSummary struct {
	RunID        string
	RowsAppended int
	Deduped      bool
}

// nowFunc is swapped in tests.
var nowFunc = time.Now

// Ingest stores one run. Revision and commitTimestamp identify the code
// under test; sourcePath records where the artifact came from.
func (s *Store) Ingest(result *results.BenchRunResult, revision, commitTimestamp, sourcePath string) (*IngestSummary, error) {
	runID, err := runIdentity(result, revision, commitTimestamp)
	if err != nil {
		return nil, err
	}

	var exists int
	err = s.db.QueryRow(`SELECT count(*) FROM runs WHERE run_id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check run %s: %w", runID, err)
	}
	if exists > 0 {
		return &IngestSummary{RunID: runID, Deduped: true}, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ctx := &result.Context
	ingestedAt := nowFunc().UTC().Format(time.RFC3339Nano)
	_, err = tx.Exec(`
		INSERT INTO runs (
			run_id, ingested_at, revision, revision_commit_timestamp,
			benchmark_created_at, label, git_sha, host, suite, scale,
			iterations, warmup, source_result_path,
			image_version, hardening_profile_id, hardening_profile_sha256,
			cpu_model, cpu_microcode, kernel, boot_params, cpu_steal_pct,
			numa_topology, egress_policy_sha256, run_mode, maintenance_window_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, ingestedAt, revision, commitTimestamp,
		ctx.CreatedAt.UTC().Format(time.RFC3339Nano), ctx.Label, ctx.GitSHA,
		ctx.Host, ctx.Suite, ctx.Scale, ctx.Iterations, ctx.Warmup, sourcePath,
		ctx.ImageVersion, ctx.HardeningProfileID, ctx.HardeningProfileSHA256,
		ctx.CPUModel, ctx.CPUMicrocode, ctx.Kernel, ctx.BootParams, ctx.CPUStealPct,
		ctx.NUMATopology, ctx.EgressPolicySHA256, ctx.RunMode, ctx.MaintenanceWindowID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run %s: %w", runID, err)
	}

	for i := range result.Cases {
		c := &result.Cases[i]
		if err := insertCaseRow(tx, runID, c); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &IngestSummary{RunID: runID, RowsAppended: len(result.Cases)}, nil
}

func insertCaseRow(tx *sql.Tx, runID string, c *results.CaseResult) error {
	elapsed := results.ElapsedSamples(c)
	stats := results.ComputeStats(elapsed)

	samplesJSON, err := json.Marshal(elapsed)
	if err != nil {
		return err
	}
	var failureReason *string
	if c.Failure != nil {
		failureReason = &c.Failure.Message
	}
	var minMS, maxMS, meanMS, medianMS *float64
	if stats != nil {
		minMS, maxMS, meanMS, medianMS = &stats.MinMS, &stats.MaxMS, &stats.MeanMS, &stats.MedianMS
	}

	_, err = tx.Exec(`
		INSERT INTO case_rows (
			run_id, case_name, success, classification, failure_reason,
			sample_count, sample_values_ms, min_ms, max_ms, mean_ms, median_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, c.Case, c.Success, string(c.Classification), failureReason,
		len(elapsed), string(samplesJSON), minMS, maxMS, meanMS, medianMS)
	if err != nil {
		return fmt.Errorf("failed to insert case row %s/%s: %w", runID, c.Case, err)
	}
	return nil
}

// runIdentity hashes the run's identifying fields plus the full payload so
// identical artifacts map to the same id while any content change yields a
// new one.
func runIdentity(result *results.BenchRunResult, revision, commitTimestamp string) (string, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	payloadDigest := sha256.Sum256(payload)

	identity := struct {
		Revision        string `json:"revision"`
		CommitTimestamp string `json:"commit_timestamp"`
		CreatedAt       string `json:"created_at"`
		Suite           string `json:"suite"`
		Scale           string `json:"scale"`
		Label           string `json:"label"`
		PayloadSHA256   string `json:"payload_sha256"`
	}{
		Revision:        revision,
		CommitTimestamp: commitTimestamp,
		CreatedAt:       result.Context.CreatedAt.UTC().Format(time.RFC3339Nano),
		Suite:           result.Context.Suite,
		Scale:           result.Context.Scale,
		Label:           result.Context.Label,
		PayloadSHA256:   hex.EncodeToString(payloadDigest[:]),
	}
	encoded, err := json.Marshal(&identity)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// RunRecord is one stored run.
type RunRecord struct {
	RunID           string
	IngestedAt      string
	Revision        string
	CommitTimestamp string
	Label           string
	Host            string
	Suite           string
	Scale           string
	CaseCount       int
}

// ListRuns returns stored runs ordered by commit timestamp then ingestion
// time.
func (s *Store) ListRuns() ([]RunRecord, error) {
	rows, err := s.db.Query(`
		SELECT r.run_id, r.ingested_at, r.revision, r.revision_commit_timestamp,
		       r.label, r.host, r.suite, r.scale, count(c.case_name)
		FROM runs r
		LEFT JOIN case_rows c ON c.run_id = r.run_id
		GROUP BY r.run_id
		ORDER BY r.revision_commit_timestamp, r.ingested_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.RunID, &r.IngestedAt, &r.Revision, &r.CommitTimestamp,
			&r.Label, &r.Host, &r.Suite, &r.Scale, &r.CaseCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CasePoint is one case measurement along the revision axis.
type CasePoint struct {
	RunID           string
	Revision        string
	CommitTimestamp string
	Success         bool
	Classification  string
	SampleCount     int
	MedianMS        *float64
	MeanMS          *float64
}

// CaseHistory returns the stored measurements of one case ordered by
// commit timestamp.
func (s *Store) CaseHistory(caseName string) ([]CasePoint, error) {
	rows, err := s.db.Query(`
		SELECT c.run_id, r.revision, r.revision_commit_timestamp,
		       c.success, c.classification, c.sample_count, c.median_ms, c.mean_ms
		FROM case_rows c
		JOIN runs r ON r.run_id = c.run_id
		WHERE c.case_name = ?
		ORDER BY r.revision_commit_timestamp, r.ingested_at`, caseName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CasePoint
	for rows.Next() {
		var p CasePoint
		if err := rows.Scan(&p.RunID, &p.Revision, &p.CommitTimestamp,
			&p.Success, &p.Classification, &p.SampleCount, &p.MedianMS, &p.MeanMS); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Prune deletes runs ingested before the cutoff and returns how many were
// removed. Case rows cascade.
func (s *Store) Prune(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM runs WHERE ingested_at < ?`,
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to prune result store: %w", err)
	}
	return res.RowsAffected()
}
