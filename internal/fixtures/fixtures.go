// Package fixtures generates the deterministic benchmark datasets and the
// tables the suites run against. A manifest written next to the data makes
// regeneration idempotent: matching parameters are a no-op unless forced.
package fixtures

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/lakebench/lakebench/internal/storage"
)

// ManifestSchemaVersion is the fixture manifest version this build writes
// and accepts.
const ManifestSchemaVersion uint32 = 1

// Table directory names under <fixtures>/<scale>/.
const (
	NarrowSalesTable        = "narrow_sales"
	MergeTargetTable        = "merge_target"
	ReadPartitionedTable    = "read_partitioned"
	MergePartitionedTable   = "merge_partitioned_target"
	OptimizeSmallFilesTable = "optimize_small_files"
	OptimizeCompactedTable  = "optimize_compacted"
	VacuumReadyTable        = "vacuum_ready"
)

// Manifest records what a fixture directory contains.
type Manifest struct {
	SchemaVersion uint32 `json:"schema_version"`
	Seed          uint64 `json:"seed"`
	Scale         string `json:"scale"`
	Rows          int    `json:"rows"`
}

// ScaleRowCount maps a scale label to its row count.
func ScaleRowCount(scale string) (int, error) {
	switch scale {
	case "sf1":
		return 10_000, nil
	case "sf10":
		return 100_000, nil
	case "sf100":
		return 1_000_000, nil
	default:
		return 0, fmt.Errorf("unknown scale '%s' (expected one of: sf1, sf10, sf100)", scale)
	}
}

// ValidateScale rejects labels that are unknown or unsafe as a path
// component.
func ValidateScale(scale string) error {
	if scale == "" {
		return fmt.Errorf("scale must not be empty")
	}
	if scale == "." || scale == ".." {
		return fmt.Errorf("scale '%s' is not allowed", scale)
	}
	for _, ch := range scale {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9',
			ch == '.', ch == '-', ch == '_':
		default:
			return fmt.Errorf("scale contains invalid characters; allowed: [A-Za-z0-9._-]")
		}
	}
	_, err := ScaleRowCount(scale)
	return err
}

// Root returns the fixture directory for a scale.
func Root(fixturesDir, scale string) (string, error) {
	if err := ValidateScale(scale); err != nil {
		return "", err
	}
	return filepath.Join(fixturesDir, scale), nil
}

// TablePath returns the local path of a fixture table.
func TablePath(fixturesDir, scale, table string) (string, error) {
	root, err := Root(fixturesDir, scale)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, table), nil
}

// TableURL resolves a fixture table through the storage config.
func TableURL(fixturesDir, scale, table string, store *storage.Config) (*url.URL, error) {
	path, err := TablePath(fixturesDir, scale, table)
	if err != nil {
		return nil, err
	}
	return store.TableURLFor(path, scale, table)
}

// TableWriter materializes generated rows as engine tables. The layouts
// mirror what the suites need: compact tables, many-small-file tables for
// compaction cases, and a table with dead files ready for vacuum.
type TableWriter interface {
	WriteTable(ctx context.Context, tableURL *url.URL, rows []Row) error
	WriteTableSmallFiles(ctx context.Context, tableURL *url.URL, rows []Row, chunkSize int) error
	WriteTablePartitioned(ctx context.Context, tableURL *url.URL, rows []Row, chunkSize int, partitionColumns []string) error
	WriteVacuumReadyTable(ctx context.Context, tableURL *url.URL, rows []Row) error
}

// Generator builds fixture directories.
type Generator struct {
	FixturesDir string
	Storage     *storage.Config
	Writer      TableWriter

	log *slog.Logger
}

// NewGenerator returns a generator. A nil logger discards output.
func NewGenerator(fixturesDir string, store *storage.Config, writer TableWriter, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Generator{FixturesDir: fixturesDir, Storage: store, Writer: writer, log: log}
}

// Generate builds all fixture tables for a scale. When the existing
// manifest matches the requested parameters and force is false, nothing is
// done. Any mismatch or force rebuilds the scale directory from scratch.
func (g *Generator) Generate(ctx context.Context, scale string, seed uint64, force bool) error {
	root, err := Root(g.FixturesDir, scale)
	if err != nil {
		return err
	}
	rowCount, err := ScaleRowCount(scale)
	if err != nil {
		return err
	}

	if _, statErr := os.Stat(root); statErr == nil && !force {
		if existing, loadErr := LoadManifest(g.FixturesDir, scale); loadErr == nil {
			if existing.SchemaVersion == ManifestSchemaVersion &&
				existing.Seed == seed &&
				existing.Scale == scale &&
				existing.Rows == rowCount {
				g.log.Debug("fixtures up to date", "scale", scale, "seed", seed)
				return nil
			}
		}
	}
	if err := os.RemoveAll(root); err != nil {
		return err
	}
	datasetDir := filepath.Join(root, "narrow_sales_data")
	if err := os.MkdirAll(datasetDir, 0o755); err != nil {
		return err
	}

	g.log.Info("generating fixtures", "scale", scale, "seed", seed, "rows", rowCount)
	rows := GenerateRows(seed, rowCount)
	if err := writeRowsJSONL(filepath.Join(datasetDir, "rows.jsonl"), rows); err != nil {
		return err
	}

	mergeRows := rows[:minRows(len(rows)/4, 1024, len(rows))]
	optimizeRows := rows[:minRows(len(rows)/2, 2048, len(rows))]
	vacuumRows := rows[:minRows(len(rows)/3, 1024, len(rows))]

	// Table builds are independent of each other; run them concurrently.
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return g.writeTable(egCtx, scale, NarrowSalesTable, rows)
	})
	eg.Go(func() error {
		u, err := TableURL(g.FixturesDir, scale, ReadPartitionedTable, g.Storage)
		if err != nil {
			return err
		}
		return g.Writer.WriteTablePartitioned(egCtx, u, rows, 128, []string{"region"})
	})
	eg.Go(func() error {
		return g.writeTable(egCtx, scale, MergeTargetTable, mergeRows)
	})
	eg.Go(func() error {
		u, err := TableURL(g.FixturesDir, scale, MergePartitionedTable, g.Storage)
		if err != nil {
			return err
		}
		return g.Writer.WriteTablePartitioned(egCtx, u, mergeRows, 64, []string{"region"})
	})
	eg.Go(func() error {
		u, err := TableURL(g.FixturesDir, scale, OptimizeSmallFilesTable, g.Storage)
		if err != nil {
			return err
		}
		return g.Writer.WriteTableSmallFiles(egCtx, u, optimizeRows, 128)
	})
	eg.Go(func() error {
		return g.writeTable(egCtx, scale, OptimizeCompactedTable, optimizeRows)
	})
	eg.Go(func() error {
		u, err := TableURL(g.FixturesDir, scale, VacuumReadyTable, g.Storage)
		if err != nil {
			return err
		}
		return g.Writer.WriteVacuumReadyTable(egCtx, u, vacuumRows)
	})
	if err := eg.Wait(); err != nil {
		return err
	}

	manifest := Manifest{
		SchemaVersion: ManifestSchemaVersion,
		Seed:          seed,
		Scale:         scale,
		Rows:          rowCount,
	}
	data, err := json.MarshalIndent(&manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(root, "manifest.json"), data, 0o644)
}

func (g *Generator) writeTable(ctx context.Context, scale, table string, rows []Row) error {
	u, err := TableURL(g.FixturesDir, scale, table, g.Storage)
	if err != nil {
		return err
	}
	return g.Writer.WriteTable(ctx, u, rows)
}

// LoadRows reads the generated dataset for a scale back into memory.
func LoadRows(fixturesDir, scale string) ([]Row, error) {
	root, err := Root(fixturesDir, scale)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(root, "narrow_sales_data", "rows.jsonl")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fixture dataset for scale '%s' is missing; run data generation first: %w", scale, err)
	}
	defer f.Close()

	var rows []Row
	dec := json.NewDecoder(f)
	for {
		var r Row
		if err := dec.Decode(&r); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("invalid fixture dataset for scale '%s': %w", scale, err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// LoadManifest reads the fixture manifest for a scale.
func LoadManifest(fixturesDir, scale string) (*Manifest, error) {
	root, err := Root(fixturesDir, scale)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(root, "manifest.json"))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid fixture manifest for scale '%s': %w", scale, err)
	}
	return &m, nil
}

func writeRowsJSONL(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i := range rows {
		if err := enc.Encode(&rows[i]); err != nil {
			return err
		}
	}
	return f.Close()
}

// minRows keeps at least floor rows but never more than the dataset holds.
func minRows(fraction, floor, total int) int {
	n := fraction
	if n < floor {
		n = floor
	}
	if n > total {
		n = total
	}
	return n
}
