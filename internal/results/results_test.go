package results

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRun() *BenchRunResult {
	return &BenchRunResult{
		SchemaVersion: SchemaVersion,
		Context: BenchContext{
			SchemaVersion: SchemaVersion,
			Label:         "local",
			CreatedAt:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
			Host:          "bench-host",
			Suite:         "read_scan",
			Scale:         "sf1",
			Iterations:    5,
			Warmup:        1,
		},
		Cases: []CaseResult{
			{
				Case:           "read_full_scan_narrow",
				Success:        true,
				Classification: ClassificationSupported,
				Samples: []IterationSample{
					{
						ElapsedMS: 12.5,
						Rows:      Uint64(10000),
						Metrics: &SampleMetrics{
							RowsProcessed: Uint64(10000),
							FilesScanned:  Uint64(4),
							FilesPruned:   Uint64(0),
							ScanTimeMS:    Uint64(3),
							ResultHash:    String("abc123"),
						},
					},
				},
			},
		},
	}
}

func TestRoundTripPreservesOptionalMetrics(t *testing.T) {
	run := validRun()
	data, err := run.Marshal()
	require.NoError(t, err)

	parsed, err := ParseRunResult(data)
	require.NoError(t, err)
	require.Len(t, parsed.Cases, 1)

	metrics := parsed.Cases[0].Samples[0].Metrics
	require.NotNil(t, metrics)
	require.NotNil(t, metrics.FilesScanned)
	assert.Equal(t, uint64(4), *metrics.FilesScanned)
	require.NotNil(t, metrics.FilesPruned)
	assert.Equal(t, uint64(0), *metrics.FilesPruned, "a true zero must survive the round trip")
	assert.Nil(t, metrics.BytesScanned, "unset counters stay unset")
	assert.Nil(t, metrics.PeakRSSMB)
	require.NotNil(t, metrics.ResultHash)
	assert.Equal(t, "abc123", *metrics.ResultHash)
}

func TestSerializationOmitsUnsetFieldsButNeverVersions(t *testing.T) {
	run := validRun()
	data, err := run.Marshal()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "schema_version")

	ctx, ok := raw["context"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, ctx, "schema_version")
	assert.NotContains(t, ctx, "git_sha")
	assert.NotContains(t, ctx, "cpu_model")

	assert.NotContains(t, string(data), "bytes_scanned")
	assert.NotContains(t, string(data), "spill_bytes")
}

func TestParseRejectsWrongRootVersion(t *testing.T) {
	run := validRun()
	run.SchemaVersion = 1
	data, err := run.Marshal()
	require.NoError(t, err)

	_, err = ParseRunResult(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema_version 1")
	assert.Contains(t, err.Error(), "version 2")
}

func TestParseRejectsWrongContextVersion(t *testing.T) {
	run := validRun()
	run.Context.SchemaVersion = 3
	data, err := run.Marshal()
	require.NoError(t, err)

	_, err = ParseRunResult(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context schema_version 3")
}

func TestParseRejectsOutOfEnumClassification(t *testing.T) {
	run := validRun()
	data, err := run.Marshal()
	require.NoError(t, err)

	mangled := strings.Replace(string(data), `"supported"`, `"experimental"`, 1)
	_, err = ParseRunResult([]byte(mangled))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid classification")
	assert.Contains(t, err.Error(), "experimental")
}

func TestValidateClassification(t *testing.T) {
	require.NoError(t, ValidateClassification("supported"))
	require.NoError(t, ValidateClassification("expected_failure"))
	require.Error(t, ValidateClassification(""))
	require.Error(t, ValidateClassification("Supported"))
}
