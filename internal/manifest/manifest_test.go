package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakebench/lakebench/internal/assertions"
	"github.com/lakebench/lakebench/internal/testutil"
)

func writeManifest(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestParseAppliesDefaults(t *testing.T) {
	m, err := Parse([]byte(`
id: sample
description: test manifest
cases:
  - id: case_a
    target: read_scan
  - id: case_b
    target: write
    runner: python
    enabled: false
`), "sample.yaml")
	require.NoError(t, err)
	require.Len(t, m.Cases, 2)

	assert.True(t, m.Cases[0].IsEnabled())
	assert.Equal(t, "native", m.Cases[0].EffectiveRunner())
	assert.False(t, m.Cases[1].IsEnabled())
	assert.Equal(t, "python", m.Cases[1].EffectiveRunner())
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`
id: sample
description: test
cases:
  - id: case_a
    target: read_scan
    tarrget: oops
`), "sample.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid manifest 'sample.yaml'")
}

func TestParseRejectsUnknownAssertionType(t *testing.T) {
	_, err := Parse([]byte(`
id: sample
description: test
cases:
  - id: case_a
    target: read_scan
    assertions:
      - type: approximate_hash
        value: abc
`), "sample.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown assertion type")
}

func TestParseRejectsAssertionValueMisuse(t *testing.T) {
	_, err := Parse([]byte(`
id: sample
description: test
cases:
  - id: case_a
    target: read_scan
    assertions:
      - type: exact_result_hash
`), "sample.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a value")

	_, err = Parse([]byte(`
id: sample
description: test
cases:
  - id: case_a
    target: read_scan
    assertions:
      - type: version_monotonicity
        value: abc
`), "sample.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "takes no value")
}

func TestPlanFromEmbeddedDefaults(t *testing.T) {
	p := NewPlanner(testutil.NewTestLogger(t))

	planned, err := p.Plan("read_scan", RunnerNative, "")
	require.NoError(t, err)
	require.Len(t, planned, 3)
	assert.Equal(t, "read_full_scan_narrow", planned[0].ID)
	require.Len(t, planned[0].Assertions, 1)
	assert.Equal(t, assertions.KindVersionMonotonicity, planned[0].Assertions[0].Kind)
}

func TestPlanTpcdsTarget(t *testing.T) {
	p := NewPlanner(testutil.NewTestLogger(t))

	planned, err := p.Plan("tpcds", RunnerNative, "")
	require.NoError(t, err)
	require.Len(t, planned, 4)
	assert.Equal(t, "tpcds_q03", planned[0].ID)
	assert.Equal(t, "tpcds_q72", planned[3].ID)
}

func TestPlanDisabledCasesExcluded(t *testing.T) {
	p := NewPlanner(testutil.NewTestLogger(t))

	planned, err := p.Plan("optimize_vacuum", RunnerNative, "")
	require.NoError(t, err)
	for _, c := range planned {
		assert.NotEqual(t, "optimize_heavy_compaction", c.ID, "disabled cases never plan")
	}
}

func TestPlanRunnerAllOrdersNativeFirst(t *testing.T) {
	p := NewPlanner(testutil.NewTestLogger(t))

	planned, err := p.Plan("all", RunnerAll, "")
	require.NoError(t, err)
	require.NotEmpty(t, planned)
	assert.Equal(t, "native", planned[0].Runner)
	assert.Equal(t, "python", planned[len(planned)-1].Runner)
}

func TestPlanCaseFilterSubstring(t *testing.T) {
	p := NewPlanner(testutil.NewTestLogger(t))

	planned, err := p.Plan("all", RunnerNative, "merge_upsert")
	require.NoError(t, err)
	require.Len(t, planned, 3)
	for _, c := range planned {
		assert.Contains(t, c.ID, "merge_upsert")
	}
}

func TestPlanEmptyFilterResultIsFatal(t *testing.T) {
	p := NewPlanner(testutil.NewTestLogger(t))

	_, err := p.Plan("read_scan", RunnerNative, "no_such_case")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matched no cases")
	assert.Contains(t, err.Error(), "target='read_scan'")
	assert.Contains(t, err.Error(), "runner='native'")
}

func TestPlanDuplicateCaseIDIsFatal(t *testing.T) {
	path := writeManifest(t, "dup.yaml", `
id: dup
description: duplicate ids
cases:
  - id: case_a
    target: read_scan
  - id: case_a
    target: read_scan
`)
	p := NewPlanner(testutil.NewTestLogger(t))
	p.NativeManifestPath = path

	_, err := p.Plan("read_scan", RunnerNative, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate case id 'case_a'")
}

func TestPlanMissingManifestIsFatal(t *testing.T) {
	p := NewPlanner(testutil.NewTestLogger(t))
	p.NativeManifestPath = "/definitely/missing/manifest.yaml"

	_, err := p.Plan("read_scan", RunnerNative, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load required manifest")
}

func TestPlanInvalidManifestIsFatal(t *testing.T) {
	path := writeManifest(t, "broken.yaml", "not: [valid")
	p := NewPlanner(testutil.NewTestLogger(t))
	p.NativeManifestPath = path

	_, err := p.Plan("read_scan", RunnerNative, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load required manifest")
}

func TestPlanRunnerTargetValidation(t *testing.T) {
	p := NewPlanner(testutil.NewTestLogger(t))

	_, err := p.Plan("interop_py", RunnerNative, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runner=native cannot run target=interop_py")

	_, err = p.Plan("write", RunnerPython, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runner=python can only run")

	_, err = p.Plan("interop_py", RunnerPython, "")
	require.NoError(t, err)
}

func TestParseRunnerMode(t *testing.T) {
	for _, valid := range []string{"native", "python", "all"} {
		mode, err := ParseRunnerMode(valid)
		require.NoError(t, err)
		assert.Equal(t, RunnerMode(valid), mode)
	}
	_, err := ParseRunnerMode("rust")
	require.Error(t, err)
}
