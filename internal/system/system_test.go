package system

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakebench/lakebench/internal/results"
)

func TestHostNameNeverEmpty(t *testing.T) {
	assert.NotEmpty(t, HostName())
}

func TestOverridesFromEnv(t *testing.T) {
	t.Setenv("LAKEBENCH_IMAGE_VERSION", "img-2026.08")
	t.Setenv("LAKEBENCH_RUN_MODE", "locked-down")
	t.Setenv("LAKEBENCH_MAINTENANCE_WINDOW_ID", "mw-17")

	ov := OverridesFromEnv()
	assert.Equal(t, "img-2026.08", ov.ImageVersion)
	assert.Equal(t, "locked-down", ov.RunMode)
	assert.Equal(t, "mw-17", ov.MaintenanceWindowID)
	assert.Empty(t, ov.EgressPolicySHA256)
}

func TestProbePrefersOverrides(t *testing.T) {
	info := Probe(EnvOverrides{
		ImageVersion:           "img-override",
		HardeningProfileSHA256: "abc123",
		RunMode:                "strict",
		MaintenanceWindowID:    "mw-1",
	})
	require.NotNil(t, info.ImageVersion)
	assert.Equal(t, "img-override", *info.ImageVersion)
	require.NotNil(t, info.HardeningProfileSHA256)
	assert.Equal(t, "abc123", *info.HardeningProfileSHA256)
	require.NotNil(t, info.RunMode)
	assert.Equal(t, "strict", *info.RunMode)
	require.NotNil(t, info.MaintenanceWindowID)
	assert.Equal(t, "mw-1", *info.MaintenanceWindowID)
}

func TestProbeHashesOverridePaths(t *testing.T) {
	dir := t.TempDir()
	policy := filepath.Join(dir, "egress.conf")
	require.NoError(t, os.WriteFile(policy, []byte("drop all\n"), 0o644))
	sum := sha256.Sum256([]byte("drop all\n"))

	info := Probe(EnvOverrides{EgressPolicyPath: policy})
	require.NotNil(t, info.EgressPolicySHA256)
	assert.Equal(t, hex.EncodeToString(sum[:]), *info.EgressPolicySHA256)
}

func TestProbeReadsRunModeFile(t *testing.T) {
	dir := t.TempDir()
	modeFile := filepath.Join(dir, "security-mode")
	require.NoError(t, os.WriteFile(modeFile, []byte("  audited \n"), 0o644))

	info := Probe(EnvOverrides{RunModePath: modeFile})
	require.NotNil(t, info.RunMode)
	assert.Equal(t, "audited", *info.RunMode)
}

func TestReadTrimmedFileEmptyIsAbsent(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o644))
	assert.Nil(t, readTrimmedFile(empty))
	assert.Nil(t, readTrimmedFile(filepath.Join(dir, "missing")))
}

func TestParseCPUInfoField(t *testing.T) {
	content := "processor\t: 0\nmodel name\t: Example CPU @ 3.00GHz\nmicrocode\t: 0xd000123\n"
	model := parseCPUInfoField(content, "model name")
	require.NotNil(t, model)
	assert.Equal(t, "Example CPU @ 3.00GHz", *model)

	micro := parseCPUInfoField(content, "microcode")
	require.NotNil(t, micro)
	assert.Equal(t, "0xd000123", *micro)

	assert.Nil(t, parseCPUInfoField(content, "cache size"))
}

func TestNUMATopologySummary(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "node0"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "node1"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "power"), 0o755))

	summary := numaTopologySummary(dir)
	require.NotNil(t, summary)
	assert.Equal(t, "nodes=2", *summary)

	assert.Nil(t, numaTopologySummary(filepath.Join(dir, "missing")))
}

func TestApplyCopiesEveryField(t *testing.T) {
	pct := 1.5
	info := FidelityInfo{
		ImageVersion: results.String("img"),
		Kernel:       results.String("6.1.0"),
		CPUStealPct:  &pct,
		RunMode:      results.String("strict"),
	}
	var ctx results.BenchContext
	info.Apply(&ctx)
	assert.Equal(t, results.String("img"), ctx.ImageVersion)
	assert.Equal(t, results.String("6.1.0"), ctx.Kernel)
	assert.Equal(t, &pct, ctx.CPUStealPct)
	assert.Equal(t, results.String("strict"), ctx.RunMode)
	assert.Nil(t, ctx.CPUModel)
}
