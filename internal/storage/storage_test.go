package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresTableRootForS3(t *testing.T) {
	_, err := New(BackendS3, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table_root")
}

func TestNewValidatesTableRootScheme(t *testing.T) {
	_, err := New(BackendS3, map[string]string{TableRootKey: "gs://bucket/prefix"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected scheme one of: s3://")

	cfg, err := New(BackendS3, map[string]string{TableRootKey: "s3://bucket/prefix"})
	require.NoError(t, err)
	assert.False(t, cfg.IsLocal())
}

func TestObjectStoreOptionsExcludeTableRoot(t *testing.T) {
	cfg, err := New(BackendS3, map[string]string{
		TableRootKey:    "s3://bucket/prefix",
		"aws_region":    "eu-west-1",
		"aws_endpoint":  "http://localhost:9000",
	})
	require.NoError(t, err)

	opts := cfg.ObjectStoreOptions()
	assert.NotContains(t, opts, TableRootKey)
	assert.Equal(t, "eu-west-1", opts["aws_region"])
}

func TestFixtureTableURLJoinsScaleAndTable(t *testing.T) {
	cfg, err := New(BackendS3, map[string]string{TableRootKey: "s3://bucket/bench/"})
	require.NoError(t, err)

	u, err := cfg.FixtureTableURL("sf1", "events_delta")
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/bench/sf1/events_delta", u.String())

	local := Local()
	_, err = local.FixtureTableURL("sf1", "events_delta")
	require.Error(t, err)
}

func TestTableURLForLocalBackend(t *testing.T) {
	cfg := Local()
	dir := t.TempDir()

	u, err := cfg.TableURLFor(dir, "sf1", "events_delta")
	require.NoError(t, err)
	assert.Equal(t, "file", u.Scheme)
	assert.True(t, strings.HasSuffix(u.Path, "/"))
	assert.Contains(t, u.Path, filepath.Base(dir))
}

func TestIsolatedTableURLUnique(t *testing.T) {
	cfg, err := New(BackendS3, map[string]string{TableRootKey: "s3://bucket/bench"})
	require.NoError(t, err)

	first, err := cfg.IsolatedTableURL("sf1", "merge_target", "merge_upsert_10pct")
	require.NoError(t, err)
	second, err := cfg.IsolatedTableURL("sf1", "merge_target", "merge_upsert_10pct")
	require.NoError(t, err)

	assert.NotEqual(t, first.String(), second.String())
	assert.Contains(t, first.Path, "merge_target__isolated__merge_upsert_10pct__")

	_, err = Local().IsolatedTableURL("sf1", "merge_target", "case")
	require.Error(t, err)
}

func TestIsolationSourceIsInjectable(t *testing.T) {
	cfg, err := New(BackendS3, map[string]string{TableRootKey: "s3://bucket/bench"})
	require.NoError(t, err)
	fixed := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	cfg.WithIsolation(NewIsolation(func() time.Time { return fixed }))

	first, err := cfg.IsolatedTableURL("sf1", "merge_target", "case")
	require.NoError(t, err)
	second, err := cfg.IsolatedTableURL("sf1", "merge_target", "case")
	require.NoError(t, err)

	// Fixed clock, so uniqueness must come from the owned counter.
	suffix := fmt.Sprintf("%d", fixed.UnixNano())
	assert.Contains(t, first.Path, "__isolated__case__"+suffix+"-0")
	assert.Contains(t, second.Path, "__isolated__case__"+suffix+"-1")

	// A separate config owns a separate counter.
	other, err := New(BackendS3, map[string]string{TableRootKey: "s3://bucket/bench"})
	require.NoError(t, err)
	other.WithIsolation(NewIsolation(func() time.Time { return fixed }))
	u, err := other.IsolatedTableURL("sf1", "merge_target", "case")
	require.NoError(t, err)
	assert.Contains(t, u.Path, suffix+"-0")
}

func TestSanitizePathComponent(t *testing.T) {
	assert.Equal(t, "case_name-1.2", sanitizePathComponent("case_name-1.2"))
	assert.Equal(t, "a_b", sanitizePathComponent("a b"))
	assert.Equal(t, "a_b", sanitizePathComponent("/a/b/"))
	assert.Equal(t, "table", sanitizePathComponent("///"))
	assert.Equal(t, "table", sanitizePathComponent(""))
}

func TestLoadBackendProfileOptions(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "backends"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "backends", "minio-dev.env"), []byte(`
# credentials for the dev cluster
table_root=s3://bench-bucket/fixtures
AWS_ACCESS_KEY_ID=dev
AWS_SECRET_ACCESS_KEY=devsecret
`), 0o600))

	opts, err := LoadBackendProfileOptions("minio-dev", root)
	require.NoError(t, err)
	assert.Equal(t, "s3://bench-bucket/fixtures", opts["table_root"])
	assert.Equal(t, "dev", opts["AWS_ACCESS_KEY_ID"])
}

func TestLoadBackendProfileOptionsLocalAndEmpty(t *testing.T) {
	opts, err := LoadBackendProfileOptions("", t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, opts)

	opts, err = LoadBackendProfileOptions("local", t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, opts)
}

func TestLoadBackendProfileOptionsMissingFile(t *testing.T) {
	_, err := LoadBackendProfileOptions("absent", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile file is missing")
}

func TestLoadBackendProfileOptionsRejectsBadName(t *testing.T) {
	_, err := LoadBackendProfileOptions("../escape", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[A-Za-z0-9._-]")
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend("local")
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, b)

	_, err = ParseBackend("azure")
	require.Error(t, err)
}
