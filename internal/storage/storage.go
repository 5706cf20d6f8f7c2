// Package storage resolves where benchmark tables live: on the local
// filesystem or in an object store. It also loads backend profiles, .env
// files carrying object-store credentials and the table root.
package storage

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
)

// TableRootKey is the storage option naming the object-store URI under
// which fixture tables are laid out.
const TableRootKey = "table_root"

// Backend identifies the storage backend kind.
type Backend string

const (
	BackendLocal Backend = "local"
	BackendS3    Backend = "s3"
)

// ParseBackend validates a backend flag value.
func ParseBackend(value string) (Backend, error) {
	switch Backend(value) {
	case BackendLocal, BackendS3:
		return Backend(value), nil
	default:
		return "", fmt.Errorf("unknown storage backend %q (expected one of: local, s3)", value)
	}
}

var backendSchemes = map[Backend][]string{
	BackendS3: {"s3"},
}

// Config is a validated storage configuration. Construct with Local or New.
type Config struct {
	backend   Backend
	options   map[string]string
	tableRoot *url.URL
	isolation *Isolation
}

// Local returns the local-filesystem configuration.
func Local() *Config {
	return &Config{backend: BackendLocal, options: map[string]string{}, isolation: NewIsolation(nil)}
}

// New validates options against the backend. Non-local backends require a
// table_root option whose URI scheme matches the backend.
func New(backend Backend, options map[string]string) (*Config, error) {
	if options == nil {
		options = map[string]string{}
	}
	cfg := &Config{backend: backend, options: options, isolation: NewIsolation(nil)}
	if backend == BackendLocal {
		return cfg, nil
	}

	root, ok := options[TableRootKey]
	if !ok {
		return nil, fmt.Errorf("storage option '%s=<uri>' is required when backend is not local", TableRootKey)
	}
	parsed, err := url.Parse(root)
	if err != nil {
		return nil, fmt.Errorf("invalid table_root URI '%s': %w", root, err)
	}
	if err := validateTableRootScheme(backend, parsed); err != nil {
		return nil, err
	}
	cfg.tableRoot = parsed
	return cfg, nil
}

func validateTableRootScheme(backend Backend, root *url.URL) error {
	expected := backendSchemes[backend]
	for _, scheme := range expected {
		if root.Scheme == scheme {
			return nil
		}
	}
	display := make([]string, len(expected))
	for i, scheme := range expected {
		display[i] = scheme + "://"
	}
	return fmt.Errorf("table_root '%s' is incompatible with backend %s; expected scheme one of: %s",
		root, backend, strings.Join(display, ", "))
}

// Backend reports the configured backend.
func (c *Config) Backend() Backend { return c.backend }

// IsLocal reports whether tables live on the local filesystem.
func (c *Config) IsLocal() bool { return c.backend == BackendLocal }

// ObjectStoreOptions returns the options to hand to the object-store
// client, with the table_root key removed.
func (c *Config) ObjectStoreOptions() map[string]string {
	out := make(map[string]string, len(c.options))
	for k, v := range c.options {
		if k != TableRootKey {
			out[k] = v
		}
	}
	return out
}

// FixtureTableURL returns <table_root>/<scale>/<table>. It requires a
// non-local backend.
func (c *Config) FixtureTableURL(scale, tableName string) (*url.URL, error) {
	if c.tableRoot == nil {
		return nil, fmt.Errorf("fixture table URL requires a non-local storage backend")
	}
	root := *c.tableRoot
	base := strings.TrimRight(root.Path, "/")
	if base == "" {
		root.Path = "/" + scale + "/" + tableName
	} else {
		root.Path = base + "/" + scale + "/" + tableName
	}
	return &root, nil
}

// IsolatedTableURL returns a fixture URL with a unique table name derived
// from the base name and the isolation key, so mutating cases never share a
// table. The key is sanitized; uniqueness comes from a timestamp plus a
// process-wide counter.
func (c *Config) IsolatedTableURL(scale, baseTableName, isolationKey string) (*url.URL, error) {
	if c.IsLocal() {
		return nil, fmt.Errorf("isolated table URL requires a non-local storage backend")
	}
	tableName := fmt.Sprintf("%s__isolated__%s__%s",
		baseTableName, sanitizePathComponent(isolationKey), c.isolation.Next())
	return c.FixtureTableURL(scale, tableName)
}

// TableURLFor resolves the table URL for a case: a file URL under the local
// path for the local backend, the fixture URL otherwise.
func (c *Config) TableURLFor(localTablePath, scale, tableName string) (*url.URL, error) {
	if !c.IsLocal() {
		return c.FixtureTableURL(scale, tableName)
	}
	abs, err := filepath.Abs(localTablePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create table URL for %s: %w", localTablePath, err)
	}
	return &url.URL{Scheme: "file", Path: abs + "/"}, nil
}

// Isolation mints unique isolated-table suffixes: an atomic counter plus a
// timestamp source. Each Config owns one, so tests can inject a fixed clock
// without touching process state.
type Isolation struct {
	counter atomic.Uint64
	now     func() time.Time
}

// NewIsolation returns an isolation source. A nil now uses the wall clock.
func NewIsolation(now func() time.Time) *Isolation {
	if now == nil {
		now = time.Now
	}
	return &Isolation{now: now}
}

// Next returns the next unique suffix.
func (i *Isolation) Next() string {
	return fmt.Sprintf("%d-%d", i.now().UnixNano(), i.counter.Add(1)-1)
}

// WithIsolation replaces the config's isolation source and returns the
// config, for tests that need deterministic suffixes.
func (c *Config) WithIsolation(iso *Isolation) *Config {
	c.isolation = iso
	return c
}

func sanitizePathComponent(value string) string {
	var sb strings.Builder
	sb.Grow(len(value))
	for _, ch := range value {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9',
			ch == '-', ch == '_', ch == '.':
			sb.WriteRune(ch)
		default:
			sb.WriteByte('_')
		}
	}
	trimmed := strings.Trim(sb.String(), "_")
	if trimmed == "" {
		return "table"
	}
	return trimmed
}

// LoadBackendProfileOptions reads backends/<profile>.env under root. An
// empty or "local" profile yields no options.
func LoadBackendProfileOptions(profile, root string) (map[string]string, error) {
	profile = strings.TrimSpace(profile)
	if profile == "" || profile == "local" {
		return map[string]string{}, nil
	}
	if err := validateBackendProfileName(profile); err != nil {
		return nil, err
	}

	file := filepath.Join(root, "backends", profile+".env")
	if _, err := os.Stat(file); err != nil {
		return nil, fmt.Errorf("backend profile '%s' was requested, but profile file is missing: %s", profile, file)
	}

	options, err := godotenv.Read(file)
	if err != nil {
		return nil, fmt.Errorf("invalid backend profile file '%s': %w", file, err)
	}
	return options, nil
}

func validateBackendProfileName(profile string) error {
	for _, ch := range profile {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9',
			ch == '.', ch == '-', ch == '_':
		default:
			return fmt.Errorf("invalid backend profile '%s'; allowed characters: [A-Za-z0-9._-]", profile)
		}
	}
	return nil
}

// ProfileOptionKeys returns the sorted option keys, for logging without
// leaking credential values.
func ProfileOptionKeys(options map[string]string) []string {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
