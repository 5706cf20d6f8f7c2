package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// logDirName is the transaction log directory inside a table directory.
const logDirName = "_lake_log"

// FileStats carries per-file column statistics used for pruning scans.
type FileStats struct {
	MinID   int64 `json:"min_id"`
	MaxID   int64 `json:"max_id"`
	MinTSMS int64 `json:"min_ts_ms"`
	MaxTSMS int64 `json:"max_ts_ms"`
}

// AddFile records a data file entering the table at some version.
type AddFile struct {
	Path      string     `json:"path"`
	SizeBytes uint64     `json:"size_bytes"`
	Rows      uint64     `json:"rows"`
	Stats     *FileStats `json:"stats,omitempty"`
}

// LogEntry is one committed table version.
type LogEntry struct {
	Version     uint64    `json:"version"`
	Operation   string    `json:"operation"`
	CommittedAt time.Time `json:"committed_at"`
	Add         []AddFile `json:"add,omitempty"`
	Remove      []string  `json:"remove,omitempty"`
}

// TableLog is the ordered list of committed versions of one table.
type TableLog struct {
	dir     string
	entries []LogEntry
}

// OpenTableLog reads the log of an existing table.
func OpenTableLog(tableDir string) (*TableLog, error) {
	logDir := filepath.Join(tableDir, logDirName)
	names, err := os.ReadDir(logDir)
	if err != nil {
		return nil, fmt.Errorf("table %s has no log: %w", tableDir, err)
	}

	var files []string
	for _, e := range names {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("table %s has an empty log", tableDir)
	}

	log := &TableLog{dir: tableDir}
	for i, name := range files {
		data, err := os.ReadFile(filepath.Join(logDir, name))
		if err != nil {
			return nil, err
		}
		var entry LogEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("corrupt log entry %s: %w", name, err)
		}
		if entry.Version != uint64(i) {
			return nil, fmt.Errorf("log entry %s carries version %d, expected %d", name, entry.Version, i)
		}
		log.entries = append(log.entries, entry)
	}
	return log, nil
}

// InitTableLog creates an empty log for a new table directory.
func InitTableLog(tableDir string) (*TableLog, error) {
	if err := os.MkdirAll(filepath.Join(tableDir, logDirName), 0o755); err != nil {
		return nil, err
	}
	return &TableLog{dir: tableDir}, nil
}

// Dir returns the table directory.
func (l *TableLog) Dir() string { return l.dir }

// Version returns the current table version. Calling it on a log with no
// commits is a programming error; Commit always runs first.
func (l *TableLog) Version() uint64 {
	return uint64(len(l.entries)) - 1
}

// Commit appends a new version to the log.
func (l *TableLog) Commit(operation string, add []AddFile, remove []string) (uint64, error) {
	version := uint64(len(l.entries))
	entry := LogEntry{
		Version:     version,
		Operation:   operation,
		CommittedAt: time.Now().UTC(),
		Add:         add,
		Remove:      remove,
	}
	data, err := json.MarshalIndent(&entry, "", "  ")
	if err != nil {
		return 0, err
	}
	path := filepath.Join(l.dir, logDirName, fmt.Sprintf("%08d.json", version))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, err
	}
	l.entries = append(l.entries, entry)
	return version, nil
}

// FilesAt replays the log up to and including version and returns the
// active files in commit order.
func (l *TableLog) FilesAt(version uint64) ([]AddFile, error) {
	if version >= uint64(len(l.entries)) {
		return nil, fmt.Errorf("table %s has no version %d (latest is %d)", l.dir, version, l.Version())
	}
	active := make(map[string]AddFile)
	var order []string
	for _, entry := range l.entries[:version+1] {
		for _, removed := range entry.Remove {
			delete(active, removed)
		}
		for _, added := range entry.Add {
			if _, seen := active[added.Path]; !seen {
				order = append(order, added.Path)
			}
			active[added.Path] = added
		}
	}
	out := make([]AddFile, 0, len(active))
	for _, path := range order {
		if f, ok := active[path]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// Files returns the active files at the current version.
func (l *TableLog) Files() ([]AddFile, error) {
	return l.FilesAt(l.Version())
}

// Entries returns the committed log entries in version order.
func (l *TableLog) Entries() []LogEntry {
	return l.entries
}

// DeadFiles returns files that were added at some version but are no longer
// active, the candidates for vacuum.
func (l *TableLog) DeadFiles() ([]string, error) {
	current, err := l.Files()
	if err != nil {
		return nil, err
	}
	activeSet := make(map[string]struct{}, len(current))
	for _, f := range current {
		activeSet[f.Path] = struct{}{}
	}

	seen := make(map[string]struct{})
	var dead []string
	for _, entry := range l.entries {
		for _, added := range entry.Add {
			if _, active := activeSet[added.Path]; active {
				continue
			}
			if _, dup := seen[added.Path]; dup {
				continue
			}
			seen[added.Path] = struct{}{}
			dead = append(dead, added.Path)
		}
	}
	return dead, nil
}
