// Package audit persists the append-only merge history as JSONL.
// Every successful merge writes exactly one line; the log is the
// recovery record for an otherwise irreversible operation.
package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// DefaultFileName is the audit log file name used when no path is
// configured.
const DefaultFileName = "merge_audit.jsonl"

// ActionMerge is the only action recorded today. The field exists so
// the log stays self-describing if other irreversible operations are
// ever recorded.
const ActionMerge = "merge"

// ErrLocked is returned when another process holds the audit lock.
var ErrLocked = errors.New("another merge is in progress")

// Entry is one audit event. Entries are written once and never
// mutated.
type Entry struct {
	ID              string            `json:"id"`
	Timestamp       time.Time         `json:"timestamp"`
	Action          string            `json:"action"`
	PrimaryIssue    string            `json:"primary_issue"`
	SecondaryIssues []string          `json:"secondary_issues"`
	Confidence      float64           `json:"confidence"`
	Rationale       string            `json:"rationale"`
	CombinedFields  map[string]string `json:"combined_fields,omitempty"`
}

// NewEntry builds a merge entry with a fresh id and UTC timestamp
func NewEntry(primary string, secondaries []string, confidence float64, rationale string, combined map[string]string) *Entry {
	return &Entry{
		ID:              uuid.NewString(),
		Timestamp:       time.Now().UTC(),
		Action:          ActionMerge,
		PrimaryIssue:    primary,
		SecondaryIssues: append([]string(nil), secondaries...),
		Confidence:      confidence,
		Rationale:       rationale,
		CombinedFields:  combined,
	}
}

// Auditor appends to and reads one audit log file
type Auditor struct {
	path string
}

// New returns an auditor over the log file at path. The file is
// created on first append, not here.
func New(path string) *Auditor {
	if path == "" {
		path = DefaultFileName
	}
	return &Auditor{path: path}
}

// Path returns the audit log location
func (a *Auditor) Path() string {
	return a.path
}

// Append writes one entry as a single JSON line. An exclusive sidecar
// lock serializes appends across processes; a held lock returns
// ErrLocked rather than risking interleaved lines.
func (a *Auditor) Append(e *Entry) error {
	if e == nil {
		return fmt.Errorf("nil entry")
	}
	if e.Action == "" {
		return fmt.Errorf("action is required")
	}

	if err := os.MkdirAll(filepath.Dir(a.path), 0750); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}

	lock := flock.New(a.path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring audit lock: %w", err)
	}
	if !locked {
		return ErrLocked
	}
	defer func() { _ = lock.Unlock() }()

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush audit log: %w", err)
	}
	return nil
}

// History returns all entries in append order. useCache=false and a
// missing file both yield an empty history. A line that does not
// parse fails loudly with its line number; the log is the only record
// of what was merged, so silent skips are not acceptable.
func (a *Auditor) History(useCache bool) ([]Entry, error) {
	if !useCache {
		return nil, nil
	}

	f, err := os.Open(a.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(text, &e); err != nil {
			return nil, fmt.Errorf("corrupt audit entry at line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return entries, nil
}

// Clear removes the log file, reporting whether one existed
func (a *Auditor) Clear() (bool, error) {
	lock := flock.New(a.path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquiring audit lock: %w", err)
	}
	if !locked {
		return false, ErrLocked
	}
	defer func() { _ = lock.Unlock() }()

	if err := os.Remove(a.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to remove audit log: %w", err)
	}
	return true, nil
}
