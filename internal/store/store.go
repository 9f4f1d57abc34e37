// Package store holds the in-memory issue table and its CSV codec.
//
// A Store is a snapshot: reads hand out copies, and the merge executor
// derives a new snapshot rather than mutating the one callers hold.
// Swapping the reference after a successful merge is the commit.
package store

import (
	"fmt"

	"github.com/steveyegge/qamerge/internal/types"
)

// SchemaError reports a table that cannot be ingested: missing
// required columns, an unrecognized status, an invalid score, or
// duplicate issue ids. No store is constructed when one is returned.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: %s", e.Reason)
}

// StandardGroup is the set of records sharing one Linked Standard,
// in table order
type StandardGroup struct {
	Standard string
	Records  []types.IssueRecord
}

// Store is a snapshot of the issue table
type Store struct {
	records []types.IssueRecord
	index   map[string]int

	// columns is the output header order; present tracks which
	// optional columns the loaded file carried
	columns []string
	present map[string]bool
}

// New builds a store over the given records with the full standard
// column set. Records are validated and ids must be unique.
func New(records []types.IssueRecord) (*Store, error) {
	return newStore(records, defaultColumns())
}

func newStore(records []types.IssueRecord, columns []string) (*Store, error) {
	s := &Store{
		records: make([]types.IssueRecord, 0, len(records)),
		index:   make(map[string]int, len(records)),
		columns: columns,
		present: make(map[string]bool, len(columns)),
	}
	for _, col := range columns {
		s.present[col] = true
	}
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, &SchemaError{Reason: err.Error()}
		}
		if _, exists := s.index[rec.ID]; exists {
			return nil, &SchemaError{Reason: fmt.Sprintf("duplicate issue id: %s", rec.ID)}
		}
		s.index[rec.ID] = len(s.records)
		s.records = append(s.records, *rec.Clone())
	}
	return s, nil
}

// Len returns the number of records in the table
func (s *Store) Len() int {
	return len(s.records)
}

// Get returns a copy of the record with the given id
func (s *Store) Get(id string) (*types.IssueRecord, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.records[i].Clone(), true
}

// Records returns copies of all records in table order
func (s *Store) Records() []types.IssueRecord {
	out := make([]types.IssueRecord, 0, len(s.records))
	for i := range s.records {
		out = append(out, *s.records[i].Clone())
	}
	return out
}

// Open returns copies of all records still in the open state,
// in table order
func (s *Store) Open() []types.IssueRecord {
	var out []types.IssueRecord
	for i := range s.records {
		if s.records[i].Status == types.StatusOpen {
			out = append(out, *s.records[i].Clone())
		}
	}
	return out
}

// Active returns copies of all open and primary records. Merged
// records are historical and excluded.
func (s *Store) Active() []types.IssueRecord {
	var out []types.IssueRecord
	for i := range s.records {
		switch s.records[i].Status {
		case types.StatusOpen, types.StatusPrimary:
			out = append(out, *s.records[i].Clone())
		}
	}
	return out
}

// OpenByStandard groups the open records by Linked Standard in
// first-seen table order
func (s *Store) OpenByStandard() []StandardGroup {
	var groups []StandardGroup
	pos := make(map[string]int)
	for i := range s.records {
		rec := &s.records[i]
		if rec.Status != types.StatusOpen {
			continue
		}
		p, ok := pos[rec.Standard]
		if !ok {
			p = len(groups)
			pos[rec.Standard] = p
			groups = append(groups, StandardGroup{Standard: rec.Standard})
		}
		groups[p].Records = append(groups[p].Records, *rec.Clone())
	}
	return groups
}

// Stats returns aggregate merge-state counts for the table
func (s *Store) Stats() types.Stats {
	stats := types.Stats{TotalIssues: len(s.records)}
	standards := make(map[string]bool)
	for i := range s.records {
		standards[s.records[i].Standard] = true
		switch s.records[i].Status {
		case types.StatusOpen:
			stats.OpenIssues++
		case types.StatusPrimary:
			stats.PrimaryIssues++
		case types.StatusMerged:
			stats.MergedIssues++
		}
	}
	stats.ActiveIssues = stats.OpenIssues + stats.PrimaryIssues
	stats.Standards = len(standards)
	return stats
}

// HasColumn reports whether the loaded table carries the named column
func (s *Store) HasColumn(name string) bool {
	return s.present[name]
}

// Columns returns the output header order for this table
func (s *Store) Columns() []string {
	return append([]string(nil), s.columns...)
}

// Snapshot returns a deep copy sharing no mutable state with the
// receiver
func (s *Store) Snapshot() *Store {
	c := &Store{
		records: make([]types.IssueRecord, 0, len(s.records)),
		index:   make(map[string]int, len(s.index)),
		columns: append([]string(nil), s.columns...),
		present: make(map[string]bool, len(s.present)),
	}
	for i := range s.records {
		c.records = append(c.records, *s.records[i].Clone())
	}
	for id, i := range s.index {
		c.index[id] = i
	}
	for col, ok := range s.present {
		c.present[col] = ok
	}
	return c
}

// Update replaces the stored record with the same id. The record is
// validated, the standard is immutable, status changes must follow
// the merge lifecycle, and a merged_with link is write-once.
func (s *Store) Update(rec *types.IssueRecord) error {
	i, ok := s.index[rec.ID]
	if !ok {
		return fmt.Errorf("issue not found: %s", rec.ID)
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid update for %s: %w", rec.ID, err)
	}
	old := &s.records[i]
	if rec.Standard != old.Standard {
		return fmt.Errorf("issue %s: standard is immutable (%q → %q)", rec.ID, old.Standard, rec.Standard)
	}
	if rec.Status != old.Status && !old.Status.CanTransitionTo(rec.Status) {
		return fmt.Errorf("issue %s: invalid status transition %s → %s", rec.ID, old.Status, rec.Status)
	}
	if old.MergedWith != "" && rec.MergedWith != old.MergedWith {
		return fmt.Errorf("issue %s: merged_with is write-once", rec.ID)
	}
	s.records[i] = *rec.Clone()
	return nil
}

// CheckInvariants verifies the full cross-record merge invariant:
// every record passes Validate, every primary's children exist as
// merged records pointing back at it with the same standard, and
// every merged record's parent is a primary listing it.
func (s *Store) CheckInvariants() error {
	for i := range s.records {
		rec := &s.records[i]
		if err := rec.Validate(); err != nil {
			return err
		}
		switch rec.Status {
		case types.StatusPrimary:
			for _, childID := range rec.MergedIDs {
				j, ok := s.index[childID]
				if !ok {
					return fmt.Errorf("primary %s lists missing issue %s", rec.ID, childID)
				}
				child := &s.records[j]
				if child.Status != types.StatusMerged {
					return fmt.Errorf("primary %s lists %s which is %s, not merged", rec.ID, childID, child.Status)
				}
				if child.MergedWith != rec.ID {
					return fmt.Errorf("issue %s merged into %s but listed by %s", childID, child.MergedWith, rec.ID)
				}
				if child.Standard != rec.Standard {
					return fmt.Errorf("primary %s and child %s have different standards", rec.ID, childID)
				}
			}
		case types.StatusMerged:
			j, ok := s.index[rec.MergedWith]
			if !ok {
				return fmt.Errorf("issue %s merged into missing issue %s", rec.ID, rec.MergedWith)
			}
			parent := &s.records[j]
			if parent.Status != types.StatusPrimary {
				return fmt.Errorf("issue %s merged into %s which is %s, not primary", rec.ID, rec.MergedWith, parent.Status)
			}
			if !containsID(parent.MergedIDs, rec.ID) {
				return fmt.Errorf("issue %s merged into %s but not listed in its merged_ids", rec.ID, rec.MergedWith)
			}
		}
	}
	return nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func defaultColumns() []string {
	return []string{
		types.ColIssueID,
		types.ColResultID,
		types.ColTestCaseIDs,
		types.ColInputPrompt,
		types.ColGroundTruth,
		types.ColGeneratedResponse,
		types.ColTheme,
		types.ColStandard,
		types.ColSessionIDs,
		types.ColVersionTested,
		types.ColRunDate,
		types.ColFailureRationale,
		types.ColScore,
		types.ColInvestigationNotes,
		types.ColComments,
		types.ColStatus,
		types.ColMergedWith,
		types.ColMergedIDs,
	}
}

// RequiredColumns is the minimum header set a loadable table must
// carry, in canonical order
func RequiredColumns() []string {
	return []string{
		types.ColIssueID,
		types.ColResultID,
		types.ColTestCaseIDs,
		types.ColInputPrompt,
		types.ColGroundTruth,
		types.ColGeneratedResponse,
		types.ColTheme,
		types.ColStandard,
		types.ColSessionIDs,
		types.ColVersionTested,
		types.ColRunDate,
		types.ColFailureRationale,
		types.ColScore,
	}
}
