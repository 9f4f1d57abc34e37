package merge

import (
	"fmt"

	"github.com/steveyegge/qamerge/internal/audit"
	"github.com/steveyegge/qamerge/internal/store"
	"github.com/steveyegge/qamerge/internal/types"
)

// DefaultCombineFields is the content fields a merge folds into the
// primary, in combine order
var DefaultCombineFields = []string{
	types.ColInputPrompt,
	types.ColFailureRationale,
	types.ColScore,
	types.ColInvestigationNotes,
	types.ColComments,
}

// Executor applies merges to store snapshots and records each one in
// the audit log before the result is handed back
type Executor struct {
	auditor       *audit.Auditor
	combineFields []string
}

// NewExecutor builds an executor writing through the given auditor.
// An empty combineFields means DefaultCombineFields.
func NewExecutor(auditor *audit.Auditor, combineFields []string) *Executor {
	if len(combineFields) == 0 {
		combineFields = DefaultCombineFields
	}
	return &Executor{
		auditor:       auditor,
		combineFields: append([]string(nil), combineFields...),
	}
}

// Execute merges one group. The working id list is the operator
// selection when present, the proposed list otherwise; its first id
// becomes (or stays) the primary and the rest become its children.
//
// The caller's store is never mutated. On success the derived
// snapshot and its audit entry come back; on any failure the original
// store comes back with a nil entry. Validation failures return
// ValidationError; a failed audit append discards the snapshot and
// returns AuditWriteError.
func (e *Executor) Execute(st *store.Store, group types.MergeGroup) (*store.Store, *audit.Entry, error) {
	ids := group.Members()
	ok, reason := Validate(st, ids)
	if !ok {
		return st, nil, &ValidationError{Reason: reason}
	}

	primaryID, secondaryIDs := ids[0], ids[1:]
	next := st.Snapshot()
	primary, _ := next.Get(primaryID)

	combined := make(map[string]string, len(e.combineFields))
	for _, field := range e.combineFields {
		if !next.HasColumn(field) {
			continue
		}
		values := make([]string, 0, len(ids))
		for _, id := range ids {
			rec, _ := next.Get(id)
			if v, ok := rec.Field(field); ok {
				values = append(values, v)
			}
		}
		combined[field] = Combine(field, values)
		primary.SetField(field, combined[field])
	}

	primary.Status = types.StatusPrimary
	primary.MergedIDs = append(primary.MergedIDs, secondaryIDs...)
	if err := next.Update(primary); err != nil {
		return st, nil, fmt.Errorf("failed to update primary %s: %w", primaryID, err)
	}

	for _, id := range secondaryIDs {
		rec, _ := next.Get(id)
		rec.Status = types.StatusMerged
		rec.MergedWith = primaryID
		if err := next.Update(rec); err != nil {
			return st, nil, fmt.Errorf("failed to update %s: %w", id, err)
		}
	}

	entry := audit.NewEntry(primaryID, secondaryIDs, group.Confidence, group.Rationale, combined)
	if err := e.auditor.Append(entry); err != nil {
		return st, nil, &AuditWriteError{Err: err}
	}
	return next, entry, nil
}
