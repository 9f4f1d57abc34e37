package merge

import (
	"strings"

	"github.com/steveyegge/qamerge/internal/store"
	"github.com/steveyegge/qamerge/internal/types"
)

// Validate checks whether the given ids can merge into one primary.
// The first id is the primary candidate. Checks run in order and stop
// at the first failure; the returned reason is shown to the operator
// verbatim. Pure read of the store, no side effects.
func Validate(st *store.Store, issueIDs []string) (bool, string) {
	if len(issueIDs) < 2 {
		return false, "Need at least 2 issues to merge"
	}

	var missing []string
	for _, id := range issueIDs {
		if _, ok := st.Get(id); !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return false, "Issues not found: " + strings.Join(missing, ", ")
	}

	seen := make(map[string]bool, len(issueIDs))
	dupSeen := make(map[string]bool)
	var dups []string
	for _, id := range issueIDs {
		if seen[id] && !dupSeen[id] {
			dupSeen[id] = true
			dups = append(dups, id)
		}
		seen[id] = true
	}
	if len(dups) > 0 {
		return false, "Duplicate issues in group: " + strings.Join(dups, ", ")
	}

	var alreadyMerged []string
	for _, id := range issueIDs {
		rec, _ := st.Get(id)
		if rec.Status == types.StatusMerged {
			alreadyMerged = append(alreadyMerged, id)
		}
	}
	if len(alreadyMerged) > 0 {
		return false, "Issues already merged: " + strings.Join(alreadyMerged, ", ")
	}

	// a primary may absorb more issues, but only as the group's head;
	// absorbing a primary would orphan its children's links
	var primaries []string
	for _, id := range issueIDs[1:] {
		rec, _ := st.Get(id)
		if rec.Status == types.StatusPrimary {
			primaries = append(primaries, id)
		}
	}
	if len(primaries) > 0 {
		return false, "Cannot merge primary issues as secondaries: " + strings.Join(primaries, ", ")
	}

	seenStd := make(map[string]bool)
	var standards []string
	for _, id := range issueIDs {
		rec, _ := st.Get(id)
		if !seenStd[rec.Standard] {
			seenStd[rec.Standard] = true
			standards = append(standards, rec.Standard)
		}
	}
	if len(standards) > 1 {
		return false, "Issues have different standards: " + strings.Join(standards, ", ")
	}

	return true, ""
}
