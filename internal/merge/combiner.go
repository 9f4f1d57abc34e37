package merge

import (
	"strconv"
	"strings"

	"github.com/steveyegge/qamerge/internal/types"
)

// Combine folds the member values of one content field into the value
// the primary keeps. Blank entries are dropped and exact duplicates
// collapse to their first occurrence before the field policy applies;
// an empty survivor set yields "". Deterministic: same inputs, same
// output, every call.
func Combine(fieldName string, values []string) string {
	var survivors []string
	seen := make(map[string]bool)
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		survivors = append(survivors, v)
	}
	if len(survivors) == 0 {
		return ""
	}

	switch fieldName {
	case types.ColScore:
		return maxScore(survivors)
	case types.ColFailureRationale:
		return bulletJoin(survivors)
	case types.ColInvestigationNotes:
		return noteJoin(survivors)
	}
	return survivors[0]
}

// maxScore returns the survivor with the highest numeric value, in
// its original string form (worst-case severity dominates). Survivors
// that do not parse are skipped; if none parse the first survivor
// wins. Ties keep the earlier value.
func maxScore(values []string) string {
	best := ""
	bestVal := 0.0
	for _, v := range values {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			continue
		}
		if best == "" || f > bestVal {
			best = v
			bestVal = f
		}
	}
	if best == "" {
		return values[0]
	}
	return best
}

func bulletJoin(values []string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, "• "+v)
	}
	return strings.Join(parts, "\n")
}

func noteJoin(values []string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, "[Previous Note] "+v)
	}
	return strings.Join(parts, "\n\n")
}
