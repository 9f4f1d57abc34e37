package suggest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/natefinch/atomic"

	"github.com/steveyegge/qamerge/internal/types"
)

// DefaultFileName is where qamerge suggest writes unless told otherwise.
const DefaultFileName = "suggestions.json"

// Suggestions is the on-disk candidate set: qamerge suggest writes it
// so review can run later without calling the oracle again.
type Suggestions struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Source      string             `json:"source"`    // issue table the candidates came from
	Threshold   float64            `json:"threshold"` // acceptance threshold in force at suggest time
	Groups      []types.MergeGroup `json:"groups"`
}

// Save writes the candidate set atomically.
func Save(path string, s Suggestions) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode suggestions: %w", err)
	}
	data = append(data, '\n')
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write suggestions: %w", err)
	}
	return nil
}

// Load reads a candidate set back and re-validates every group so a
// hand-edited file cannot put a malformed group in front of review.
func Load(path string) (Suggestions, error) {
	var s Suggestions
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read suggestions: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse suggestions: %w", err)
	}
	for i, g := range s.Groups {
		rebuilt, err := types.NewMergeGroup(g.Issues, g.Rationale, g.Confidence)
		if err != nil {
			return s, fmt.Errorf("suggestions group %d is invalid: %w", i, err)
		}
		rebuilt.Selected = g.Selected
		s.Groups[i] = rebuilt
	}
	return s, nil
}
