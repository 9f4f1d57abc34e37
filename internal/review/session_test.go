package review

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/chzyer/readline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/qamerge/internal/audit"
	"github.com/steveyegge/qamerge/internal/merge"
	"github.com/steveyegge/qamerge/internal/store"
	"github.com/steveyegge/qamerge/internal/types"
)

// scriptedReader replays canned prompt responses. Once the script is
// exhausted it reports EOF, which the session treats as quitting.
type scriptedReader struct {
	steps []step
	pos   int
}

type step struct {
	line string
	err  error
}

func lines(ls ...string) *scriptedReader {
	r := &scriptedReader{}
	for _, l := range ls {
		r.steps = append(r.steps, step{line: l})
	}
	return r
}

func (r *scriptedReader) Readline() (string, error) {
	if r.pos >= len(r.steps) {
		return "", io.EOF
	}
	s := r.steps[r.pos]
	r.pos++
	return s.line, s.err
}

func (r *scriptedReader) SetPrompt(string) {}

func reviewStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New([]types.IssueRecord{
		{ID: "A1", Standard: "Safety", InputPrompt: "hotline request", FailureRationale: "wrong number", Score: "3"},
		{ID: "A2", Standard: "Safety", InputPrompt: "crisis escalation", FailureRationale: "no escalation", Score: "2"},
		{ID: "A3", Standard: "Safety", InputPrompt: "self-harm mention", FailureRationale: "stale referral", Score: "2.5"},
		{ID: "B1", Standard: "Empathy", InputPrompt: "user grieving", FailureRationale: "dismissive", Score: "1.5"},
		{ID: "B2", Standard: "Empathy", InputPrompt: "user lost job", FailureRationale: "small talk", Score: "2"},
	})
	require.NoError(t, err)
	return st
}

func reviewSession(t *testing.T, groups []types.MergeGroup) (*Session, *audit.Auditor) {
	t.Helper()
	auditor := audit.New(filepath.Join(t.TempDir(), audit.DefaultFileName))
	s, err := New(&Config{
		Store:    reviewStore(t),
		Executor: merge.NewExecutor(auditor, nil),
		Groups:   groups,
	})
	require.NoError(t, err)
	return s, auditor
}

func twoGroups() []types.MergeGroup {
	return []types.MergeGroup{
		{Issues: []string{"A1", "A2", "A3"}, Rationale: "same hotline table", Confidence: 0.92},
		{Issues: []string{"B1", "B2"}, Rationale: "tone drops on loss", Confidence: 0.85},
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(&Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store is required")

	_, err = New(&Config{Store: reviewStore(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executor is required")
}

func TestRunApplyAll(t *testing.T) {
	s, auditor := reviewSession(t, twoGroups())

	res, err := s.run(context.Background(), lines("a", "a"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	assert.Equal(t, 0, res.Skipped)
	assert.False(t, res.Quit)

	a1, ok := res.Store.Get("A1")
	require.True(t, ok)
	assert.Equal(t, types.StatusPrimary, a1.Status)
	assert.Equal(t, []string{"A2", "A3"}, a1.MergedIDs)
	b2, ok := res.Store.Get("B2")
	require.True(t, ok)
	assert.Equal(t, types.StatusMerged, b2.Status)
	assert.Equal(t, "B1", b2.MergedWith)

	history, err := auditor.History(true)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestRunSkip(t *testing.T) {
	s, auditor := reviewSession(t, twoGroups())

	res, err := s.run(context.Background(), lines("s", "a"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, res.Skipped)

	a1, ok := res.Store.Get("A1")
	require.True(t, ok)
	assert.Equal(t, types.StatusOpen, a1.Status)

	history, err := auditor.History(true)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRunQuitEarly(t *testing.T) {
	s, _ := reviewSession(t, twoGroups())

	res, err := s.run(context.Background(), lines("a", "q"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.True(t, res.Quit)
}

func TestRunEOFStops(t *testing.T) {
	s, _ := reviewSession(t, twoGroups())

	res, err := s.run(context.Background(), lines("a"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.True(t, res.Quit)
}

func TestRunEditThenApply(t *testing.T) {
	s, _ := reviewSession(t, twoGroups())

	// Toggle A3 out of the first group, then apply both groups.
	res, err := s.run(context.Background(), lines("e", "A3", "a", "a"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)

	a1, ok := res.Store.Get("A1")
	require.True(t, ok)
	assert.Equal(t, types.StatusPrimary, a1.Status)
	assert.Equal(t, []string{"A2"}, a1.MergedIDs)

	a3, ok := res.Store.Get("A3")
	require.True(t, ok)
	assert.Equal(t, types.StatusOpen, a3.Status, "deselected issue stays open")
}

func TestRunApplyFailureKeepsGroupPending(t *testing.T) {
	// A1 and B1 belong to different standards, so the merge is
	// rejected and the operator has to decide again.
	s, auditor := reviewSession(t, []types.MergeGroup{
		{Issues: []string{"A1", "B1"}, Rationale: "bad candidate", Confidence: 0.9},
	})

	res, err := s.run(context.Background(), lines("a", "s"))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Applied)
	assert.Equal(t, 1, res.Skipped)

	a1, ok := res.Store.Get("A1")
	require.True(t, ok)
	assert.Equal(t, types.StatusOpen, a1.Status)

	history, err := auditor.History(true)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRunUnknownCommandReprompts(t *testing.T) {
	s, _ := reviewSession(t, twoGroups())

	res, err := s.run(context.Background(), lines("x", "", "a", "a"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
}

func TestRunInterruptReprompts(t *testing.T) {
	s, _ := reviewSession(t, twoGroups())

	r := &scriptedReader{steps: []step{
		{err: readline.ErrInterrupt},
		{line: "a"},
		{line: "a"},
	}}
	res, err := s.run(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
}

func TestRunContextCanceled(t *testing.T) {
	s, _ := reviewSession(t, twoGroups())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.run(ctx, lines("a", "a"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestToggle(t *testing.T) {
	tests := []struct {
		name         string
		selected     []string
		toggles      []string
		wantSelected []string
		wantWarnings int
	}{
		{
			name:         "deselect one secondary",
			toggles:      []string{"A3"},
			wantSelected: []string{"A1", "A2"},
		},
		{
			name:         "reselect restores full proposal",
			selected:     []string{"A1", "A2"},
			toggles:      []string{"A3"},
			wantSelected: nil,
		},
		{
			name:         "primary cannot be dropped",
			toggles:      []string{"A1"},
			wantSelected: nil,
			wantWarnings: 1,
		},
		{
			name:         "unknown id warns",
			toggles:      []string{"ZZ"},
			wantSelected: nil,
			wantWarnings: 1,
		},
		{
			name:         "mixed toggle",
			toggles:      []string{"A2", "ZZ", "A3"},
			wantSelected: []string{"A1"},
			wantWarnings: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			group := types.MergeGroup{
				Issues:     []string{"A1", "A2", "A3"},
				Confidence: 0.9,
				Selected:   tt.selected,
			}
			warnings := toggle(&group, tt.toggles)
			assert.Equal(t, tt.wantSelected, group.Selected)
			assert.Len(t, warnings, tt.wantWarnings)
		})
	}
}

func TestConfidenceClass(t *testing.T) {
	tests := []struct {
		confidence float64
		want       string
	}{
		{0.95, "high"},
		{0.9, "high"},
		{0.89, "medium"},
		{0.7, "medium"},
		{0.69, "low"},
		{0.1, "low"},
	}
	for _, tt := range tests {
		if got := confidenceClass(tt.confidence); got != tt.want {
			t.Errorf("confidenceClass(%v) = %q, want %q", tt.confidence, got, tt.want)
		}
	}
}
