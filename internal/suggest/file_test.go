package suggest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/qamerge/internal/types"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suggestions.json")
	in := Suggestions{
		GeneratedAt: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		Source:      "issues.csv",
		Threshold:   0.8,
		Groups: []types.MergeGroup{
			{Issues: []string{"A1", "A2", "A3"}, Rationale: "same root cause", Confidence: 0.92},
			{Issues: []string{"B1", "B2"}, Rationale: "overlapping prompts", Confidence: 0.81, Selected: []string{"B1"}},
		},
	}
	require.NoError(t, Save(path, in))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, in.Source, out.Source)
	assert.Equal(t, in.Threshold, out.Threshold)
	assert.True(t, in.GeneratedAt.Equal(out.GeneratedAt))
	require.Len(t, out.Groups, 2)
	assert.Equal(t, []string{"A1", "A2", "A3"}, out.Groups[0].Issues)
	assert.Equal(t, 0.92, out.Groups[0].Confidence)
	assert.Equal(t, []string{"B1"}, out.Groups[1].Selected)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read suggestions")
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suggestions.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse suggestions")
}

func TestLoadRejectsInvalidGroup(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "single member group",
			body: `{"groups": [{"issues": ["A1"], "rationale": "x", "confidence": 0.9}]}`,
		},
		{
			name: "confidence out of range",
			body: `{"groups": [{"issues": ["A1", "A2"], "rationale": "x", "confidence": 1.5}]}`,
		},
		{
			name: "blank issue id",
			body: `{"groups": [{"issues": ["A1", "  "], "rationale": "x", "confidence": 0.9}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "suggestions.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0644))

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "suggestions group 0 is invalid")
		})
	}
}

func TestLoadTrimsIds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suggestions.json")
	body := `{"groups": [{"issues": [" A1 ", "A2"], "rationale": "x", "confidence": 0.9}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	out, err := Load(path)
	require.NoError(t, err)
	require.Len(t, out.Groups, 1)
	assert.Equal(t, []string{"A1", "A2"}, out.Groups[0].Issues)
}
