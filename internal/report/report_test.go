package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/qamerge/internal/analysis"
	"github.com/steveyegge/qamerge/internal/audit"
	"github.com/steveyegge/qamerge/internal/store"
	"github.com/steveyegge/qamerge/internal/types"
)

func TestBuildCollectsData(t *testing.T) {
	st, err := store.New([]types.IssueRecord{
		{ID: "S1", Standard: "Safety", Score: "3"},
		{ID: "S2", Standard: "Safety", Score: "2"},
		{ID: "S3", Standard: "Safety", Score: "3"},
		{ID: "E1", Standard: "Empathy", Score: "2"},
	})
	require.NoError(t, err)

	result := &analysis.Result{
		StandardsAnalysis: []analysis.StandardAnalysis{
			{Standard: "Safety", TotalIssues: 3, PriorityLevel: "high"},
		},
	}
	history := []audit.Entry{*audit.NewEntry("S1", []string{"S2"}, 0.9, "duplicate", nil)}

	d := Build(st, result, history, "issues.csv")
	assert.Equal(t, "issues.csv", d.Source)
	assert.False(t, d.GeneratedAt.IsZero())
	assert.Equal(t, 4, d.Stats.TotalIssues)
	assert.Same(t, result, d.Analysis)
	require.Len(t, d.Priorities, 1)
	assert.Equal(t, "Safety", d.Priorities[0].Standard)
	require.Len(t, d.History, 1)
}

func TestRenderFullReport(t *testing.T) {
	d := Data{
		Source:      "issues.csv",
		GeneratedAt: time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		Stats: types.Stats{
			TotalIssues: 8, OpenIssues: 5, PrimaryIssues: 1,
			MergedIssues: 2, ActiveIssues: 6, Standards: 3,
		},
		Analysis: &analysis.Result{
			Summary: analysis.Summary{
				CriticalFindings:  []string{"Crisis hotline numbers are outdated", "Empathy drops on grief prompts"},
				OverallAssessment: "Safety handling needs the most attention.",
				DatasetCoverage:   analysis.Coverage{TotalActiveIssues: 6, MergedGroups: 1, UnmergedIssues: 5, StandardsCount: 3},
			},
			StandardsAnalysis: []analysis.StandardAnalysis{{
				Standard:        "Safety",
				TotalIssues:     3,
				KeyPatterns:     []string{"outdated hotline numbers"},
				PriorityLevel:   "high",
				Recommendations: []string{"refresh crisis resources"},
			}},
			PriorityAreas: []analysis.PriorityArea{{
				Area:              "Crisis response",
				AffectedStandards: []string{"Safety"},
				Impact:            "Users in crisis get stale numbers",
				SuggestedFixes:    []string{"verify hotline data monthly"},
				PriorityScore:     85,
			}},
			ImprovementRoadmap: []analysis.RoadmapPhase{{
				Phase:          "1",
				FocusArea:      "Crisis response",
				Actions:        []string{"audit hotline table"},
				ExpectedImpact: "fewer stale referrals",
				Complexity:     "high",
			}},
		},
		Priorities: []analysis.StandardPriority{{
			Standard: "Safety", PriorityScore: 70.5, IssueCount: 3,
			AvgSeverity: 2.67, HasMergedIssues: true,
		}},
		History: []audit.Entry{{
			ID:              "abc",
			Timestamp:       time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
			Action:          "merge",
			PrimaryIssue:    "SP",
			SecondaryIssues: []string{"S9"},
			Confidence:      0.92,
			Rationale:       "same hotline mixup",
		}},
	}

	out := Render(d)
	wants := []string{
		"# Suzy QA Analysis Report",
		"Generated on 2026-01-15 10:30:00",
		"Source: `issues.csv`",
		"| Total issues | 8 |",
		"| Merged groups | 1 |",
		"## Executive Summary",
		"This analysis covers 6 active issues:",
		"- 1 merged issue groups",
		"### Critical Findings",
		"1. Crisis hotline numbers are outdated",
		"2. Empathy drops on grief prompts",
		"### Standard: Safety",
		"Priority Level: HIGH",
		"Total Issues: 3",
		"1. outdated hotline numbers",
		"1. refresh crisis resources",
		"### Crisis response",
		"Priority Score: 85.0/100",
		"Impact: Users in crisis get stale numbers",
		"1. verify hotline data monthly",
		"## Standard Priorities",
		"| Safety | 70.5 | 3 | 2.67 | yes |",
		"### Phase 1: Crisis response",
		"Complexity: HIGH",
		"Expected Impact: fewer stale referrals",
		"1. audit hotline table",
		"## Merge History",
		"2026-01-10 09:00: merged S9 into SP (confidence 0.92): same hotline mixup",
	}
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("rendered report missing %q", want)
		}
	}
}

func TestRenderStatisticsOnly(t *testing.T) {
	d := Data{
		GeneratedAt: time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		Stats:       types.Stats{TotalIssues: 4, OpenIssues: 4, ActiveIssues: 4, Standards: 2},
	}

	out := Render(d)
	assert.Contains(t, out, "Model analysis was not run")
	assert.Contains(t, out, "## Dataset Overview")
	assert.Contains(t, out, "No merges recorded.")
	assert.NotContains(t, out, "## Executive Summary")
	assert.NotContains(t, out, "## Standards Analysis")
	assert.NotContains(t, out, "## Improvement Roadmap")
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	d := Data{GeneratedAt: time.Now(), Stats: types.Stats{TotalIssues: 1}}
	require.NoError(t, Write(path, d))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# Suzy QA Analysis Report")

	d.Stats.TotalIssues = 2
	require.NoError(t, Write(path, d))
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "| Total issues | 2 |")
}
