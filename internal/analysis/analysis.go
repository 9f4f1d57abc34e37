// Package analysis builds the active-issue digest sent to the model
// and computes the deterministic per-standard priority ranking from
// the issue table. The qualitative half of a report comes from the
// model; the scoring half is local and reproducible.
package analysis

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/steveyegge/qamerge/internal/store"
	"github.com/steveyegge/qamerge/internal/types"
)

// Coverage counts what an analysis run looked at.
type Coverage struct {
	TotalActiveIssues int `json:"total_active_issues"`
	MergedGroups      int `json:"merged_groups"`
	UnmergedIssues    int `json:"unmerged_issues"`
	StandardsCount    int `json:"standards_count"`
}

// IssueDigest is one issue as it appears in the analysis payload.
type IssueDigest struct {
	IssueID          string  `json:"issue_id"`
	InputPrompt      string  `json:"input_prompt"`
	FailureRationale string  `json:"failure_rationale"`
	Score            float64 `json:"score"`
	Status           string  `json:"status"`
	IsMergedGroup    bool    `json:"is_merged_group"`
}

// Request is the dataset digest an analysis prompt is built from.
// Standards preserves first-seen table order; Issues is keyed by
// standard name.
type Request struct {
	Coverage  Coverage
	Standards []string
	Issues    map[string][]IssueDigest
}

// BuildRequest digests the store's active issues (open records plus
// primary groups). Records already absorbed into a group are excluded
// so the model does not count the same failure twice.
func BuildRequest(st *store.Store) Request {
	req := Request{Issues: make(map[string][]IssueDigest)}
	active := st.Active()
	for _, rec := range active {
		if _, seen := req.Issues[rec.Standard]; !seen {
			req.Standards = append(req.Standards, rec.Standard)
		}
		score, _ := strconv.ParseFloat(strings.TrimSpace(rec.Score), 64)
		req.Issues[rec.Standard] = append(req.Issues[rec.Standard], IssueDigest{
			IssueID:          rec.ID,
			InputPrompt:      rec.InputPrompt,
			FailureRationale: rec.FailureRationale,
			Score:            score,
			Status:           rec.Status.String(),
			IsMergedGroup:    rec.Status == types.StatusPrimary,
		})
		if rec.Status == types.StatusPrimary {
			req.Coverage.MergedGroups++
		} else {
			req.Coverage.UnmergedIssues++
		}
	}
	req.Coverage.TotalActiveIssues = len(active)
	req.Coverage.StandardsCount = len(req.Standards)
	return req
}

// Result is the model's full analysis of the dataset.
type Result struct {
	Summary            Summary            `json:"summary"`
	StandardsAnalysis  []StandardAnalysis `json:"standards_analysis"`
	PriorityAreas      []PriorityArea     `json:"priority_areas"`
	ImprovementRoadmap []RoadmapPhase     `json:"improvement_roadmap"`
}

// Summary is the executive-summary block of a Result.
type Summary struct {
	CriticalFindings  []string `json:"critical_findings"`
	OverallAssessment string   `json:"overall_assessment"`
	DatasetCoverage   Coverage `json:"dataset_coverage"`
}

// StandardAnalysis is the model's read on one quality standard.
type StandardAnalysis struct {
	Standard        string   `json:"standard"`
	TotalIssues     int      `json:"total_issues"`
	KeyPatterns     []string `json:"key_patterns"`
	PriorityLevel   string   `json:"priority_level"` // high/medium/low
	Recommendations []string `json:"recommendations"`
}

// PriorityArea is a cross-standard problem area the model flagged.
type PriorityArea struct {
	Area              string   `json:"area"`
	AffectedStandards []string `json:"affected_standards"`
	Impact            string   `json:"impact"`
	SuggestedFixes    []string `json:"suggested_fixes"`
	PriorityScore     float64  `json:"priority_score"` // 0-100
}

// RoadmapPhase is one phase of the model's improvement roadmap.
type RoadmapPhase struct {
	Phase          string   `json:"phase"`
	FocusArea      string   `json:"focus_area"`
	Actions        []string `json:"actions"`
	ExpectedImpact string   `json:"expected_impact"`
	Complexity     string   `json:"complexity"` // high/medium/low
}

// StandardPriority is the locally computed ranking for one standard,
// pairing the deterministic score with the model's observations for
// that standard.
type StandardPriority struct {
	Standard        string   `json:"standard"`
	PriorityScore   float64  `json:"priority_score"`
	IssueCount      int      `json:"issue_count"`
	AvgSeverity     float64  `json:"avg_severity"`
	HasMergedIssues bool     `json:"has_merged_issues"`
	KeyPatterns     []string `json:"key_patterns"`
	Recommendations []string `json:"recommendations"`
}

// ScorePriority rates a standard 0-100. Issue volume contributes up to
// 40 points (5 per issue), average severity up to 40 (scaled so a 3.0
// average maxes out), and a standard that already produced a merged
// group gets a 20 point systemic bonus. Rounded to one decimal.
func ScorePriority(issueCount int, avgScore float64, hasMergedGroup bool) float64 {
	countScore := math.Min(40, float64(issueCount)*5)
	severityScore := math.Min(40, avgScore*13.33)
	bonus := 0.0
	if hasMergedGroup {
		bonus = 20
	}
	return math.Round((countScore+severityScore+bonus)*10) / 10
}

// BuildStandardPriorities scores every standard the model analyzed
// against the active issue table. Standards scoring 30 or below are
// dropped; the rest sort by score descending, ties keeping the model's
// order.
func BuildStandardPriorities(st *store.Store, result *Result) []StandardPriority {
	if result == nil {
		return nil
	}
	active := st.Active()
	var priorities []StandardPriority
	for _, sa := range result.StandardsAnalysis {
		var (
			count     int
			scoreSum  float64
			scored    int
			hasMerged bool
		)
		for _, rec := range active {
			if rec.Standard != sa.Standard {
				continue
			}
			count++
			if f, err := strconv.ParseFloat(strings.TrimSpace(rec.Score), 64); err == nil {
				scoreSum += f
				scored++
			}
			if rec.Status == types.StatusPrimary {
				hasMerged = true
			}
		}
		avg := 0.0
		if scored > 0 {
			avg = scoreSum / float64(scored)
		}
		score := ScorePriority(count, avg, hasMerged)
		if score <= 30 {
			continue
		}
		priorities = append(priorities, StandardPriority{
			Standard:        sa.Standard,
			PriorityScore:   score,
			IssueCount:      count,
			AvgSeverity:     math.Round(avg*100) / 100,
			HasMergedIssues: hasMerged,
			KeyPatterns:     sa.KeyPatterns,
			Recommendations: sa.Recommendations,
		})
	}
	sort.SliceStable(priorities, func(i, j int) bool {
		return priorities[i].PriorityScore > priorities[j].PriorityScore
	})
	return priorities
}
