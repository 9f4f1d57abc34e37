// Package report renders the markdown QA analysis report: dataset
// statistics, the model's qualitative findings, the computed
// per-standard priority ranking, and a merge history appendix.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/steveyegge/qamerge/internal/analysis"
	"github.com/steveyegge/qamerge/internal/audit"
	"github.com/steveyegge/qamerge/internal/store"
	"github.com/steveyegge/qamerge/internal/types"
)

// DefaultFileName is where qamerge report writes unless told otherwise.
const DefaultFileName = "qa_analysis_report.md"

// Data is everything the renderer needs, collected up front so
// rendering never touches the store.
type Data struct {
	Source      string // issue table path shown in the header
	GeneratedAt time.Time
	Stats       types.Stats
	Analysis    *analysis.Result // nil degrades to a statistics-only report
	Priorities  []analysis.StandardPriority
	History     []audit.Entry
}

// Build collects report data from a store snapshot. result may be nil
// when analysis was skipped or failed.
func Build(st *store.Store, result *analysis.Result, history []audit.Entry, source string) Data {
	return Data{
		Source:      source,
		GeneratedAt: time.Now().UTC(),
		Stats:       st.Stats(),
		Analysis:    result,
		Priorities:  analysis.BuildStandardPriorities(st, result),
		History:     history,
	}
}

// Render produces the full markdown document.
func Render(d Data) string {
	var b strings.Builder

	b.WriteString("# Suzy QA Analysis Report\n\n")
	fmt.Fprintf(&b, "Generated on %s\n\n", d.GeneratedAt.Format("2006-01-02 15:04:05"))
	if d.Source != "" {
		fmt.Fprintf(&b, "Source: `%s`\n\n", d.Source)
	}

	renderStats(&b, d.Stats)

	if d.Analysis == nil {
		b.WriteString("Model analysis was not run. This report covers dataset statistics and merge history only.\n\n")
	} else {
		renderSummary(&b, d.Analysis.Summary)
		renderStandards(&b, d.Analysis.StandardsAnalysis)
		renderPriorityAreas(&b, d.Analysis.PriorityAreas)
		renderStandardPriorities(&b, d.Priorities)
		renderRoadmap(&b, d.Analysis.ImprovementRoadmap)
	}

	renderHistory(&b, d.History)

	return b.String()
}

// Write renders the report and replaces path atomically so a crash
// never leaves a half-written file behind.
func Write(path string, d Data) error {
	if err := atomic.WriteFile(path, strings.NewReader(Render(d))); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func renderStats(b *strings.Builder, s types.Stats) {
	b.WriteString("## Dataset Overview\n\n")
	b.WriteString("| Metric | Count |\n|---|---|\n")
	fmt.Fprintf(b, "| Total issues | %d |\n", s.TotalIssues)
	fmt.Fprintf(b, "| Active issues | %d |\n", s.ActiveIssues)
	fmt.Fprintf(b, "| Open issues | %d |\n", s.OpenIssues)
	fmt.Fprintf(b, "| Merged groups | %d |\n", s.PrimaryIssues)
	fmt.Fprintf(b, "| Merged away | %d |\n", s.MergedIssues)
	fmt.Fprintf(b, "| Standards | %d |\n\n", s.Standards)
}

func renderSummary(b *strings.Builder, s analysis.Summary) {
	b.WriteString("## Executive Summary\n\n")
	cov := s.DatasetCoverage
	fmt.Fprintf(b, "This analysis covers %d active issues:\n\n", cov.TotalActiveIssues)
	fmt.Fprintf(b, "- %d merged issue groups\n", cov.MergedGroups)
	fmt.Fprintf(b, "- %d unmerged individual issues\n", cov.UnmergedIssues)
	fmt.Fprintf(b, "- %d quality standards evaluated\n\n", cov.StandardsCount)
	b.WriteString("To avoid redundancy, the analysis excludes individual issues that were previously merged into groups. Each merged group represents multiple related issues that share a root cause.\n\n")

	if s.OverallAssessment != "" {
		b.WriteString(s.OverallAssessment)
		b.WriteString("\n\n")
	}
	if len(s.CriticalFindings) > 0 {
		b.WriteString("### Critical Findings\n\n")
		numbered(b, s.CriticalFindings)
		b.WriteString("\n")
	}
}

func renderStandards(b *strings.Builder, standards []analysis.StandardAnalysis) {
	if len(standards) == 0 {
		return
	}
	b.WriteString("## Standards Analysis\n\n")
	for _, std := range standards {
		fmt.Fprintf(b, "### Standard: %s\n\n", std.Standard)
		fmt.Fprintf(b, "Priority Level: %s\n\n", strings.ToUpper(std.PriorityLevel))
		fmt.Fprintf(b, "Total Issues: %d\n\n", std.TotalIssues)
		if len(std.KeyPatterns) > 0 {
			b.WriteString("Key Patterns:\n\n")
			numbered(b, std.KeyPatterns)
			b.WriteString("\n")
		}
		if len(std.Recommendations) > 0 {
			b.WriteString("Recommendations:\n\n")
			numbered(b, std.Recommendations)
			b.WriteString("\n")
		}
	}
}

func renderPriorityAreas(b *strings.Builder, areas []analysis.PriorityArea) {
	if len(areas) == 0 {
		return
	}
	b.WriteString("## Priority Areas\n\n")
	for _, area := range areas {
		fmt.Fprintf(b, "### %s\n\n", area.Area)
		fmt.Fprintf(b, "Priority Score: %.1f/100\n\n", area.PriorityScore)
		fmt.Fprintf(b, "Impact: %s\n\n", area.Impact)
		if len(area.AffectedStandards) > 0 {
			b.WriteString("Affected Standards:\n\n")
			numbered(b, area.AffectedStandards)
			b.WriteString("\n")
		}
		if len(area.SuggestedFixes) > 0 {
			b.WriteString("Suggested Fixes:\n\n")
			numbered(b, area.SuggestedFixes)
			b.WriteString("\n")
		}
	}
}

func renderStandardPriorities(b *strings.Builder, priorities []analysis.StandardPriority) {
	if len(priorities) == 0 {
		return
	}
	b.WriteString("## Standard Priorities\n\n")
	b.WriteString("Deterministic ranking computed from issue counts, severity, and merge activity. Standards scoring 30 or below are omitted.\n\n")
	b.WriteString("| Standard | Priority Score | Issues | Avg Severity | Merged Groups |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, p := range priorities {
		merged := "no"
		if p.HasMergedIssues {
			merged = "yes"
		}
		fmt.Fprintf(b, "| %s | %.1f | %d | %.2f | %s |\n",
			p.Standard, p.PriorityScore, p.IssueCount, p.AvgSeverity, merged)
	}
	b.WriteString("\n")
}

func renderRoadmap(b *strings.Builder, phases []analysis.RoadmapPhase) {
	if len(phases) == 0 {
		return
	}
	b.WriteString("## Improvement Roadmap\n\n")
	for _, phase := range phases {
		fmt.Fprintf(b, "### Phase %s: %s\n\n", phase.Phase, phase.FocusArea)
		fmt.Fprintf(b, "Complexity: %s\n\n", strings.ToUpper(phase.Complexity))
		fmt.Fprintf(b, "Expected Impact: %s\n\n", phase.ExpectedImpact)
		if len(phase.Actions) > 0 {
			b.WriteString("Actions:\n\n")
			numbered(b, phase.Actions)
			b.WriteString("\n")
		}
	}
}

func renderHistory(b *strings.Builder, history []audit.Entry) {
	b.WriteString("## Merge History\n\n")
	if len(history) == 0 {
		b.WriteString("No merges recorded.\n")
		return
	}
	fmt.Fprintf(b, "%d merge(s) recorded.\n\n", len(history))
	for _, e := range history {
		fmt.Fprintf(b, "- %s: merged %s into %s (confidence %.2f): %s\n",
			e.Timestamp.Format("2006-01-02 15:04"),
			strings.Join(e.SecondaryIssues, ", "), e.PrimaryIssue,
			e.Confidence, e.Rationale)
	}
}

func numbered(b *strings.Builder, items []string) {
	for i, item := range items {
		fmt.Fprintf(b, "%d. %s\n", i+1, item)
	}
}
