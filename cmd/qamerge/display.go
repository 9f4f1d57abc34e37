package main

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/steveyegge/qamerge/internal/store"
	"github.com/steveyegge/qamerge/internal/types"
)

// confidenceClass buckets a confidence score for display.
func confidenceClass(confidence float64) string {
	switch {
	case confidence >= 0.9:
		return "high"
	case confidence >= 0.7:
		return "medium"
	default:
		return "low"
	}
}

func classColor(class string) func(a ...interface{}) string {
	switch class {
	case "high":
		return color.New(color.FgGreen).SprintFunc()
	case "medium":
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgRed).SprintFunc()
	}
}

// printGroups renders candidate merge groups as a numbered list. The
// standard is looked up from the first member still present in the
// store; a group whose members are gone prints without one.
func printGroups(st *store.Store, groups []types.MergeGroup) {
	gray := color.New(color.FgHiBlack).SprintFunc()

	for i, group := range groups {
		standard := ""
		if rec, ok := st.Get(group.Issues[0]); ok {
			standard = rec.Standard
		}

		class := confidenceClass(group.Confidence)
		paint := classColor(class)

		if standard != "" {
			fmt.Printf("%d. [%s] ", i+1, standard)
		} else {
			fmt.Printf("%d. ", i+1)
		}
		fmt.Printf("%s  confidence %s\n", formatMembers(group), paint(fmt.Sprintf("%.2f (%s)", group.Confidence, class)))
		fmt.Printf("   %s\n", gray(truncateString(group.Rationale, 100)))
	}
}

// formatMembers joins a group's member ids, marking the primary.
func formatMembers(group types.MergeGroup) string {
	out := ""
	for i, id := range group.Issues {
		if i > 0 {
			out += " + "
		}
		out += id
	}
	return out
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
