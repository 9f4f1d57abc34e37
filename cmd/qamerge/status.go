package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/qamerge/internal/audit"
	"github.com/steveyegge/qamerge/internal/store"
)

var statusFile string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show issue table statistics",
	Long: `Display counts for the issue table: open issues, merged groups, the
per-standard breakdown, and how many merges the audit log records.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		st, err := store.Load(statusFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		stats := st.Stats()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Suzy QA Issue Status ==="))

		fmt.Printf("%s\n", yellow("Issues:"))
		fmt.Printf("  Total rows:    %d\n", stats.TotalIssues)
		fmt.Printf("  Open:          %d\n", stats.OpenIssues)
		fmt.Printf("  Merged groups: %d\n", stats.PrimaryIssues)
		fmt.Printf("  Merged away:   %d\n", stats.MergedIssues)
		fmt.Printf("  Active:        %d\n", stats.ActiveIssues)
		fmt.Println()

		fmt.Printf("%s\n", yellow("Open issues by standard:"))
		groups := st.OpenByStandard()
		if len(groups) == 0 {
			fmt.Printf("  %s\n", gray("none"))
		}
		for _, g := range groups {
			note := ""
			if len(g.Records) < 2 {
				note = gray("  (too few to pair)")
			}
			fmt.Printf("  %-24s %d%s\n", g.Standard+":", len(g.Records), note)
		}
		fmt.Println()

		entries, err := audit.New(cfg.AuditLogPath).History(true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			return
		}
		fmt.Printf("%s\n", yellow("Merge history:"))
		if len(entries) == 0 {
			fmt.Printf("  %s\n", gray("no merges recorded"))
		} else {
			last := entries[len(entries)-1]
			fmt.Printf("  %d merge(s), last on %s: %s <- %s\n",
				len(entries),
				last.Timestamp.Format("2006-01-02 15:04"),
				last.PrimaryIssue,
				strings.Join(last.SecondaryIssues, ", "))
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusFile, "file", "f", "issues.csv", "Issue table CSV to inspect")
}
