package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/qamerge/internal/audit"
	"github.com/steveyegge/qamerge/internal/merge"
	"github.com/steveyegge/qamerge/internal/store"
	"github.com/steveyegge/qamerge/internal/types"
)

var (
	mergeFile      string
	mergeIDs       string
	mergeRationale string
	mergeYes       bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge specific issues by id, bypassing the oracle",
	Long: `Merge a hand-picked set of issues without asking the oracle.

The first id becomes the primary; the rest are folded into it. The
same validation and audit trail apply as for reviewed merges, and the
merge cannot be undone.

Example:
  qamerge merge -f issues.csv --ids QA-101,QA-107,QA-112`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		if strings.TrimSpace(mergeIDs) == "" {
			fmt.Fprintf(os.Stderr, "Error: --ids is required (comma-separated, primary first)\n")
			os.Exit(1)
		}

		ids := strings.Split(mergeIDs, ",")
		group, err := types.NewMergeGroup(ids, mergeRationale, 1.0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		st, err := store.Load(mergeFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Println()
		printGroups(st, []types.MergeGroup{group})
		fmt.Println()

		if !mergeYes {
			prompt := fmt.Sprintf("Merge %d issue(s) into %s? This cannot be undone.",
				len(group.Issues)-1, group.Issues[0])
			if !confirm(prompt) {
				fmt.Println("Aborted.")
				return
			}
		}

		auditor := audit.New(cfg.AuditLogPath)
		executor := merge.NewExecutor(auditor, cfg.CombineFields)

		next, entry, err := executor.Execute(st, group)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if err := next.Save(mergeFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "The audit log at %s still records the merge.\n", auditor.Path())
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("%s Merged %s into %s\n", green("✓"), strings.Join(entry.SecondaryIssues, ", "), entry.PrimaryIssue)
		fmt.Printf("  %s\n", gray("Audit log: "+auditor.Path()))
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeCmd.Flags().StringVarP(&mergeFile, "file", "f", "issues.csv", "Issue table CSV to merge into")
	mergeCmd.Flags().StringVar(&mergeIDs, "ids", "", "Comma-separated issue ids, primary first")
	mergeCmd.Flags().StringVar(&mergeRationale, "rationale", "Manual merge by operator", "Why these issues belong together")
	mergeCmd.Flags().BoolVar(&mergeYes, "yes", false, "Skip the confirmation prompt")
}
