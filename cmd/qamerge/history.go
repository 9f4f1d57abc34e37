package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/qamerge/internal/audit"
)

var (
	historyJSON  bool
	historyClear bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the merge audit log",
	Long: `List every merge recorded in the audit log, oldest first.

Merges cannot be undone, so the log is the only record of which issues
were folded into which. --clear deletes it permanently.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		auditor := audit.New(cfg.AuditLogPath)

		if historyClear {
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s the audit log is the only record of what was merged.\n", red("Warning:"))
			if !confirm(fmt.Sprintf("Clear the audit log at %s?", auditor.Path())) {
				fmt.Println("Aborted.")
				return
			}
			existed, err := auditor.Clear()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			green := color.New(color.FgGreen).SprintFunc()
			if existed {
				fmt.Printf("%s Cleared %s\n", green("✓"), auditor.Path())
			} else {
				fmt.Println("No audit log found.")
			}
			return
		}

		entries, err := auditor.History(true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if historyJSON {
			out, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(out))
			return
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Merge History ==="))
		if len(entries) == 0 {
			fmt.Printf("%s\n\n", gray("no merges recorded"))
			return
		}

		for _, e := range entries {
			class := confidenceClass(e.Confidence)
			paint := classColor(class)
			fmt.Printf("%s  %s <- %s  %s\n",
				gray(e.Timestamp.Format("2006-01-02 15:04")),
				green(e.PrimaryIssue),
				strings.Join(e.SecondaryIssues, ", "),
				paint(fmt.Sprintf("(confidence %.2f)", e.Confidence)))
			if e.Rationale != "" {
				fmt.Printf("    %s\n", gray(truncateString(e.Rationale, 100)))
			}
		}
		fmt.Printf("\n%d merge(s) recorded in %s\n", len(entries), auditor.Path())
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print raw audit entries as JSON")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "Delete the audit log")
}
