package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/qamerge/internal/audit"
	"github.com/steveyegge/qamerge/internal/merge"
	"github.com/steveyegge/qamerge/internal/review"
	"github.com/steveyegge/qamerge/internal/store"
	"github.com/steveyegge/qamerge/internal/suggest"
)

var (
	reviewFile        string
	reviewSuggestions string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review merge candidates interactively",
	Long: `Walk the candidate groups from a suggestions file one at a time.

For each group you can apply the merge, skip it, or edit which issues
take part before applying. Applied merges are irreversible: the
secondaries are folded into the primary, the merge is appended to the
audit log, and the updated table is written back to the CSV.

Commands inside the session: a apply, s skip, e edit, q quit, ? help.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		st, err := store.Load(reviewFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		sugg, err := suggest.Load(reviewSuggestions)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(sugg.Groups) == 0 {
			fmt.Printf("No merge candidates in %s.\n", reviewSuggestions)
			return
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		if sugg.Source != "" && sugg.Source != reviewFile {
			fmt.Printf("%s suggestions were generated from %s, reviewing against %s\n",
				yellow("Note:"), sugg.Source, reviewFile)
		}

		auditor := audit.New(cfg.AuditLogPath)
		executor := merge.NewExecutor(auditor, cfg.CombineFields)

		session, err := review.New(&review.Config{
			Store:    st,
			Executor: executor,
			Groups:   sugg.Groups,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		result, err := session.Run(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		if result.Applied > 0 {
			if err := result.Store.Save(reviewFile); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				fmt.Fprintf(os.Stderr, "The audit log at %s still records the applied merges.\n", auditor.Path())
				os.Exit(1)
			}
			fmt.Printf("\n%s Applied %d merge(s), skipped %d. Saved %s\n", green("✓"), result.Applied, result.Skipped, reviewFile)
			fmt.Printf("  %s\n", gray("Audit log: "+auditor.Path()))
		} else {
			fmt.Printf("\nNo merges applied, skipped %d. %s unchanged.\n", result.Skipped, reviewFile)
		}

		if remaining := len(sugg.Groups) - result.Applied - result.Skipped; result.Quit && remaining > 0 {
			fmt.Printf("  %s\n", gray(fmt.Sprintf("%d group(s) left unreviewed in %s", remaining, reviewSuggestions)))
		}
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.Flags().StringVarP(&reviewFile, "file", "f", "issues.csv", "Issue table CSV to merge into")
	reviewCmd.Flags().StringVarP(&reviewSuggestions, "suggestions", "s", suggest.DefaultFileName, "Suggestions file from 'qamerge suggest'")
}
