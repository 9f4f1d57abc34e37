package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/qamerge/internal/ai"
	"github.com/steveyegge/qamerge/internal/store"
	"github.com/steveyegge/qamerge/internal/suggest"
)

var (
	suggestFile      string
	suggestOut       string
	suggestThreshold float64
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Ask the oracle for merge candidates",
	Long: `Group open issues by quality standard and ask the oracle which ones
share a root cause. Candidate groups at or above the confidence
threshold are written to a suggestions file for review.

Nothing is merged by this command. Run 'qamerge review' to walk the
candidates and apply the ones you approve.

Requires ANTHROPIC_API_KEY to be set.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if suggestThreshold != 0 {
			if suggestThreshold < 0 || suggestThreshold > 1 {
				fmt.Fprintf(os.Stderr, "Error: --threshold must be between 0.0 and 1.0 (got %.2f)\n", suggestThreshold)
				os.Exit(1)
			}
			cfg.ConfidenceThreshold = suggestThreshold
		}

		st, err := store.Load(suggestFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		oracle, err := ai.NewClient(cfg.OracleOptions())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		open := st.Open()
		standards := st.OpenByStandard()
		fmt.Printf("Analyzing %d open issue(s) across %d standard(s)...\n", len(open), len(standards))

		groups, err := suggest.NewIngestor(oracle, cfg.ConfidenceThreshold).Propose(context.Background(), st)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if len(groups) == 0 {
			fmt.Printf("No merge candidates met the %.2f confidence threshold.\n", cfg.ConfidenceThreshold)
			return
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Merge Candidates ==="))
		printGroups(st, groups)
		fmt.Println()

		out := suggest.Suggestions{
			GeneratedAt: time.Now().UTC(),
			Source:      suggestFile,
			Threshold:   cfg.ConfidenceThreshold,
			Groups:      groups,
		}
		if err := suggest.Save(suggestOut, out); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Wrote %d candidate group(s) to %s\n", green("✓"), len(groups), suggestOut)
		fmt.Printf("  %s\n", gray(fmt.Sprintf("qamerge review -f %s -s %s", suggestFile, suggestOut)))
	},
}

func init() {
	rootCmd.AddCommand(suggestCmd)
	suggestCmd.Flags().StringVarP(&suggestFile, "file", "f", "issues.csv", "Issue table CSV to analyze")
	suggestCmd.Flags().StringVarP(&suggestOut, "out", "o", suggest.DefaultFileName, "Where to write candidate groups")
	suggestCmd.Flags().Float64Var(&suggestThreshold, "threshold", 0, "Minimum oracle confidence (overrides config)")
}
