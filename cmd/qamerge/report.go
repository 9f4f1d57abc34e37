package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/qamerge/internal/ai"
	"github.com/steveyegge/qamerge/internal/analysis"
	"github.com/steveyegge/qamerge/internal/audit"
	"github.com/steveyegge/qamerge/internal/report"
	"github.com/steveyegge/qamerge/internal/store"
)

var (
	reportFile       string
	reportOut        string
	reportNoAnalysis bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write a markdown analysis report",
	Long: `Analyze the active issues with the model and write a markdown report:
executive summary, per-standard findings, priority areas, an
improvement roadmap, and the merge history.

If the model call fails, or with --no-analysis, the report degrades to
dataset statistics and merge history only.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		st, err := store.Load(reportFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		history, err := audit.New(cfg.AuditLogPath).History(true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		var result *analysis.Result
		if !reportNoAnalysis {
			req := analysis.BuildRequest(st)
			if req.Coverage.TotalActiveIssues == 0 {
				fmt.Printf("%s no active issues to analyze, writing a statistics-only report\n", yellow("Note:"))
			} else {
				client, err := ai.NewClient(cfg.OracleOptions())
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					fmt.Fprintf(os.Stderr, "%s\n", gray("use --no-analysis for a statistics-only report"))
					os.Exit(1)
				}

				fmt.Printf("Analyzing %d active issue(s) across %d standard(s)...\n",
					req.Coverage.TotalActiveIssues, req.Coverage.StandardsCount)

				result, err = client.AnalyzeIssues(context.Background(), req)
				if err != nil {
					fmt.Printf("%s analysis failed: %v\n", yellow("Warning:"), err)
					fmt.Printf("%s writing a statistics-only report\n", yellow("Warning:"))
					result = nil
				}
			}
		}

		data := report.Build(st, result, history, reportFile)
		if err := report.Write(reportOut, data); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Wrote report to %s\n", green("✓"), reportOut)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&reportFile, "file", "f", "issues.csv", "Issue table CSV to report on")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", report.DefaultFileName, "Where to write the markdown report")
	reportCmd.Flags().BoolVar(&reportNoAnalysis, "no-analysis", false, "Skip the model call, statistics and history only")
}
