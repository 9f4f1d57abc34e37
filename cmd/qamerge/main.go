// qamerge is a CLI for deduplicating Suzy QA test-failure issues.
//
// An LLM oracle proposes groups of open issues that share a root
// cause, an operator reviews each candidate interactively, and
// approved merges fold the secondaries into a primary record. Every
// merge is appended to an audit log and the CSV issue table is
// rewritten atomically.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/qamerge/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "qamerge",
	Short: "LLM-assisted merge review for QA failure issues",
	Long: `qamerge deduplicates QA test-failure issues.

An LLM oracle groups open issues that share a root cause, the operator
reviews and adjusts each candidate group, and approved merges fold the
secondary issues into a primary. Merges are irreversible: every one is
recorded in an append-only audit log, and the CSV table is rewritten
atomically.

Typical flow:
  qamerge suggest -f issues.csv    # collect merge candidates
  qamerge review -f issues.csv     # approve, adjust, apply
  qamerge report -f issues.csv     # analysis + summary report`,
}

// loadConfig resolves the active configuration (defaults, then the
// config file, then QAMERGE_* environment variables). Commands that
// never touch the oracle or the audit log skip it.
func loadConfig() config.Config {
	path := configPath
	if path == "" {
		path = config.DefaultPath(".")
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// confirm prints a [y/N] prompt and reads one line from stdin. Only
// an explicit yes counts; EOF or a read error counts as no.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default .qamerge/config.yaml)")
}
