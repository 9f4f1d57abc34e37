package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/qamerge/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example config file",
	Long: `Create a .qamerge/config.yaml in the current directory with every
setting documented and commented out, so the defaults stay in effect
until you uncomment something.

The Anthropic API key is never stored in the config file. Set
ANTHROPIC_API_KEY in the environment instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to get current directory: %v\n", err)
			os.Exit(1)
		}

		path := configPath
		if path == "" {
			path = config.DefaultPath(cwd)
		}

		if err := config.WriteExample(path, initForce); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s Initialized qamerge configuration\n\n", green("✓"))
		fmt.Printf("  Config: %s\n", cyan(path))
		fmt.Println()

		fmt.Printf("%s Next steps:\n", gray("→"))
		fmt.Printf("  %s\n", gray("export ANTHROPIC_API_KEY=...   # needed for suggest and report"))
		fmt.Printf("  %s\n", gray("qamerge suggest -f issues.csv"))
		fmt.Printf("  %s\n", gray("qamerge review -f issues.csv"))
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}
