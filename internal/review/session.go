// Package review implements the interactive merge review session: the
// operator walks candidate groups one at a time, adjusts the member
// selection, and applies or skips each merge. Merges are irreversible,
// so nothing is applied without an explicit decision.
package review

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/steveyegge/qamerge/internal/merge"
	"github.com/steveyegge/qamerge/internal/store"
	"github.com/steveyegge/qamerge/internal/types"
)

// Session drives one review pass over a candidate set
type Session struct {
	store   *store.Store
	exec    *merge.Executor
	groups  []types.MergeGroup
	applied int
	skipped int
}

// Config holds session configuration
type Config struct {
	Store    *store.Store
	Executor *merge.Executor
	Groups   []types.MergeGroup
}

// Result is what a finished session hands back. Store is the
// post-merge snapshot; the caller decides whether to save it.
type Result struct {
	Store   *store.Store
	Applied int
	Skipped int
	Quit    bool // operator stopped before the last group
}

// New creates a review session
func New(cfg *Config) (*Session, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	return &Session{
		store:  cfg.Store,
		exec:   cfg.Executor,
		groups: append([]types.MergeGroup(nil), cfg.Groups...),
	}, nil
}

// lineReader is the prompt loop's input source. The production
// implementation is a readline instance; tests feed scripted lines.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

// Run starts the interactive loop
func (s *Session) Run(ctx context.Context) (*Result, error) {
	if len(s.groups) == 0 {
		fmt.Println("No merge candidates to review.")
		return &Result{Store: s.store}, nil
	}

	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("review> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "quit",
		HistorySearchFold: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	s.printWelcome()
	return s.run(ctx, rl)
}

func (s *Session) run(ctx context.Context, rl lineReader) (*Result, error) {
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	for i := range s.groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		group := &s.groups[i]
		s.displayGroup(i, group)

		decided := false
		for !decided {
			line, err := rl.Readline()
			if err != nil {
				if err == readline.ErrInterrupt {
					continue
				}
				if err == io.EOF {
					fmt.Println("\nReview stopped.")
					return &Result{Store: s.store, Applied: s.applied, Skipped: s.skipped, Quit: true}, nil
				}
				return nil, err
			}

			switch strings.ToLower(strings.TrimSpace(line)) {
			case "a", "apply":
				if err := s.apply(*group); err != nil {
					fmt.Printf("%s %v\n", red("Error:"), err)
					continue
				}
				decided = true
			case "s", "skip":
				s.skipped++
				decided = true
			case "e", "edit":
				s.edit(rl, group)
				s.displayGroup(i, group)
			case "q", "quit":
				return &Result{Store: s.store, Applied: s.applied, Skipped: s.skipped, Quit: true}, nil
			case "?", "h", "help":
				s.printHelp()
			case "":
				// Re-prompt.
			default:
				fmt.Printf("%s unknown command %q, type ? for help\n", yellow("Note:"), line)
			}
		}
	}

	return &Result{Store: s.store, Applied: s.applied, Skipped: s.skipped}, nil
}

// apply executes the merge and swaps the session's store to the new
// snapshot. A failed merge leaves the store untouched and the group
// still pending.
func (s *Session) apply(group types.MergeGroup) error {
	next, entry, err := s.exec.Execute(s.store, group)
	if err != nil {
		return err
	}
	s.store = next
	s.applied++

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s merged %d issue(s) into %s\n",
		green("✓"), len(entry.SecondaryIssues), entry.PrimaryIssue)
	return nil
}

// edit reads one line of issue ids and toggles their membership
func (s *Session) edit(rl lineReader, group *types.MergeGroup) {
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Println("Enter issue ids to toggle (the primary always stays):")
	rl.SetPrompt(cyan("toggle> "))
	defer rl.SetPrompt(cyan("review> "))

	line, err := rl.Readline()
	if err != nil {
		// Interrupt or EOF aborts the edit, not the session.
		return
	}
	for _, warning := range toggle(group, strings.Fields(line)) {
		fmt.Printf("%s %s\n", yellow("Note:"), warning)
	}
}

// toggle flips membership for each id against the group's current
// selection. The primary never leaves; ids outside the group are
// reported, not applied. A selection matching the full proposal
// clears Selected.
func toggle(group *types.MergeGroup, ids []string) []string {
	inGroup := make(map[string]bool, len(group.Issues))
	for _, id := range group.Issues {
		inGroup[id] = true
	}
	selected := make(map[string]bool, len(group.Issues))
	for _, id := range group.Members() {
		selected[id] = true
	}

	primary := group.Issues[0]
	var warnings []string
	for _, id := range ids {
		switch {
		case !inGroup[id]:
			warnings = append(warnings, fmt.Sprintf("%s is not part of this group", id))
		case id == primary:
			warnings = append(warnings, fmt.Sprintf("%s is the primary and always stays", id))
		case selected[id]:
			selected[id] = false
		default:
			selected[id] = true
		}
	}

	kept := make([]string, 0, len(group.Issues))
	for _, id := range group.Issues {
		if selected[id] {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(group.Issues) {
		group.Selected = nil
	} else {
		group.Selected = kept
	}
	return warnings
}

// confidenceClass buckets a confidence for display
func confidenceClass(c float64) string {
	switch {
	case c >= 0.9:
		return "high"
	case c >= 0.7:
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
	}
	return color.New(color.FgRed).SprintFunc()
}

func (s *Session) displayGroup(idx int, group *types.MergeGroup) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	standard := ""
	if rec, ok := s.store.Get(group.Issues[0]); ok {
		standard = rec.Standard
	}

	class := confidenceClass(group.Confidence)
	fmt.Printf("\n%s\n", cyan(fmt.Sprintf("--- Group %d of %d [%s] ---", idx+1, len(s.groups), standard)))
	fmt.Printf("Confidence: %s\n", classColor(class)(fmt.Sprintf("%.2f (%s)", group.Confidence, class)))
	fmt.Printf("Rationale:  %s\n\n", group.Rationale)

	selected := make(map[string]bool, len(group.Issues))
	for _, id := range group.Members() {
		selected[id] = true
	}
	for i, id := range group.Issues {
		marker := gray("○")
		if selected[id] {
			marker = green("●")
		}
		tag := ""
		if i == 0 {
			tag = " (primary)"
		}
		fmt.Printf("  %s %s%s", marker, id, tag)
		if rec, ok := s.store.Get(id); ok {
			score := rec.Score
			if score == "" {
				score = "-"
			}
			fmt.Printf("  score %s  %s", score, gray(truncate(rec.InputPrompt, 60)))
		}
		fmt.Println()
	}
	fmt.Println()
}

func (s *Session) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n", cyan("=== Merge Review ==="))
	fmt.Printf("%d candidate group(s) to review. Merges are irreversible.\n", len(s.groups))
	fmt.Println("Type ? for commands.")
}

func (s *Session) printHelp() {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Println()
	fmt.Printf("  %s  merge the selected issues\n", green("a, apply"))
	fmt.Printf("  %s   leave the group unmerged\n", green("s, skip"))
	fmt.Printf("  %s   toggle which secondaries merge\n", green("e, edit"))
	fmt.Printf("  %s   stop reviewing\n", green("q, quit"))
	fmt.Println()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
