package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/elab/internal/pipeline"
	"github.com/steveyegge/elab/internal/report"
)

var diffCmd = &cobra.Command{
	Use:   "diff <story-file> [previous-file]",
	Short: "Show what changed since the previous version of a story",
	Long: `Compare a story with a previous version, section by section.

The previous version is the second argument when given, otherwise the
version recorded by the last 'elab elaborate'. Modified items are shown
as unified diffs.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		runComparison(cmd, args, false)
	},
}

var reviewCmd = &cobra.Command{
	Use:   "review <story-file> [previous-file]",
	Short: "Review only the sections that changed",
	Long: `Detect changes against the previous version of a story and review the
changed sections for ambiguity, untestable criteria, contradictions and
scope creep. Unchanged sections are skipped.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		runComparison(cmd, args, true)
	},
}

func runComparison(cmd *cobra.Command, args []string, review bool) {
	doc := mustLoadStory(args[0])
	var prevPath string
	if len(args) > 1 {
		prevPath = args[1]
	}

	cmp, err := runner.Diff(cmd.Context(), &doc.Story, mustLoadPrevious(prevPath), review)
	if errors.Is(err, pipeline.ErrNoPrevious) {
		fatal("%v\n  Pass the previous version as a second argument, or run 'elab elaborate' first", err)
	}
	if err != nil {
		fatal("%v", err)
	}

	if jsonOut {
		printJSON(cmp)
		return
	}
	var showDiff bool
	if review {
		showDiff, _ = cmd.Flags().GetBool("diff")
	} else {
		noDiff, _ := cmd.Flags().GetBool("no-diff")
		showDiff = !noDiff
	}
	report.Comparison(os.Stdout, cmp, showDiff)
}

func init() {
	diffCmd.Flags().Bool("no-diff", false, "List changed items without unified diffs")
	reviewCmd.Flags().Bool("diff", false, "Show unified diffs of modified items")

	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(reviewCmd)
}
