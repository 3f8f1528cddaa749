package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/elab/internal/report"
)

var elaborateCmd = &cobra.Command{
	Use:   "elaborate <story-file>",
	Short: "Run a full elaboration of a new story version",
	Long: `Analyze the story, then run the elaboration phases against its previous
version: load previous, detect deltas, review changed sections, evaluate
the escape hatch, run any targeted review, aggregate and rescore readiness.

The previous version is --previous when given, otherwise the version
recorded by the last run. On completion the story moves to ready-to-work
or backlog, and this version becomes the baseline for the next run.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		doc := mustLoadStory(args[0])
		prevPath, _ := cmd.Flags().GetString("previous")

		el, err := runner.Elaborate(cmd.Context(), doc, mustLoadPrevious(prevPath))
		if err != nil {
			fatal("%v", err)
		}

		if jsonOut {
			printJSON(el)
		} else {
			report.Warnings(os.Stdout, el.Analysis.Warnings)
			report.Elaboration(os.Stdout, el.Result)
		}

		strict, _ := cmd.Flags().GetBool("strict")
		if strict && !el.Result.Success {
			if store != nil {
				_ = store.Close()
			}
			os.Exit(2)
		}
	},
}

func init() {
	elaborateCmd.Flags().StringP("previous", "p", "", "Previous version of the story file")
	elaborateCmd.Flags().Duration("node-timeout", 0, "Per-phase timeout, e.g. 45s (overrides config)")
	elaborateCmd.Flags().Bool("no-recalculate", false, "Keep the pre-elaboration readiness score")
	elaborateCmd.Flags().Bool("strict", false, "Exit with status 2 unless the elaboration passed")
	addTuningFlags(elaborateCmd)

	rootCmd.AddCommand(elaborateCmd)
}
