package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/elab/internal/report"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <story-file>",
	Short: "Generate, rank and score gaps for a story",
	Long: `Run the PM, UX, QA and attack gap generators over a story, deduplicate
and rank the gaps, and score readiness.

With a database, the ranked gaps are compared with the previous run so
each gap keeps its history, and the readiness score is recorded.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		doc := mustLoadStory(args[0])
		an, err := runner.Analyze(cmd.Context(), doc)
		if err != nil {
			fatal("%v", err)
		}
		if jsonOut {
			printJSON(an)
			return
		}
		limit, _ := cmd.Flags().GetInt("limit")
		report.Analysis(os.Stdout, an, limit)
		fmt.Println()
	},
}

var readinessCmd = &cobra.Command{
	Use:   "readiness <story-file>",
	Short: "Score how ready a story is for work",
	Long: `Analyze a story and print only its readiness verdict.

With --check the command exits with status 2 when the story is not ready,
for use in scripts and CI.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		doc := mustLoadStory(args[0])
		an, err := runner.Analyze(cmd.Context(), doc)
		if err != nil {
			fatal("%v", err)
		}
		if jsonOut {
			printJSON(an.Readiness)
		} else {
			report.Readiness(os.Stdout, an.Readiness, an.PreviousScore)
			report.Warnings(os.Stdout, an.Warnings)
		}

		check, _ := cmd.Flags().GetBool("check")
		if check && !an.Readiness.Ready {
			if store != nil {
				_ = store.Close()
			}
			os.Exit(2)
		}
	},
}

func init() {
	analyzeCmd.Flags().IntP("limit", "n", 20, "Maximum gaps to list (0 for all)")
	addTuningFlags(analyzeCmd)
	readinessCmd.Flags().Bool("check", false, "Exit with status 2 when the story is not ready")
	addTuningFlags(readinessCmd)

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(readinessCmd)
}
