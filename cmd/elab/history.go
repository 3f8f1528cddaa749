package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/elab/internal/report"
)

var historyCmd = &cobra.Command{
	Use:   "history <story-id>",
	Short: "Show recorded runs and workflow state for a story",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		h, err := runner.History(cmd.Context(), args[0], limit)
		if err != nil {
			fatal("%v", err)
		}
		if jsonOut {
			printJSON(h)
			return
		}
		report.History(os.Stdout, h)

		showGaps, _ := cmd.Flags().GetBool("gaps")
		if showGaps {
			report.Gaps(os.Stdout, h.RankedGaps, 0)
		}
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 10, "Number of runs to show")
	historyCmd.Flags().Bool("gaps", false, "List the current ranked gaps")
	rootCmd.AddCommand(historyCmd)
}
