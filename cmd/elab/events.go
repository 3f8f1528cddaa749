package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/elab/internal/events"
	"github.com/steveyegge/elab/internal/report"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recorded pipeline events",
	Long: `Display recent pipeline events: run and phase lifecycle, ranked gaps,
delta detection and review, escape hatch triggers, readiness scores and
workflow state changes.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		storyID, _ := cmd.Flags().GetString("story")
		runID, _ := cmd.Flags().GetString("run")
		eventType, _ := cmd.Flags().GetString("type")
		severity, _ := cmd.Flags().GetString("severity")
		since, _ := cmd.Flags().GetDuration("since")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := events.EventFilter{
			StoryID:  storyID,
			RunID:    runID,
			Type:     events.EventType(eventType),
			Severity: events.EventSeverity(severity),
			Limit:    limit,
		}
		if filter.Type != "" && !filter.Type.IsValid() {
			fatal("unknown event type: %s", eventType)
		}
		if since > 0 {
			filter.AfterTime = time.Now().Add(-since)
		}

		evs, err := runner.Events(cmd.Context(), filter)
		if err != nil {
			fatal("%v", err)
		}
		if jsonOut {
			printJSON(evs)
			return
		}
		if len(evs) == 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("\n%s No events found\n\n", yellow("✨"))
			return
		}
		// Newest last
		for i := len(evs) - 1; i >= 0; i-- {
			report.Event(os.Stdout, evs[i])
		}
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the event retention policy",
	Long: `Delete events older than the retention period (longer for error and
critical events), then trim each story to its per-story event limit.
Critical events are never trimmed by the limit. Configure under 'events'
in .elab/config.yaml or with ELAB_EVENT_* variables.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		res, err := runner.PruneEvents(cmd.Context())
		if err != nil {
			fatal("%v", err)
		}
		if jsonOut {
			printJSON(res)
			return
		}
		report.Prune(os.Stdout, res)
	},
}

func init() {
	eventsCmd.Flags().StringP("story", "s", "", "Filter events by story ID")
	eventsCmd.Flags().String("run", "", "Filter events by run ID")
	eventsCmd.Flags().StringP("type", "t", "", "Filter events by type")
	eventsCmd.Flags().String("severity", "", "Filter events by severity: info, warning, error or critical")
	eventsCmd.Flags().Duration("since", 0, "Only show events newer than this, e.g. 24h")
	eventsCmd.Flags().IntP("limit", "n", 20, "Number of events to show")

	eventsCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(eventsCmd)
}
