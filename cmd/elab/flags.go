package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/elab/internal/storyfile"
	"github.com/steveyegge/elab/internal/types"
)

// addTuningFlags registers the config overrides shared by the analysis
// commands. They are applied in setup, after files and environment.
func addTuningFlags(cmd *cobra.Command) {
	cmd.Flags().Int("threshold", 0, "Readiness score at which a story is ready (overrides config)")
	cmd.Flags().Int("max-gaps", 0, "Maximum ranked gaps kept per story (overrides config)")
}

// applyFlags copies changed tuning flags into cfg
func applyFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("threshold") {
		v, err := flags.GetInt("threshold")
		if err != nil {
			return err
		}
		cfg.Elaboration.Readiness.Threshold = v
	}
	if flags.Changed("max-gaps") {
		v, err := flags.GetInt("max-gaps")
		if err != nil {
			return err
		}
		cfg.Hygiene.MaxGaps = v
	}
	if flags.Changed("node-timeout") {
		v, err := flags.GetDuration("node-timeout")
		if err != nil {
			return err
		}
		cfg.Elaboration.NodeTimeout = v
	}
	if flags.Changed("no-recalculate") {
		v, err := flags.GetBool("no-recalculate")
		if err != nil {
			return err
		}
		cfg.Elaboration.RecalculateReadiness = !v
	}
	return nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func mustLoadStory(path string) *storyfile.Document {
	doc, err := storyfile.Load(path)
	if err != nil {
		fatal("%v", err)
	}
	return doc
}

// mustLoadPrevious loads the story of an optional --previous file
func mustLoadPrevious(path string) *types.Story {
	if path == "" {
		return nil
	}
	return &mustLoadStory(path).Story
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal("failed to marshal JSON: %v", err)
	}
	fmt.Println(string(data))
}
