package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/steveyegge/elab/internal/repl"
	"github.com/steveyegge/elab/internal/storage"
)

var replCmd = &cobra.Command{
	Use:   "repl [story-file]",
	Short: "Start interactive shell",
	Long: `Start an interactive shell for elaborating a story while you edit it.

Load a story file once, then analyze, diff and elaborate it repeatedly; the
file is re-read before every command. Type 'help' in the shell for
available commands.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		replCfg := &repl.Config{Runner: runner}
		if len(args) > 0 {
			replCfg.StoryFile = args[0]
		}
		if _, err := os.Stat(storage.ProjectDirName); err == nil {
			replCfg.HistoryFile = filepath.Join(storage.ProjectDirName, "repl_history")
		}

		r, err := repl.New(replCfg)
		if err != nil {
			fatal("failed to create REPL: %v", err)
		}
		if err := r.Run(cmd.Context()); err != nil {
			fatal("%v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}
