package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/elab/internal/config"
	"github.com/steveyegge/elab/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize elaboration tracking in the current directory",
	Long: `Initialize elaboration tracking by creating a .elab/ directory.

This creates:
  - .elab/elab.db (SQLite database of runs, ranked gaps and events)
  - .elab/config.yaml (pipeline configuration with every default spelled out)

An existing config.yaml is left untouched.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipSetup: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		cwd, err := os.Getwd()
		if err != nil {
			fatal("failed to get current directory: %v", err)
		}

		path, err := storage.InitProject(cwd)
		if err != nil {
			fatal("%v", err)
		}

		db, err := storage.NewStorage(cmd.Context(), &storage.Config{Path: path})
		if err != nil {
			fatal("failed to initialize database: %v", err)
		}
		version, err := db.SchemaVersion(cmd.Context())
		_ = db.Close()
		if err != nil {
			fatal("failed to read schema version: %v", err)
		}

		configPath := config.Path(cwd)
		wroteConfig := false
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			if err := config.Save(cwd, config.DefaultConfig()); err != nil {
				fatal("%v", err)
			}
			wroteConfig = true
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s Initialized elab\n\n", green("✓"))
		fmt.Printf("  Database: %s %s\n", cyan(path), gray(fmt.Sprintf("(schema v%d)", version)))
		if wroteConfig {
			fmt.Printf("  Config:   %s\n", cyan(configPath))
		} else {
			fmt.Printf("  Config:   %s %s\n", cyan(configPath), gray("(existing)"))
		}
		fmt.Println()
		fmt.Printf("%s Next steps:\n", gray("→"))
		fmt.Printf("  %s\n", gray("elab schema > story.schema.json   # Story file format"))
		fmt.Printf("  %s\n", gray("elab analyze story.yaml"))
		fmt.Printf("  %s\n", gray("elab elaborate story.yaml"))
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
