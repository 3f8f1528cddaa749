package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/elab/internal/storyfile"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of story files",
	Long: `Print the JSON schema that story files (YAML or JSON) must follow.
Point an editor's YAML or JSON language server at it for completion and
validation while writing stories.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipSetup: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		data, err := storyfile.Schema()
		if err != nil {
			fatal("%v", err)
		}
		if _, err := os.Stdout.Write(data); err != nil {
			fatal("%v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
