package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, .elab/config.yaml, .env and
ELAB_* environment variables have been applied.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOut {
			printJSON(cfg)
			return
		}
		data, err := yaml.Marshal(&cfg)
		if err != nil {
			fatal("failed to marshal config: %v", err)
		}
		fmt.Print(string(data))
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
