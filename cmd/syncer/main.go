package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "syncer",
	Short: "Synchronize App Store and Google Play reviews for tracked apps",
	Long: `syncer ingests reviews of tracked apps from the Apple App Store and Google Play,
stores them without duplicates and serves them over an HTTP API.

Examples:
  # Run the scheduler and HTTP API
  syncer serve --config config.yaml

  # Sync every tracked app once and exit
  syncer sync --config config.yaml

  # Fetch the 50 newest iOS reviews of app 3
  syncer sync --app 3 --platform ios --limit 50
`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "config.yaml", "path to config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
