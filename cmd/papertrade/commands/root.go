// Package commands holds the papertrade CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "papertrade",
	Short: "Earnings-call signal engine and paper trading runner",
	Long: `papertrade turns earnings-call transcripts into paper trades.

The daily pipeline fetches earnings events, scores transcripts with a
pinned LLM configuration, applies a deterministic gate, and walks paper
orders through next-day entries and take-profit/stop-loss/max-hold exits.

Examples:
  papertrade run --date 2026-01-05
  papertrade freeze --git-commit abc1234
  papertrade validate
  papertrade status
  papertrade calendar 2026-01-05
  papertrade backtest --period validate
  papertrade serve`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "config.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "console log output at debug level")
}
