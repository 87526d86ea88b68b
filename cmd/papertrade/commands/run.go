package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	runDate   string
	runDryRun bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one daily pipeline run",
	Long: `Run the daily pipeline once: fetch earnings events for the run date,
analyze transcripts, gate signals, open paper orders, then fill pending
entries and check exits against the day's close prices.

The run date defaults to today. Non-trading days short-circuit with
status skipped_non_trading_day.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		date := time.Now()
		if runDate != "" {
			date, err = time.Parse("2006-01-02", runDate)
			if err != nil {
				return fmt.Errorf("parse --date %q: %w", runDate, err)
			}
		}

		if err := a.buildRunner(runDryRun); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Hour)
		defer cancel()

		result, err := a.runner.RunDaily(ctx, date)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "run date (YYYY-MM-DD, default today)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "analyze and log signals without creating orders")
	rootCmd.AddCommand(runCmd)
}
