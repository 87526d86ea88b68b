package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/whaleforce/earnings-signals/internal/adapters"
	"github.com/whaleforce/earnings-signals/internal/freeze"
)

var backtestPeriod string

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Submit closed positions for external performance evaluation",
	Long: `Send the order book's closed positions to the backtest service for the
given walk-forward period and print its metrics. CAGR, Sharpe, and
drawdown are computed by the service, never locally, so every strategy
is measured by the same engine.

Periods: tune (2017-2021), validate (2022-2023), final (2024-2025),
paper (2026+).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		window, err := freeze.Window(freeze.Period(backtestPeriod))
		if err != nil {
			return err
		}

		var positions []adapters.BacktestPosition
		for _, o := range a.book.ClosedPositions() {
			if o.EntryDate.Before(window.Start) || o.EntryDate.After(window.End) {
				continue
			}
			positions = append(positions, adapters.BacktestPosition{
				Symbol:    o.Symbol,
				EntryDate: o.EntryDate.Format("2006-01-02"),
				ExitDate:  o.ExitDate.Format("2006-01-02"),
				Direction: o.Direction,
				Score:     o.Score,
			})
		}
		if len(positions) == 0 {
			return fmt.Errorf("no closed positions with entries in the %s period (%s to %s)",
				window.Name, window.Start.Format("2006-01-02"), window.End.Format("2006-01-02"))
		}

		client, err := adapters.NewBacktestClient(adapters.BacktestConfig{
			BaseURL:        a.cfg.Backtest.BaseURL,
			APIKey:         a.cfg.Backtest.APIKey,
			TimeoutSeconds: a.cfg.Backtest.TimeoutSeconds,
		})
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
		defer cancel()
		result, err := client.RunBacktest(ctx, positions, window.Start, window.End)
		if err != nil {
			return err
		}

		a.log.Info().
			Str("period", string(window.Name)).
			Int("positions", len(positions)).
			Str("backtest_id", result.BacktestID).
			Msg("backtest complete")
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	backtestCmd.Flags().StringVar(&backtestPeriod, "period", "paper", "walk-forward period: tune, validate, final, or paper")
	rootCmd.AddCommand(backtestCmd)
}
