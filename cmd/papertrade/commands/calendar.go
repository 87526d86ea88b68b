package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var calendarCmd = &cobra.Command{
	Use:   "calendar <event-date>",
	Short: "Compute entry and exit dates for an event date",
	Long: `Resolve the trading dates for an earnings event: entry is the next
trading day after the event, exit is the configured holding period in
trading days after entry. Weekends and exchange holidays are skipped.

Example:
  papertrade calendar 2026-01-05`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		eventDate, err := time.Parse("2006-01-02", args[0])
		if err != nil {
			return fmt.Errorf("parse event date %q: %w", args[0], err)
		}

		dates, err := a.cal.TradingDates(eventDate, a.cfg.Trading.HoldingDays)
		if err != nil {
			return err
		}

		out := struct {
			Exchange           string `json:"exchange"`
			EventDate          string `json:"event_date"`
			EventIsTradingDay  bool   `json:"event_is_trading_day"`
			EntryDate          string `json:"entry_date"`
			ExitDate           string `json:"exit_date"`
			HoldingDays        int    `json:"holding_days"`
			TradingDaysBetween int    `json:"trading_days_between"`
		}{
			Exchange:           a.cal.Exchange(),
			EventDate:          eventDate.Format("2006-01-02"),
			EventIsTradingDay:  a.cal.IsTradingDay(eventDate),
			EntryDate:          dates.EntryDate.Format("2006-01-02"),
			ExitDate:           dates.ExitDate.Format("2006-01-02"),
			HoldingDays:        a.cfg.Trading.HoldingDays,
			TradingDaysBetween: dates.TradingDaysBetween,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(calendarCmd)
}
