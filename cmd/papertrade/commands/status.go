package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCSV string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show order book statistics",
	Long: `Print order counts by state, win rate, and average return for closed
positions. --csv additionally exports the full order book.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		stats := a.book.Statistics()
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(stats); err != nil {
			return err
		}

		if statusCSV != "" {
			path, err := a.book.ExportCSV(statusCSV)
			if err != nil {
				return err
			}
			fmt.Printf("orders exported to %s\n", path)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusCSV, "csv", "", "export the order book to this CSV path")
	rootCmd.AddCommand(statusCmd)
}
