package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset metric values to their baselines",
	Long: `Reset every metric group of the running server to its baseline and zero
the sample counters. The measurement history is kept unless --history is
given.`,
	RunE: runReset,
}

var resetHistory bool

func init() {
	resetCmd.Flags().BoolVar(&resetHistory, "history", false, "also drop the recorded measurements")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	var resp struct {
		Reset          bool `json:"reset"`
		HistoryCleared bool `json:"history_cleared"`
	}
	if err := NewClient().PostJSON("/v1/reset", map[string]bool{"history": resetHistory}, &resp); err != nil {
		return fmt.Errorf("failed to reset: %w", err)
	}

	if jsonOut {
		return printJSON(resp)
	}
	if resp.HistoryCleared {
		fmt.Println("Metrics and measurement history reset")
		return nil
	}
	fmt.Println("Metrics reset")
	return nil
}
