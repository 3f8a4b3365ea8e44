package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/haskel/raimetrics/internal/cli/tui"
)

var tuiCmd = &cobra.Command{
	Use:     "tui",
	Aliases: []string{"dashboard"},
	Short:   "Watch metric values and certificates in the terminal",
	Long: `Open a terminal dashboard on a running rai server. Metric values are
listed by category with their declared range, certificate outcomes are shown
above the table. Keys: q quits, r refreshes, j/k scroll.

Examples:
  rai tui
  rai tui --refresh 500ms --host 10.0.0.1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("refresh")
		return tui.Run(cmd.Context(), tui.Config{
			ServerURL:       GetServerURL(),
			RefreshInterval: interval,
			User:            user,
			Password:        password,
		})
	},
}

func init() {
	tuiCmd.Flags().Duration("refresh", 2*time.Second, "dashboard refresh interval")
	rootCmd.AddCommand(tuiCmd)
}
