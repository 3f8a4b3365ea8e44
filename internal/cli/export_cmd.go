package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export current metrics to files",
	Long: `Ask the running server to append the current values to metric_values.csv
and rewrite metric_info.json, metric_list.json and model_info.json in its
export directory.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	var resp struct {
		Dir string `json:"dir"`
	}
	if err := NewClient().PostJSON("/v1/export", nil, &resp); err != nil {
		return fmt.Errorf("failed to export: %w", err)
	}

	if jsonOut {
		return printJSON(resp)
	}
	fmt.Printf("Exported to %s\n", resp.Dir)
	return nil
}
