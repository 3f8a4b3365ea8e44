package cli

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haskel/raimetrics/internal/storage"
)

var measurementsCmd = &cobra.Command{
	Use:   "measurements",
	Short: "List recorded measurements",
	Long: `Query the running rai server for its measurement history, oldest first.

Examples:
  rai measurements                 # Whole history
  rai measurements --tag nightly   # Only tagged measurements
  rai measurements --limit 5 -v    # Last five, with values`,
	RunE: runMeasurements,
}

var (
	measurementsTag   string
	measurementsLimit int
)

func init() {
	measurementsCmd.Flags().StringVar(&measurementsTag, "tag", "", "only measurements with this tag")
	measurementsCmd.Flags().IntVar(&measurementsLimit, "limit", 0, "show the last N measurements (0 = all)")
	rootCmd.AddCommand(measurementsCmd)
}

func runMeasurements(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	if measurementsTag != "" {
		q.Set("tag", measurementsTag)
	}
	if measurementsLimit > 0 {
		q.Set("limit", strconv.Itoa(measurementsLimit))
	}
	path := "/v1/measurements"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Measurements []*storage.Measurement `json:"measurements"`
	}
	if err := NewClient().GetJSON(path, &resp); err != nil {
		return fmt.Errorf("failed to get measurements: %w", err)
	}

	if jsonOut {
		return printJSON(resp.Measurements)
	}

	if len(resp.Measurements) == 0 {
		fmt.Println("No measurements recorded yet.")
		return nil
	}

	for _, m := range resp.Measurements {
		tag := m.Tag
		if tag == "" {
			tag = "-"
		}
		split := m.Split
		if split == "" {
			split = "update"
		}
		fmt.Printf("%s  %-20s  %-8s  samples=%d  id=%s\n", m.Date, tag, split, m.SampleCount, m.ID)
		if verbose {
			printValues(os.Stdout, m.Values)
			fmt.Println()
		}
	}
	return nil
}
