package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/haskel/raimetrics/internal/aisystem"
	"github.com/haskel/raimetrics/internal/metric"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the metric schema",
	Long:  `Query the running rai server for every metric's group, range and explanation, listed by category.`,
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	var info aisystem.MetricInfo
	if err := NewClient().GetJSON("/v1/metrics/info", &info); err != nil {
		return fmt.Errorf("failed to get metric info: %w", err)
	}

	if jsonOut {
		return printJSON(info)
	}

	categories := make([]string, 0, len(info.Categories))
	for c := range info.Categories {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	for i, c := range categories {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("=== %s ===\n", c)
		for _, name := range info.Categories[c] {
			m := info.Metrics[name]
			fmt.Printf("  %-28s %-24s %s\n", name, m.Group, formatRange(m))
			if verbose && m.Explanation != "" {
				fmt.Printf("      %s\n", m.Explanation)
			}
		}
	}
	return nil
}

func formatRange(m metric.Info) string {
	if !m.HasRange || m.Range == nil {
		return ""
	}
	bound := func(b *float64) string {
		if b == nil {
			return "∞"
		}
		return fmt.Sprintf("%g", *b)
	}
	lo := bound(m.Range.Min)
	if m.Range.Min == nil {
		lo = "-∞"
	}
	return fmt.Sprintf("[%s, %s]", lo, bound(m.Range.Max))
}
