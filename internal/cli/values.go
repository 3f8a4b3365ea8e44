package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/haskel/raimetrics/internal/metric"
)

var valuesCmd = &cobra.Command{
	Use:   "values [group [metric]]",
	Short: "Show current metric values",
	Long: `Query the running rai server for metric values.

Examples:
  rai values                                  # All groups
  rai values binary_performance               # One group
  rai values binary_performance accuracy      # One metric`,
	Args: cobra.MaximumNArgs(2),
	RunE: runValues,
}

func init() {
	rootCmd.AddCommand(valuesCmd)
}

func runValues(cmd *cobra.Command, args []string) error {
	client := NewClient()

	if len(args) == 2 {
		var resp struct {
			Value any `json:"value"`
		}
		if err := client.GetJSON("/v1/metrics/"+args[0]+"/"+args[1], &resp); err != nil {
			return err
		}
		if jsonOut {
			return printJSON(resp.Value)
		}
		fmt.Println(formatMetricValue(resp.Value))
		return nil
	}

	var values map[string]metric.Values
	if err := client.GetJSON("/v1/metrics/values", &values); err != nil {
		return fmt.Errorf("failed to get values: %w", err)
	}

	if len(args) == 1 {
		group, ok := values[args[0]]
		if !ok {
			return fmt.Errorf("metric group not found: %s", args[0])
		}
		values = map[string]metric.Values{args[0]: group}
	}

	if jsonOut {
		return printJSON(values)
	}
	printValues(os.Stdout, values)
	return nil
}

// printValues writes values group by group with metrics sorted by name.
func printValues(w io.Writer, values map[string]metric.Values) {
	groups := make([]string, 0, len(values))
	for g := range values {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	for i, g := range groups {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s:\n", g)

		names := make([]string, 0, len(values[g]))
		for name := range values[g] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %-28s %s\n", name, formatMetricValue(values[g][name]))
		}
	}
}

func formatMetricValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "n/a"
	case float64:
		return fmt.Sprintf("%.6g", x)
	case string:
		return x
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
