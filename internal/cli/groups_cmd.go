package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haskel/raimetrics/internal/logger"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List the available metric groups",
	Long: `List every registered metric group with the task it is restricted to,
its category and its time complexity. The system group is listed when host
monitoring is enabled in the config.`,
	RunE: runGroups,
}

type groupEntry struct {
	Name       string `json:"name"`
	Task       string `json:"task"`
	Category   string `json:"category"`
	Complexity string `json:"complexity"`
}

func init() {
	rootCmd.AddCommand(groupsCmd)
}

func runGroups(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg, err := newRegistry(cfg, logger.Discard())
	if err != nil {
		return err
	}

	entries := make([]groupEntry, 0, reg.Len())
	for _, d := range reg.Descriptors() {
		entries = append(entries, groupEntry{
			Name:       d.Name,
			Task:       d.TaskType.String(),
			Category:   d.Category,
			Complexity: d.Complexity.String(),
		})
	}

	if jsonOut {
		return printJSON(entries)
	}

	fmt.Printf("%-24s %-28s %-12s %s\n", "NAME", "TASK", "CATEGORY", "COMPLEXITY")
	for _, e := range entries {
		fmt.Printf("%-24s %-28s %-12s %s\n", e.Name, e.Task, e.Category, e.Complexity)
	}
	return nil
}
