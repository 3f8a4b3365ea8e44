package cli

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/haskel/raimetrics/internal/aisystem"
	"github.com/haskel/raimetrics/internal/dataset"
	"github.com/haskel/raimetrics/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session of a running server",
	Long:  `Query the running rai server for its project and model information.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := NewClient()

	var project aisystem.ProjectInfo
	if err := client.GetJSON("/v1/project", &project); err != nil {
		return fmt.Errorf("failed to get project: %w", err)
	}
	var model dataset.ModelInfo
	if err := client.GetJSON("/v1/model", &model); err != nil {
		return fmt.Errorf("failed to get model: %w", err)
	}
	latest, err := latestMeasurement(client)
	if err != nil {
		return err
	}

	if jsonOut {
		data, err := json.MarshalIndent(map[string]any{"project": project, "model": model, "latest": latest}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println("=== Session ===")
	fmt.Printf("  Name:        %s\n", project.Name)
	fmt.Printf("  Task:        %s\n", project.Task)
	if project.Description != "" {
		fmt.Printf("  Description: %s\n", project.Description)
	}
	fmt.Printf("  Samples:     %d (%d rows)\n", project.SampleCount, project.RowCount)
	if project.Timestamp != "" {
		fmt.Printf("  Measured:    %s\n", project.Timestamp)
	}

	fmt.Printf("\nModel:\n")
	fmt.Printf("  ID:       %s\n", model.ID)
	fmt.Printf("  Class:    %s\n", model.Model)
	fmt.Printf("  Adaptive: %t\n", model.Adaptive)

	fmt.Printf("\nMetric groups:\n")
	for _, g := range project.Groups {
		fmt.Printf("  - %s\n", g)
	}

	if latest != nil {
		fmt.Printf("\nLast measurement:\n")
		fmt.Printf("  Date:         %s\n", latest.Date)
		if latest.Tag != "" {
			fmt.Printf("  Tag:          %s\n", latest.Tag)
		}
		if latest.Split != "" {
			fmt.Printf("  Split:        %s\n", latest.Split)
		}
		fmt.Printf("  Certificates: %s\n", summarizeCertificates(latest.Certificates))
	}

	return nil
}

// latestMeasurement returns nil when the server has recorded nothing yet.
func latestMeasurement(client *Client) (*storage.Measurement, error) {
	var m storage.Measurement
	if err := client.GetJSON("/v1/measurements/latest", &m); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest measurement: %w", err)
	}
	return &m, nil
}
