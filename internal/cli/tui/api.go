package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/haskel/raimetrics/internal/aisystem"
	"github.com/haskel/raimetrics/internal/certificate"
	"github.com/haskel/raimetrics/internal/metric"
)

type valuesMsg struct {
	data map[string]metric.Values
	err  error
}

type infoMsg struct {
	data *aisystem.MetricInfo
	err  error
}

type projectMsg struct {
	data *aisystem.ProjectInfo
	err  error
}

type certificatesMsg struct {
	data map[string]certificate.Value
	err  error
}

type tickMsg time.Time

type apiClient struct {
	baseURL  string
	client   *http.Client
	user     string
	password string
}

func newAPIClient(cfg Config) *apiClient {
	return &apiClient{
		baseURL: cfg.ServerURL,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		user:     cfg.User,
		password: cfg.Password,
	}
}

func (c *apiClient) get(path string, v any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	if c.user != "" && c.password != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func fetchValues(cfg Config) tea.Cmd {
	return func() tea.Msg {
		var values map[string]metric.Values
		if err := newAPIClient(cfg).get("/v1/metrics/values", &values); err != nil {
			return valuesMsg{err: err}
		}
		return valuesMsg{data: values}
	}
}

func fetchInfo(cfg Config) tea.Cmd {
	return func() tea.Msg {
		var info aisystem.MetricInfo
		if err := newAPIClient(cfg).get("/v1/metrics/info", &info); err != nil {
			return infoMsg{err: err}
		}
		return infoMsg{data: &info}
	}
}

func fetchProject(cfg Config) tea.Cmd {
	return func() tea.Msg {
		var project aisystem.ProjectInfo
		if err := newAPIClient(cfg).get("/v1/project", &project); err != nil {
			return projectMsg{err: err}
		}
		return projectMsg{data: &project}
	}
}

func fetchCertificates(cfg Config) tea.Cmd {
	return func() tea.Msg {
		var certs map[string]certificate.Value
		if err := newAPIClient(cfg).get("/v1/certificates/values", &certs); err != nil {
			return certificatesMsg{err: err}
		}
		return certificatesMsg{data: certs}
	}
}

// refresh fetches everything the dashboard shows.
func refresh(cfg Config) tea.Cmd {
	return tea.Batch(
		fetchValues(cfg),
		fetchInfo(cfg),
		fetchProject(cfg),
		fetchCertificates(cfg),
	)
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
