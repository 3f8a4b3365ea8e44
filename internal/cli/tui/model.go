package tui

import (
	"time"

	"github.com/haskel/raimetrics/internal/aisystem"
	"github.com/haskel/raimetrics/internal/certificate"
	"github.com/haskel/raimetrics/internal/metric"
)

// Config points the dashboard at a running server.
type Config struct {
	ServerURL       string
	RefreshInterval time.Duration
	User            string
	Password        string
}

// Model is the dashboard state. Server data is replaced wholesale on every
// refresh.
type Model struct {
	config Config

	values       map[string]metric.Values
	info         *aisystem.MetricInfo
	project      *aisystem.ProjectInfo
	certificates map[string]certificate.Value

	// UI state
	width       int
	height      int
	loading     bool
	err         error
	lastUpdated time.Time

	// First visible table row
	rowOffset int
}

func NewModel(cfg Config) Model {
	return Model{
		config:  cfg,
		loading: true,
	}
}
