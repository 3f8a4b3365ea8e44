package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// minRefresh keeps the dashboard from hammering the server.
const minRefresh = 250 * time.Millisecond

// Run shows the dashboard until the user quits or ctx is done.
func Run(ctx context.Context, cfg Config) error {
	if cfg.ServerURL == "" {
		return errors.New("tui: server URL is required")
	}
	if cfg.RefreshInterval < minRefresh {
		cfg.RefreshInterval = minRefresh
	}

	p := tea.NewProgram(NewModel(cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
