package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Init() tea.Cmd {
	return tea.Batch(refresh(m.config), tick(m.config.RefreshInterval))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.scroll(0)

	case valuesMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.values = msg.data
			m.lastUpdated = time.Now()
			m.scroll(0)
		}

	case infoMsg:
		switch {
		case msg.err == nil:
			m.info = msg.data
		case m.err == nil:
			m.err = msg.err
		}

	case projectMsg:
		if msg.err == nil {
			m.project = msg.data
		}

	case certificatesMsg:
		// 409 until the system is initialized; keep the last outcomes.
		if msg.err == nil {
			m.certificates = msg.data
		}

	case tickMsg:
		next := tick(m.config.RefreshInterval)
		if m.loading {
			// previous refresh still in flight
			return m, next
		}
		m.loading = true
		return m, tea.Batch(refresh(m.config), next)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.loading = true
		return m, refresh(m.config)
	case "up", "k":
		m.scroll(-1)
	case "down", "j":
		m.scroll(1)
	case "pgup":
		m.scroll(-m.visibleRows())
	case "pgdown":
		m.scroll(m.visibleRows())
	case "home", "g":
		m.rowOffset = 0
	case "end", "G":
		m.scroll(len(m.rows()))
	}
	return m, nil
}

// scroll moves the first visible row by delta, keeping it on the table.
func (m *Model) scroll(delta int) {
	last := len(m.rows()) - 1
	m.rowOffset = max(0, min(m.rowOffset+delta, last))
}
