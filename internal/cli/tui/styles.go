package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	colorAccent = lipgloss.Color("86")
	colorDim    = lipgloss.Color("240")
	colorPass   = lipgloss.Color("82")
	colorFail   = lipgloss.Color("196")
	colorText   = lipgloss.Color("252")
	colorLabel  = lipgloss.Color("245")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	helpStyle  = lipgloss.NewStyle().Foreground(colorLabel)
	labelStyle = lipgloss.NewStyle().Foreground(colorLabel)
	valueStyle = lipgloss.NewStyle().Foreground(colorText)
	errorStyle = lipgloss.NewStyle().Foreground(colorFail).Bold(true)

	// category column of the metric table
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorAccent).
				BorderBottom(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colorDim)
	tableCellStyle = lipgloss.NewStyle().Foreground(colorText)

	// metric values and certificate outcomes
	undefinedStyle = lipgloss.NewStyle().Foreground(colorDim).Italic(true)
	passedStyle    = lipgloss.NewStyle().Foreground(colorPass)
	failedStyle    = lipgloss.NewStyle().Foreground(colorFail).Bold(true)

	rangeFilledStyle = lipgloss.NewStyle().Foreground(colorPass)
	rangeEmptyStyle  = lipgloss.NewStyle().Foreground(colorDim)
)
