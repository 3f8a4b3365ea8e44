package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/haskel/raimetrics/internal/metric"
)

// row is one metric line of the dashboard table.
type row struct {
	category string
	group    string
	metric   string
	value    any
	info     metric.Info
}

// rows flattens the values category by category. Without metric info the
// values are listed per group.
func (m Model) rows() []row {
	var out []row

	if m.info == nil {
		groups := make([]string, 0, len(m.values))
		for g := range m.values {
			groups = append(groups, g)
		}
		sort.Strings(groups)
		for _, g := range groups {
			names := make([]string, 0, len(m.values[g]))
			for name := range m.values[g] {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				out = append(out, row{group: g, metric: name, value: m.values[g][name]})
			}
		}
		return out
	}

	categories := make([]string, 0, len(m.info.Categories))
	for c := range m.info.Categories {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	for _, c := range categories {
		for _, name := range m.info.Categories[c] {
			info := m.info.Metrics[name]
			out = append(out, row{
				category: c,
				group:    info.Group,
				metric:   name,
				value:    m.values[info.Group][name],
				info:     info,
			})
		}
	}
	return out
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var sections []string

	sections = append(sections, m.renderTitleBar())

	if m.err != nil {
		sections = append(sections, errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	if m.project != nil {
		sections = append(sections, m.renderProject())
	}

	if len(m.certificates) > 0 {
		sections = append(sections, m.renderCertificates())
	}

	if len(m.values) > 0 {
		sections = append(sections, m.renderMetrics())
	}

	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTitleBar() string {
	title := titleStyle.Render("RAI DASHBOARD")

	refreshInfo := fmt.Sprintf("↻ %s", m.config.RefreshInterval)
	if m.loading {
		refreshInfo = "↻ loading..."
	}

	help := helpStyle.Render("q:quit r:refresh ↑↓:scroll")

	rightPart := fmt.Sprintf("%s | %s", refreshInfo, help)
	spacing := m.width - lipgloss.Width(title) - lipgloss.Width(rightPart) - 2
	if spacing < 1 {
		spacing = 1
	}

	return fmt.Sprintf("%s%s%s", title, strings.Repeat(" ", spacing), helpStyle.Render(rightPart))
}

func (m Model) renderProject() string {
	p := m.project
	return fmt.Sprintf("  %s %s  %s %s  %s %s  %s %d",
		labelStyle.Render("System"), valueStyle.Render(p.Name),
		labelStyle.Render("Task"), valueStyle.Render(p.Task),
		labelStyle.Render("Model"), valueStyle.Render(p.Model),
		labelStyle.Render("Samples"), p.SampleCount,
	)
}

// renderCertificates shows one marker per certificate, sorted by name.
func (m Model) renderCertificates() string {
	names := make([]string, 0, len(m.certificates))
	for n := range m.certificates {
		names = append(names, n)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, n := range names {
		v := m.certificates[n]
		switch {
		case v.Value == nil:
			parts[i] = undefinedStyle.Render("? " + n)
		case *v.Value:
			parts[i] = passedStyle.Render("✓ " + n)
		default:
			parts[i] = failedStyle.Render("✗ " + n)
		}
	}
	return "  " + labelStyle.Render("Certificates") + " " + strings.Join(parts, "  ")
}

// visibleRows is the number of table rows that fit the window.
func (m Model) visibleRows() int {
	n := m.height - 9
	if n < 5 {
		n = 5
	}
	return n
}

func (m Model) renderMetrics() string {
	rows := m.rows()

	var lines []string
	header := fmt.Sprintf("  %-12s │ %-26s │ %-22s │ %12s │ %s",
		"Category", "Metric", "Group", "Value", "Range")
	lines = append(lines, tableHeaderStyle.Render(header))

	maxVisible := m.visibleRows()
	start := m.rowOffset
	if start >= len(rows) {
		start = 0
	}
	end := start + maxVisible
	if end > len(rows) {
		end = len(rows)
	}

	prevCategory := ""
	for _, r := range rows[start:end] {
		var category string
		if r.category != prevCategory {
			category = sectionHeaderStyle.Render(fmt.Sprintf("%-12s", truncate(r.category, 12)))
			prevCategory = r.category
		} else {
			category = strings.Repeat(" ", 12)
		}

		line := fmt.Sprintf("  %s │ %s │ %s │ %12s │ %s",
			category,
			tableCellStyle.Render(fmt.Sprintf("%-26s", truncate(r.metric, 26))),
			labelStyle.Render(fmt.Sprintf("%-22s", truncate(r.group, 22))),
			formatValue(r.value),
			renderRange(r.value, r.info),
		)
		lines = append(lines, line)
	}

	if len(rows) > maxVisible {
		lines = append(lines, helpStyle.Render(fmt.Sprintf("  [%d-%d of %d metrics]", start+1, end, len(rows))))
	}

	return strings.Join(lines, "\n")
}

// renderRange draws a bar for scalar values of bounded metrics.
func renderRange(v any, info metric.Info) string {
	f, ok := v.(float64)
	if !ok || info.Range == nil || info.Range.Min == nil || info.Range.Max == nil {
		return ""
	}
	lo, hi := *info.Range.Min, *info.Range.Max
	if hi <= lo {
		return ""
	}
	return renderProgressBar((f-lo)/(hi-lo), 12)
}

func renderProgressBar(fraction float64, width int) string {
	filled := int(fraction * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	filledBar := rangeFilledStyle.Render(strings.Repeat("█", filled))
	emptyBar := rangeEmptyStyle.Render(strings.Repeat("░", width-filled))

	return fmt.Sprintf("[%s%s]", filledBar, emptyBar)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return undefinedStyle.Render(fmt.Sprintf("%12s", "n/a"))
	case float64:
		return valueStyle.Render(fmt.Sprintf("%12.4g", x))
	case bool:
		return valueStyle.Render(fmt.Sprintf("%12t", x))
	case string:
		return valueStyle.Render(fmt.Sprintf("%12s", truncate(x, 12)))
	case map[string]any:
		return labelStyle.Render(fmt.Sprintf("%12s", fmt.Sprintf("{%d keys}", len(x))))
	case []any:
		return labelStyle.Render(fmt.Sprintf("%12s", fmt.Sprintf("[%d items]", len(x))))
	}
	return valueStyle.Render(fmt.Sprintf("%12v", v))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func (m Model) renderFooter() string {
	if m.values == nil {
		return helpStyle.Render("  Waiting for the first measurement...")
	}

	timestamp := "-"
	if m.project != nil && m.project.Timestamp != "" {
		timestamp = m.project.Timestamp
	}

	return helpStyle.Render(fmt.Sprintf(
		"  Measured: %s │ Updated: %s",
		timestamp,
		m.lastUpdated.Format("15:04:05"),
	))
}
