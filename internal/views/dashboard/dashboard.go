// Package dashboard provides the host metrics gauges and the aggregate
// dashboard panel.
package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/realtime-sync/syncdemo/internal/client"
	"github.com/realtime-sync/syncdemo/internal/livesync"
	"github.com/realtime-sync/syncdemo/internal/theme"
)

const gaugeWidth = 30

// Model holds the dashboard state.
type Model struct {
	Width     int
	Loading   bool
	Err       error
	data      *client.Dashboard
	loadedIn  time.Duration
	metric    *livesync.MetricSample
	samples   int
	Streaming bool
}

// New creates a dashboard model.
func New() Model {
	return Model{}
}

// SetDashboard stores an aggregate reply and how long it took.
func (m *Model) SetDashboard(d *client.Dashboard, took time.Duration) {
	m.data = d
	m.loadedIn = took
	m.Loading = false
	m.Err = nil
}

// SetMetric stores the newest host metrics sample.
func (m *Model) SetMetric(s livesync.MetricSample) {
	m.metric = &s
	m.samples++
}

// Samples returns how many metric samples were received.
func (m Model) Samples() int { return m.samples }

// View renders the metrics row above the aggregate panel.
func (m Model) View() string {
	sections := []string{
		m.renderMetrics(),
		"",
		m.renderAggregate(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderMetrics() string {
	header := theme.StyleHeader.Render("HOST METRICS")
	if m.metric == nil {
		hint := "  Press m to start the metrics stream."
		if m.Streaming {
			hint = "  Waiting for samples..."
		}
		return lipgloss.JoinVertical(lipgloss.Left, header, theme.StyleDimmed.Render(hint))
	}
	s := m.metric
	lines := []string{
		header + theme.StyleDimmed.Render(fmt.Sprintf("  %d samples", m.samples)),
		gauge("CPU", s.CPU),
		gauge("Memory", s.Memory),
		gauge("Disk", s.Disk),
		fmt.Sprintf("%-8s %d   %s %d", "Conns", s.ActiveConnections, "Req/min", s.RequestsPerMinute),
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func gauge(label string, pct float64) string {
	filled := int(pct / 100 * gaugeWidth)
	filled = min(max(filled, 0), gaugeWidth)
	bar := lipgloss.NewStyle().Foreground(theme.UsageColor(pct)).Render(strings.Repeat("█", filled)) +
		theme.StyleDimmed.Render(strings.Repeat("░", gaugeWidth-filled))
	return fmt.Sprintf("%-8s %s %5.1f%%", label, bar, pct)
}

func (m Model) renderAggregate() string {
	header := theme.StyleHeader.Render("DASHBOARD")
	switch {
	case m.Loading:
		return lipgloss.JoinVertical(lipgloss.Left, header, theme.StyleDimmed.Render("  Loading..."))
	case m.Err != nil:
		return lipgloss.JoinVertical(lipgloss.Left, header,
			lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("  "+m.Err.Error()))
	case m.data == nil:
		return lipgloss.JoinVertical(lipgloss.Left, header, theme.StyleDimmed.Render("  Press r to load the dashboard."))
	}

	d := m.data
	statStyle := lipgloss.NewStyle().Padding(0, 1)
	weather := statStyle.Foreground(theme.ColorBright).Render(
		fmt.Sprintf("%.0f°C %s, %.0f%% humidity", d.Weather.Temperature, d.Weather.Condition, d.Weather.Humidity))

	lines := []string{
		header + theme.StyleDimmed.Render(fmt.Sprintf("  loaded in %s", m.loadedIn.Round(time.Millisecond))),
		weather,
		statStyle.Render("Stocks  " + prices(d.Stocks)),
		statStyle.Render("Crypto  " + prices(d.Crypto)),
	}
	for _, h := range d.News.Headlines {
		lines = append(lines, statStyle.Render("• "+h))
	}
	if d.Timestamp != "" {
		lines = append(lines, theme.StyleDimmed.Render("  as of "+d.Timestamp))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func prices(p map[string]float64) string {
	names := make([]string, 0, len(p))
	for n := range p {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, fmt.Sprintf("%s %.2f", n, p[n]))
	}
	return strings.Join(parts, "  ")
}
