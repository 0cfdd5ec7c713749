// Package logs renders the tail of the streamed log feed.
package logs

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/realtime-sync/syncdemo/internal/livesync"
	"github.com/realtime-sync/syncdemo/internal/theme"
)

const maxRecords = 500

// Model holds the received log records.
type Model struct {
	Width     int
	Height    int
	Streaming bool
	records   []livesync.LogRecord
	levels    map[string]int
	offset    int
	ended     string
}

// New creates an empty log view.
func New() Model {
	return Model{levels: make(map[string]int)}
}

// Add appends a record, dropping the oldest past the cap.
func (m *Model) Add(r livesync.LogRecord) {
	m.records = append(m.records, r)
	if len(m.records) > maxRecords {
		m.records = m.records[len(m.records)-maxRecords:]
	}
	m.levels[r.Level]++
	if m.offset > 0 {
		m.offset = min(m.offset+1, len(m.records)-1)
	}
}

// End records how the stream finished.
func (m *Model) End(lc livesync.Lifecycle) {
	m.Streaming = false
	switch {
	case lc.Err != nil:
		m.ended = "stream failed: " + lc.Err.Error()
	default:
		m.ended = "stream finished"
	}
}

// Started clears the end marker for a new stream.
func (m *Model) Started() {
	m.Streaming = true
	m.ended = ""
}

// Len returns the number of buffered records.
func (m Model) Len() int { return len(m.records) }

// LevelCount returns how many records of a level were received.
func (m Model) LevelCount(level string) int { return m.levels[level] }

// ScrollUp moves towards older records.
func (m *Model) ScrollUp(n int) {
	m.offset = min(m.offset+n, max(len(m.records)-1, 0))
}

// ScrollDown moves towards the newest record.
func (m *Model) ScrollDown(n int) {
	m.offset = max(m.offset-n, 0)
}

// View renders the visible window of records.
func (m Model) View() string {
	visible := max(m.Height, 5)

	header := theme.StyleHeader.Render("LOGS")
	var counts []string
	for _, lvl := range []string{"DEBUG", "INFO", "WARNING", "ERROR"} {
		counts = append(counts, lipgloss.NewStyle().Foreground(theme.LevelColor(lvl)).
			Render(fmt.Sprintf("%s %d", lvl, m.levels[lvl])))
	}
	header += "  " + strings.Join(counts, "  ")

	if len(m.records) == 0 {
		body := "  No log records. Press s to start the stream."
		if m.Streaming {
			body = "  Waiting for log records..."
		}
		return lipgloss.JoinVertical(lipgloss.Left, header, theme.StyleDimmed.Render(body), m.footer())
	}

	end := len(m.records) - m.offset
	start := max(end-visible, 0)
	lines := []string{header}
	for _, r := range m.records[start:end] {
		lvl := lipgloss.NewStyle().Foreground(theme.LevelColor(r.Level)).Width(8).Render(r.Level)
		lines = append(lines, fmt.Sprintf("%s %s %-14s %s %s",
			theme.StyleDimmed.Render(r.EmittedAt.Format("15:04:05")),
			lvl, r.Source, r.Message, theme.StyleDimmed.Render(r.CorrelationID)))
	}
	if m.offset > 0 {
		lines = append(lines, theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d newer", m.offset)))
	}
	lines = append(lines, m.footer())
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) footer() string {
	if m.ended == "" {
		return ""
	}
	return theme.StyleDimmed.Render("  " + m.ended)
}
