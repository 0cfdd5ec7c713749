// Package debug provides a scrollable overlay listing diagnostics and
// channel lifecycle events.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/realtime-sync/syncdemo/internal/theme"
)

const maxEntries = 200

// Entry is a single event log line.
type Entry struct {
	Time    time.Time
	Key     string
	Kind    string // diagnostic code, "life" or "app"
	Message string
}

// Model holds debug log state.
type Model struct {
	Entries []Entry
	Offset  int // scroll offset (from bottom)
	now     func() time.Time
}

// New creates an empty debug model.
func New() Model {
	return Model{now: time.Now}
}

// Add appends a log entry and caps the buffer.
func (m *Model) Add(key, kind, message string) {
	now := time.Now
	if m.now != nil {
		now = m.now
	}
	m.Entries = append(m.Entries, Entry{
		Time:    now(),
		Key:     key,
		Kind:    kind,
		Message: message,
	})
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.Offset = 0
}

// Count returns the number of entries of the given kind.
func (m Model) Count(kind string) int {
	n := 0
	for _, e := range m.Entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// ScrollUp moves the viewport up.
func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.Entries)-1, 0))
}

// ScrollDown moves the viewport down.
func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

// View renders the debug log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	visibleLines := max(height-6, 3)

	title := theme.StyleHeader.Render(" DEBUG LOG ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc:close  %d entries", len(m.Entries)))

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  No events recorded yet.")
		content := lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help)
		return theme.PanelStyle(innerW).Render(content)
	}

	end := max(len(m.Entries)-m.Offset, 0)
	start := max(end-visibleLines, 0)

	var lines []string
	for _, e := range m.Entries[start:end] {
		ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
		kind := lipgloss.NewStyle().Foreground(kindToColor(e.Kind)).Width(9).Render(e.Kind)
		msg := e.Key + " " + e.Message
		if len(msg) > innerW-26 && innerW > 30 {
			msg = msg[:innerW-29] + "..."
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", ts, kind, msg))
	}

	scrollIndicator := ""
	if m.Offset > 0 {
		scrollIndicator = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), scrollIndicator, help)
	return theme.PanelStyle(innerW).Render(content)
}

func kindToColor(kind string) lipgloss.Color {
	switch kind {
	case "transport", "rejected":
		return theme.ColorDanger
	case "decode", "validate":
		return theme.ColorWarning
	case "fetch":
		return theme.ColorProcessing
	case "life":
		return theme.ColorStarted
	default:
		return theme.ColorDimmed
	}
}
