package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/realtime-sync/syncdemo/internal/livesync"
	"github.com/realtime-sync/syncdemo/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	BaseURL  string
	Active   []livesync.ActiveChannel
	Warnings int
	Width    int
}

// New creates a status bar model.
func New(baseURL string) Model {
	return Model{BaseURL: baseURL}
}

// SetActive replaces the list of open channels.
func (m *Model) SetActive(active []livesync.ActiveChannel) {
	m.Active = active
}

// View renders the status bar.
func (m Model) View() string {
	width := max(m.Width, 40)

	server := lipgloss.NewStyle().Foreground(theme.ColorBright).Render(m.BaseURL)

	var parts []string
	for _, a := range m.Active {
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.StateColor(a.State.String())).Render(
			fmt.Sprintf("%s %s×%d", a.Key, glyph(a.State), a.Refs),
		))
	}
	channels := theme.StyleDimmed.Render("no channels")
	if len(parts) > 0 {
		channels = strings.Join(parts, "  ")
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := server + sep + channels
	if m.Warnings > 0 {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(
			fmt.Sprintf("%d diagnostics", m.Warnings))
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func glyph(s livesync.ChannelState) string {
	switch s {
	case livesync.StateOpen:
		return "●"
	case livesync.StateConnecting, livesync.StateDraining:
		return "◌"
	case livesync.StateFailed:
		return "✗"
	default:
		return "○"
	}
}
