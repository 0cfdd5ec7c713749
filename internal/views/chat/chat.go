// Package chat renders the chat transcript and the message input.
package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/realtime-sync/syncdemo/internal/livesync"
	"github.com/realtime-sync/syncdemo/internal/theme"
)

const maxMessages = 200

// Model holds the transcript and the input line.
type Model struct {
	Width    int
	Height   int
	ClientID string
	Joined   bool
	messages []livesync.ChatEvent
	input    textinput.Model
}

// New creates a chat view for the given client id.
func New(clientID string) Model {
	in := textinput.New()
	in.Placeholder = "Type a message, enter to send"
	in.CharLimit = 500
	in.Prompt = "> "
	return Model{ClientID: clientID, input: in}
}

// Add appends a chat event to the transcript.
func (m *Model) Add(ev livesync.ChatEvent) {
	m.messages = append(m.messages, ev)
	if len(m.messages) > maxMessages {
		m.messages = m.messages[len(m.messages)-maxMessages:]
	}
}

// Messages returns the transcript.
func (m Model) Messages() []livesync.ChatEvent { return m.messages }

// Focus gives the input keyboard focus.
func (m *Model) Focus() tea.Cmd { return m.input.Focus() }

// Blur removes keyboard focus from the input.
func (m *Model) Blur() { m.input.Blur() }

// Focused reports whether the input has focus.
func (m Model) Focused() bool { return m.input.Focused() }

// Take returns the trimmed input and clears it.
func (m *Model) Take() string {
	text := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	return text
}

// Update forwards key input to the text field.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the transcript tail above the input.
func (m Model) View() string {
	visible := max(m.Height, 5)
	header := theme.StyleHeader.Render("CHAT") + "  " + theme.StyleDimmed.Render("as Client #"+m.ClientID)
	if !m.Joined {
		header += "  " + theme.StyleDimmed.Render("(not connected, press c to join)")
	}

	lines := []string{header}
	start := max(len(m.messages)-visible, 0)
	for _, ev := range m.messages[start:] {
		lines = append(lines, renderMessage(ev))
	}
	if len(m.messages) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  No messages yet."))
	}
	lines = append(lines, "", m.input.View())
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderMessage(ev livesync.ChatEvent) string {
	ts := theme.StyleDimmed.Render(ev.ReceivedAt.Format("15:04:05"))
	switch {
	case ev.System:
		return ts + " " + lipgloss.NewStyle().Foreground(theme.ColorSystem).Italic(true).Render(ev.Text)
	case ev.Self:
		return ts + " " + lipgloss.NewStyle().Foreground(theme.ColorSelf).Render(ev.Text)
	default:
		return ts + " " + lipgloss.NewStyle().Foreground(theme.ColorRemote).Render(ev.Text)
	}
}
