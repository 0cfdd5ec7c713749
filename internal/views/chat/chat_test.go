package chat

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/realtime-sync/syncdemo/internal/livesync"
)

func TestTypingAndTake(t *testing.T) {
	m := New("7")
	m.Focus()
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(" hello ")})
	if !m.Focused() {
		t.Fatal("input should be focused")
	}
	if got := m.Take(); got != "hello" {
		t.Errorf("expected trimmed 'hello', got %q", got)
	}
	if got := m.Take(); got != "" {
		t.Errorf("input should be empty after Take, got %q", got)
	}
}

func TestViewRendersTranscript(t *testing.T) {
	m := New("7")
	m.Joined = true
	m.Add(livesync.ChatEvent{Text: "connected to chat as Client #7", System: true})
	m.Add(livesync.ChatEvent{Text: "Client #7: hi", Self: true, SenderID: "7"})
	m.Add(livesync.ChatEvent{Text: "Client #9: hey", SenderID: "9"})

	v := m.View()
	for _, want := range []string{"CHAT", "Client #7: hi", "Client #9: hey", "connected to chat"} {
		if !strings.Contains(v, want) {
			t.Errorf("view should contain %q", want)
		}
	}
	if strings.Contains(v, "not connected") {
		t.Error("joined view should not show the join hint")
	}
}

func TestTranscriptCapped(t *testing.T) {
	m := New("1")
	for i := 0; i < maxMessages+5; i++ {
		m.Add(livesync.ChatEvent{Text: "x"})
	}
	if len(m.Messages()) != maxMessages {
		t.Errorf("expected %d messages, got %d", maxMessages, len(m.Messages()))
	}
}
