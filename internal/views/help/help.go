// Package help renders the key reference overlay from markdown.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
	"github.com/realtime-sync/syncdemo/internal/theme"
)

const intro = `# syncdemo

Watches a demo server three ways: **polling** job status, **streaming** the
log and metrics feeds, and a **websocket** chat. Every open channel is listed
in the status bar with its state and subscriber count.
`

// Markdown builds the help text for the given bindings.
func Markdown(bindings []key.Binding) string {
	var b strings.Builder
	b.WriteString(intro)
	b.WriteString("\n## Keys\n\n| Key | Action |\n|---|---|\n")
	for _, kb := range bindings {
		h := kb.Help()
		if h.Key == "" {
			continue
		}
		fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
	}
	return b.String()
}

// Render renders the help markdown for the terminal width. It falls back to
// the raw markdown when rendering fails.
func Render(bindings []key.Binding, width int) string {
	md := Markdown(bindings)
	innerW := max(width-8, 20)
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(innerW-6),
	)
	if err != nil {
		return theme.PanelStyle(innerW).Render(md)
	}
	out, err := r.Render(md)
	if err != nil {
		return theme.PanelStyle(innerW).Render(md)
	}
	return theme.PanelStyle(innerW).Render(strings.TrimSpace(out) + "\n\n" + theme.StyleDimmed.Render("esc:close"))
}
