// Package theme provides the Lip Gloss color palette and reusable styles
// for the sync demo TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Job phase colors.
var (
	ColorStarted    = lipgloss.Color("#7c3aed")
	ColorProcessing = lipgloss.Color("#2563eb")
	ColorCompleted  = lipgloss.Color("#16a34a")
	ColorFailed     = lipgloss.Color("#dc2626")
	ColorDefault    = lipgloss.Color("#9ca3af")
)

// Log level colors.
var (
	ColorDebug = lipgloss.Color("#6b7280")
	ColorInfo  = lipgloss.Color("#06b6d4")
	ColorWarn  = lipgloss.Color("#d97706")
	ColorError = lipgloss.Color("#dc2626")
)

// Usage gauge thresholds.
var (
	ColorUsageLow  = lipgloss.Color("#22c55e") // <50%
	ColorUsageMid  = lipgloss.Color("#d97706") // 50-80%
	ColorUsageHigh = lipgloss.Color("#dc2626") // >80%
)

// Chat colors.
var (
	ColorSelf   = lipgloss.Color("#a855f7")
	ColorRemote = lipgloss.Color("#f9fafb")
	ColorSystem = lipgloss.Color("#6b7280")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// PhaseColor returns the color for a job phase name.
func PhaseColor(phase string) lipgloss.Color {
	switch phase {
	case "started":
		return ColorStarted
	case "processing":
		return ColorProcessing
	case "completed":
		return ColorCompleted
	case "failed":
		return ColorFailed
	default:
		return ColorDefault
	}
}

// PhaseGlyph returns a Unicode glyph for a job phase name.
func PhaseGlyph(phase string) string {
	switch phase {
	case "started":
		return "◎"
	case "processing":
		return "●>"
	case "completed":
		return "✓"
	case "failed":
		return "✗"
	default:
		return "·"
	}
}

// LevelColor returns the color for a log level.
func LevelColor(level string) lipgloss.Color {
	switch level {
	case "DEBUG":
		return ColorDebug
	case "INFO":
		return ColorInfo
	case "WARNING", "WARN":
		return ColorWarn
	case "ERROR":
		return ColorError
	default:
		return ColorDefault
	}
}

// StateColor returns the color for a channel state name.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "open":
		return ColorHealthy
	case "connecting", "draining":
		return ColorWarning
	case "failed":
		return ColorDanger
	default:
		return ColorDimmed
	}
}

// UsageColor returns the color for a usage percentage in 0..100.
func UsageColor(pct float64) lipgloss.Color {
	switch {
	case pct > 80:
		return ColorUsageHigh
	case pct > 50:
		return ColorUsageMid
	default:
		return ColorUsageLow
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleTab = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(ColorDimmed)

	StyleActiveTab = lipgloss.NewStyle().
			Padding(0, 1).
			Bold(true).
			Underline(true).
			Foreground(ColorBright)
)

// PanelStyle returns the shared double-bordered panel style.
func PanelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(ColorBorder)
}
