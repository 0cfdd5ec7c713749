// Package jobs renders the watched background jobs with spring-animated
// progress bars.
package jobs

import (
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/realtime-sync/syncdemo/internal/livesync"
	"github.com/realtime-sync/syncdemo/internal/theme"
)

const fps = 30

// TickMsg advances the progress animation by one frame.
type TickMsg struct{}

type job struct {
	id       string
	status   livesync.StatusUpdate
	pos, vel float64
	ended    bool
	failure  string
}

func (j *job) target() float64 {
	return float64(j.status.Progress) / 100
}

func (j *job) settled() bool {
	return math.Abs(j.pos-j.target()) < 0.001 && math.Abs(j.vel) < 0.001
}

// Model holds the list of watched jobs.
type Model struct {
	Width    int
	order    []*job
	index    map[string]*job
	selected int
	spring   harmonica.Spring
}

// New creates an empty jobs view.
func New() Model {
	return Model{
		index:  make(map[string]*job),
		spring: harmonica.NewSpring(harmonica.FPS(fps), 6.0, 1.0),
	}
}

// Track adds a job with no reported status yet. Tracking a known job is a
// no-op.
func (m *Model) Track(id string) {
	if _, ok := m.index[id]; ok {
		return
	}
	j := &job{id: id, status: livesync.StatusUpdate{Phase: livesync.PhaseStarted}}
	m.index[id] = j
	m.order = append(m.order, j)
}

// Apply records a status update for a job.
func (m *Model) Apply(id string, st livesync.StatusUpdate) {
	m.Track(id)
	j := m.index[id]
	j.status = st
	j.failure = ""
	j.ended = false
}

// End marks the job's poller as finished.
func (m *Model) End(id string, lc livesync.Lifecycle) {
	j, ok := m.index[id]
	if !ok {
		return
	}
	j.ended = true
	if lc.Err != nil {
		j.failure = lc.Err.Error()
	}
}

// Len returns the number of tracked jobs.
func (m Model) Len() int { return len(m.order) }

// Status returns the last status of a job.
func (m Model) Status(id string) (livesync.StatusUpdate, bool) {
	j, ok := m.index[id]
	if !ok {
		return livesync.StatusUpdate{}, false
	}
	return j.status, true
}

// Selected returns the id of the highlighted job.
func (m Model) Selected() (string, bool) {
	if len(m.order) == 0 {
		return "", false
	}
	return m.order[m.selected].id, true
}

// Next highlights the next job.
func (m *Model) Next() {
	if len(m.order) > 0 {
		m.selected = (m.selected + 1) % len(m.order)
	}
}

// Prev highlights the previous job.
func (m *Model) Prev() {
	if len(m.order) > 0 {
		m.selected = (m.selected - 1 + len(m.order)) % len(m.order)
	}
}

// Step advances every bar one animation frame and reports whether any bar
// is still moving.
func (m *Model) Step() bool {
	moving := false
	for _, j := range m.order {
		if j.settled() {
			j.pos, j.vel = j.target(), 0
			continue
		}
		j.pos, j.vel = m.spring.Update(j.pos, j.vel, j.target())
		moving = true
	}
	return moving
}

// Animating reports whether a bar has not reached its target yet.
func (m Model) Animating() bool {
	for _, j := range m.order {
		if !j.settled() {
			return true
		}
	}
	return false
}

// Tick schedules the next animation frame.
func Tick() tea.Cmd {
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg { return TickMsg{} })
}

// View renders one line per job.
func (m Model) View() string {
	width := max(m.Width, 60)
	if len(m.order) == 0 {
		return theme.StyleDimmed.Render("  No jobs yet. Press n to start one.")
	}

	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(width-50))

	lines := []string{theme.StyleHeader.Render("JOBS")}
	for i, j := range m.order {
		prefix := "  "
		if i == m.selected {
			prefix = "> "
		}
		phase := string(j.status.Phase)
		phaseStr := lipgloss.NewStyle().Foreground(theme.PhaseColor(phase)).Width(12).
			Render(theme.PhaseGlyph(phase) + " " + phase)
		id := j.id
		if len(id) > 8 {
			id = id[:8]
		}
		line := fmt.Sprintf("%s%-8s %s %s %3d%%", prefix, id, phaseStr,
			bar.ViewAs(math.Max(0, math.Min(1, j.pos))), j.status.Progress)

		detail := j.status.Message
		if j.status.Result != "" {
			detail = j.status.Result
		}
		if j.failure != "" {
			detail = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render(j.failure)
		} else if j.ended && !j.status.Phase.IsTerminal() {
			detail = theme.StyleDimmed.Render("stopped watching")
		}
		if detail != "" {
			line += "  " + theme.StyleDimmed.Render(detail)
		}
		lines = append(lines, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
