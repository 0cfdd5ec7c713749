package jobs

import (
	"errors"
	"strings"
	"testing"

	"github.com/realtime-sync/syncdemo/internal/livesync"
)

func TestTrackIsIdempotent(t *testing.T) {
	m := New()
	m.Track("a")
	m.Track("a")
	if m.Len() != 1 {
		t.Fatalf("expected 1 job, got %d", m.Len())
	}
	st, ok := m.Status("a")
	if !ok || st.Phase != livesync.PhaseStarted {
		t.Errorf("new job should start in phase started, got %+v", st)
	}
}

func TestSpringSettlesOnTarget(t *testing.T) {
	m := New()
	m.Apply("a", livesync.StatusUpdate{Phase: livesync.PhaseProcessing, Progress: 60})
	if !m.Animating() {
		t.Fatal("bar should animate towards a new target")
	}

	frames := 0
	for m.Step() && frames < 10*fps {
		frames++
	}
	if m.Animating() {
		t.Fatal("bar should settle within ten seconds of frames")
	}
	if got := m.order[0].pos; got != 0.6 {
		t.Errorf("expected bar at 0.6, got %v", got)
	}
}

func TestSelectionWraps(t *testing.T) {
	m := New()
	if _, ok := m.Selected(); ok {
		t.Fatal("empty view has no selection")
	}
	m.Track("a")
	m.Track("b")

	m.Next()
	if id, _ := m.Selected(); id != "b" {
		t.Errorf("expected b, got %s", id)
	}
	m.Next()
	if id, _ := m.Selected(); id != "a" {
		t.Errorf("expected a, got %s", id)
	}
	m.Prev()
	if id, _ := m.Selected(); id != "b" {
		t.Errorf("expected b, got %s", id)
	}
}

func TestViewShowsResultAndFailure(t *testing.T) {
	m := New()
	m.Width = 120
	m.Apply("done", livesync.StatusUpdate{Phase: livesync.PhaseCompleted, Progress: 100, Result: "Processed 3 items"})
	m.Track("lost")
	m.End("lost", livesync.Lifecycle{State: livesync.StateFailed, Err: errors.New("poll: connection refused")})
	m.End("unknown", livesync.Lifecycle{State: livesync.StateClosed})

	v := m.View()
	for _, want := range []string{"JOBS", "Processed 3 items", "completed", "connection refused"} {
		if !strings.Contains(v, want) {
			t.Errorf("view should contain %q", want)
		}
	}
}

func TestViewEmpty(t *testing.T) {
	m := New()
	if v := m.View(); !strings.Contains(v, "No jobs") {
		t.Error("empty view should say 'No jobs'")
	}
}
