package app

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/realtime-sync/syncdemo/internal/livesync"
)

// FrameMsg carries one frame from the sync core into the program.
type FrameMsg struct {
	Frame livesync.Frame
}

// Bridge hands frames from dispatcher goroutines to the Bubble Tea loop.
// Observe blocks while the buffer is full so no frame is lost; Close
// releases any blocked observer.
type Bridge struct {
	frames chan livesync.Frame
	done   chan struct{}
	once   sync.Once
}

// NewBridge creates a bridge buffering up to size frames.
func NewBridge(size int) *Bridge {
	return &Bridge{
		frames: make(chan livesync.Frame, size),
		done:   make(chan struct{}),
	}
}

// Observe is a livesync.Observer.
func (b *Bridge) Observe(f livesync.Frame) {
	select {
	case b.frames <- f:
	case <-b.done:
	}
}

// Next waits for the next frame. The program re-arms it after every
// FrameMsg.
func (b *Bridge) Next() tea.Cmd {
	return func() tea.Msg {
		select {
		case f := <-b.frames:
			return FrameMsg{Frame: f}
		case <-b.done:
			return nil
		}
	}
}

// Close stops the bridge. It is safe to call more than once.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}
