package livesync

import (
	"context"
	"sync"
	"testing"
	"time"
)

const testTimeout = 5 * time.Second

// drain reads ch's updates until the channel ends them.
func drain(t *testing.T, ch Channel) []Update {
	t.Helper()
	var out []Update
	deadline := time.After(testTimeout)
	for {
		select {
		case u, ok := <-ch.Updates():
			if !ok {
				return out
			}
			out = append(out, u)
		case <-deadline:
			t.Fatalf("%s: updates not closed after %s (state %s)", ch.Key(), testTimeout, ch.State())
			return out
		}
	}
}

// next reads one update from ch.
func next(t *testing.T, ch Channel) Update {
	t.Helper()
	select {
	case u, ok := <-ch.Updates():
		if !ok {
			t.Fatalf("%s: updates closed", ch.Key())
		}
		return u
	case <-time.After(testTimeout):
		t.Fatalf("%s: no update after %s", ch.Key(), testTimeout)
	}
	return Update{}
}

// recorder is an Observer that keeps every frame it sees.
type recorder struct {
	mu     sync.Mutex
	frames []Frame
	signal chan struct{}
}

func newRecorder() *recorder {
	return &recorder{signal: make(chan struct{}, 1024)}
}

func (r *recorder) observe(f Frame) {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
	r.signal <- struct{}{}
}

func (r *recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

// waitFor blocks until the recorder holds at least n frames.
func (r *recorder) waitFor(t *testing.T, n int) []Frame {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		if frames := r.Frames(); len(frames) >= n {
			return frames
		}
		select {
		case <-r.signal:
		case <-deadline:
			t.Fatalf("got %d frames, want %d", len(r.Frames()), n)
		}
	}
}

func payloads[T Payload](frames []Frame) []T {
	var out []T
	for _, f := range frames {
		if p, ok := f.Payload.(T); ok {
			out = append(out, p)
		}
	}
	return out
}

// fakeChannel is a Channel driven by the test.
type fakeChannel struct {
	lifecycle
	openErr error
	opened  int
	closed  int
}

func newFakeChannel(key Key) *fakeChannel {
	c := &fakeChannel{}
	c.init(key, nil)
	return c
}

func (c *fakeChannel) Open(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}
	c.mu.Lock()
	c.opened++
	c.mu.Unlock()
	if c.openErr != nil {
		c.fail(c.openErr)
		c.end()
		return c.openErr
	}
	c.transition(StateOpen)
	return nil
}

func (c *fakeChannel) push(p Payload) { c.emit(Update{Payload: p}) }

// finishWith ends the channel on its own, as a producer would.
func (c *fakeChannel) finishWith(state ChannelState, err error) {
	if err != nil {
		c.fail(err)
	} else {
		c.transition(state)
	}
	c.end()
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	c.closed++
	if !c.state.IsTerminal() {
		c.state = StateClosed
	}
	c.mu.Unlock()
	c.stop()
	c.end()
	return nil
}

func (c *fakeChannel) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
