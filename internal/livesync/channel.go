package livesync

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Channel is one update source bound to a key. Open starts it, Updates
// carries its emissions in order and is closed once the channel is done,
// Close stops it. Close must be safe to call more than once.
type Channel interface {
	Key() Key
	Open(ctx context.Context) error
	Updates() <-chan Update
	State() ChannelState
	// Err returns the failure that moved the channel to StateFailed.
	Err() error
	Close() error
}

// Sender is implemented by channels that accept outbound messages.
type Sender interface {
	Send(text string) error
}

// Factory builds an unopened channel for a key.
type Factory func(key Key) (Channel, error)

const updateBuffer = 64

// lifecycle holds the state and emission plumbing every channel variant
// shares. done is closed when the channel is asked to stop so that pending
// emits never block a closing channel.
type lifecycle struct {
	key Key
	log *zap.SugaredLogger

	mu    sync.Mutex
	state ChannelState
	err   error

	updates   chan Update
	done      chan struct{}
	closeOnce sync.Once
	finish    sync.Once
}

func (l *lifecycle) init(key Key, log *zap.SugaredLogger) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	l.key = key
	l.log = log
	l.state = StateIdle
	l.updates = make(chan Update, updateBuffer)
	l.done = make(chan struct{})
}

func (l *lifecycle) Key() Key { return l.key }

func (l *lifecycle) Updates() <-chan Update { return l.updates }

func (l *lifecycle) State() ChannelState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err returns the failure recorded by fail, if any.
func (l *lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// begin moves an idle channel to StateConnecting. A channel opens once.
func (l *lifecycle) begin() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateIdle {
		return &RejectedOperation{Op: "open", State: l.state}
	}
	l.state = StateConnecting
	return nil
}

// fail records err and moves the channel to StateFailed.
func (l *lifecycle) fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return
	}
	l.log.Warnw("channel failed", "key", l.key, "state", l.state, "error", err)
	l.err = err
	l.state = StateFailed
}

// transition moves to next unless the channel already reached a terminal
// state. It reports whether the move happened.
func (l *lifecycle) transition(next ChannelState) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	if l.state != next {
		l.log.Debugw("channel state", "key", l.key, "from", l.state, "to", next)
	}
	l.state = next
	return true
}

// emit queues u for the consumer. It gives up once the channel is stopping.
func (l *lifecycle) emit(u Update) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.updates <- u:
		return true
	case <-l.done:
		return false
	}
}

func (l *lifecycle) stopped() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// stop signals every goroutine of the channel to wind down.
func (l *lifecycle) stop() {
	l.closeOnce.Do(func() { close(l.done) })
}

// end closes the update stream. Only the channel's producing goroutine
// calls it.
func (l *lifecycle) end() {
	l.finish.Do(func() { close(l.updates) })
}
