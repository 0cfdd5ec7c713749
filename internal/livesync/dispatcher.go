package livesync

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Observer receives the frames of one key, one at a time and in order.
// It must not call Unsubscribe, Close or Shutdown for its own key.
type Observer func(Frame)

// Handle identifies one subscription.
type Handle struct {
	Key Key
	ID  string
}

type subscription struct {
	id string
	fn Observer
}

// topic is the dispatch state of one key. mu is held for the whole of a
// delivery, which is what lets Unsubscribe wait out an in-flight frame.
type topic struct {
	mu   sync.Mutex
	subs []subscription
	seq  uint64
	dead bool

	haveStatus   bool
	lastProgress int
}

// Dispatcher publishes channel updates to the observers of their key.
type Dispatcher struct {
	log *zap.SugaredLogger
	now func() time.Time

	mu     sync.Mutex
	topics map[Key]*topic
}

// NewDispatcher creates a dispatcher with no observers.
func NewDispatcher(log *zap.SugaredLogger) *Dispatcher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Dispatcher{
		log:    log,
		now:    time.Now,
		topics: make(map[Key]*topic),
	}
}

func (d *Dispatcher) topicFor(key Key) *topic {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.topics[key]
	if !ok {
		t = &topic{}
		d.topics[key] = t
	}
	return t
}

func (d *Dispatcher) lookup(key Key) *topic {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.topics[key]
}

// retire unlinks t from the dispatcher. t.mu must be held.
func (d *Dispatcher) retire(key Key, t *topic) {
	t.dead = true
	t.subs = nil
	d.mu.Lock()
	if d.topics[key] == t {
		delete(d.topics, key)
	}
	d.mu.Unlock()
}

// Subscribe adds fn after the existing observers of key.
func (d *Dispatcher) Subscribe(key Key, fn Observer) Handle {
	h := Handle{Key: key, ID: uuid.NewString()}
	for {
		t := d.topicFor(key)
		t.mu.Lock()
		if t.dead {
			// Retired between lookup and lock; a fresh topic is in the map now.
			t.mu.Unlock()
			continue
		}
		t.subs = append(t.subs, subscription{id: h.ID, fn: fn})
		t.mu.Unlock()
		d.log.Debugw("observer subscribed", "key", key, "handle", h.ID)
		return h
	}
}

// Unsubscribe removes the observer behind h. When it returns, the observer
// is not running and will not be called again. It reports whether h was
// still subscribed.
func (d *Dispatcher) Unsubscribe(h Handle) bool {
	t := d.lookup(h.Key)
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, s := range t.subs {
		if s.id != h.ID {
			continue
		}
		t.subs = append(t.subs[:i:i], t.subs[i+1:]...)
		if len(t.subs) == 0 {
			d.retire(h.Key, t)
		}
		d.log.Debugw("observer unsubscribed", "key", h.Key, "handle", h.ID)
		return true
	}
	return false
}

// Drop removes every observer of key and resets its sequence.
func (d *Dispatcher) Drop(key Key) {
	t := d.lookup(key)
	if t == nil {
		return
	}
	t.mu.Lock()
	d.retire(key, t)
	t.mu.Unlock()
}

// Observers returns the number of observers of key.
func (d *Dispatcher) Observers(key Key) int {
	t := d.lookup(key)
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Publish delivers u to every observer of key in subscription order and
// returns once all of them have run. A faulty update, or a payload that
// fails validation, is delivered as a Diagnostic instead.
func (d *Dispatcher) Publish(key Key, u Update) {
	t := d.lookup(key)
	if t == nil {
		d.log.Debugw("no observers, update dropped", "key", key)
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dead || len(t.subs) == 0 {
		return
	}

	payload := u.Payload
	switch {
	case u.Err != nil:
		payload = Diagnostic{Code: diagnosticCode(u.Err), Err: u.Err}
	case payload == nil:
		return
	default:
		if err := t.validate(payload); err != nil {
			d.log.Warnw("rejecting frame", "key", key, "error", err)
			payload = Diagnostic{Code: DiagValidate, Err: err}
		}
	}

	t.seq++
	f := Frame{Key: key, Seq: t.seq, At: d.now(), Payload: payload}
	for _, s := range t.subs {
		d.deliver(s, f)
	}
}

// Announce delivers a payload that did not come from a channel, such as a
// lifecycle frame, to the subscriptions in to only. Observers of key that
// are not listed skip the frame.
func (d *Dispatcher) Announce(key Key, p Payload, to []Handle) {
	t := d.lookup(key)
	if t == nil || len(to) == 0 {
		return
	}
	ids := make(map[string]bool, len(to))
	for _, h := range to {
		ids[h.ID] = true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dead {
		return
	}
	t.seq++
	f := Frame{Key: key, Seq: t.seq, At: d.now(), Payload: p}
	for _, s := range t.subs {
		if ids[s.id] {
			d.deliver(s, f)
		}
	}
}

func (d *Dispatcher) deliver(s subscription, f Frame) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Errorw("observer panicked", "key", f.Key, "handle", s.id, "seq", f.Seq, "panic", r)
		}
	}()
	s.fn(f)
}

// validate checks a payload against the key's history. t.mu must be held.
func (t *topic) validate(p Payload) error {
	st, ok := p.(StatusUpdate)
	if !ok {
		return nil
	}
	if !st.Phase.Valid() {
		return &ValidationError{Reason: fmt.Sprintf("unknown phase %q", st.Phase)}
	}
	if st.Progress < 0 || st.Progress > 100 {
		return &ValidationError{Reason: fmt.Sprintf("progress %d out of range", st.Progress)}
	}
	if t.haveStatus && st.Phase != PhaseStarted && st.Progress < t.lastProgress {
		return &ValidationError{Reason: fmt.Sprintf("progress went back from %d to %d", t.lastProgress, st.Progress)}
	}
	t.haveStatus = true
	t.lastProgress = st.Progress
	return nil
}
