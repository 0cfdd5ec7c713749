package livesync

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ActiveChannel describes one registered channel.
type ActiveChannel struct {
	Key   Key
	State ChannelState
	Refs  int
	Since time.Time
}

type entry struct {
	mu    sync.Mutex // held while the channel opens
	ch    Channel    // written under both mu and Registry.mu
	refs  int
	seq   uint64
	since time.Time
}

// Registry tracks the channel of every key and keeps at most one live
// channel per key. Acquirers of one key share the channel; the last
// release closes it.
type Registry struct {
	log *zap.SugaredLogger

	mu      sync.Mutex
	entries map[Key]*entry
	nextSeq uint64
}

// NewRegistry creates an empty registry.
func NewRegistry(log *zap.SugaredLogger) *Registry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Registry{
		log:     log,
		entries: make(map[Key]*entry),
	}
}

// Acquire returns the live channel for key, creating and opening one with
// factory when there is none. created reports whether this call opened it.
// Concurrent acquirers of the same key wait for a single open.
func (r *Registry) Acquire(ctx context.Context, key Key, factory Factory) (ch Channel, created bool, err error) {
	r.mu.Lock()
	e, ok := r.entries[key]
	if ok && e.ch != nil && e.ch.State().IsTerminal() {
		ok = false
	}
	if !ok {
		r.nextSeq++
		e = &entry{seq: r.nextSeq, since: time.Now()}
		r.entries[key] = e
	}
	e.refs++
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ch != nil {
		return e.ch, false, nil
	}

	ch, err = factory(key)
	if err == nil {
		err = ch.Open(ctx)
	}
	if err != nil {
		r.mu.Lock()
		e.refs--
		if e.refs == 0 && r.entries[key] == e {
			delete(r.entries, key)
		}
		r.mu.Unlock()
		return nil, false, err
	}

	r.mu.Lock()
	e.ch = ch
	r.mu.Unlock()
	r.log.Infow("channel opened", "key", key)
	return ch, true, nil
}

// Release drops one reference to key. The last reference closes the
// channel and removes the entry; last reports that case.
func (r *Registry) Release(key Key) (ch Channel, last bool) {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	e.refs--
	if e.refs > 0 {
		r.mu.Unlock()
		return e.ch, false
	}
	delete(r.entries, key)
	r.mu.Unlock()

	e.mu.Lock()
	ch = e.ch
	e.mu.Unlock()
	if ch != nil {
		if err := ch.Close(); err != nil {
			r.log.Warnw("closing channel", "key", key, "error", err)
		}
		r.log.Infow("channel released", "key", key)
	}
	return ch, true
}

// Remove deletes key's entry if it still holds ch. Channels that end on
// their own are removed this way.
func (r *Registry) Remove(key Key, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok || e.ch != ch {
		return false
	}
	delete(r.entries, key)
	return true
}

// Lookup returns the channel registered for key.
func (r *Registry) Lookup(key Key) (Channel, bool) {
	r.mu.Lock()
	e, ok := r.entries[key]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ch, e.ch != nil
}

// ListActive returns every registered channel in acquisition order.
// Channels still opening are reported as connecting.
func (r *Registry) ListActive() []ActiveChannel {
	r.mu.Lock()
	type item struct {
		key Key
		e   *entry
		seq uint64
		ref int
	}
	items := make([]item, 0, len(r.entries))
	for k, e := range r.entries {
		items = append(items, item{key: k, e: e, seq: e.seq, ref: e.refs})
	}
	r.mu.Unlock()

	sort.Slice(items, func(i, j int) bool { return items[i].seq < items[j].seq })

	out := make([]ActiveChannel, 0, len(items))
	for _, it := range items {
		state := StateConnecting
		if it.e.mu.TryLock() {
			if it.e.ch != nil {
				state = it.e.ch.State()
			}
			it.e.mu.Unlock()
		}
		out = append(out, ActiveChannel{Key: it.key, State: state, Refs: it.ref, Since: it.e.since})
	}
	return out
}

// Len returns the number of registered keys.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// CloseAll closes and removes every channel.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[Key]*entry)
	r.mu.Unlock()

	for key, e := range entries {
		e.mu.Lock()
		ch := e.ch
		e.mu.Unlock()
		if ch == nil {
			continue
		}
		if err := ch.Close(); err != nil {
			r.log.Warnw("closing channel", "key", key, "error", err)
		}
	}
}
