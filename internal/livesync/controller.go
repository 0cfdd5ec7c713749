package livesync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Well-known keys.
const (
	LogsKey    Key = "logs"
	MetricsKey Key = "metrics"
)

// JobKey is the key of a job status subscription.
func JobKey(jobID string) Key { return Key("job:" + jobID) }

// ChatKey is the key of a chat session.
func ChatKey(clientID string) Key { return Key("chat:" + clientID) }

// pump moves updates from one channel into the dispatcher.
type pump struct {
	ch     Channel
	cancel context.CancelFunc
	done   chan struct{}
}

// Controller is the entry point of the package. It opens channels through
// its Registry, runs one pump per key and fans updates out through its
// Dispatcher.
type Controller struct {
	reg  *Registry
	disp *Dispatcher
	log  *zap.SugaredLogger
	opts []Option

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu      sync.Mutex
	pumps   map[Key]*pump
	handles map[string]Channel // handle ID -> channel it was bound to
	closed  bool
}

// NewController creates a controller owning reg and disp. opts are applied
// to every channel created by the convenience openers.
func NewController(reg *Registry, disp *Dispatcher, opts ...Option) *Controller {
	o := buildOptions(opts)
	base, stop := context.WithCancel(context.Background())
	return &Controller{
		reg:     reg,
		disp:    disp,
		log:     o.log,
		opts:    opts,
		base:    base,
		stop:    stop,
		pumps:   make(map[Key]*pump),
		handles: make(map[string]Channel),
	}
}

// Subscribe attaches obs to key, opening the key's channel with factory
// unless one is already live. The channel belongs to the controller; ctx
// only guards the call itself.
func (c *Controller) Subscribe(ctx context.Context, key Key, factory Factory, obs Observer) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return Handle{}, ErrShutdown
	}

	h := c.disp.Subscribe(key, obs)
	var (
		ch      Channel
		created bool
		err     error
	)
	for {
		ch, created, err = c.reg.Acquire(c.base, key, factory)
		if err != nil {
			c.disp.Unsubscribe(h)
			if c.base.Err() != nil {
				return Handle{}, ErrShutdown
			}
			return Handle{}, fmt.Errorf("open %s: %w", key, err)
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			c.disp.Unsubscribe(h)
			c.reg.Release(key)
			_ = ch.Close()
			return Handle{}, ErrShutdown
		}
		if created || !c.ended(key, ch) {
			break
		}
		// The shared channel ended after Acquire handed it out and its
		// observers are already detached. Acquire skips ended channels, so
		// the next round opens a fresh one.
		c.mu.Unlock()
		c.log.Debugw("shared channel ended during subscribe, reopening", "key", key)
	}
	c.handles[h.ID] = ch
	if created {
		ctx, cancel := context.WithCancel(c.base)
		p := &pump{ch: ch, cancel: cancel, done: make(chan struct{})}
		c.pumps[key] = p
		c.wg.Add(1)
		go c.run(ctx, key, p)
	}
	c.mu.Unlock()

	c.log.Debugw("subscribed", "key", key, "handle", h.ID, "created", created)
	return h, nil
}

func (c *Controller) run(ctx context.Context, key Key, p *pump) {
	defer c.wg.Done()
	defer close(p.done)

	updates := p.ch.Updates()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				c.finish(key, p)
				return
			}
			if ctx.Err() != nil {
				return
			}
			c.disp.Publish(key, u)
		}
	}
}

// ended reports whether ch, handed out by Acquire for key, has ended and
// lost its pump. c.mu must be held.
func (c *Controller) ended(key Key, ch Channel) bool {
	if !ch.State().IsTerminal() {
		return false
	}
	p := c.pumps[key]
	return p == nil || p.ch != ch
}

// finish handles a channel that ended on its own: it leaves the registry,
// and the observers bound to it get one Lifecycle frame and are detached.
// Observers that already moved on to a newer channel for key never see it.
func (c *Controller) finish(key Key, p *pump) {
	handles := c.detach(key, p)
	c.reg.Remove(key, p.ch)

	if len(handles) > 0 {
		state, err := p.ch.State(), p.ch.Err()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		if state == StateFailed {
			c.log.Warnw("channel failed", "key", key, "error", err)
		} else {
			c.log.Infow("channel ended", "key", key, "state", state)
		}
		c.disp.Announce(key, Lifecycle{State: state, Err: err}, handles)
	}
	for _, h := range handles {
		c.disp.Unsubscribe(h)
	}
}

// detach forgets p and returns the handles bound to its channel.
func (c *Controller) detach(key Key, p *pump) []Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pumps[key] == p {
		delete(c.pumps, key)
	}
	var handles []Handle
	for id, ch := range c.handles {
		if ch == p.ch {
			handles = append(handles, Handle{Key: key, ID: id})
			delete(c.handles, id)
		}
	}
	return handles
}

// Unsubscribe detaches the observer behind h. The last observer of a key
// closes its channel. Unsubscribing twice is a no-op.
func (c *Controller) Unsubscribe(h Handle) error {
	c.mu.Lock()
	ch, ok := c.handles[h.ID]
	delete(c.handles, h.ID)
	p := c.pumps[h.Key]
	c.mu.Unlock()

	c.disp.Unsubscribe(h)
	if !ok || p == nil || p.ch != ch {
		return nil
	}

	if _, last := c.reg.Release(h.Key); last {
		p.cancel()
		<-p.done
		c.detach(h.Key, p)
		c.log.Infow("last observer left, channel closed", "key", h.Key)
	}
	return nil
}

// Close closes key's channel whatever its observers. No frame for key is
// delivered after Close returns.
func (c *Controller) Close(key Key) error {
	c.mu.Lock()
	p := c.pumps[key]
	c.mu.Unlock()
	if p == nil {
		return ErrUnknownKey
	}

	p.cancel()
	<-p.done
	handles := c.detach(key, p)
	c.reg.Remove(key, p.ch)
	err := p.ch.Close()
	for _, h := range handles {
		c.disp.Unsubscribe(h)
	}
	c.log.Infow("channel closed", "key", key, "observers", len(handles))
	return err
}

// Send writes text on key's channel. A send refused by the channel state is
// also reported to the key's observers.
func (c *Controller) Send(key Key, text string) error {
	ch, ok := c.reg.Lookup(key)
	if !ok {
		return ErrUnknownKey
	}
	s, ok := ch.(Sender)
	if !ok {
		return ErrNotSender
	}
	err := s.Send(text)
	var rejected *RejectedOperation
	if errors.As(err, &rejected) {
		c.disp.Publish(key, Update{Err: err})
	}
	return err
}

// Active lists the open channels in the order they were opened.
func (c *Controller) Active() []ActiveChannel {
	return c.reg.ListActive()
}

// Shutdown closes every channel and waits for the pumps to exit, or for
// ctx to expire. The controller cannot be used afterwards.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	handles := c.handles
	c.handles = make(map[string]Channel)
	c.pumps = make(map[Key]*pump)
	c.mu.Unlock()

	start := time.Now()
	c.stop()
	c.reg.CloseAll()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for channels to stop: %w", ctx.Err())
	}

	keys := make(map[Key]bool)
	for _, ch := range handles {
		keys[ch.Key()] = true
	}
	for key := range keys {
		c.disp.Drop(key)
	}
	c.log.Infow("sync controller shut down", "keys", len(keys), "took", time.Since(start))
	return nil
}

// WatchJob polls the status of jobID every interval.
func (c *Controller) WatchJob(ctx context.Context, jobID string, fetcher StatusFetcher, interval time.Duration, obs Observer) (Handle, error) {
	return c.Subscribe(ctx, JobKey(jobID), func(key Key) (Channel, error) {
		return NewPoller(key, jobID, fetcher, interval, c.opts...), nil
	}, obs)
}

// StreamLogs follows the log feed at url.
func (c *Controller) StreamLogs(ctx context.Context, url string, obs Observer) (Handle, error) {
	return c.Subscribe(ctx, LogsKey, func(key Key) (Channel, error) {
		return NewEventStream(key, url, DecodeLogRecord, c.opts...), nil
	}, obs)
}

// StreamMetrics follows the monitoring feed at url.
func (c *Controller) StreamMetrics(ctx context.Context, url string, obs Observer) (Handle, error) {
	return c.Subscribe(ctx, MetricsKey, func(key Key) (Channel, error) {
		return NewEventStream(key, url, DecodeMetricSample, c.opts...), nil
	}, obs)
}

// JoinChat connects to the chat socket at url as clientID.
func (c *Controller) JoinChat(ctx context.Context, url, clientID string, obs Observer) (Handle, error) {
	if clientID == "" {
		return Handle{}, errors.New("livesync: empty chat client id")
	}
	return c.Subscribe(ctx, ChatKey(clientID), func(key Key) (Channel, error) {
		return NewSocket(key, url, clientID, c.opts...), nil
	}, obs)
}
