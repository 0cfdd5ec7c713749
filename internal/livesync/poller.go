package livesync

import (
	"context"
	"time"
)

//go:generate mockgen -destination=fetcher_mock.go -package=$GOPACKAGE github.com/realtime-sync/syncdemo/internal/livesync StatusFetcher

// StatusFetcher reads the current status of a job.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, jobID string) (StatusUpdate, error)
}

// StatusFetcherFunc adapts a function to StatusFetcher.
type StatusFetcherFunc func(ctx context.Context, jobID string) (StatusUpdate, error)

func (f StatusFetcherFunc) FetchStatus(ctx context.Context, jobID string) (StatusUpdate, error) {
	return f(ctx, jobID)
}

// Poller polls a job's status until the job reaches a terminal phase.
type Poller struct {
	lifecycle

	fetcher   StatusFetcher
	jobID     string
	interval  time.Duration
	threshold int

	cancel context.CancelFunc
	exited chan struct{}
}

// NewPoller creates a poller for jobID. The first fetch happens as soon as
// the poller opens, later ones every interval.
func NewPoller(key Key, jobID string, fetcher StatusFetcher, interval time.Duration, opts ...Option) *Poller {
	o := buildOptions(opts)
	p := &Poller{
		fetcher:   fetcher,
		jobID:     jobID,
		interval:  interval,
		threshold: o.failureThreshold,
	}
	p.init(key, o.log)
	return p
}

// Open starts polling. Fetches run with ctx; Close stops scheduling new
// ones without aborting one already in flight.
func (p *Poller) Open(ctx context.Context) error {
	if err := p.begin(); err != nil {
		return err
	}
	tickCtx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	if p.state.IsTerminal() {
		p.mu.Unlock()
		cancel()
		return context.Canceled
	}
	p.cancel = cancel
	p.exited = make(chan struct{})
	p.state = StateOpen
	p.mu.Unlock()

	p.log.Debugw("poller opened", "key", p.key, "job", p.jobID, "interval", p.interval)
	go p.loop(ctx, tickCtx)
	return nil
}

func (p *Poller) loop(fetchCtx, tickCtx context.Context) {
	defer close(p.exited)
	defer p.end()

	attempt, failures := 0, 0
	for {
		attempt++
		status, err := p.fetcher.FetchStatus(fetchCtx, p.jobID)
		if p.stopped() {
			p.log.Debugw("discarding status after close", "key", p.key, "attempt", attempt)
			return
		}

		if err != nil && fetchCtx.Err() != nil {
			p.transition(StateClosed)
			return
		}
		if err != nil {
			failures++
			p.log.Warnw("status fetch failed", "key", p.key, "attempt", attempt, "failures", failures, "error", err)
			if p.threshold > 0 && failures >= p.threshold {
				p.fail(&TransportFailure{Op: "poll", Err: err})
				return
			}
			p.emit(Update{Err: &TransientFetchError{Attempt: attempt, Err: err}})
		} else {
			failures = 0
			p.emit(Update{Payload: status})
			if status.Phase.IsTerminal() {
				p.log.Debugw("job reached terminal phase", "key", p.key, "phase", status.Phase, "attempts", attempt)
				p.transition(StateClosed)
				return
			}
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-tickCtx.Done():
			timer.Stop()
			p.transition(StateClosed)
			return
		case <-timer.C:
		}
	}
}

// Close cancels the next scheduled poll. It does not wait for a fetch in
// flight; its result is discarded.
func (p *Poller) Close() error {
	p.mu.Lock()
	cancel, started := p.cancel, p.exited != nil
	if !p.state.IsTerminal() {
		p.state = StateClosed
	}
	p.mu.Unlock()

	p.stop()
	if cancel != nil {
		cancel()
	}
	if !started {
		p.end()
	}
	return nil
}
