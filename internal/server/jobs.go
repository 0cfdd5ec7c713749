package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/realtime-sync/syncdemo/internal/livesync"
)

// JobStore holds the status of every job. Readers get copies.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]livesync.StatusUpdate
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]livesync.StatusUpdate)}
}

func (s *JobStore) Get(id string) (livesync.StatusUpdate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.jobs[id]
	return st, ok
}

func (s *JobStore) All() map[string]livesync.StatusUpdate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]livesync.StatusUpdate, len(s.jobs))
	for id, st := range s.jobs {
		out[id] = st
	}
	return out
}

func (s *JobStore) Set(id string, st livesync.StatusUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id] = st
}

// ActiveCount returns the number of jobs not yet finished.
func (s *JobStore) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, st := range s.jobs {
		if !st.Phase.IsTerminal() {
			count++
		}
	}
	return count
}

// Simulator runs fake background jobs: each one advances through a fixed
// number of steps and then completes.
type Simulator struct {
	store *JobStore
	log   *zap.SugaredLogger
	steps int
	delay time.Duration

	wg sync.WaitGroup
}

func NewSimulator(store *JobStore, steps int, delay time.Duration, log *zap.SugaredLogger) *Simulator {
	if steps <= 0 {
		steps = 10
	}
	return &Simulator{store: store, log: log, steps: steps, delay: delay}
}

// Start registers a new job for items and runs it in the background until
// it completes or ctx is cancelled.
func (sim *Simulator) Start(ctx context.Context, items []string) string {
	id := uuid.NewString()
	sim.store.Set(id, livesync.StatusUpdate{Phase: livesync.PhaseStarted, Progress: 0})
	sim.log.Infow("job started", "job", id, "items", len(items))

	sim.wg.Add(1)
	go func() {
		defer sim.wg.Done()
		sim.run(ctx, id, len(items))
	}()
	return id
}

func (sim *Simulator) run(ctx context.Context, id string, items int) {
	sim.store.Set(id, livesync.StatusUpdate{Phase: livesync.PhaseProcessing, Progress: 0})

	timer := time.NewTimer(sim.delay)
	defer timer.Stop()
	for step := 1; step <= sim.steps; step++ {
		select {
		case <-ctx.Done():
			st, _ := sim.store.Get(id)
			st.Phase = livesync.PhaseFailed
			st.Message = "Task cancelled"
			sim.store.Set(id, st)
			sim.log.Warnw("job cancelled", "job", id, "step", step)
			return
		case <-timer.C:
		}
		sim.store.Set(id, livesync.StatusUpdate{
			Phase:    livesync.PhaseProcessing,
			Progress: step * 100 / sim.steps,
			Message:  fmt.Sprintf("Processing step %d/%d", step, sim.steps),
		})
		timer.Reset(sim.delay)
	}

	sim.store.Set(id, livesync.StatusUpdate{
		Phase:    livesync.PhaseCompleted,
		Progress: 100,
		Message:  "Task completed successfully",
		Result:   fmt.Sprintf("Processed %d items", items),
	})
	sim.log.Infow("job completed", "job", id)
}

// Wait blocks until every running job has returned.
func (sim *Simulator) Wait() {
	sim.wg.Wait()
}
