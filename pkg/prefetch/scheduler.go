// Package prefetch asks the game service to warm its scene queue while the
// player is reading. It is strictly best-effort: failures are logged and never
// surface to the encounter.
package prefetch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultInterval = 4 * time.Second

// Status is what one trigger reports back about the server's queue.
type Status struct {
	QueueSize int
	Target    int
}

// Full reports whether the queue has reached its target.
func (s Status) Full() bool {
	return s.Target > 0 && s.QueueSize >= s.Target
}

// TriggerFunc asks the server to prefetch one more scene.
type TriggerFunc func(ctx context.Context) (Status, error)

type Option func(*Scheduler)

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// Scheduler fires the trigger once on Start and then on every tick, until the
// queue is full or Stop is called.
type Scheduler struct {
	trigger  TriggerFunc
	interval time.Duration
	log      *slog.Logger

	mu       sync.Mutex
	idle     *sync.Cond // signalled when inflight drops
	cancel   context.CancelFunc
	gen      uint64 // bumped on every Start/Stop; stale loops check it before acting
	inflight int
	last     Status
}

func New(trigger TriggerFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		trigger:  trigger,
		interval: DefaultInterval,
		log:      slog.New(slog.DiscardHandler),
	}
	s.idle = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the loop. It is a no-op while already running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.gen++
	go s.loop(loopCtx, s.gen)
	s.log.Debug("Prefetch started", "interval", s.interval)
}

// Stop halts the loop. Safe to call when not running. A trigger in flight has
// its context cancelled and Stop returns once it does; its result is
// discarded. No trigger starts after Stop returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	for s.inflight > 0 {
		s.idle.Wait()
	}
}

func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.gen++
	s.log.Debug("Prefetch stopped")
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Last returns the most recent status reported by the server.
func (s *Scheduler) Last() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) loop(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if !s.fire(ctx, gen) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// fire runs one trigger and reports whether the loop should keep going.
func (s *Scheduler) fire(ctx context.Context, gen uint64) bool {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return false
	}
	s.inflight++
	s.mu.Unlock()

	st, err := s.trigger(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	s.idle.Broadcast()
	if s.gen != gen {
		return false
	}
	if err != nil {
		s.log.Warn("Prefetch trigger failed", "error", err)
		return true
	}
	s.last = st
	if st.Full() {
		s.log.Debug("Prefetch queue full", "queue_size", st.QueueSize, "target", st.Target)
		s.stopLocked()
		return false
	}
	return true
}
