package bridge

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/voyahub/busbridge/internal/logging"
)

// defaultTick is used when the configured tick is missing or non-positive.
const defaultTick = 50 * time.Millisecond

// Scheduler drives the time-based housekeeping from a single goroutine:
// waiter expiry, idle subscription reaping, and gauge refresh. One coarse
// shared tick replaces a timer per request; a waiter may therefore resolve
// up to one tick after its deadline, which is the accepted tradeoff.
type Scheduler struct {
	tick     time.Duration
	registry *Registry
	subs     *SubscriptionManager
	metrics  *Metrics
	logger   logging.ServiceLogger

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewScheduler creates a scheduler; Start launches it.
func NewScheduler(tick time.Duration, registry *Registry, subs *SubscriptionManager, metrics *Metrics, logger logging.ServiceLogger) *Scheduler {
	if tick <= 0 {
		tick = defaultTick
	}
	return &Scheduler{
		tick:     tick,
		registry: registry,
		subs:     subs,
		metrics:  metrics,
		logger:   logger.With(logging.LogFields{"component": "scheduler"}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the tick loop. Calling it twice is a no-op.
func (s *Scheduler) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.run()
}

func (s *Scheduler) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

func (s *Scheduler) sweep(now time.Time) {
	if expired := s.registry.ExpireDue(now); len(expired) > 0 {
		s.logger.Debug("waiters timed out", logging.LogFields{"count": len(expired)})
	}
	s.subs.ReapIdle(now)
	s.metrics.SetInFlight(s.registry.Len())
	s.metrics.SetSubscriptions(s.subs.Count())
}

// Stop halts the loop and waits for the current sweep to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.started.Load() {
		<-s.done
	}
}
