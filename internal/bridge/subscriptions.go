package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/voyahub/busbridge/internal/bridge/errors"
	"github.com/voyahub/busbridge/internal/logging"
	"github.com/voyahub/busbridge/internal/metadata"
)

type subscriptionState int

const (
	subDetached subscriptionState = iota
	subAttaching
	subAttached
	subDraining
)

func (s subscriptionState) String() string {
	switch s {
	case subDetached:
		return "detached"
	case subAttaching:
		return "attaching"
	case subAttached:
		return "attached"
	case subDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// subscription tracks one response-topic consumer. refs counts the waiters
// currently relying on it; a subscription at zero refs drains rather than
// detaching immediately, so bursts of traffic to the same topic reuse the
// warm consumer.
type subscription struct {
	topic string

	state     subscriptionState
	refs      int
	idleSince time.Time

	// attached closes when the current attach cycle finishes; attachErr is
	// set before the close when the cycle failed.
	attached  chan struct{}
	attachErr error

	cancel context.CancelFunc
}

// SubscriptionManager owns one consumer per response topic. The first waiter
// for a topic attaches the consumer; later waiters share it. When the last
// waiter leaves, the consumer keeps running for the idle TTL in case another
// request for the topic follows. A TTL of zero keeps consumers attached for
// the process lifetime.
type SubscriptionManager struct {
	bus      Bus
	registry *Registry
	logger   logging.ServiceLogger
	metrics  *Metrics
	idleTTL  time.Duration

	mu     sync.Mutex
	subs   map[string]*subscription
	closed bool

	rootCtx    context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup
}

// NewSubscriptionManager creates a manager resolving responses against the
// given registry.
func NewSubscriptionManager(bus Bus, registry *Registry, logger logging.ServiceLogger, metrics *Metrics, idleTTL time.Duration) *SubscriptionManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &SubscriptionManager{
		bus:        bus,
		registry:   registry,
		logger:     logger.With(logging.LogFields{"component": "subscriptions"}),
		metrics:    metrics,
		idleTTL:    idleTTL,
		subs:       make(map[string]*subscription),
		rootCtx:    ctx,
		rootCancel: cancel,
	}
}

// Acquire ensures a consumer for the topic is attached and takes a reference
// on it. The returned release function must be called when the waiter
// resolves; it is safe to call more than once. Acquire blocks until the
// consumer is attached, the attach fails, or ctx is done.
func (m *SubscriptionManager) Acquire(ctx context.Context, topic string) (func(), error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: shutting down", errspkg.ErrBridgeUnavailable)
	}

	s := m.subs[topic]
	creator := s == nil
	if creator {
		s = &subscription{
			topic:    topic,
			state:    subAttaching,
			attached: make(chan struct{}),
		}
		m.subs[topic] = s
	}
	s.refs++
	if s.state == subDraining {
		// Reuse the warm consumer instead of tearing it down.
		s.state = subAttached
	}
	state := s.state
	attached := s.attached
	m.mu.Unlock()

	if creator {
		if err := m.attach(s); err != nil {
			return nil, err
		}
		return m.releaseFunc(s), nil
	}

	if state == subAttached {
		return m.releaseFunc(s), nil
	}

	// Another waiter is mid-attach; wait for its outcome.
	select {
	case <-attached:
		m.mu.Lock()
		err := s.attachErr
		m.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return m.releaseFunc(s), nil
	case <-ctx.Done():
		m.releaseFunc(s)()
		return nil, ctx.Err()
	}
}

// releaseFunc returns an idempotent closure dropping one reference on s.
func (m *SubscriptionManager) releaseFunc(s *subscription) func() {
	var once sync.Once
	return func() {
		once.Do(func() { m.release(s) })
	}
}

func (m *SubscriptionManager) release(s *subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.subs[s.topic] != s {
		return
	}
	s.refs--
	if s.refs <= 0 && s.state == subAttached {
		s.state = subDraining
		s.idleSince = time.Now()
	}
}

// attach runs the initial attach cycle for a just-created subscription. On
// failure the entry is removed so a later request can try again.
func (m *SubscriptionManager) attach(s *subscription) error {
	ctx, cancel := context.WithCancel(m.rootCtx)

	messages, err := m.bus.Subscribe(ctx, s.topic)
	if err != nil {
		cancel()
		wrapped := fmt.Errorf("%w: subscribe %s: %v", errspkg.ErrBridgeUnavailable, s.topic, err)

		m.mu.Lock()
		if m.subs[s.topic] == s {
			delete(m.subs, s.topic)
		}
		s.attachErr = wrapped
		close(s.attached)
		m.mu.Unlock()
		return wrapped
	}

	m.markAttached(s, cancel, messages)
	return nil
}

// markAttached publishes a successful attach: state flips to attached (or
// straight to draining when every waiter gave up during the attach), the
// attach channel closes, and the consume loop starts.
func (m *SubscriptionManager) markAttached(s *subscription, cancel context.CancelFunc, messages <-chan *message.Message) {
	m.mu.Lock()
	s.cancel = cancel
	s.state = subAttached
	if s.refs <= 0 {
		s.state = subDraining
		s.idleSince = time.Now()
	}
	s.attachErr = nil
	close(s.attached)
	m.mu.Unlock()

	m.logger.Debug("response subscription attached", logging.LogFields{"topic": s.topic})

	m.wg.Add(1)
	go m.consume(s, messages)
}

func (m *SubscriptionManager) consume(s *subscription, messages <-chan *message.Message) {
	defer m.wg.Done()

	for msg := range messages {
		m.handleResponse(s.topic, msg)
	}

	m.handleConsumerExit(s)
}

// handleResponse matches one consumed message against the registry. Every
// message is acked: a response is single-shot, and redelivering one that
// matched no waiter cannot make it match later.
func (m *SubscriptionManager) handleResponse(topic string, msg *message.Message) {
	defer msg.Ack()

	correlationID := msg.Metadata.Get(metadata.KeyCorrelationID)
	if correlationID == "" {
		m.metrics.RecordDroppedResponse("missing_correlation_id")
		m.logger.Debug("response without correlation id dropped", logging.LogFields{
			"topic": topic,
		})
		return
	}

	if m.registry.Complete(correlationID, msg.Payload) {
		m.logger.Trace("response matched", logging.LogFields{
			"topic":         topic,
			"correlationId": correlationID,
		})
		return
	}

	// Normal in a fleet: some other instance holds the waiter, or it
	// already timed out here.
	m.metrics.RecordDroppedResponse("unknown_correlation_id")
	m.logger.Debug("response matched no waiter", logging.LogFields{
		"topic":         topic,
		"correlationId": correlationID,
	})
}

// handleConsumerExit runs when a consume channel closes. Deliberate
// teardowns (shutdown, idle reap) end here quietly; a transport loss with
// live waiters flips the subscription back to attaching and retries.
func (m *SubscriptionManager) handleConsumerExit(s *subscription) {
	m.mu.Lock()
	if m.closed || m.subs[s.topic] != s {
		m.mu.Unlock()
		return
	}

	if s.refs <= 0 {
		delete(m.subs, s.topic)
		m.mu.Unlock()
		m.logger.Debug("idle subscription ended with its consumer", logging.LogFields{
			"topic": s.topic,
		})
		return
	}

	oldCancel := s.cancel
	s.cancel = nil
	s.state = subAttaching
	s.attached = make(chan struct{})
	s.attachErr = nil
	waiters := s.refs
	m.mu.Unlock()

	if oldCancel != nil {
		oldCancel()
	}

	m.logger.Info("response subscription lost, reattaching", logging.LogFields{
		"topic":   s.topic,
		"waiters": waiters,
	})

	m.wg.Add(1)
	go m.reattach(s)
}

// reattach retries the subscribe until it succeeds, the waiters give up, or
// the manager closes.
func (m *SubscriptionManager) reattach(s *subscription) {
	defer m.wg.Done()

	backoff := 100 * time.Millisecond
	for {
		m.mu.Lock()
		if m.closed || m.subs[s.topic] != s {
			m.mu.Unlock()
			return
		}
		if s.refs <= 0 {
			delete(m.subs, s.topic)
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		if m.bus.Ready() {
			ctx, cancel := context.WithCancel(m.rootCtx)
			messages, err := m.bus.Subscribe(ctx, s.topic)
			if err == nil {
				m.markAttached(s, cancel, messages)
				return
			}
			cancel()
			m.logger.Error("resubscribe failed", err, logging.LogFields{"topic": s.topic})
		}

		select {
		case <-m.rootCtx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > 2*time.Second {
			backoff = 2 * time.Second
		}
	}
}

// ReapIdle detaches subscriptions that have been draining longer than the
// idle TTL. With a zero TTL consumers stay warm for the process lifetime.
func (m *SubscriptionManager) ReapIdle(now time.Time) int {
	if m.idleTTL <= 0 {
		return 0
	}

	m.mu.Lock()
	var victims []*subscription
	for topic, s := range m.subs {
		if s.state == subDraining && now.Sub(s.idleSince) >= m.idleTTL {
			delete(m.subs, topic)
			s.state = subDetached
			victims = append(victims, s)
		}
	}
	m.mu.Unlock()

	for _, s := range victims {
		if s.cancel != nil {
			s.cancel()
		}
		m.logger.Debug("idle subscription detached", logging.LogFields{"topic": s.topic})
	}
	return len(victims)
}

// Count returns the number of topics currently consumed.
func (m *SubscriptionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Close cancels every consumer and waits for their loops to finish.
func (m *SubscriptionManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.subs = make(map[string]*subscription)
	m.mu.Unlock()

	m.rootCancel()
	m.wg.Wait()
}
