package bridge

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	errspkg "github.com/voyahub/busbridge/internal/bridge/errors"
	"github.com/voyahub/busbridge/internal/bus"
	"github.com/voyahub/busbridge/internal/config"
	"github.com/voyahub/busbridge/internal/ids"
	"github.com/voyahub/busbridge/internal/logging"
	"github.com/voyahub/busbridge/internal/metadata"
)

// Bus is the connection the bridge publishes and subscribes through.
// *bus.Client implements it; tests substitute in-memory fakes.
type Bus interface {
	Ready() bool
	Publish(ctx context.Context, topic string, messages ...*message.Message) error
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	OnStateChange(fn bus.StateListener)
}

var _ Bus = (*bus.Client)(nil)

// SendRequest describes one request publish.
type SendRequest struct {
	// Topic is the request topic to publish to.
	Topic string

	// Payload is the opaque event body forwarded unchanged.
	Payload []byte

	// ResponseTopic is where the correlated response is expected. Empty for
	// fire-and-forget.
	ResponseTopic string

	// Timeout bounds the wait for a response.
	Timeout time.Duration
}

func (r SendRequest) validate() error {
	if r.Topic == "" {
		return fmt.Errorf("%w: topic is required", errspkg.ErrInvalidRequest)
	}
	if len(r.Payload) == 0 {
		return fmt.Errorf("%w: event payload is required", errspkg.ErrInvalidRequest)
	}
	return nil
}

// HealthSnapshot is the state reported by the health endpoint.
type HealthSnapshot struct {
	Ready         bool `json:"ready"`
	InFlight      int  `json:"inFlight"`
	Subscriptions int  `json:"subscriptions"`
}

// Service is the bridge core: it publishes requests to the bus, parks one
// waiter per request, and resolves waiters from correlated responses,
// timeouts, caller aborts, and bus failures.
type Service struct {
	conf       *config.Config
	logger     logging.ServiceLogger
	bus        Bus
	instanceID string

	registry  *Registry
	subs      *SubscriptionManager
	queue     *publishQueue
	scheduler *Scheduler
	metrics   *Metrics

	draining atomic.Bool
	started  atomic.Bool
}

// NewService assembles a bridge on top of a connected (or connecting) bus.
// The instance id scopes this process in a fleet; pass "" to generate one.
func NewService(conf *config.Config, logger logging.ServiceLogger, b Bus, instanceID string) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if b == nil {
		return nil, errspkg.ErrBusRequired
	}
	if instanceID == "" {
		instanceID = ids.CreateULID()
	}

	log := logger.With(logging.LogFields{
		"component":  "bridge",
		"instanceId": instanceID,
	})
	metrics := NewMetrics(nil)
	registry := NewRegistry()
	subs := NewSubscriptionManager(b, registry, logger, metrics, conf.IdleSubscriptionTTL())

	return &Service{
		conf:       conf,
		logger:     log,
		bus:        b,
		instanceID: instanceID,
		registry:   registry,
		subs:       subs,
		queue:      newPublishQueue(b, log, metrics, conf.PublishQueueDepth),
		scheduler:  NewScheduler(conf.SchedulerTick(), registry, subs, metrics, logger),
		metrics:    metrics,
	}, nil
}

// InstanceID returns the per-process id used in the consumer group.
func (s *Service) InstanceID() string {
	return s.instanceID
}

// Start registers metrics, wires the fail-fast listener, and launches the
// scheduler.
func (s *Service) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}

	if s.conf.MetricsEnabled {
		if err := s.metrics.Register(); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
	}

	if s.conf.FailFastOnDisconnect {
		s.bus.OnStateChange(func(connected bool, err error) {
			if connected {
				return
			}
			if n := s.registry.FailAll(ReasonBusUnavailable); n > 0 {
				s.logger.Info("failed in-flight requests after bus loss", logging.LogFields{
					"count": n,
				})
			}
		})
	}

	s.scheduler.Start()
	s.logger.Info("bridge started", logging.LogFields{
		"system":      s.conf.BusSystem,
		"maxInFlight": s.conf.MaxInFlight,
	})
	return nil
}

// admit decides whether a new request may enter. needCapacity additionally
// enforces the in-flight waiter cap, which only applies to send-and-wait.
func (s *Service) admit(needCapacity bool) error {
	if s.draining.Load() {
		s.metrics.RecordRejected("draining")
		return fmt.Errorf("%w: draining", errspkg.ErrBridgeUnavailable)
	}
	if !s.bus.Ready() {
		s.metrics.RecordRejected("not_ready")
		return fmt.Errorf("%w: bus not connected", errspkg.ErrBridgeUnavailable)
	}
	if needCapacity {
		if limit := s.conf.MaxInFlight; limit > 0 && s.registry.Len() >= limit {
			s.metrics.RecordRejected("capacity")
			return fmt.Errorf("%w: %d requests in flight", errspkg.ErrBridgeUnavailable, limit)
		}
	}
	return nil
}

// SendAndWait publishes a request and blocks until its waiter resolves. The
// error return covers rejection before the publish (validation, admission,
// subscription); everything after that is expressed in the Outcome, so a
// request that made it onto the bus always yields exactly one Outcome.
func (s *Service) SendAndWait(ctx context.Context, req SendRequest) (Outcome, error) {
	if err := req.validate(); err != nil {
		return Outcome{}, err
	}
	if req.ResponseTopic == "" {
		return Outcome{}, fmt.Errorf("%w: responseTopic is required", errspkg.ErrInvalidRequest)
	}
	if req.Timeout <= 0 {
		return Outcome{}, fmt.Errorf("%w: timeout must be positive", errspkg.ErrInvalidRequest)
	}
	if err := s.admit(true); err != nil {
		return Outcome{}, err
	}

	correlationID := ids.CreateULID()

	tracer := otel.Tracer("bridge-service-tracer")
	ctx, span := tracer.Start(ctx, "SendAndWait")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.topic", req.Topic),
		attribute.String("messaging.response_topic", req.ResponseTopic),
		attribute.String("messaging.correlation_id", correlationID),
	)

	release, err := s.subs.Acquire(ctx, req.ResponseTopic)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	now := time.Now()
	w := newWaiter(correlationID, req.Topic, req.ResponseTopic, now, req.Timeout)
	if err := s.registry.Insert(w); err != nil {
		return Outcome{}, err
	}

	msg := message.NewMessage(correlationID, req.Payload)
	metadata.Stamp(msg, metadata.ForRequest(correlationID, req.ResponseTopic, now))

	if err := s.bus.Publish(ctx, req.Topic, msg); err != nil {
		s.metrics.RecordPublishFailure("request")
		s.logger.Error("request publish failed", err, logging.LogFields{
			"topic":         req.Topic,
			"correlationId": correlationID,
		})
		s.registry.Fail(correlationID, ReasonPublishFailed)
	}

	var out Outcome
	select {
	case out = <-w.Done():
	case <-ctx.Done():
		// The caller is gone. Cancel wins unless a resolution is already in
		// the channel; either way exactly one outcome arrives.
		s.registry.Cancel(correlationID)
		out = <-w.Done()
	}

	elapsed := time.Since(now)
	s.metrics.ObserveRequest(req.Topic, out.Kind, elapsed)
	s.logger.Debug("request resolved", logging.LogFields{
		"topic":         req.Topic,
		"correlationId": correlationID,
		"outcome":       out.Kind.String(),
		"elapsedMs":     elapsed.Milliseconds(),
	})
	return out, nil
}

// FireAndForget queues a publish without waiting for any response and
// returns the generated request id.
func (s *Service) FireAndForget(ctx context.Context, topic string, payload []byte) (string, error) {
	req := SendRequest{Topic: topic, Payload: payload}
	if err := req.validate(); err != nil {
		return "", err
	}
	if err := s.admit(false); err != nil {
		return "", err
	}

	requestID := ids.CreateULID()
	msg := message.NewMessage(requestID, payload)
	msg.SetContext(ctx)
	metadata.Stamp(msg, metadata.ForRequest(requestID, "", time.Now()))

	if err := s.queue.enqueue(topic, msg); err != nil {
		return "", err
	}
	return requestID, nil
}

// Health reports readiness and load for the health endpoint.
func (s *Service) Health() HealthSnapshot {
	return HealthSnapshot{
		Ready:         s.bus.Ready() && !s.draining.Load(),
		InFlight:      s.registry.Len(),
		Subscriptions: s.subs.Count(),
	}
}

// BeginDrain stops admitting requests while in-flight waiters resolve, and
// flips health to not-ready so load balancers rotate this instance out.
func (s *Service) BeginDrain() {
	if s.draining.CompareAndSwap(false, true) {
		s.logger.Info("draining", nil)
	}
}

// Stop drains and tears the bridge down: queued fire-and-forget publishes
// are flushed, remaining waiters fail, and consumers detach.
func (s *Service) Stop() {
	s.BeginDrain()
	s.queue.close()
	s.scheduler.Stop()
	if n := s.registry.FailAll(ReasonBusUnavailable); n > 0 {
		s.logger.Info("failed remaining in-flight requests", logging.LogFields{
			"count": n,
		})
	}
	s.subs.Close()
	s.logger.Info("bridge stopped", nil)
}
