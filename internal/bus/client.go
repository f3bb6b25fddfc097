// Package bus maintains the connection to the message bus. It builds the
// configured transport, exposes publish and subscribe behind a readiness
// flag, and replaces the transport after a connection loss using exponential
// backoff with jitter.
package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"
	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/voyahub/busbridge/internal/config"
	"github.com/voyahub/busbridge/internal/logging"
	"github.com/voyahub/busbridge/transport"
)

// ErrNotConnected is returned when a publish or subscribe is attempted
// before the client has connected or while a reconnect is in progress.
var ErrNotConnected = errors.New("busbridge: bus not connected")

// TransportFactory allows overriding the transport construction for testing.
var TransportFactory = transport.Build

// StateListener is notified when the bus connection is lost or restored.
// Listeners must not block: they are called from the connection goroutine.
type StateListener func(connected bool, err error)

// Client wraps a transport with connection state tracking. All methods are
// safe for concurrent use.
type Client struct {
	conf          *config.Config
	logger        logging.ServiceLogger
	wmLogger      watermill.LoggerAdapter
	clientID      string
	consumerGroup string

	mu sync.RWMutex
	tr transport.Transport

	ready        atomic.Bool
	reconnecting atomic.Bool
	closed       atomic.Bool

	listenerMu sync.Mutex
	listeners  []StateListener

	rootCtx    context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup
}

// NewClient creates a bus client for one bridge instance. The instance id is
// folded into the consumer group and broker client id so that each instance
// receives every reply on the topics it subscribes to.
func NewClient(conf *config.Config, logger logging.ServiceLogger, instanceID string) *Client {
	group := fmt.Sprintf("%s-%s", conf.ConsumerGroupPrefix, instanceID)
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conf:          conf,
		logger:        logger.With(logging.LogFields{"component": "bus"}),
		wmLogger:      logging.NewWatermillAdapter(logger),
		clientID:      group,
		consumerGroup: group,
		rootCtx:       ctx,
		rootCancel:    cancel,
	}
}

// transportConfig scopes the shared configuration to one instance.
type transportConfig struct {
	*config.Config
	clientID      string
	consumerGroup string
}

func (c transportConfig) GetClientID() string      { return c.clientID }
func (c transportConfig) GetConsumerGroup() string { return c.consumerGroup }

func (c *Client) scopedConfig() transport.Config {
	return transportConfig{
		Config:        c.conf,
		clientID:      c.clientID,
		consumerGroup: c.consumerGroup,
	}
}

// Connect builds the transport, retrying up to the configured attempt limit.
// It returns the last error when all attempts fail; the caller decides
// whether that is fatal.
func (c *Client) Connect(ctx context.Context) error {
	attempts := c.conf.ConnectMaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		tr, err := TransportFactory(ctx, c.scopedConfig(), c.wmLogger)
		if err == nil {
			c.mu.Lock()
			c.tr = tr
			c.mu.Unlock()
			c.ready.Store(true)
			c.logger.Info("connected to bus", logging.LogFields{
				"system":        c.conf.BusSystem,
				"consumerGroup": c.consumerGroup,
			})
			return nil
		}

		lastErr = err
		c.logger.Error("bus connection attempt failed", err, logging.LogFields{
			"attempt": attempt,
			"of":      attempts,
		})

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}
	}
	return fmt.Errorf("busbridge: connecting to %s failed after %d attempts: %w",
		c.conf.BusSystem, attempts, lastErr)
}

// Ready reports whether the transport is currently usable.
func (c *Client) Ready() bool {
	return c.ready.Load()
}

// ConsumerGroup returns the instance-scoped consumer group name.
func (c *Client) ConsumerGroup() string {
	return c.consumerGroup
}

// Publish sends messages to a topic. A connection-class error flips the
// client to not-ready and starts the reconnect loop; the error is still
// returned so the caller can fail the in-flight request.
func (c *Client) Publish(ctx context.Context, topic string, messages ...*message.Message) error {
	if !c.ready.Load() {
		return ErrNotConnected
	}

	c.mu.RLock()
	pub := c.tr.Publisher
	c.mu.RUnlock()
	if pub == nil {
		return ErrNotConnected
	}

	for _, msg := range messages {
		msg.SetContext(ctx)
	}

	err := pub.Publish(topic, messages...)
	if err != nil && IsConnectionError(err) {
		c.triggerReconnect(err)
	}
	return err
}

// Subscribe opens a subscription on the current transport. The returned
// channel closes when the transport is replaced, so consumers must
// resubscribe after a reconnect.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if !c.ready.Load() {
		return nil, ErrNotConnected
	}

	c.mu.RLock()
	sub := c.tr.Subscriber
	c.mu.RUnlock()
	if sub == nil {
		return nil, ErrNotConnected
	}

	ch, err := sub.Subscribe(ctx, topic)
	if err != nil && IsConnectionError(err) {
		c.triggerReconnect(err)
	}
	return ch, err
}

// OnStateChange registers a listener for connection loss and recovery.
func (c *Client) OnStateChange(fn StateListener) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Client) notify(connected bool, err error) {
	c.listenerMu.Lock()
	listeners := make([]StateListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.listenerMu.Unlock()

	for _, fn := range listeners {
		fn(connected, err)
	}
}

func (c *Client) triggerReconnect(cause error) {
	if c.closed.Load() {
		return
	}
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	c.ready.Store(false)
	c.notify(false, cause)

	c.wg.Add(1)
	go c.reconnectLoop(cause)
}

func (c *Client) reconnectLoop(cause error) {
	defer c.wg.Done()
	defer c.reconnecting.Store(false)

	c.logger.Error("bus connection lost, reconnecting", cause, nil)

	c.mu.Lock()
	old := c.tr
	c.tr = transport.Transport{}
	c.mu.Unlock()
	_ = old.Close()

	for attempt := 1; ; attempt++ {
		select {
		case <-c.rootCtx.Done():
			return
		case <-time.After(c.backoff(attempt)):
		}

		tr, err := TransportFactory(c.rootCtx, c.scopedConfig(), c.wmLogger)
		if err != nil {
			c.logger.Error("bus reconnect attempt failed", err, logging.LogFields{"attempt": attempt})
			continue
		}

		c.mu.Lock()
		c.tr = tr
		c.mu.Unlock()
		c.ready.Store(true)
		c.logger.Info("bus reconnected", logging.LogFields{"attempts": attempt})
		c.notify(true, nil)
		return
	}
}

// backoff returns the delay before the given 1-based attempt, doubling from
// the configured base up to the cap, with ±25% jitter to spread instances.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.conf.ReconnectBase() << uint(attempt-1)
	if maxDelay := c.conf.ReconnectMax(); d <= 0 || d > maxDelay {
		d = maxDelay
	}
	return time.Duration(float64(d) * (0.75 + rand.Float64()*0.5))
}

// Close tears down the transport and stops any reconnect in progress.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.ready.Store(false)
	c.rootCancel()
	c.wg.Wait()

	c.mu.Lock()
	tr := c.tr
	c.tr = transport.Transport{}
	c.mu.Unlock()
	return tr.Close()
}

// IsConnectionError reports whether err indicates a broken connection to the
// bus rather than a bad message or topic.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotConnected) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, sarama.ErrOutOfBrokers) || errors.Is(err, sarama.ErrClosedClient) {
		return true
	}
	if errors.Is(err, nc.ErrConnectionClosed) {
		return true
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
