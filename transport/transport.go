// Package transport defines the interfaces and types for bus transports.
// Each transport implementation (kafka, nats, rabbitmq, channel) lives in its
// own sub-package and registers itself with the transport registry.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Transport combines the publisher and subscriber pair produced by a builder.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close closes both halves and returns the first error encountered.
func (t Transport) Close() error {
	var firstErr error
	if t.Publisher != nil {
		if err := t.Publisher.Close(); err != nil {
			firstErr = err
		}
	}
	if t.Subscriber != nil {
		if err := t.Subscriber.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Builder is the function signature for creating a transport from config.
// Each transport package provides a Builder function that can be registered.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config provides the configuration values needed by transports. The
// consumer group and client id are instance-scoped: the bridge derives them
// from its per-process id so that every instance receives every reply.
type Config interface {
	// GetPubSubSystem returns the transport type name.
	GetPubSubSystem() string

	// GetClientID returns the instance-scoped identifier presented to the
	// broker (sarama client id, NATS connection name).
	GetClientID() string

	// GetConsumerGroup returns the instance-scoped consumer group. Kafka
	// uses it as the group id, RabbitMQ as a queue name suffix.
	GetConsumerGroup() string

	// Kafka
	GetKafkaBrokers() []string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS
	GetNATSURL() string
}

// CapabilitiesProvider is implemented by transports that can report their
// capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}
