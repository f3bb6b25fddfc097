package transport

// Capabilities describes the delivery characteristics of a transport backend
// that matter to a request/reply bridge.
type Capabilities struct {
	// Name is the human-readable name of the transport.
	Name string

	// BroadcastReplies indicates that every bridge instance receives every
	// message on a reply topic. The Kafka transport achieves this with
	// per-instance consumer groups, RabbitMQ with per-instance queues, and
	// NATS by subscribing without a queue group. Without it, replies can land
	// on an instance that does not hold the waiter.
	BroadcastReplies bool

	// SupportsOrdering indicates the transport guarantees message ordering
	// within a partition/stream.
	SupportsOrdering bool

	// SupportsPartitioning indicates the transport supports partitioned
	// topics; requests are then keyed by correlation id.
	SupportsPartitioning bool

	// SupportsAck indicates the transport supports explicit message
	// acknowledgment.
	SupportsAck bool

	// SupportsNack indicates the transport supports negative acknowledgment
	// (redelivery).
	SupportsNack bool

	// MaxMessageSize is the maximum message size in bytes (0 = unlimited/unknown).
	MaxMessageSize int64
}

// SupportsReliableDelivery returns true if the transport supports
// at-least-once delivery semantics (ack + nack).
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.SupportsAck && c.SupportsNack
}

// Predefined capability sets for the bundled transports.
var (
	// ChannelCapabilities for the in-memory Go channel transport.
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		BroadcastReplies: true,
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	// KafkaCapabilities for the Apache Kafka transport.
	KafkaCapabilities = Capabilities{
		Name:                 "kafka",
		BroadcastReplies:     true,
		SupportsOrdering:     true,
		SupportsPartitioning: true,
		SupportsAck:          true,
		SupportsNack:         false,
		MaxMessageSize:       1048576, // Default 1MB
	}

	// RabbitMQCapabilities for the RabbitMQ/AMQP transport.
	RabbitMQCapabilities = Capabilities{
		Name:             "rabbitmq",
		BroadcastReplies: true,
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	// NATSCapabilities for the NATS Core transport.
	NATSCapabilities = Capabilities{
		Name:             "nats",
		BroadcastReplies: true,
		SupportsOrdering: false,
		SupportsAck:      false,
		SupportsNack:     false,
		MaxMessageSize:   1048576, // Default 1MB
	}

	// NATSJetStreamCapabilities for the NATS JetStream transport.
	NATSJetStreamCapabilities = Capabilities{
		Name:             "nats-jetstream",
		BroadcastReplies: true,
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
		MaxMessageSize:   1048576, // Default 1MB
	}
)

// GetCapabilities returns the capabilities for a transport by name.
// Uses the registry to look up capabilities registered by each transport package.
// Returns a zero Capabilities struct if the transport is unknown.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
