// Package kafka provides an Apache Kafka transport for busbridge.
//
// Requests are partitioned by correlation id so that retries of the same
// request land on the same partition. The subscriber joins a consumer group
// derived from the instance id, which makes every bridge instance see every
// reply. Offsets start at newest: replies published before this instance
// existed can have no waiter here.
package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/voyahub/busbridge/internal/metadata"
	"github.com/voyahub/busbridge/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "kafka"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return kafka.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg kafka.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return kafka.NewSubscriber(cfg, logger)
}

func init() {
	Register()
}

// Register registers the Kafka transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.KafkaCapabilities)
}

// Build creates a new Kafka transport.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	brokers := cfg.GetKafkaBrokers()
	consumerGroup := cfg.GetConsumerGroup()
	clientID := cfg.GetClientID()

	marshaler := kafka.NewWithPartitioningMarshaler(partitionByCorrelationID)

	saramaPub := kafka.DefaultSaramaSyncPublisherConfig()
	if clientID != "" {
		saramaPub.ClientID = clientID
	}

	publisher, err := PublisherFactory(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             marshaler,
			OverwriteSaramaConfig: saramaPub,
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	saramaSub := kafka.DefaultSaramaSubscriberConfig()
	saramaSub.Consumer.Offsets.Initial = sarama.OffsetNewest
	if clientID != "" {
		saramaSub.ClientID = clientID
	}

	subscriber, err := SubscriberFactory(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           marshaler,
			ConsumerGroup:         consumerGroup,
			OverwriteSaramaConfig: saramaSub,
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}

// partitionByCorrelationID keys outgoing messages by their correlation id so
// a request and its retries share a partition. Messages without the header
// fall back to the message UUID.
func partitionByCorrelationID(topic string, msg *message.Message) (string, error) {
	if key := msg.Metadata.Get(metadata.KeyCorrelationID); key != "" {
		return key, nil
	}
	return msg.UUID, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.KafkaCapabilities
}
