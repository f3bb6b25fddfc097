package channel

import (
	"context"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyahub/busbridge/transport"
)

func TestInitRegisters(t *testing.T) {
	// The package registers itself on import.
	assert.True(t, transport.Has(TransportName))

	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, "channel", caps.Name)
	assert.True(t, caps.BroadcastReplies)
	assert.True(t, caps.SupportsOrdering)
	assert.True(t, caps.SupportsAck)
	assert.True(t, caps.SupportsNack)
}

func TestCapabilities(t *testing.T) {
	caps := Capabilities()
	assert.Equal(t, transport.ChannelCapabilities, caps)
	assert.Equal(t, "channel", caps.Name)
}

func TestBuild(t *testing.T) {
	t.Run("creates transport with default factory", func(t *testing.T) {
		cfg := &mockConfig{}
		tr, err := Build(context.Background(), cfg, watermill.NopLogger{})

		require.NoError(t, err)
		assert.NotNil(t, tr.Publisher)
		assert.NotNil(t, tr.Subscriber)
	})

	t.Run("uses custom factory", func(t *testing.T) {
		originalFactory := Factory
		defer func() { Factory = originalFactory }()

		mockPub := &mockPublisher{}
		mockSub := &mockSubscriber{}
		Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
			return mockPub, mockSub
		}

		cfg := &mockConfig{}
		tr, err := Build(context.Background(), cfg, watermill.NopLogger{})

		require.NoError(t, err)
		assert.Equal(t, mockPub, tr.Publisher)
		assert.Equal(t, mockSub, tr.Subscriber)
	})
}

func TestBuild_RoundTrip(t *testing.T) {
	// The built transport delivers messages publisher to subscriber when the
	// subscription exists before the publish.
	tr, err := Build(context.Background(), &mockConfig{}, watermill.NopLogger{})
	require.NoError(t, err)
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := tr.Subscriber.Subscribe(ctx, "bookings.responses")
	require.NoError(t, err)

	sent := message.NewMessage("test-id", []byte(`{"status":"confirmed"}`))
	sent.Metadata.Set("correlationId", "01HXAMPLE")
	require.NoError(t, tr.Publisher.Publish("bookings.responses", sent))

	received := <-messages
	require.NotNil(t, received)
	assert.Equal(t, "test-id", received.UUID)
	assert.Equal(t, "01HXAMPLE", received.Metadata.Get("correlationId"))
	received.Ack()
}

func TestTransportName(t *testing.T) {
	assert.Equal(t, "channel", TransportName)
}

type mockConfig struct{}

func (m *mockConfig) GetPubSubSystem() string   { return "channel" }
func (m *mockConfig) GetClientID() string       { return "" }
func (m *mockConfig) GetConsumerGroup() string  { return "" }
func (m *mockConfig) GetKafkaBrokers() []string { return nil }
func (m *mockConfig) GetRabbitMQURL() string    { return "" }
func (m *mockConfig) GetNATSURL() string        { return "" }

type mockPublisher struct{}

func (m *mockPublisher) Publish(topic string, messages ...*message.Message) error { return nil }
func (m *mockPublisher) Close() error                                             { return nil }

type mockSubscriber struct{}

func (m *mockSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return make(chan *message.Message), nil
}
func (m *mockSubscriber) Close() error { return nil }
