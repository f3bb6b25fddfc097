package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
)

func TestTransport_Struct(t *testing.T) {
	// Test that Transport struct can be created and accessed
	transport := Transport{
		Publisher:  &mockPublisher{},
		Subscriber: &mockSubscriber{},
	}

	assert.NotNil(t, transport.Publisher)
	assert.NotNil(t, transport.Subscriber)
}

type closeTracker struct {
	closed bool
	err    error
}

func (c *closeTracker) Publish(topic string, messages ...*message.Message) error { return nil }

func (c *closeTracker) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return nil, nil
}

func (c *closeTracker) Close() error {
	c.closed = true
	return c.err
}

func TestTransport_Close(t *testing.T) {
	t.Run("closes both halves", func(t *testing.T) {
		pub := &closeTracker{}
		sub := &closeTracker{}
		tr := Transport{Publisher: pub, Subscriber: sub}

		assert.NoError(t, tr.Close())
		assert.True(t, pub.closed)
		assert.True(t, sub.closed)
	})

	t.Run("returns first error", func(t *testing.T) {
		pubErr := errors.New("publisher close failed")
		subErr := errors.New("subscriber close failed")
		pub := &closeTracker{err: pubErr}
		sub := &closeTracker{err: subErr}
		tr := Transport{Publisher: pub, Subscriber: sub}

		assert.Equal(t, pubErr, tr.Close())
		assert.True(t, sub.closed)
	})

	t.Run("tolerates nil halves", func(t *testing.T) {
		assert.NoError(t, Transport{}.Close())
	})
}

func TestConfig_Interface(t *testing.T) {
	// Test that mockConfig implements Config interface
	var _ Config = (*mockConfig)(nil)

	cfg := &mockConfig{pubSubSystem: "test"}
	assert.Equal(t, "test", cfg.GetPubSubSystem())
}

type testProvider struct{}

func (testProvider) Capabilities() Capabilities {
	return Capabilities{Name: "test"}
}

func TestCapabilitiesProvider_Interface(t *testing.T) {
	// Test CapabilitiesProvider interface
	var _ CapabilitiesProvider = testProvider{}

	provider := testProvider{}
	caps := provider.Capabilities()
	assert.Equal(t, "test", caps.Name)
}
