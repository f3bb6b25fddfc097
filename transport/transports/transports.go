// Package transports registers every bundled transport with the default
// registry. Import it for side effects when the bus system is chosen at
// runtime; link-size-sensitive embedders should import only the transport
// packages they use instead.
package transports

import (
	_ "github.com/voyahub/busbridge/transport/channel"
	"github.com/voyahub/busbridge/transport/jetstream"
	_ "github.com/voyahub/busbridge/transport/kafka"
	"github.com/voyahub/busbridge/transport/nats"
	"github.com/voyahub/busbridge/transport/rabbitmq"
)

func init() {
	nats.Register()
	jetstream.Register()
	rabbitmq.Register()
}
