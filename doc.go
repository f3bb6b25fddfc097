// Package busbridge bridges synchronous HTTP callers onto an asynchronous
// message bus. An HTTP POST publishes a request message, parks a waiter keyed
// by a fresh correlation id, and blocks until a worker publishes the
// correlated response on the reply topic, the per-request timeout fires, or
// the caller goes away. Requests without a reply topic are accepted
// immediately and published through a bounded background queue.
//
// The bus side is built on Watermill. The transport (Kafka, RabbitMQ, NATS,
// NATS JetStream, or in-memory Go channels) is read from Config and built
// through the transport registry; reply-topic consumers are shared across
// concurrent requests to the same topic and kept warm for an idle TTL after
// the last waiter leaves. Each bridge instance consumes replies under an
// instance-scoped consumer group, so in a fleet every instance sees every
// reply and the one holding the waiter completes it.
//
// # Embedding
//
// The root package re-exports what a host process needs: fill Config, build
// a BusClient, assemble a Service with NewService, and either mount the HTTP
// API with NewHTTPRouter or call Service.SendAndWait directly. The cmd/busbridge
// daemon is a thin wrapper over exactly this surface; see examples/embedded
// for a runnable in-process setup on the channel transport.
//
// # Calling the bridge
//
// Remote callers should use the client package, which wraps the HTTP API
// with the retry contract: transient rejections (503, 408, transport errors)
// retry on exponential backoff, while results that already reached the bus
// (504, 502, 4xx) are returned as-is.
package busbridge
