/*
Package bridge implements the request/response core of busbridge.

# Architecture Overview

The bridge turns a fire-and-forget message bus into a blocking
request/response primitive. A caller publishes a request onto a topic and
parks until a message carrying the same correlation id appears on the reply
topic, the timeout passes, the caller aborts, or the bus fails. Every
in-flight request resolves exactly once with exactly one of those outcomes.

# Package Structure

## Service (service.go)

The Service struct is the public surface. It validates and admits requests,
stamps them with correlation metadata, publishes through the Bus interface,
and blocks on the waiter's outcome channel. Fire-and-forget sends skip the
waiter and go through the bounded publish queue.

## Waiters & Registry (waiter.go, registry.go)

A Waiter is one in-flight request: correlation id, deadline, and a buffered
outcome channel. The Registry indexes waiters by correlation id and keeps
their deadlines in a min-heap. Resolution removes the waiter from the index
under the lock and sends the outcome after, which is what makes first-wins
semantics airtight under concurrent response, timeout, and cancel.

## Subscriptions (subscriptions.go)

One consumer per response topic, created when the first waiter needs it and
shared by the rest. A consumer whose last waiter left keeps draining for the
idle TTL so the next burst finds it warm. Consumers that die with waiters
outstanding reattach with backoff.

## Scheduler (scheduler.go)

A single coarse ticker sweeps expired waiters, reaps idle consumers, and
refreshes the gauges. Per-request timers would cost a timer per send; the
shared tick trades up to one tick of expiry latency for flat overhead.

## Publish Queue (publishqueue.go)

Fire-and-forget publishes are serialized through one worker feeding off a
bounded channel. A full buffer rejects the send so the caller learns about
the backpressure instead of the queue growing without limit.

# Sub-packages

  - errors/: Sentinel errors shared with the HTTP layer
*/
package bridge
