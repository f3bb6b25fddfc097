package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/voyahub/busbridge/internal/bridge/errors"
	"github.com/voyahub/busbridge/internal/logging"
)

type publishJob struct {
	topic string
	msg   *message.Message
}

// publishQueue serializes fire-and-forget publishes through one worker so
// bursts land in a bounded buffer instead of unbounded goroutines. A full
// queue rejects the send; the caller already got its request id, so the
// rejection must happen before accepting the request.
type publishQueue struct {
	bus     Bus
	logger  logging.ServiceLogger
	metrics *Metrics

	mu     sync.Mutex
	closed bool
	jobs   chan publishJob

	wg sync.WaitGroup
}

func newPublishQueue(bus Bus, logger logging.ServiceLogger, metrics *Metrics, depth int) *publishQueue {
	if depth < 1 {
		depth = 1
	}
	q := &publishQueue{
		bus:     bus,
		logger:  logger,
		metrics: metrics,
		jobs:    make(chan publishJob, depth),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *publishQueue) enqueue(topic string, msg *message.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("%w: shutting down", errspkg.ErrBridgeUnavailable)
	}
	select {
	case q.jobs <- publishJob{topic: topic, msg: msg}:
		q.metrics.SetPublishQueueDepth(len(q.jobs))
		return nil
	default:
		return fmt.Errorf("%w: publish queue full", errspkg.ErrBridgeUnavailable)
	}
}

func (q *publishQueue) run() {
	defer q.wg.Done()

	for job := range q.jobs {
		q.metrics.SetPublishQueueDepth(len(q.jobs))
		if err := q.bus.Publish(context.Background(), job.topic, job.msg); err != nil {
			q.metrics.RecordPublishFailure("fire_and_forget")
			q.logger.Error("fire-and-forget publish failed", err, logging.LogFields{
				"topic":     job.topic,
				"requestId": job.msg.UUID,
			})
		}
	}
}

// close stops intake and blocks until already-queued publishes are flushed.
func (q *publishQueue) close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
}
