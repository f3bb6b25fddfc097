package bridge

import "time"

// OutcomeKind classifies how a waiter was resolved.
type OutcomeKind int

const (
	// OutcomeOK means a correlated response arrived before the deadline.
	OutcomeOK OutcomeKind = iota
	// OutcomeTimeout means the deadline passed without a response.
	OutcomeTimeout
	// OutcomeCancelled means the caller went away before a response arrived.
	OutcomeCancelled
	// OutcomeFailed means the bridge gave up on the request; Outcome.Reason
	// says why.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Failure reasons carried in Outcome.Reason when Kind is OutcomeFailed.
const (
	ReasonPublishFailed  = "publish_failed"
	ReasonBusUnavailable = "bus_unavailable"
)

// Outcome is the single resolution of one waiter.
type Outcome struct {
	Kind OutcomeKind

	// Payload is the response body, set when Kind is OutcomeOK.
	Payload []byte

	// Reason is the failure reason, set when Kind is OutcomeFailed.
	Reason string
}

// Waiter represents one in-flight send-and-wait request. A waiter resolves
// exactly once; whichever of response, timeout, cancel, or failure comes
// first wins and the rest are ignored.
type Waiter struct {
	CorrelationID string
	Topic         string
	ResponseTopic string
	CreatedAt     time.Time
	Deadline      time.Time

	done chan Outcome
}

func newWaiter(correlationID, topic, responseTopic string, now time.Time, timeout time.Duration) *Waiter {
	return &Waiter{
		CorrelationID: correlationID,
		Topic:         topic,
		ResponseTopic: responseTopic,
		CreatedAt:     now,
		Deadline:      now.Add(timeout),
		done:          make(chan Outcome, 1),
	}
}

// Done returns the channel carrying the waiter's single outcome.
func (w *Waiter) Done() <-chan Outcome {
	return w.done
}
