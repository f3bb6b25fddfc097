package bridge

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks request/response bridge statistics.
type Metrics struct {
	mu         sync.Mutex
	registerer prometheus.Registerer
	registered bool

	requestsTotal     *prometheus.CounterVec
	requestSeconds    *prometheus.HistogramVec
	rejectedTotal     *prometheus.CounterVec
	droppedTotal      *prometheus.CounterVec
	publishFailures   *prometheus.CounterVec
	inFlight          prometheus.Gauge
	subscriptions     prometheus.Gauge
	publishQueueDepth prometheus.Gauge
}

// newBridgeCounterVec creates a new counter vec with the standard busbridge/bridge namespace.
func newBridgeCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "busbridge",
			Subsystem: "bridge",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// newBridgeGauge creates a new gauge with the standard busbridge/bridge namespace.
func newBridgeGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "busbridge",
			Subsystem: "bridge",
			Name:      name,
			Help:      help,
		},
	)
}

// newBridgeHistogramVec creates a new histogram vec with the standard busbridge/bridge namespace.
func newBridgeHistogramVec(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "busbridge",
			Subsystem: "bridge",
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

// NewMetrics creates the bridge metrics collectors. Collectors are inert
// until Register is called.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		registerer:        registerer,
		requestsTotal:     newBridgeCounterVec("requests_total", "Total number of send-and-wait requests by final outcome", []string{"topic", "outcome"}),
		requestSeconds:    newBridgeHistogramVec("request_duration_seconds", "Time from request publish to waiter resolution", []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}, []string{"topic"}),
		rejectedTotal:     newBridgeCounterVec("rejected_total", "Requests rejected before publishing", []string{"reason"}),
		droppedTotal:      newBridgeCounterVec("dropped_responses_total", "Responses consumed without a matching waiter", []string{"reason"}),
		publishFailures:   newBridgeCounterVec("publish_failures_total", "Publishes the bus refused", []string{"mode"}),
		inFlight:          newBridgeGauge("in_flight", "Waiters currently awaiting a response"),
		subscriptions:     newBridgeGauge("subscriptions", "Response topics currently consumed"),
		publishQueueDepth: newBridgeGauge("publish_queue_depth", "Fire-and-forget publishes waiting in the queue"),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *Metrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.requestsTotal,
		m.requestSeconds,
		m.rejectedTotal,
		m.droppedTotal,
		m.publishFailures,
		m.inFlight,
		m.subscriptions,
		m.publishQueueDepth,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			// Check if it's already registered (not an error)
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// ObserveRequest records the final outcome and duration of one request.
func (m *Metrics) ObserveRequest(topic string, kind OutcomeKind, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(topic, kind.String()).Inc()
	m.requestSeconds.WithLabelValues(topic).Observe(elapsed.Seconds())
}

// RecordRejected counts a request turned away before publishing.
func (m *Metrics) RecordRejected(reason string) {
	m.rejectedTotal.WithLabelValues(reason).Inc()
}

// RecordDroppedResponse counts a consumed response that matched no waiter.
func (m *Metrics) RecordDroppedResponse(reason string) {
	m.droppedTotal.WithLabelValues(reason).Inc()
}

// RecordPublishFailure counts a refused publish; mode is "request" or
// "fire_and_forget".
func (m *Metrics) RecordPublishFailure(mode string) {
	m.publishFailures.WithLabelValues(mode).Inc()
}

// SetInFlight updates the in-flight waiter gauge.
func (m *Metrics) SetInFlight(n int) {
	m.inFlight.Set(float64(n))
}

// SetSubscriptions updates the consumed-topics gauge.
func (m *Metrics) SetSubscriptions(n int) {
	m.subscriptions.Set(float64(n))
}

// SetPublishQueueDepth updates the fire-and-forget backlog gauge.
func (m *Metrics) SetPublishQueueDepth(n int) {
	m.publishQueueDepth.Set(float64(n))
}
