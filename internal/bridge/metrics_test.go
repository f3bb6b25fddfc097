package bridge

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Register_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Register())
	require.NoError(t, m.Register()) // Should not error on double registration
}

func TestMetrics_Register_SharedRegistry(t *testing.T) {
	// Two metric sets on one registry happen when a service restarts in
	// process; the second Register must tolerate the existing collectors.
	reg := prometheus.NewRegistry()
	require.NoError(t, NewMetrics(reg).Register())
	require.NoError(t, NewMetrics(reg).Register())
}

func TestMetrics_NilRegisterer(t *testing.T) {
	m := NewMetrics(nil)
	assert.NotNil(t, m)
	// Should use default registerer - don't actually register in test to avoid conflicts
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NoError(t, m.Register())

	m.ObserveRequest("bookings.requests", OutcomeOK, 120*time.Millisecond)
	m.ObserveRequest("bookings.requests", OutcomeTimeout, 30*time.Second)
	m.RecordRejected("capacity")
	m.RecordDroppedResponse("unknown_correlation_id")
	m.RecordPublishFailure("request")
	m.SetInFlight(3)
	m.SetSubscriptions(2)
	m.SetPublishQueueDepth(1)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"busbridge_bridge_requests_total",
		"busbridge_bridge_request_duration_seconds",
		"busbridge_bridge_rejected_total",
		"busbridge_bridge_dropped_responses_total",
		"busbridge_bridge_publish_failures_total",
		"busbridge_bridge_in_flight",
		"busbridge_bridge_subscriptions",
		"busbridge_bridge_publish_queue_depth",
	} {
		assert.True(t, names[want], "missing metric family %s", want)
	}
}
