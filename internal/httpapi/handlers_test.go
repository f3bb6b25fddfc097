package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyahub/busbridge/internal/bridge"
	errspkg "github.com/voyahub/busbridge/internal/bridge/errors"
	"github.com/voyahub/busbridge/internal/logging"
)

type stubBridge struct {
	sendFn   func(ctx context.Context, req bridge.SendRequest) (bridge.Outcome, error)
	fireFn   func(ctx context.Context, topic string, payload []byte) (string, error)
	snapshot bridge.HealthSnapshot
}

func (s *stubBridge) SendAndWait(ctx context.Context, req bridge.SendRequest) (bridge.Outcome, error) {
	return s.sendFn(ctx, req)
}

func (s *stubBridge) FireAndForget(ctx context.Context, topic string, payload []byte) (string, error) {
	return s.fireFn(ctx, topic, payload)
}

func (s *stubBridge) Health() bridge.HealthSnapshot {
	return s.snapshot
}

func newTestRouter(sb *stubBridge) http.Handler {
	return NewRouter(NewHandlers(sb, logging.Nop(), 1<<20), logging.Nop())
}

func postSend(router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/kafka/send", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestSend_OK(t *testing.T) {
	var got bridge.SendRequest
	sb := &stubBridge{
		sendFn: func(ctx context.Context, req bridge.SendRequest) (bridge.Outcome, error) {
			got = req
			return bridge.Outcome{Kind: bridge.OutcomeOK, Payload: []byte(`{"status":"confirmed","seat":"12A"}`)}, nil
		},
	}

	rec := postSend(newTestRouter(sb), `{
		"topic": "bookings.requests",
		"event": {"hotel": "astoria", "nights": 2},
		"responseTopic": "bookings.responses",
		"timeout": 1500
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, `{"status":"confirmed","seat":"12A"}`, rec.Body.String())

	assert.Equal(t, "bookings.requests", got.Topic)
	assert.JSONEq(t, `{"hotel":"astoria","nights":2}`, string(got.Payload))
	assert.Equal(t, "bookings.responses", got.ResponseTopic)
	assert.Equal(t, 1500*time.Millisecond, got.Timeout)
}

func TestSend_Timeout(t *testing.T) {
	sb := &stubBridge{
		sendFn: func(ctx context.Context, req bridge.SendRequest) (bridge.Outcome, error) {
			return bridge.Outcome{Kind: bridge.OutcomeTimeout}, nil
		},
	}

	rec := postSend(newTestRouter(sb), `{"topic":"t","event":{},"responseTopic":"r","timeout":100}`)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "timeout", decodeError(t, rec).Error)
}

func TestSend_Cancelled(t *testing.T) {
	sb := &stubBridge{
		sendFn: func(ctx context.Context, req bridge.SendRequest) (bridge.Outcome, error) {
			return bridge.Outcome{Kind: bridge.OutcomeCancelled}, nil
		},
	}

	rec := postSend(newTestRouter(sb), `{"topic":"t","event":{},"responseTopic":"r","timeout":100}`)

	assert.Equal(t, StatusClientClosedRequest, rec.Code)
	assert.Equal(t, "cancelled", decodeError(t, rec).Error)
}

func TestSend_Failed(t *testing.T) {
	for _, reason := range []string{bridge.ReasonPublishFailed, bridge.ReasonBusUnavailable} {
		t.Run(reason, func(t *testing.T) {
			sb := &stubBridge{
				sendFn: func(ctx context.Context, req bridge.SendRequest) (bridge.Outcome, error) {
					return bridge.Outcome{Kind: bridge.OutcomeFailed, Reason: reason}, nil
				},
			}

			rec := postSend(newTestRouter(sb), `{"topic":"t","event":{},"responseTopic":"r","timeout":100}`)

			assert.Equal(t, http.StatusBadGateway, rec.Code)
			assert.Equal(t, reason, decodeError(t, rec).Error)
		})
	}
}

func TestSend_MalformedBody(t *testing.T) {
	rec := postSend(newTestRouter(&stubBridge{}), `{not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Error)
}

func TestSend_BodyTooLarge(t *testing.T) {
	sb := &stubBridge{}
	router := NewRouter(NewHandlers(sb, logging.Nop(), 64), logging.Nop())

	rec := postSend(router, `{"topic":"t","event":{"filler":"`+strings.Repeat("x", 200)+`"}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Error)
}

func TestSend_ValidationErrorFromService(t *testing.T) {
	sb := &stubBridge{
		sendFn: func(ctx context.Context, req bridge.SendRequest) (bridge.Outcome, error) {
			return bridge.Outcome{}, errspkg.ErrInvalidRequest
		},
	}

	rec := postSend(newTestRouter(sb), `{"topic":"","event":{},"responseTopic":"r","timeout":100}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Error)
}

func TestSend_BridgeUnavailable(t *testing.T) {
	sb := &stubBridge{
		sendFn: func(ctx context.Context, req bridge.SendRequest) (bridge.Outcome, error) {
			return bridge.Outcome{}, errspkg.ErrBridgeUnavailable
		},
	}

	rec := postSend(newTestRouter(sb), `{"topic":"t","event":{},"responseTopic":"r","timeout":100}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "bridge_unavailable", decodeError(t, rec).Error)
}

func TestSend_CallerGoneDuringSetup(t *testing.T) {
	sb := &stubBridge{
		sendFn: func(ctx context.Context, req bridge.SendRequest) (bridge.Outcome, error) {
			return bridge.Outcome{}, context.Canceled
		},
	}

	rec := postSend(newTestRouter(sb), `{"topic":"t","event":{},"responseTopic":"r","timeout":100}`)

	assert.Equal(t, StatusClientClosedRequest, rec.Code)
	assert.Equal(t, "cancelled", decodeError(t, rec).Error)
}

func TestSend_UnexpectedError(t *testing.T) {
	sb := &stubBridge{
		sendFn: func(ctx context.Context, req bridge.SendRequest) (bridge.Outcome, error) {
			return bridge.Outcome{}, errors.New("boom")
		},
	}

	rec := postSend(newTestRouter(sb), `{"topic":"t","event":{},"responseTopic":"r","timeout":100}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal", decodeError(t, rec).Error)
}

func TestSend_FireAndForget(t *testing.T) {
	var gotTopic string
	var gotPayload []byte
	sb := &stubBridge{
		fireFn: func(ctx context.Context, topic string, payload []byte) (string, error) {
			gotTopic = topic
			gotPayload = payload
			return "01HXREQUEST", nil
		},
	}

	rec := postSend(newTestRouter(sb), `{"topic":"notifications.audit","event":{"event":"login"}}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp acceptedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "01HXREQUEST", resp.RequestID)

	assert.Equal(t, "notifications.audit", gotTopic)
	assert.JSONEq(t, `{"event":"login"}`, string(gotPayload))
}

func TestSend_FireAndForgetRejected(t *testing.T) {
	sb := &stubBridge{
		fireFn: func(ctx context.Context, topic string, payload []byte) (string, error) {
			return "", errspkg.ErrBridgeUnavailable
		},
	}

	rec := postSend(newTestRouter(sb), `{"topic":"notifications.audit","event":{}}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "bridge_unavailable", decodeError(t, rec).Error)
}

func TestSend_MethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/kafka/send", nil)
	rec := httptest.NewRecorder()
	newTestRouter(&stubBridge{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealth(t *testing.T) {
	sb := &stubBridge{
		snapshot: bridge.HealthSnapshot{Ready: true, InFlight: 2, Subscriptions: 1},
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	newTestRouter(sb).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ready":true,"inFlight":2,"subscriptions":1}`, rec.Body.String())
}

func TestHealth_NotReady(t *testing.T) {
	sb := &stubBridge{
		snapshot: bridge.HealthSnapshot{Ready: false, InFlight: 0, Subscriptions: 0},
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	newTestRouter(sb).ServeHTTP(rec, req)

	// Not ready still answers 200; the body carries the flag.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ready":false,"inFlight":0,"subscriptions":0}`, rec.Body.String())
}
