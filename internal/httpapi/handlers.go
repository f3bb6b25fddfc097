package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/voyahub/busbridge/internal/bridge"
	errspkg "github.com/voyahub/busbridge/internal/bridge/errors"
	"github.com/voyahub/busbridge/internal/jsoncodec"
	"github.com/voyahub/busbridge/internal/logging"
)

// StatusClientClosedRequest reports a caller that went away before its
// response arrived. 499 is the nginx convention; net/http has no constant
// for it.
const StatusClientClosedRequest = 499

// BridgeService is the part of the bridge core the HTTP layer drives.
type BridgeService interface {
	SendAndWait(ctx context.Context, req bridge.SendRequest) (bridge.Outcome, error)
	FireAndForget(ctx context.Context, topic string, payload []byte) (string, error)
	Health() bridge.HealthSnapshot
}

type sendRequest struct {
	Topic         string          `json:"topic"`
	Event         json.RawMessage `json:"event"`
	ResponseTopic string          `json:"responseTopic,omitempty"`
	TimeoutMs     int64           `json:"timeout,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

type acceptedResponse struct {
	RequestID string `json:"requestId"`
}

// Handlers serves the bridge REST endpoints.
type Handlers struct {
	bridge       BridgeService
	logger       logging.ServiceLogger
	maxBodyBytes int64
}

func NewHandlers(b BridgeService, logger logging.ServiceLogger, maxBodyBytes int64) *Handlers {
	return &Handlers{
		bridge:       b,
		logger:       logger.With(logging.LogFields{"component": "httpapi"}),
		maxBodyBytes: maxBodyBytes,
	}
}

// Send accepts a request envelope and either waits for the correlated
// response or, without a responseTopic, queues a fire-and-forget publish.
func (h *Handlers) Send(w http.ResponseWriter, r *http.Request) {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	var req sendRequest
	if err := jsoncodec.Decode(r.Body, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "request body too large")
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	if req.ResponseTopic == "" {
		h.fireAndForget(w, r, req)
		return
	}

	out, err := h.bridge.SendAndWait(r.Context(), bridge.SendRequest{
		Topic:         req.Topic,
		Payload:       []byte(req.Event),
		ResponseTopic: req.ResponseTopic,
		Timeout:       time.Duration(req.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	switch out.Kind {
	case bridge.OutcomeOK:
		// The response payload passes through untouched.
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(out.Payload); err != nil {
			h.logger.Debug("response write failed", logging.LogFields{"error": err.Error()})
		}
	case bridge.OutcomeTimeout:
		h.writeError(w, http.StatusGatewayTimeout, "timeout", "no response before the deadline")
	case bridge.OutcomeCancelled:
		h.writeError(w, StatusClientClosedRequest, "cancelled", "client closed the request")
	case bridge.OutcomeFailed:
		h.writeError(w, http.StatusBadGateway, out.Reason, "")
	default:
		h.logger.Error("unexpected outcome kind", nil, logging.LogFields{"kind": out.Kind.String()})
		h.writeError(w, http.StatusInternalServerError, "internal", "")
	}
}

func (h *Handlers) fireAndForget(w http.ResponseWriter, r *http.Request, req sendRequest) {
	requestID, err := h.bridge.FireAndForget(r.Context(), req.Topic, []byte(req.Event))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusAccepted)
	if err := jsoncodec.Encode(w, acceptedResponse{RequestID: requestID}); err != nil {
		h.logger.Error("Failed to encode accepted response", err, nil)
	}
}

// Health reports readiness and load. The status is always 200; callers read
// the ready flag.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := jsoncodec.Encode(w, h.bridge.Health()); err != nil {
		h.logger.Error("Failed to encode health snapshot", err, nil)
	}
}

func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errspkg.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, errspkg.ErrBridgeUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, "bridge_unavailable", err.Error())
	case errors.Is(err, context.Canceled):
		h.writeError(w, StatusClientClosedRequest, "cancelled", "client closed the request")
	default:
		h.logger.Error("request failed", err, nil)
		h.writeError(w, http.StatusInternalServerError, "internal", "")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := jsoncodec.Encode(w, errorResponse{Error: code, Detail: detail}); err != nil {
		h.logger.Error("Failed to encode error response", err, nil)
	}
}
