// Package client calls a busbridge instance over HTTP. It owns the retry
// contract: transient rejections are retried on a bounded backoff schedule,
// while anything the bus already saw is surfaced untouched.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/voyahub/busbridge/internal/jsoncodec"
)

// SendOptions describes one request through the bridge.
type SendOptions struct {
	// Topic is the request topic on the bus.
	Topic string
	// Event is the opaque JSON payload delivered to the downstream worker.
	Event json.RawMessage
	// ResponseTopic is where the worker publishes the correlated response.
	ResponseTopic string
	// Timeout bounds the server-side wait for that response.
	Timeout time.Duration
}

// HealthSnapshot mirrors the bridge health endpoint.
type HealthSnapshot struct {
	Ready         bool `json:"ready"`
	InFlight      int  `json:"inFlight"`
	Subscriptions int  `json:"subscriptions"`
}

type sendPayload struct {
	Topic         string          `json:"topic"`
	Event         json.RawMessage `json:"event"`
	ResponseTopic string          `json:"responseTopic,omitempty"`
	TimeoutMs     int64           `json:"timeout,omitempty"`
}

// Client is a bridge caller. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	policy     RetryPolicy
	logger     *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the default pooled HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetryPolicy replaces the default retry schedule.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithLogger sets the logger for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the bridge at baseURL.
func New(baseURL string, options ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: defaultHTTPClient(),
		policy:     DefaultRetryPolicy(),
		logger:     slog.Default(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// defaultHTTPClient pools connections and bounds the dial; per-attempt
// deadlines come from the request context, not a client-wide timeout.
func defaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        16,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     30 * time.Second,
		},
	}
}

// SendAndWait posts the request and blocks until the bridge returns the
// correlated response payload. The error is an *APIError for any wire-level
// rejection that survived the retry schedule.
func (c *Client) SendAndWait(ctx context.Context, opts SendOptions) (json.RawMessage, error) {
	if opts.Topic == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrInvalidOptions)
	}
	if len(opts.Event) == 0 {
		return nil, fmt.Errorf("%w: event is required", ErrInvalidOptions)
	}
	if opts.ResponseTopic == "" {
		return nil, fmt.Errorf("%w: responseTopic is required", ErrInvalidOptions)
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be positive", ErrInvalidOptions)
	}

	body, err := jsoncodec.Marshal(sendPayload{
		Topic:         opts.Topic,
		Event:         opts.Event,
		ResponseTopic: opts.ResponseTopic,
		TimeoutMs:     opts.Timeout.Milliseconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}

	return c.post(ctx, body, opts.Timeout+c.policy.TimeoutBuffer)
}

// FireAndForget posts the event without a response topic and returns the
// request id the bridge assigned.
func (c *Client) FireAndForget(ctx context.Context, topic string, event json.RawMessage) (string, error) {
	if topic == "" {
		return "", fmt.Errorf("%w: topic is required", ErrInvalidOptions)
	}
	if len(event) == 0 {
		return "", fmt.Errorf("%w: event is required", ErrInvalidOptions)
	}

	body, err := jsoncodec.Marshal(sendPayload{Topic: topic, Event: event})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}

	payload, err := c.post(ctx, body, c.policy.TimeoutBuffer)
	if err != nil {
		return "", err
	}

	var accepted struct {
		RequestID string `json:"requestId"`
	}
	if err := jsoncodec.Unmarshal(payload, &accepted); err != nil {
		return "", fmt.Errorf("busbridge: malformed accept response: %w", err)
	}
	return accepted.RequestID, nil
}

// Health fetches the bridge health snapshot. Probes are never retried; the
// caller wants the state now, not after a backoff.
func (c *Client) Health(ctx context.Context) (HealthSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return HealthSnapshot{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return HealthSnapshot{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return HealthSnapshot{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return HealthSnapshot{}, apiErrorFrom(resp.StatusCode, payload)
	}

	var snap HealthSnapshot
	if err := jsoncodec.Unmarshal(payload, &snap); err != nil {
		return HealthSnapshot{}, fmt.Errorf("busbridge: malformed health response: %w", err)
	}
	return snap, nil
}

// post runs the retry loop around attempts to the send endpoint.
func (c *Client) post(ctx context.Context, body []byte, attemptTimeout time.Duration) ([]byte, error) {
	url := c.baseURL + "/api/kafka/send"

	var lastErr error
	for attempt := 1; ; attempt++ {
		payload, err := c.attempt(ctx, url, body, attemptTimeout)
		if err == nil {
			return payload, nil
		}
		lastErr = err

		// A dead caller context always ends the schedule, even when the
		// failure itself would be retryable.
		if ctx.Err() != nil {
			return nil, lastErr
		}
		if !retryable(err) || attempt >= c.policy.MaxAttempts {
			return nil, lastErr
		}

		delay := c.policy.Delay(attempt)
		c.logger.Debug("retrying bridge request",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return nil, lastErr
		case <-time.After(delay):
		}
	}
}

func (c *Client) attempt(ctx context.Context, url string, body []byte, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		return payload, nil
	default:
		return nil, apiErrorFrom(resp.StatusCode, payload)
	}
}
