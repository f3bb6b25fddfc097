package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/voyahub/busbridge/internal/jsoncodec"
)

// ErrInvalidOptions reports send options the client refuses to ship.
var ErrInvalidOptions = errors.New("busbridge: invalid send options")

// APIError is a non-2xx answer from the bridge, carrying the wire error code
// and optional detail.
type APIError struct {
	StatusCode int
	Kind       string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("busbridge: %s (status %d): %s", e.Kind, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("busbridge: %s (status %d)", e.Kind, e.StatusCode)
}

// Timeout reports whether the bridge gave up waiting for the downstream
// response. Timeouts are not retried: the request reached the bus and a
// retry would double-submit it.
func (e *APIError) Timeout() bool {
	return e.StatusCode == http.StatusGatewayTimeout
}

func apiErrorFrom(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Kind: "error"}

	var wire struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := jsoncodec.Unmarshal(body, &wire); err == nil && wire.Error != "" {
		e.Kind = wire.Error
		e.Detail = wire.Detail
	}
	return e
}
