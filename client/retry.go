package client

import (
	"errors"
	"math/rand"
	"net/http"
	"time"
)

// RetryPolicy shapes the client-side retry schedule. Only failures that are
// safe to repeat are retried: 503 (the bridge refused before publishing),
// 408, and transport errors. A 504 means the request reached the bus, so it
// is never retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, first attempt included.
	MaxAttempts int
	// BaseDelay is the wait after the first failed attempt; it doubles per
	// attempt up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// TimeoutBuffer pads the per-attempt deadline beyond the request
	// timeout, leaving the bridge room to answer 504 itself.
	TimeoutBuffer time.Duration
	// Jitter spreads each delay by up to ±25%. Off by default, which keeps
	// the schedule exact; turn it on when many clients share a bridge.
	Jitter bool
}

// DefaultRetryPolicy returns the standard schedule: three attempts with
// delays of 1s and 2s, and a 5s attempt buffer.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		BaseDelay:     time.Second,
		MaxDelay:      5 * time.Second,
		TimeoutBuffer: 5 * time.Second,
	}
}

// Delay returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay << uint(attempt-1)
	if d <= 0 || d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter {
		d = time.Duration(float64(d) * (0.75 + rand.Float64()*0.5))
	}
	return d
}

// retryable decides whether a failed attempt may be repeated. Errors that
// never produced an HTTP response count as transport failures and retry;
// responses retry only on 503 and 408.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusServiceUnavailable ||
			apiErr.StatusCode == http.StatusRequestTimeout
	}
	return true
}
