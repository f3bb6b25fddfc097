package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_Error(t *testing.T) {
	e := &APIError{StatusCode: 502, Kind: "publish_failed", Detail: "broker refused"}
	assert.Equal(t, "busbridge: publish_failed (status 502): broker refused", e.Error())

	e = &APIError{StatusCode: 504, Kind: "timeout"}
	assert.Equal(t, "busbridge: timeout (status 504)", e.Error())
}

func TestAPIError_Timeout(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: 504}).Timeout())
	assert.False(t, (&APIError{StatusCode: 503}).Timeout())
	assert.False(t, (&APIError{StatusCode: 400}).Timeout())
}

func TestAPIErrorFrom(t *testing.T) {
	e := apiErrorFrom(504, []byte(`{"error":"timeout","detail":"no response within 1500ms"}`))
	assert.Equal(t, 504, e.StatusCode)
	assert.Equal(t, "timeout", e.Kind)
	assert.Equal(t, "no response within 1500ms", e.Detail)
}

func TestAPIErrorFrom_Unparseable(t *testing.T) {
	// Proxies in front of the bridge answer with HTML or plain text; the
	// status code still carries the decision.
	e := apiErrorFrom(503, []byte("<html>service unavailable</html>"))
	assert.Equal(t, 503, e.StatusCode)
	assert.Equal(t, "error", e.Kind)
	assert.Empty(t, e.Detail)
}
