package errors

import sterrors "errors"

var (
	ErrConfigRequired = sterrors.New("busbridge: config is required")
	ErrLoggerRequired = sterrors.New("busbridge: logger is required")
	ErrBusRequired    = sterrors.New("busbridge: bus client is required")

	// ErrInvalidRequest marks requests rejected before publishing: missing
	// topic, empty payload, or a non-positive timeout.
	ErrInvalidRequest = sterrors.New("busbridge: invalid request")

	// ErrBridgeUnavailable marks requests rejected because the bridge cannot
	// currently take them: bus disconnected, draining, or at capacity.
	ErrBridgeUnavailable = sterrors.New("busbridge: bridge unavailable")

	// ErrDuplicateCorrelationID is returned when a correlation id is already
	// in flight. Ids are ULIDs, so hitting this means a caller supplied its
	// own id twice.
	ErrDuplicateCorrelationID = sterrors.New("busbridge: duplicate correlation id")
)
