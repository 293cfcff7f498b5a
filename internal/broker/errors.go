package broker

import "errors"

// Domain-specific errors for broker operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrTransportRequired is returned by New when Deps.Transport is nil.
	ErrTransportRequired = errors.New("broker: transport is required")

	// ErrInvalidQoS is returned by New when the subscribe QoS is outside 0-2.
	ErrInvalidQoS = errors.New("broker: subscribe qos must be 0, 1 or 2")

	// ErrConnectTimeout is reported when no connect result arrives in time.
	ErrConnectTimeout = errors.New("broker: connection timed out")

	// ErrDecode wraps payload decoding failures.
	ErrDecode = errors.New("broker: payload decode failed")

	// ErrNotObject is returned when a payload decodes to something other than an object.
	ErrNotObject = errors.New("broker: payload is not an object")

	// ErrHandlerPanic is recorded when a handler panics during dispatch.
	ErrHandlerPanic = errors.New("broker: handler panicked")

	// ErrTransportPanic wraps a panic raised by a transport call.
	ErrTransportPanic = errors.New("broker: transport panicked")

	// ErrInvalidRecordingState is returned when parsing an unknown recording state.
	ErrInvalidRecordingState = errors.New("broker: invalid recording state")
)
