package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when the influxdb section is switched off.
	// Callers treat it as "run without telemetry", not as a failure.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed wraps ping and health failures during Connect.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned from a closed client.
	ErrNotConnected = errors.New("influxdb: not connected")
)
