// Package api implements the HTTP API and live message stream for the broker service.
//
// This package provides:
//   - Health and status endpoints backed by the broker connection state
//   - Publish endpoints for status snapshots and recording commands
//   - Recording state control and message journal queries
//   - A WebSocket hub streaming decoded MQTT messages to subscribed clients
//   - Prometheus metrics at /metrics
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Graceful Degradation
//
// The server operates while the broker is disconnected. Reads work; publish
// endpoints answer 503 until the connection is re-established. The journal
// and recording endpoints answer 404 when those components are not wired.
package api
