// Package service wires the broker and its supporting components into one
// process lifecycle.
//
// Startup order:
//  1. Message journal (SQLite, migrated) when journal.enabled
//  2. InfluxDB telemetry when influxdb.enabled
//  3. Broker with every handler registered, then the initial connection
//  4. HTTP API and stream hub when api.enabled
//  5. Periodic status publishing when mqtt.status_interval > 0
//
// Shutdown runs in reverse when the context passed to Run is cancelled.
package service
