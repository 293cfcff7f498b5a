// Package telemetry turns broker messages into InfluxDB points.
//
// The Handler is registered with the broker for the topics listed under
// influxdb.topics. Each message becomes one point in the mqtt_message
// measurement, tagged with its topic. Numeric and boolean top-level fields
// are written; strings, arrays and nested objects are skipped.
//
// A string "timestamp" field in RFC 3339 form sets the point time. Otherwise
// the receive time is used.
package telemetry
