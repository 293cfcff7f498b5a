// Package logging builds the slog logger shared by every broker component.
//
// Entries carry service=mqtt-broker-service and the build version. Each
// subsystem derives a child with a component attribute (broker, mqtt,
// api, journal, telemetry, recording), so one JSON stream can be filtered
// per subsystem.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Broker passwords and InfluxDB tokens must never be logged.
package logging
