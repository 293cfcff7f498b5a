// Package influxdb provides InfluxDB connectivity for broker telemetry.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes, and health monitoring.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePoint("mqtt_message",
//	    map[string]string{"topic": "sensors/temp"},
//	    map[string]any{"celsius": 21.5},
//	    time.Now())
//
// # Error Handling
//
// Writes are asynchronous. Register SetOnError to observe batch failures.
package influxdb
