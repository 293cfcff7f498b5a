// Package config loads the broker service configuration.
//
// Load applies, in order: built-in defaults, the YAML file, FPBROKER_*
// environment overrides, then Validate, which reports every problem at
// once. The mqtt section keeps the key names of the original Python
// service (broker_host, broker_port, client_id, keepalive, topics), so
// existing config files keep working.
//
// Topics are keyed by role. The status and recording_control roles have
// fixed meaning, and every configured topic is also subscribed:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	statusTopic, ok := cfg.MQTT.Topic(config.RoleStatus)
//
// Credentials (FPBROKER_MQTT_PASSWORD, FPBROKER_INFLUXDB_TOKEN) belong in the
// environment rather than the file. The returned Config is read-only.
package config
