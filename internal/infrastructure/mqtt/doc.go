// Package mqtt adapts paho.mqtt.golang to the callback-driven transport used
// by the broker core.
//
// This package manages:
//   - Building paho client options (broker URL, auth, TLS, keepalive)
//   - Asynchronous connect with the result reported as a CONNACK-style code
//   - A bounded event queue and a single delivery goroutine for callbacks
//   - Topic validation for publish (no wildcards) and subscribe (wildcard placement)
//   - Connection health checks
//
// # Architecture
//
// Paho invokes its handlers from internal goroutines. The Transport converts
// each notification into an event and a single goroutine delivers them:
//
//	paho OnConnect ─┐
//	paho message ───┼──▶ event queue ──▶ delivery loop ──▶ broker callbacks
//	paho lost ──────┘
//
// Paho's own auto-reconnect is disabled; the broker core calls Reconnect
// after an unexpected disconnect.
//
// # Security Considerations
//
//   - Enable TLS for anything beyond a local broker (mqtt.tls=true)
//   - Credentials come from config or FPBROKER_MQTT_USERNAME/PASSWORD
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	transport := mqtt.New(cfg.MQTT, logger)
//	b, err := broker.New(broker.Deps{Config: cfg.MQTT, Transport: transport})
//	if err != nil {
//	    return err
//	}
//	b.Connect(ctx, cfg.MQTT.ConnectTimeoutDuration())
package mqtt
