package broker

import "time"

// ResultSuccess is the result code reported by connect and disconnect
// callbacks when the operation succeeded (or the disconnect was requested).
const ResultSuccess byte = 0

// QoS levels understood by the transport.
const (
	QoSAtMostOnce  byte = 0
	QoSAtLeastOnce byte = 1
	QoSExactlyOnce byte = 2
)

// Transport is the publish/subscribe client the Broker is built on.
//
// Connection results, inbound messages and disconnects are delivered through
// the registered callbacks from the transport's own delivery loop, which runs
// between StartDelivery and StopDelivery.
type Transport interface {
	// Connect starts connecting to host:port. The outcome is reported through
	// the on-connect callback; a returned error means the attempt never started.
	Connect(host string, port int, keepalive time.Duration) error

	// Disconnect closes the connection.
	Disconnect() error

	// Reconnect re-establishes a lost connection using the last Connect parameters.
	Reconnect() error

	// Subscribe requests delivery of messages published to topic.
	Subscribe(topic string, qos byte) error

	// Publish sends payload to topic. A nil error means the transport accepted it.
	Publish(topic string, payload []byte, qos byte) error

	// StartDelivery starts the background loop that invokes the callbacks.
	StartDelivery()

	// StopDelivery stops the background loop.
	StopDelivery()

	// IsConnected reports whether the transport currently has a live connection.
	IsConnected() bool

	SetOnConnect(callback func(code byte))
	SetOnMessage(callback func(topic string, payload []byte))
	SetOnDisconnect(callback func(code byte))
}
