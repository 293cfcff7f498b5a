package broker

import (
	"time"

	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/config"
	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/logging"
)

// mqttStatusConnected is the mqtt_status value carried by every status snapshot.
// A snapshot can only be published over a live connection.
const mqttStatusConnected = "connected"

// Status is the snapshot published to the status role topic.
type Status struct {
	RecordingState RecordingState `json:"recording_state"`
	Timestamp      string         `json:"timestamp"`
	Service        string         `json:"service"`
	MQTTStatus     string         `json:"mqtt_status"`
	UptimeSeconds  float64        `json:"uptime_seconds"`
}

// Publish encodes payload and sends it to topic with the given QoS.
//
// Parameters:
//   - topic: Destination topic
//   - payload: Any value the codec can encode (JSON by default)
//   - qos: Delivery guarantee (QoSAtMostOnce, QoSAtLeastOnce, QoSExactlyOnce)
//
// Returns:
//   - bool: true if the transport accepted the message; false if not connected,
//     the payload could not be encoded, or the transport reported an error
func (b *Broker) Publish(topic string, payload any, qos byte) bool {
	if !b.transport.IsConnected() {
		b.metrics.published(publishNotConnected)
		b.logger.Debug("skipping publish, MQTT client not connected", "topic", topic)
		return false
	}

	data, err := b.codec.Encode(payload)
	if err != nil {
		b.metrics.published(publishEncodeError)
		b.logger.Error("failed to encode MQTT payload", "topic", topic, "error", err)
		return false
	}

	if err := guard(func() error { return b.transport.Publish(topic, data, qos) }); err != nil {
		b.metrics.published(publishError)
		b.logger.Warn("failed to publish MQTT message", "topic", topic, "error", err)
		return false
	}

	b.metrics.published(publishOK)
	b.logger.Debug("published MQTT message", "topic", topic, "qos", qos)
	return true
}

// PublishStatus publishes a status snapshot to the status role topic at QoS 0.
// It returns false without side effects when no status topic is configured.
func (b *Broker) PublishStatus() bool {
	topic, ok := b.cfg.Topic(config.RoleStatus)
	if !ok {
		return false
	}
	return b.Publish(topic, b.Status(), QoSAtMostOnce)
}

// PublishCommand publishes cmd to the recording_control role topic at QoS 1.
// It returns false without side effects when no control topic is configured.
func (b *Broker) PublishCommand(cmd any) bool {
	topic, ok := b.cfg.Topic(config.RoleRecordingControl)
	if !ok {
		return false
	}
	return b.Publish(topic, cmd, QoSAtLeastOnce)
}

// HasRole reports whether a non-empty topic is configured for role.
func (b *Broker) HasRole(role string) bool {
	_, ok := b.cfg.Topic(role)
	return ok
}

// Status builds a status snapshot.
func (b *Broker) Status() Status {
	return Status{
		RecordingState: b.RecordingState(),
		Timestamp:      b.now().Format(time.RFC3339Nano),
		Service:        logging.ServiceName,
		MQTTStatus:     mqttStatusConnected,
		UptimeSeconds:  b.Uptime().Seconds(),
	}
}

// RecordingState returns the current recording state.
func (b *Broker) RecordingState() RecordingState {
	b.recMu.RLock()
	defer b.recMu.RUnlock()
	return b.recording
}

// SetRecordingState replaces the recording state reported in status snapshots.
func (b *Broker) SetRecordingState(state RecordingState) {
	b.recMu.Lock()
	b.recording = state
	b.recMu.Unlock()
}

// Uptime returns the time elapsed since the Broker was created.
func (b *Broker) Uptime() time.Duration {
	return b.now().Sub(b.startTime)
}
