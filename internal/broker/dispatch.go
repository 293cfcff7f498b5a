package broker

import (
	"fmt"
	"slices"
)

// maxLoggedPayload bounds how much of an undecodable payload is logged.
const maxLoggedPayload = 256

// OnMessage decodes an inbound message and passes it to every handler that
// declared topic, in registration order.
//
// Undecodable payloads are logged and dropped without reaching any handler.
// A handler that returns an error or panics is logged; the remaining
// handlers still run. It is registered as the transport's message callback.
func (b *Broker) OnMessage(topic string, raw []byte) {
	b.metrics.messageReceived()

	payload, err := b.codec.Decode(raw)
	if err != nil {
		b.metrics.messageDropped("decode")
		b.logger.Error("invalid payload in MQTT message",
			"topic", topic,
			"error", err,
			"payload", truncatePayload(raw),
		)
		return
	}

	b.logger.Debug("received MQTT message", "topic", topic)

	for _, h := range b.registry.handlersSnapshot() {
		b.invoke(h, topic, payload)
	}
}

// invoke runs one handler if it declared topic, isolating its failures.
func (b *Broker) invoke(h Handler, topic string, payload Payload) {
	name := HandlerName(h)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrHandlerPanic, r)
			b.metrics.handled(name, err)
			b.logger.Error("panic in message handler",
				"handler", name,
				"topic", topic,
				"panic", fmt.Sprintf("%v", r),
			)
		}
	}()

	if !slices.Contains(h.Topics(), topic) {
		return
	}

	err := h.HandleMessage(topic, payload)
	b.metrics.handled(name, err)
	if err != nil {
		b.logger.Error("error in message handler",
			"handler", name,
			"topic", topic,
			"error", err,
		)
	}
}

func truncatePayload(raw []byte) string {
	if len(raw) <= maxLoggedPayload {
		return string(raw)
	}
	return string(raw[:maxLoggedPayload]) + "..."
}
