package telemetry

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/nerrad567/fp-mqtt-broker/internal/broker"
)

// Measurement is the InfluxDB measurement every message point is written to.
const Measurement = "mqtt_message"

// TimestampField names the optional payload field that carries the sample time.
const TimestampField = "timestamp"

// ErrNoFields is returned when a payload carries nothing numeric or boolean.
var ErrNoFields = errors.New("telemetry: payload has no numeric or boolean fields")

// PointWriter queues points for storage. *influxdb.Client satisfies it.
type PointWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time)
}

// Handler writes one point per message on its topics.
type Handler struct {
	writer PointWriter
	topics []string
	tags   map[string]string
	now    func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithTag adds a constant tag to every point, e.g. the MQTT client id.
func WithTag(key, value string) Option {
	return func(h *Handler) {
		h.tags[key] = value
	}
}

// WithClock overrides the receive-time source.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// NewHandler creates a broker.Handler writing messages on topics to w.
func NewHandler(w PointWriter, topics []string, opts ...Option) *Handler {
	h := &Handler{
		writer: w,
		topics: slices.Clone(topics),
		tags:   make(map[string]string),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name identifies the handler in logs and metrics.
func (h *Handler) Name() string { return "telemetry" }

// Topics returns the recorded topics.
func (h *Handler) Topics() []string { return h.topics }

// HandleMessage converts payload into a point and queues it.
func (h *Handler) HandleMessage(topic string, payload broker.Payload) error {
	fields := Fields(payload)
	if len(fields) == 0 {
		return fmt.Errorf("%w: topic %s", ErrNoFields, topic)
	}

	tags := make(map[string]string, len(h.tags)+1)
	for k, v := range h.tags {
		tags[k] = v
	}
	tags["topic"] = topic

	h.writer.WritePoint(Measurement, tags, fields, h.pointTime(payload))
	return nil
}

func (h *Handler) pointTime(payload broker.Payload) time.Time {
	if raw, ok := payload[TimestampField].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return ts
		}
	}
	return h.now()
}

// Fields extracts the numeric and boolean top-level values of payload.
// Integers are widened to int64, floats to float64.
func Fields(payload broker.Payload) map[string]any {
	fields := make(map[string]any, len(payload))
	for k, v := range payload {
		switch n := v.(type) {
		case float64, bool, int64:
			fields[k] = n
		case float32:
			fields[k] = float64(n)
		case int:
			fields[k] = int64(n)
		case int32:
			fields[k] = int64(n)
		}
	}
	return fields
}
