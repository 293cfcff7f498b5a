package broker

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "fpbroker"

// Publish outcomes recorded in the published_total counter.
const (
	publishOK           = "ok"
	publishNotConnected = "not_connected"
	publishEncodeError  = "encode_error"
	publishError        = "error"
)

// Metrics holds the Prometheus collectors updated by a Broker.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	MessagesReceived   prometheus.Counter
	MessagesDropped    *prometheus.CounterVec
	HandlerInvocations *prometheus.CounterVec
	Published          *prometheus.CounterVec
	ReconnectAttempts  prometheus.Counter
	ConnectionState    *prometheus.GaugeVec
	SubscribedTopics   prometheus.Gauge
}

// NewMetrics creates the broker collectors and registers them with reg.
// With a nil reg the collectors are created but not registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_received_total",
			Help:      "Total number of MQTT messages received.",
		}),
		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_dropped_total",
			Help:      "Total number of MQTT messages dropped before dispatch.",
		}, []string{"reason"}),
		HandlerInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "handler_invocations_total",
			Help:      "Total number of handler invocations by handler and result.",
		}, []string{"handler", "result"}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "published_total",
			Help:      "Total number of publish attempts by result.",
		}, []string{"result"}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reconnect_attempts_total",
			Help:      "Total number of reconnection attempts after unexpected disconnects.",
		}),
		ConnectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connection_state",
			Help:      "Current connection state (1 for the active state).",
		}, []string{"state"}),
		SubscribedTopics: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "subscribed_topics",
			Help:      "Number of topics in the subscribed set.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.MessagesReceived,
			m.MessagesDropped,
			m.HandlerInvocations,
			m.Published,
			m.ReconnectAttempts,
			m.ConnectionState,
			m.SubscribedTopics,
		)
	}
	return m
}

func (m *Metrics) messageReceived() {
	if m == nil {
		return
	}
	m.MessagesReceived.Inc()
}

func (m *Metrics) messageDropped(reason string) {
	if m == nil {
		return
	}
	m.MessagesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) handled(handler string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.HandlerInvocations.WithLabelValues(handler, result).Inc()
}

func (m *Metrics) published(result string) {
	if m == nil {
		return
	}
	m.Published.WithLabelValues(result).Inc()
}

func (m *Metrics) reconnectAttempt() {
	if m == nil {
		return
	}
	m.ReconnectAttempts.Inc()
}

func (m *Metrics) setState(current State) {
	if m == nil {
		return
	}
	for _, s := range AllStates {
		v := 0.0
		if s == current {
			v = 1
		}
		m.ConnectionState.WithLabelValues(string(s)).Set(v)
	}
}

func (m *Metrics) setTopics(n int) {
	if m == nil {
		return
	}
	m.SubscribedTopics.Set(float64(n))
}
