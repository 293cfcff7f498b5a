package broker

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/logging"
)

// panicHandler panics on every message.
type panicHandler struct{ topics []string }

func (h *panicHandler) Topics() []string { return h.topics }

func (h *panicHandler) HandleMessage(string, Payload) error {
	panic("handler exploded")
}

func TestOnMessage_DispatchOrder(t *testing.T) {
	var order []string
	h1 := &recordingHandler{name: "first", topics: []string{testDataTopic}, order: &order}
	h2 := &recordingHandler{name: "second", topics: []string{testDataTopic}, order: &order}
	h3 := &recordingHandler{name: "third", topics: []string{testDataTopic}, order: &order}

	b, _ := newTestBroker(t, testConfig(), &fakeTransport{}, h1, h2, h3)
	b.OnMessage(testDataTopic, []byte(`{"value":42}`))

	if strings.Join(order, ",") != "first,second,third" {
		t.Errorf("dispatch order = %v, want [first second third]", order)
	}
	if got := h1.payloads[0]["value"]; got != float64(42) {
		t.Errorf("payload value = %v, want 42", got)
	}
}

func TestOnMessage_ExactTopicMatch(t *testing.T) {
	exact := &recordingHandler{name: "exact", topics: []string{"sensors/room1/temp"}}
	wildcard := &recordingHandler{name: "wildcard", topics: []string{"sensors/+/temp"}}
	other := &recordingHandler{name: "other", topics: []string{"sensors/room2/temp"}}

	b, _ := newTestBroker(t, testConfig(), &fakeTransport{}, exact, wildcard, other)
	b.OnMessage("sensors/room1/temp", []byte(`{}`))

	if exact.count() != 1 {
		t.Errorf("exact handler received %d messages, want 1", exact.count())
	}
	if wildcard.count() != 0 {
		t.Error("wildcard pattern matched; only exact topics should match")
	}
	if other.count() != 0 {
		t.Error("handler for another topic received the message")
	}
}

func TestOnMessage_UnclaimedTopic(t *testing.T) {
	h := &recordingHandler{name: "data", topics: []string{testDataTopic}}
	b, _ := newTestBroker(t, testConfig(), &fakeTransport{}, h)

	// Configured role topics may have no handler at all.
	b.OnMessage(testStatusTopic, []byte(`{"recording_state":"idle"}`))

	if h.count() != 0 {
		t.Error("handler received a message for a topic it did not declare")
	}
}

func TestOnMessage_DecodeFailure(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "malformed", payload: `{not json`},
		{name: "empty", payload: ``},
		{name: "array", payload: `[1,2,3]`},
		{name: "scalar", payload: `"text"`},
		{name: "null", payload: `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &recordingHandler{name: "data", topics: []string{testDataTopic}}
			b, logs := newTestBroker(t, testConfig(), &fakeTransport{}, h)

			b.OnMessage(testDataTopic, []byte(tt.payload))

			if h.count() != 0 {
				t.Error("handler invoked for undecodable payload")
			}
			if !strings.Contains(logs.String(), "invalid payload") {
				t.Error("expected decode failure to be logged")
			}
		})
	}
}

func TestOnMessage_HandlerErrorIsolated(t *testing.T) {
	failing := &recordingHandler{name: "failing", topics: []string{testDataTopic}, err: errors.New("disk full")}
	after := &recordingHandler{name: "after", topics: []string{testDataTopic}}

	b, logs := newTestBroker(t, testConfig(), &fakeTransport{}, failing, after)
	b.OnMessage(testDataTopic, []byte(`{}`))

	if after.count() != 1 {
		t.Errorf("handler after failing one received %d messages, want 1", after.count())
	}
	out := logs.String()
	if !strings.Contains(out, "error in message handler") || !strings.Contains(out, "failing") {
		t.Errorf("expected handler error to be logged with handler name, got %s", out)
	}
}

func TestOnMessage_HandlerPanicIsolated(t *testing.T) {
	after := &recordingHandler{name: "after", topics: []string{testDataTopic}}

	b, logs := newTestBroker(t, testConfig(), &fakeTransport{}, &panicHandler{topics: []string{testDataTopic}}, after)
	b.OnMessage(testDataTopic, []byte(`{}`))

	if after.count() != 1 {
		t.Errorf("handler after panicking one received %d messages, want 1", after.count())
	}
	if !strings.Contains(logs.String(), "panic in message handler") {
		t.Error("expected handler panic to be logged")
	}
}

func TestOnMessage_HandlerAddedDuringDispatch(t *testing.T) {
	late := &recordingHandler{name: "late", topics: []string{testDataTopic}}

	var b *Broker
	adder := NewFuncHandler("adder", []string{testDataTopic}, func(string, Payload) error {
		b.AddHandler(late)
		return nil
	})
	b, _ = newTestBroker(t, testConfig(), &fakeTransport{}, adder)

	b.OnMessage(testDataTopic, []byte(`{}`))
	if late.count() != 0 {
		t.Error("handler added during dispatch received the in-flight message")
	}

	b.RemoveHandler(adder)
	b.OnMessage(testDataTopic, []byte(`{}`))
	if late.count() != 1 {
		t.Errorf("late handler received %d messages, want 1", late.count())
	}
}

func TestOnMessage_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	h := &recordingHandler{name: "data", topics: []string{testDataTopic}, err: errors.New("boom")}

	b, err := New(Deps{
		Config:    testConfig(),
		Transport: &fakeTransport{},
		Handlers:  []Handler{h},
		Logger:    logging.Discard(),
		Metrics:   metrics,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	b.OnMessage(testDataTopic, []byte(`{}`))
	b.OnMessage(testDataTopic, []byte(`garbage`))

	if got := testutil.ToFloat64(metrics.MessagesReceived); got != 2 {
		t.Errorf("messages_received_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.MessagesDropped.WithLabelValues("decode")); got != 1 {
		t.Errorf("messages_dropped_total{reason=decode} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.HandlerInvocations.WithLabelValues("data", "error")); got != 1 {
		t.Errorf("handler_invocations_total{data,error} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.SubscribedTopics); got != 3 {
		t.Errorf("subscribed_topics = %v, want 3", got)
	}
	if got := testutil.ToFloat64(metrics.ConnectionState.WithLabelValues(string(StateNotConnected))); got != 1 {
		t.Errorf("connection_state{not_connected} = %v, want 1", got)
	}
}

func TestNewMetrics_NilRegistry(t *testing.T) {
	m := NewMetrics(nil)
	if m.MessagesReceived == nil {
		t.Fatal("expected collectors to be created without a registry")
	}

	var nilMetrics *Metrics
	// Recording on a nil *Metrics is a no-op.
	nilMetrics.messageReceived()
	nilMetrics.setState(StateConnected)
}

func TestHandlerName(t *testing.T) {
	if got := HandlerName(&recordingHandler{name: "named"}); got != "named" {
		t.Errorf("HandlerName(named) = %q, want named", got)
	}
	if got := HandlerName(&panicHandler{}); got != "*broker.panicHandler" {
		t.Errorf("HandlerName(unnamed) = %q, want *broker.panicHandler", got)
	}
}

// sliceHandler has a non-comparable dynamic type.
type sliceHandler []string

func (h sliceHandler) Topics() []string                    { return h }
func (h sliceHandler) HandleMessage(string, Payload) error { return nil }

func TestRemoveHandler_NonComparable(t *testing.T) {
	h := sliceHandler{testDataTopic}
	b, _ := newTestBroker(t, testConfig(), &fakeTransport{}, h)

	if b.RemoveHandler(h) {
		t.Error("RemoveHandler() = true for non-comparable handler")
	}
	if b.HandlerCount() != 1 {
		t.Errorf("HandlerCount() = %d, want 1", b.HandlerCount())
	}
}
