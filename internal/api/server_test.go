package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/fp-mqtt-broker/internal/broker"
	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/config"
	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/database"
	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/logging"
	"github.com/nerrad567/fp-mqtt-broker/internal/journal"
	"github.com/nerrad567/fp-mqtt-broker/internal/recording"
	"github.com/nerrad567/fp-mqtt-broker/migrations"
)

var _ Broker = (*broker.Broker)(nil)

// fakeBroker stands in for broker.Broker and recording.Publisher.
type fakeBroker struct {
	mu        sync.Mutex
	state     broker.State
	roles     map[string]bool
	rec       broker.RecordingState
	statuses  int
	commands  []any
	connected bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		state:     broker.StateConnected,
		connected: true,
		rec:       broker.RecordingIdle,
		roles: map[string]bool{
			config.RoleStatus:           true,
			config.RoleRecordingControl: true,
		},
	}
}

func (b *fakeBroker) ConnectionState() broker.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *fakeBroker) SubscribedTopics() []string { return []string{"test/control", "test/data"} }

func (b *fakeBroker) HandlerCount() int { return 2 }

func (b *fakeBroker) HasRole(role string) bool { return b.roles[role] }

func (b *fakeBroker) Status() broker.Status {
	return broker.Status{
		RecordingState: b.RecordingState(),
		Timestamp:      "2026-10-14T12:00:00Z",
		Service:        logging.ServiceName,
		MQTTStatus:     "connected",
		UptimeSeconds:  42,
	}
}

func (b *fakeBroker) PublishStatus() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return false
	}
	b.statuses++
	return true
}

func (b *fakeBroker) PublishCommand(cmd any) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return false
	}
	b.commands = append(b.commands, cmd)
	return true
}

func (b *fakeBroker) RecordingState() broker.RecordingState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rec
}

func (b *fakeBroker) SetRecordingState(s broker.RecordingState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rec = s
}

func (b *fakeBroker) disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = broker.StateReconnecting
	b.connected = false
}

type testEnv struct {
	srv     *Server
	broker  *fakeBroker
	journal *journal.SQLiteRepository
	reg     *prometheus.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(ctx, migrations.Source()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	fb := newFakeBroker()
	repo := journal.NewSQLiteRepository(db.DB)
	reg := prometheus.NewRegistry()
	broker.NewMetrics(reg)

	srv, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS: config.WebSocketConfig{
			Path:           "/api/v1/stream",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
			Topics:         []string{"sensors/a", "sensors/b"},
		},
		Logger:    logging.Discard(),
		Broker:    fb,
		Recording: recording.New(fb, "test/control", nil),
		Journal:   repo,
		Gatherer:  reg,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &testEnv{srv: srv, broker: fb, journal: repo, reg: reg}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{Broker: newFakeBroker()}); err == nil {
		t.Error("New() without logger succeeded")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without broker succeeded")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["status"] != "ok" || body["connection_state"] != "connected" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestHealth_Degraded(t *testing.T) {
	env := newTestEnv(t)
	env.broker.disconnect()

	rec := env.do(t, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["status"] != "degraded" || body["connection_state"] != "reconnecting" {
		t.Errorf("body = %v", body)
	}
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-id-1")
	rec = httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-id-1" {
		t.Errorf("X-Request-ID = %q, want client-id-1", got)
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, http.MethodGet, "/api/v1/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	env.broker.disconnect()

	rec := env.do(t, http.MethodGet, "/api/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["mqtt_status"] != "reconnecting" {
		t.Errorf("mqtt_status = %v, want live state reconnecting", body["mqtt_status"])
	}
	if body["recording_state"] != "idle" || body["service"] != logging.ServiceName {
		t.Errorf("body = %v", body)
	}
	if topics, ok := body["subscribed_topics"].([]any); !ok || len(topics) != 2 {
		t.Errorf("subscribed_topics = %v", body["subscribed_topics"])
	}
	if body["handlers"] != float64(2) {
		t.Errorf("handlers = %v, want 2", body["handlers"])
	}
}

func TestPublishStatus(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(b *fakeBroker)
		wantCode int
	}{
		{name: "connected", setup: func(_ *fakeBroker) {}, wantCode: http.StatusAccepted},
		{name: "not connected", setup: func(b *fakeBroker) { b.disconnect() }, wantCode: http.StatusServiceUnavailable},
		{name: "no status role", setup: func(b *fakeBroker) { b.roles = map[string]bool{} }, wantCode: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			tt.setup(env.broker)

			rec := env.do(t, http.MethodPost, "/api/v1/status/publish", "")
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}
}

func TestPublishCommand(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/commands", `{"command":"start_recording"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", rec.Code, rec.Body.String())
	}
	if len(env.broker.commands) != 1 {
		t.Fatalf("commands = %d, want 1", len(env.broker.commands))
	}
	cmd, ok := env.broker.commands[0].(map[string]any)
	if !ok || cmd["command"] != "start_recording" {
		t.Errorf("command = %v", env.broker.commands[0])
	}
}

func TestPublishCommand_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		setup    func(b *fakeBroker)
		wantCode int
	}{
		{name: "array body", body: `[1,2]`, setup: func(_ *fakeBroker) {}, wantCode: http.StatusBadRequest},
		{name: "null body", body: `null`, setup: func(_ *fakeBroker) {}, wantCode: http.StatusBadRequest},
		{name: "malformed", body: `{`, setup: func(_ *fakeBroker) {}, wantCode: http.StatusBadRequest},
		{name: "no control role", body: `{}`, setup: func(b *fakeBroker) { b.roles = map[string]bool{} }, wantCode: http.StatusConflict},
		{name: "not connected", body: `{}`, setup: func(b *fakeBroker) { b.disconnect() }, wantCode: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			tt.setup(env.broker)

			rec := env.do(t, http.MethodPost, "/api/v1/commands", tt.body)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if len(env.broker.commands) != 0 {
				t.Errorf("command published on error path")
			}
		})
	}
}

func TestRecording(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/v1/recording", `{"state":"recording"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var resp RecordingResponse
	decodeBody(t, rec, &resp)
	if resp.State != broker.RecordingActive {
		t.Errorf("state = %q, want recording", resp.State)
	}
	if env.broker.RecordingState() != broker.RecordingActive {
		t.Errorf("broker state = %q, want recording", env.broker.RecordingState())
	}
	if env.broker.statuses != 1 {
		t.Errorf("status snapshots = %d, want 1", env.broker.statuses)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/recording", "")
	decodeBody(t, rec, &resp)
	if resp.State != broker.RecordingActive {
		t.Errorf("GET state = %q, want recording", resp.State)
	}
}

func TestRecording_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{name: "invalid state", body: `{"state":"rewinding"}`, wantCode: http.StatusBadRequest},
		{name: "malformed", body: `{`, wantCode: http.StatusBadRequest},
		{name: "invalid transition", body: `{"state":"paused"}`, wantCode: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(t, http.MethodPut, "/api/v1/recording", tt.body)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if env.broker.RecordingState() != broker.RecordingIdle {
				t.Errorf("state changed to %q on error", env.broker.RecordingState())
			}
		})
	}
}

func TestOptionalComponentsMissing(t *testing.T) {
	srv, err := New(Deps{Logger: logging.Discard(), Broker: newFakeBroker()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, path := range []string{"/api/v1/recording", "/api/v1/journal"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, rec.Code)
		}
	}
}

func TestJournal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	for i, topic := range []string{"a", "b", "a"} {
		if err := env.journal.Record(ctx, &journal.Entry{
			Topic:      topic,
			Payload:    map[string]any{"n": float64(i)},
			ReceivedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	rec := env.do(t, http.MethodGet, "/api/v1/journal?topic=a&limit=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var result journal.ListResult
	decodeBody(t, rec, &result)
	if result.Total != 2 || len(result.Entries) != 1 || result.Limit != 1 {
		t.Fatalf("result = %+v, want total 2 with one entry", result)
	}
	if result.Entries[0].Payload["n"] != float64(2) {
		t.Errorf("newest entry payload = %v, want n=2", result.Entries[0].Payload)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/journal?since=2026-10-14T09:00:30Z", "")
	decodeBody(t, rec, &result)
	if result.Total != 2 {
		t.Errorf("since filter total = %d, want 2", result.Total)
	}
}

func TestJournal_BadParams(t *testing.T) {
	env := newTestEnv(t)

	for _, q := range []string{"since=yesterday", "until=1", "limit=-1", "offset=x"} {
		rec := env.do(t, http.MethodGet, "/api/v1/journal?"+q, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("?%s status = %d, want 400", q, rec.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "fpbroker_messages_received_total") {
		t.Error("broker metrics missing from /metrics")
	}
}

func TestServer_StartClose(t *testing.T) {
	env := newTestEnv(t)

	if err := env.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := env.srv.Start(context.Background()); err == nil {
		t.Error("second Start() succeeded")
	}

	addr := env.srv.Addr()
	if addr == "" {
		t.Fatal("Addr() empty after Start")
	}

	resp, err := http.Get("http://" + addr + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := env.srv.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if env.srv.Addr() != "" {
		t.Error("Addr() non-empty after Close")
	}
}

func TestServer_ErrorsReportsServeFailure(t *testing.T) {
	env := newTestEnv(t)

	if err := env.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = env.srv.Close() })

	// Losing the listener underneath Serve is a failure, not a shutdown.
	env.srv.mu.Lock()
	ln := env.srv.listener
	env.srv.mu.Unlock()
	_ = ln.Close()

	select {
	case err := <-env.srv.Errors():
		if err == nil {
			t.Error("Errors() delivered nil")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no serve error after listener closed")
	}
}

func TestServer_ErrorsSilentOnClose(t *testing.T) {
	env := newTestEnv(t)

	if err := env.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	errs := env.srv.Errors()
	if err := env.srv.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	select {
	case err := <-errs:
		t.Errorf("Errors() = %v after Close, want nothing", err)
	case <-time.After(100 * time.Millisecond):
	}
}
