package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/config"
	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/influxdb"
)

// fakeServer answers the two endpoints the client uses: /ping and /api/v2/write.
type fakeServer struct {
	*httptest.Server

	mu         sync.Mutex
	bodies     []string
	pingStatus int
	writeCode  int
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{pingStatus: http.StatusNoContent, writeCode: http.StatusNoContent}
	fs.Server = httptest.NewServer(http.HandlerFunc(fs.serve))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) serve(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	switch r.URL.Path {
	case "/ping":
		w.WriteHeader(fs.pingStatus)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body)
		fs.bodies = append(fs.bodies, string(body))
		if fs.writeCode != http.StatusNoContent {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(fs.writeCode)
			_, _ = w.Write([]byte(`{"code":"invalid","message":"bad line protocol"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (fs *fakeServer) written() string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return strings.Join(fs.bodies, "\n")
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "fp",
		Bucket:        "mqtt",
		BatchSize:     1,
		FlushInterval: 1,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within 5s")
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	_, err := influxdb.Connect(context.Background(), cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := influxdb.Connect(context.Background(), testConfig(url))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_Unhealthy(t *testing.T) {
	fs := newFakeServer(t)
	fs.pingStatus = http.StatusServiceUnavailable

	_, err := influxdb.Connect(context.Background(), testConfig(fs.URL))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	fs := newFakeServer(t)
	cfg := testConfig(fs.URL)
	cfg.BatchSize = -5
	cfg.FlushInterval = 0

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestHealthCheck(t *testing.T) {
	fs := newFakeServer(t)

	client, err := influxdb.Connect(context.Background(), testConfig(fs.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	client.Close()
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}
}

func TestWritePoint(t *testing.T) {
	fs := newFakeServer(t)

	client, err := influxdb.Connect(context.Background(), testConfig(fs.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	client.WritePoint("mqtt_message",
		map[string]string{"topic": "sensors/temp"},
		map[string]any{"celsius": 21.5},
		time.Unix(1700000000, 0))
	client.Flush()

	waitFor(t, func() bool { return strings.Contains(fs.written(), "mqtt_message,topic=sensors/temp") })

	got := fs.written()
	if !strings.Contains(got, "celsius=21.5") {
		t.Errorf("line protocol = %q, want celsius=21.5", got)
	}
	if !strings.Contains(got, "1700000000000000000") {
		t.Errorf("line protocol = %q, want nanosecond timestamp", got)
	}
}

func TestWritePoint_EmptyFieldsSkipped(t *testing.T) {
	fs := newFakeServer(t)

	client, err := influxdb.Connect(context.Background(), testConfig(fs.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	client.WritePoint("mqtt_message", map[string]string{"topic": "a"}, nil, time.Time{})
	client.Close()

	if got := fs.written(); got != "" {
		t.Errorf("written = %q, want nothing", got)
	}
}

func TestSetOnError(t *testing.T) {
	fs := newFakeServer(t)
	fs.writeCode = http.StatusBadRequest

	client, err := influxdb.Connect(context.Background(), testConfig(fs.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	var (
		mu       sync.Mutex
		writeErr error
	)
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	client.WritePoint("mqtt_message", map[string]string{"topic": "a"}, map[string]any{"v": 1}, time.Now())
	client.Flush()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return writeErr != nil
	})
}

func TestClose(t *testing.T) {
	fs := newFakeServer(t)

	client, err := influxdb.Connect(context.Background(), testConfig(fs.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	// Writes and flushes after Close are no-ops.
	client.WritePoint("mqtt_message", nil, map[string]any{"v": 1}, time.Now())
	client.Flush()
}

func TestClose_Nil(t *testing.T) {
	var client *influxdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("nil IsConnected() = true")
	}
}
