package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/config"
	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/logging"
)

// Result codes reported through the connect and disconnect callbacks.
const (
	codeSuccess        byte = 0
	codeConnectionLost byte = 1
	codeNetworkError   byte = 0xFE
)

// ClientFactory creates the underlying paho client. Tests substitute a fake.
type ClientFactory func(opts *pahomqtt.ClientOptions) pahomqtt.Client

// Option configures a Transport.
type Option func(*Transport)

// WithClientFactory replaces pahomqtt.NewClient.
func WithClientFactory(factory ClientFactory) Option {
	return func(t *Transport) {
		t.newClient = factory
	}
}

// WithQueueSize sets how many undelivered messages may queue before paho's
// message handler blocks.
func WithQueueSize(n int) Option {
	return func(t *Transport) {
		if n > 0 {
			t.queueSize = n
		}
	}
}

// Transport adapts paho.mqtt.golang to the callback-driven transport the
// broker core expects.
//
// Paho reports connection results, messages and connection loss from its
// own goroutines. Transport turns each into an event on an ordered queue
// which a single delivery goroutine (started by StartDelivery) drains,
// invoking the registered callbacks one at a time. Connect and disconnect
// events are never dropped; messages beyond the queue size block paho.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Callbacks are never invoked concurrently with each other.
type Transport struct {
	cfg       config.MQTTConfig
	newClient ClientFactory
	logger    *logging.Logger
	queueSize int

	// client is the current paho client; replaced on every Connect.
	client     pahomqtt.Client
	generation uint64
	clientMu   sync.RWMutex

	onConnect    func(code byte)
	onMessage    func(topic string, payload []byte)
	onDisconnect func(code byte)
	callbackMu   sync.RWMutex

	events    *eventQueue
	stop      chan struct{}
	loopMu    sync.Mutex
	deliverMu sync.Mutex
}

// New creates a Transport for cfg. No connection is made until Connect.
//
// Parameters:
//   - cfg: MQTT configuration (client ID, credentials, TLS, connect timeout)
//   - logger: Logger for transport diagnostics; nil uses logging.Default()
//   - opts: Optional overrides (client factory, queue size)
//
// Returns:
//   - *Transport: Ready for Connect
func New(cfg config.MQTTConfig, logger *logging.Logger, opts ...Option) *Transport {
	if logger == nil {
		logger = logging.Default()
	}

	t := &Transport{
		cfg:       cfg,
		newClient: pahomqtt.NewClient,
		logger:    logger.With("component", "mqtt"),
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.events = newEventQueue(t.queueSize)

	return t
}

// Connect starts an asynchronous connection attempt to host:port.
//
// It performs the following setup:
//  1. Discards events left over from earlier attempts
//  2. Builds connection options (broker URL, auth, TLS, keepalive)
//  3. Creates a fresh paho client and starts connecting
//
// The outcome is reported through the on-connect callback: code 0 from
// paho's OnConnect handler on success, or the CONNACK return code (0xFE for
// network errors) on failure.
//
// Returns:
//   - error: ErrInvalidBroker if host or port is unusable; the attempt was not started
func (t *Transport) Connect(host string, port int, keepalive time.Duration) error {
	if host == "" || port < 1 || port > 65535 {
		return fmt.Errorf("%w: %q:%d", ErrInvalidBroker, host, port)
	}

	t.drainEvents()

	opts := buildClientOptions(t.cfg, host, port, keepalive)

	t.clientMu.Lock()
	if t.client != nil && t.client.IsConnectionOpen() {
		t.client.Disconnect(defaultDisconnectQuiesce)
	}
	t.generation++
	gen := t.generation
	t.clientMu.Unlock()

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		t.enqueueFor(gen, event{kind: eventConnect, code: codeSuccess})
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		t.logger.Warn("MQTT connection lost", "error", err)
		t.enqueueFor(gen, event{kind: eventDisconnect, code: codeConnectionLost})
	})
	opts.SetDefaultPublishHandler(t.handleMessage)

	client := t.newClient(opts)

	t.clientMu.Lock()
	t.client = client
	t.clientMu.Unlock()

	t.logger.Debug("starting MQTT connection", "broker", brokerURL(host, port, t.cfg.TLS), "client_id", t.cfg.ClientID)

	token := client.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			code := connectFailureCode(token)
			t.logger.Debug("MQTT connect token failed", "code", code, "error", err)
			t.enqueueFor(gen, event{kind: eventConnect, code: code})
		}
	}()

	return nil
}

// Reconnect re-establishes a lost connection with the current client.
//
// It blocks until the connect token completes or the configured connect
// timeout elapses. On success paho's OnConnect handler reports code 0
// through the on-connect callback.
func (t *Transport) Reconnect() error {
	client := t.currentClient()
	if client == nil {
		return ErrNoClient
	}

	timeout := t.cfg.ConnectTimeoutDuration()
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}

	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: reconnect timeout after %v", ErrTimeout, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return nil
}

// Disconnect closes the connection.
//
// A requested disconnect is reported with code 0 through the on-disconnect
// callback, but only while delivery is running.
//
// Returns:
//   - error: Always nil; disconnecting a closed client is not an error
func (t *Transport) Disconnect() error {
	client := t.currentClient()
	if client == nil {
		return nil
	}

	t.events.close()
	client.Disconnect(defaultDisconnectQuiesce)

	if t.delivering() {
		t.enqueue(event{kind: eventDisconnect, code: codeSuccess})
	}
	return nil
}

// IsConnected reports whether the current client has an open connection.
func (t *Transport) IsConnected() bool {
	client := t.currentClient()
	return client != nil && client.IsConnectionOpen()
}

// HealthCheck verifies the MQTT connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (t *Transport) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !t.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// SetOnConnect sets the callback for connection results.
func (t *Transport) SetOnConnect(callback func(code byte)) {
	t.callbackMu.Lock()
	t.onConnect = callback
	t.callbackMu.Unlock()
}

// SetOnMessage sets the callback for inbound messages.
func (t *Transport) SetOnMessage(callback func(topic string, payload []byte)) {
	t.callbackMu.Lock()
	t.onMessage = callback
	t.callbackMu.Unlock()
}

// SetOnDisconnect sets the callback for disconnects.
// Code 0 means requested; any other code means the connection was lost.
func (t *Transport) SetOnDisconnect(callback func(code byte)) {
	t.callbackMu.Lock()
	t.onDisconnect = callback
	t.callbackMu.Unlock()
}

func (t *Transport) currentClient() pahomqtt.Client {
	t.clientMu.RLock()
	defer t.clientMu.RUnlock()
	return t.client
}

// handleMessage queues a paho message for delivery.
func (t *Transport) handleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	t.enqueue(event{kind: eventMessage, topic: msg.Topic(), payload: msg.Payload()})
}

// connectFailureCode extracts the CONNACK return code from a failed token.
func connectFailureCode(token pahomqtt.Token) byte {
	if rc, ok := token.(interface{ ReturnCode() byte }); ok {
		if code := rc.ReturnCode(); code != codeSuccess {
			return code
		}
	}
	return codeNetworkError
}
