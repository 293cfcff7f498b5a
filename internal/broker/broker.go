package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/config"
	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/logging"
)

// Deps holds the dependencies for a Broker.
type Deps struct {
	// Config supplies the broker address, keepalive, role topics and subscribe QoS.
	Config config.MQTTConfig

	// Transport is the publish/subscribe client. Required.
	Transport Transport

	// Handlers are registered in order before any connection is made.
	Handlers []Handler

	// Logger defaults to logging.Default().
	Logger *logging.Logger

	// Codec defaults to JSONCodec.
	Codec Codec

	// Metrics may be nil.
	Metrics *Metrics

	// Now defaults to time.Now.
	Now func() time.Time
}

// Broker coordinates a Transport connection, the subscribed-topic set and
// message dispatch to handlers.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
//   - Transport callbacks may run concurrently with caller methods.
type Broker struct {
	cfg       config.MQTTConfig
	transport Transport
	codec     Codec
	logger    *logging.Logger
	metrics   *Metrics
	now       func() time.Time

	registry *topicRegistry
	signal   *connSignal
	state    *connState
	running  atomic.Bool

	startTime time.Time

	// postConnect tracks resubscribe-and-announce runs started by OnConnect.
	postConnect sync.WaitGroup

	recMu     sync.RWMutex
	recording RecordingState
}

// New creates a Broker and registers its callbacks with the transport.
//
// The subscribed set starts as the union of every handler's topics and every
// configured role topic. No connection is made until Connect is called.
//
// Parameters:
//   - deps: Broker dependencies; Transport is required
//
// Returns:
//   - *Broker: Ready for Connect
//   - error: ErrTransportRequired if deps.Transport is nil, ErrInvalidQoS
//     if Config.SubscribeQoS is outside 0-2
func New(deps Deps) (*Broker, error) {
	if deps.Transport == nil {
		return nil, ErrTransportRequired
	}
	if qos := deps.Config.SubscribeQoS; qos < 0 || qos > 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQoS, qos)
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	codec := deps.Codec
	if codec == nil {
		codec = JSONCodec{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	b := &Broker{
		cfg:       deps.Config,
		transport: deps.Transport,
		codec:     codec,
		logger:    logger.With("component", "broker"),
		metrics:   deps.Metrics,
		now:       now,
		registry:  newTopicRegistry(deps.Handlers, deps.Config.Topics),
		signal:    newConnSignal(),
		recording: RecordingIdle,
	}
	b.startTime = now()
	b.state = newConnState(func(from, to State) {
		b.metrics.setState(to)
		b.logger.Debug("connection state changed", "from", from, "to", to)
	})

	b.metrics.setState(StateNotConnected)
	b.metrics.setTopics(b.registry.topicCount())

	b.transport.SetOnConnect(b.OnConnect)
	b.transport.SetOnMessage(b.OnMessage)
	b.transport.SetOnDisconnect(b.OnDisconnect)

	return b, nil
}

// Connect connects to the configured broker and blocks until the connection
// result arrives, timeout elapses, or ctx is done.
//
// The result is decided by when the connect callback fires: Connect returns
// true as soon as a code 0 arrives within timeout. Re-subscribing and the
// initial status publish then continue in the background, so a slow SUBACK
// cannot turn an accepted connection into a failure.
//
// An abandoned attempt stops delivery and closes the transport, so a
// connection accepted after the deadline does not linger half-open.
//
// Parameters:
//   - ctx: Cancelling ctx abandons the wait like a timeout
//   - timeout: Maximum time to wait for the connection result
//
// Returns:
//   - bool: true if the broker accepted the connection; failures are logged
func (b *Broker) Connect(ctx context.Context, timeout time.Duration) bool {
	b.logger.Info("connecting to MQTT broker", "address", b.cfg.Address())

	b.signal.reset()
	b.fire(eventConnect)

	err := guard(func() error {
		return b.transport.Connect(b.cfg.BrokerHost, b.cfg.BrokerPort, b.cfg.KeepaliveDuration())
	})
	if err != nil {
		b.logger.Error("failed to connect to MQTT broker", "address", b.cfg.Address(), "error", err)
		b.running.Store(false)
		b.fire(eventFailed)
		return false
	}

	b.transport.StartDelivery()

	code, err := b.signal.wait(ctx, timeout)
	if err != nil {
		if errors.Is(err, ErrConnectTimeout) {
			b.logger.Error("connection to MQTT broker timed out", "address", b.cfg.Address(), "timeout", timeout)
		} else {
			b.logger.Error("connection to MQTT broker abandoned", "address", b.cfg.Address(), "error", err)
		}
		b.transport.StopDelivery()
		if derr := guard(b.transport.Disconnect); derr != nil {
			b.logger.Warn("error closing abandoned MQTT connection", "error", derr)
		}
		b.running.Store(false)
		b.fire(eventFailed)
		return false
	}

	if code != ResultSuccess {
		b.logger.Error("MQTT broker refused connection", "address", b.cfg.Address(), "code", code)
		b.running.Store(false)
		return false
	}

	b.running.Store(true)
	b.logger.Info("connected to MQTT broker", "address", b.cfg.Address())
	return true
}

// Disconnect stops the service and closes the connection if it is open.
// It is safe to call when not connected.
func (b *Broker) Disconnect() {
	b.running.Store(false)

	if b.transport.IsConnected() {
		b.transport.StopDelivery()
		if err := guard(b.transport.Disconnect); err != nil {
			b.logger.Warn("error disconnecting from MQTT broker", "error", err)
		}
	}

	b.fire(eventDisconnect)
	b.logger.Info("disconnected from MQTT broker")
}

// OnConnect handles a connection result from the transport.
//
// A successful result first wakes a goroutine blocked in Connect, then
// re-subscribes every topic and publishes the initial status on a separate
// goroutine. Those calls wait for broker acknowledgements, which must not
// hold up the delivery goroutine the callback runs on. It is registered as
// the transport's connect callback.
func (b *Broker) OnConnect(code byte) {
	if code != ResultSuccess {
		b.logger.Error("MQTT connection attempt failed", "code", code)
		b.fire(eventFailed)
		b.signal.resolve(code)
		return
	}

	b.fire(eventEstablished)
	b.postConnect.Add(1)
	b.signal.resolve(code)

	go func() {
		defer b.postConnect.Done()
		b.subscribeAll()
		if b.HasRole(config.RoleStatus) {
			b.PublishStatus()
		}
	}()
}

// OnDisconnect handles a disconnect notification from the transport.
//
// A non-zero code while the service is running triggers one reconnection
// attempt. It is registered as the transport's disconnect callback.
func (b *Broker) OnDisconnect(code byte) {
	if code == ResultSuccess {
		b.logger.Info("MQTT connection closed")
		b.fire(eventDisconnect)
		return
	}

	b.logger.Warn("unexpected MQTT disconnection", "code", code)

	if !b.running.Load() {
		b.fire(eventDisconnect)
		return
	}

	b.fire(eventLost)
	b.reconnect()
}

// reconnect makes a single reconnection attempt. Success is reported
// through OnConnect, which re-subscribes.
func (b *Broker) reconnect() {
	b.metrics.reconnectAttempt()
	b.logger.Info("attempting to reconnect to MQTT broker", "address", b.cfg.Address())

	if err := guard(b.transport.Reconnect); err != nil {
		b.logger.Error("reconnection to MQTT broker failed", "address", b.cfg.Address(), "error", err)
		b.fire(eventFailed)
	}
}

// IsRunning reports whether the last Connect succeeded and Disconnect has not
// been called since.
func (b *Broker) IsRunning() bool {
	return b.running.Load()
}

// ConnectionState returns the current connection state.
func (b *Broker) ConnectionState() State {
	return b.state.current()
}

// SubscribedTopics returns the subscribed set, sorted.
func (b *Broker) SubscribedTopics() []string {
	return b.registry.topicsSnapshot()
}

// AddHandler registers h after any existing handlers.
//
// Topics new to the subscribed set are subscribed immediately if the
// transport is connected; otherwise they are subscribed on the next connect.
func (b *Broker) AddHandler(h Handler) {
	if h == nil {
		return
	}

	added := b.registry.add(h)
	b.metrics.setTopics(b.registry.topicCount())
	b.logger.Debug("handler added", "handler", HandlerName(h), "new_topics", len(added))

	if len(added) == 0 || !b.transport.IsConnected() {
		return
	}
	for _, topic := range added {
		b.subscribe(topic)
	}
}

// RemoveHandler unregisters the first registration of h. Its topics stay
// subscribed. Handlers of non-comparable types cannot be removed.
//
// Returns:
//   - bool: true if h was registered
func (b *Broker) RemoveHandler(h Handler) bool {
	if h == nil {
		return false
	}
	removed := b.registry.remove(h)
	if removed {
		b.logger.Debug("handler removed", "handler", HandlerName(h))
	}
	return removed
}

// HandlerCount returns the number of registered handlers.
func (b *Broker) HandlerCount() int {
	return b.registry.handlerCount()
}

func (b *Broker) subscribeAll() {
	for _, topic := range b.registry.topicsSnapshot() {
		b.subscribe(topic)
	}
}

func (b *Broker) subscribe(topic string) {
	qos := byte(b.cfg.SubscribeQoS) //nolint:gosec // checked to 0-2 in New
	if err := guard(func() error { return b.transport.Subscribe(topic, qos) }); err != nil {
		b.logger.Error("failed to subscribe to topic", "topic", topic, "error", err)
		return
	}
	b.logger.Info("subscribed to topic", "topic", topic, "qos", qos)
}

func (b *Broker) fire(event string) {
	if err := b.state.fire(event); err != nil {
		b.logger.Debug("ignored connection state event", "event", event, "state", b.state.current(), "error", err)
	}
}

// guard runs a transport call, converting a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTransportPanic, r)
		}
	}()
	return fn()
}
