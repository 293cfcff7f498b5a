// Package broker routes MQTT messages between a transport client and
// application handlers.
//
// This package manages:
//   - The connection lifecycle (blocking connect with timeout, disconnect,
//     single-shot reconnection after an unexpected disconnect)
//   - The subscribed-topic set (handler topics plus configured role topics),
//     re-subscribed on every successful connect
//   - Dispatch of decoded messages to every handler that declared the topic
//   - Publishing of status snapshots and recording commands
//
// # Architecture
//
// The Broker is constructed with a Transport and registers its own
// OnConnect, OnMessage and OnDisconnect methods as the transport's callbacks.
// The transport invokes them from its delivery loop, concurrently with the
// caller's goroutine:
//
//	Transport ──OnConnect──▶ Broker ──Subscribe(all topics)──▶ Transport
//	Transport ──OnMessage──▶ Broker ──Decode──▶ Handler, Handler, ...
//	Caller ──Connect/Publish──▶ Broker ──▶ Transport
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Handlers are invoked
// synchronously, in registration order, outside the registry lock, so a
// handler may add or remove handlers while a message is being dispatched.
// Handlers must treat the payload as read-only: the same decoded map is
// passed to every interested handler.
//
// # Failure Model
//
// Nothing in this package is fatal. Connect reports failure as false,
// undecodable messages are logged and dropped, handler errors and panics are
// logged and isolated, and publish failures return false.
//
// # Usage
//
//	b, err := broker.New(broker.Deps{
//	    Config:    cfg.MQTT,
//	    Transport: transport,
//	    Handlers:  []broker.Handler{recorder},
//	    Logger:    log,
//	})
//	if err != nil {
//	    return err
//	}
//	if !b.Connect(ctx, 10*time.Second) {
//	    return errors.New("broker unreachable")
//	}
//	defer b.Disconnect()
//
// Removing a handler does not unsubscribe its topics: they stay in the
// subscribed set until the process exits.
package broker
