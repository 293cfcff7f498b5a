package mqtt

import (
	"fmt"
	"sync"
)

type eventKind int

const (
	eventConnect eventKind = iota
	eventMessage
	eventDisconnect
)

func (k eventKind) String() string {
	switch k {
	case eventConnect:
		return "connect"
	case eventMessage:
		return "message"
	case eventDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// event is one transport notification awaiting delivery.
type event struct {
	kind    eventKind
	code    byte
	topic   string
	payload []byte
}

// StartDelivery starts the goroutine that invokes callbacks for queued
// events. Calling it while delivery is running has no effect.
func (t *Transport) StartDelivery() {
	t.loopMu.Lock()
	defer t.loopMu.Unlock()

	if t.stop != nil {
		return
	}
	t.stop = make(chan struct{})
	go t.deliver(t.stop)
}

// StopDelivery stops the delivery goroutine without waiting for it. Events
// still queued stay queued until the next StartDelivery or Connect.
func (t *Transport) StopDelivery() {
	t.loopMu.Lock()
	defer t.loopMu.Unlock()

	if t.stop == nil {
		return
	}
	close(t.stop)
	t.stop = nil
}

func (t *Transport) delivering() bool {
	t.loopMu.Lock()
	defer t.loopMu.Unlock()
	return t.stop != nil
}

func (t *Transport) deliver(stop <-chan struct{}) {
	// A stopped loop may have consumed the wakeup meant for its successor.
	defer t.events.notify()

	for {
		select {
		case <-stop:
			return
		default:
		}

		ev, ok := t.events.pop()
		if !ok {
			select {
			case <-stop:
				return
			case <-t.events.ready:
			}
			continue
		}
		t.dispatch(ev)
	}
}

// dispatch invokes the callback for ev, recovering from callback panics.
func (t *Transport) dispatch(ev event) {
	t.deliverMu.Lock()
	defer t.deliverMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("MQTT callback panic recovered",
				"event", ev.kind.String(),
				"topic", ev.topic,
				"panic", fmt.Sprintf("%v", r),
			)
		}
	}()

	t.callbackMu.RLock()
	onConnect, onMessage, onDisconnect := t.onConnect, t.onMessage, t.onDisconnect
	t.callbackMu.RUnlock()

	switch ev.kind {
	case eventConnect:
		if onConnect != nil {
			onConnect(ev.code)
		}
	case eventMessage:
		if onMessage != nil {
			onMessage(ev.topic, ev.payload)
		}
	case eventDisconnect:
		if onDisconnect != nil {
			onDisconnect(ev.code)
		}
	}
}

// enqueue queues ev for delivery. Connect and disconnect events are always
// queued. A message waits while the queue already holds its limit of
// messages, which holds up paho's inbound router until delivery catches up.
func (t *Transport) enqueue(ev event) {
	if !t.events.push(ev) {
		t.logger.Debug("discarding message received after disconnect", "topic", ev.topic)
	}
}

// enqueueFor queues ev only if gen is still the current connection attempt.
func (t *Transport) enqueueFor(gen uint64, ev event) {
	t.clientMu.RLock()
	current := t.generation
	t.clientMu.RUnlock()

	if gen != current {
		t.logger.Debug("discarding event from superseded connection", "event", ev.kind.String())
		return
	}
	t.enqueue(ev)
}

// drainEvents discards everything currently queued and releases blocked
// message producers from the previous connection.
func (t *Transport) drainEvents() {
	t.events.reset()
}

// eventQueue is the ordered event queue between paho and the delivery loop.
//
// Only messages count against limit. Lifecycle events are never refused, so
// a connection loss reported behind a backlog of messages is delivered
// after them instead of being lost.
type eventQueue struct {
	mu       sync.Mutex
	space    *sync.Cond
	pending  []event
	messages int
	limit    int

	// closed refuses messages after a requested disconnect so that no
	// producer stays blocked once delivery has been stopped.
	closed bool

	// ready has capacity 1 and is signalled on every push.
	ready chan struct{}
}

func newEventQueue(limit int) *eventQueue {
	q := &eventQueue{
		limit: limit,
		ready: make(chan struct{}, 1),
	}
	q.space = sync.NewCond(&q.mu)
	return q
}

// push appends ev. It reports false if a message was refused because the
// queue is closed.
func (q *eventQueue) push(ev event) bool {
	q.mu.Lock()
	if ev.kind == eventMessage {
		for !q.closed && q.messages >= q.limit {
			q.space.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return false
		}
		q.messages++
	}
	q.pending = append(q.pending, ev)
	q.mu.Unlock()

	q.notify()
	return true
}

func (q *eventQueue) notify() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *eventQueue) pop() (event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return event{}, false
	}
	ev := q.pending[0]
	q.pending[0] = event{}
	q.pending = q.pending[1:]
	if ev.kind == eventMessage {
		q.messages--
		q.space.Signal()
	}
	return ev, true
}

// reset empties the queue and reopens it for messages.
func (q *eventQueue) reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = nil
	q.messages = 0
	q.closed = false
	q.space.Broadcast()
}

// close refuses further messages and wakes blocked producers.
func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.space.Broadcast()
}

func (q *eventQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
