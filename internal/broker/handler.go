package broker

import (
	"fmt"
	"reflect"
	"slices"
)

// Handler receives decoded messages for the topics it declares.
//
// Topics is consulted when the handler is registered (to extend the
// subscribed set) and on every dispatch (to decide whether the handler is
// interested). Matching is exact string equality; wildcards are not expanded.
type Handler interface {
	Topics() []string
	HandleMessage(topic string, payload Payload) error
}

// Named is implemented by handlers that want a stable name in logs and metrics.
type Named interface {
	Name() string
}

// HandlerName returns h's Name() if it implements Named, else its dynamic type.
func HandlerName(h Handler) string {
	if n, ok := h.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", h)
}

// FuncHandler adapts a plain function to the Handler interface.
type FuncHandler struct {
	name   string
	topics []string
	fn     func(topic string, payload Payload) error
}

// NewFuncHandler creates a Handler named name that calls fn for messages on topics.
func NewFuncHandler(name string, topics []string, fn func(topic string, payload Payload) error) *FuncHandler {
	return &FuncHandler{
		name:   name,
		topics: slices.Clone(topics),
		fn:     fn,
	}
}

// Name returns the handler name.
func (h *FuncHandler) Name() string { return h.name }

// Topics returns a copy of the declared topics.
func (h *FuncHandler) Topics() []string { return slices.Clone(h.topics) }

// HandleMessage calls the wrapped function.
func (h *FuncHandler) HandleMessage(topic string, payload Payload) error {
	return h.fn(topic, payload)
}

// sameHandler reports whether a and b are the same registered handler.
// Handlers whose dynamic type is not comparable never match.
func sameHandler(a, b Handler) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || ta == nil || !ta.Comparable() {
		return false
	}
	return a == b
}
