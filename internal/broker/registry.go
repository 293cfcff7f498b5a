package broker

import (
	"slices"
	"sort"
	"sync"
)

// topicRegistry holds the registered handlers and the subscribed-topic set.
//
// Topics only grow: removing a handler leaves its topics subscribed.
type topicRegistry struct {
	mu       sync.RWMutex
	topics   map[string]struct{}
	handlers []Handler
}

// newTopicRegistry seeds the registry with handlers (in order) and the
// values of the configured role topics.
func newTopicRegistry(handlers []Handler, configured map[string]string) *topicRegistry {
	r := &topicRegistry{
		topics:   make(map[string]struct{}),
		handlers: make([]Handler, 0, len(handlers)),
	}
	for _, h := range handlers {
		if h == nil {
			continue
		}
		r.add(h)
	}
	for _, topic := range configured {
		if topic == "" {
			continue
		}
		r.topics[topic] = struct{}{}
	}
	return r
}

// add appends h and returns the topics it introduced to the subscribed set,
// in declaration order.
func (r *topicRegistry) add(h Handler) []string {
	declared := h.Topics()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers = append(r.handlers, h)

	var added []string
	for _, topic := range declared {
		if topic == "" {
			continue
		}
		if _, ok := r.topics[topic]; ok {
			continue
		}
		r.topics[topic] = struct{}{}
		added = append(added, topic)
	}
	return added
}

// remove drops the first registration of h. The subscribed set is untouched.
func (r *topicRegistry) remove(h Handler) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, registered := range r.handlers {
		if sameHandler(registered, h) {
			r.handlers = slices.Delete(r.handlers, i, i+1)
			return true
		}
	}
	return false
}

// handlersSnapshot returns a copy of the handler list in registration order.
func (r *topicRegistry) handlersSnapshot() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.handlers)
}

// topicsSnapshot returns the subscribed set, sorted.
func (r *topicRegistry) topicsSnapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]string, 0, len(r.topics))
	for topic := range r.topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

func (r *topicRegistry) topicCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics)
}

func (r *topicRegistry) handlerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
