package journal

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/nerrad567/fp-mqtt-broker/internal/broker"
)

// writeTimeout bounds a single journal insert.
const writeTimeout = 2 * time.Second

// Handler journals every message on its topics.
type Handler struct {
	repo   Repository
	topics []string
	now    func() time.Time
}

// NewHandler creates a broker.Handler that records messages on topics to repo.
func NewHandler(repo Repository, topics []string) *Handler {
	return &Handler{
		repo:   repo,
		topics: slices.Clone(topics),
		now:    time.Now,
	}
}

// Name identifies the handler in logs and metrics.
func (h *Handler) Name() string { return "journal" }

// Topics returns the journaled topics.
func (h *Handler) Topics() []string { return h.topics }

// HandleMessage records one message.
func (h *Handler) HandleMessage(topic string, payload broker.Payload) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	entry := &Entry{
		Topic:      topic,
		Payload:    payload,
		ReceivedAt: h.now().UTC(),
	}
	if err := h.repo.Record(ctx, entry); err != nil {
		return fmt.Errorf("journaling message on %s: %w", topic, err)
	}
	return nil
}
