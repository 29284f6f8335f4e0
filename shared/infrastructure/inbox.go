package infrastructure

import (
	"context"
	"sync"

	"github.com/draftea/order-saga/shared/events"
	"github.com/draftea/order-saga/shared/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Inbox remembers which envelopes a consumer already processed
type Inbox interface {
	Seen(ctx context.Context, consumer string, eventID models.ID) (bool, error)
	MarkSeen(ctx context.Context, consumer string, event *events.Event) error
}

// MemoryInbox is a process local Inbox
type MemoryInbox struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

func NewMemoryInbox() *MemoryInbox {
	return &MemoryInbox{seen: make(map[string]struct{})}
}

func (i *MemoryInbox) Seen(_ context.Context, consumer string, eventID models.ID) (bool, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.seen[inboxKey(consumer, eventID)]
	return ok, nil
}

func (i *MemoryInbox) MarkSeen(_ context.Context, consumer string, event *events.Event) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.seen[inboxKey(consumer, event.ID)] = struct{}{}
	return nil
}

func inboxKey(consumer string, eventID models.ID) string {
	return consumer + "/" + eventID.String()
}

// IdempotentHandler skips envelopes the inbox has already recorded for
// consumer. The id is recorded only after the wrapped handler succeeds, so
// a failed attempt is retried on redelivery.
type IdempotentHandler struct {
	consumer string
	inbox    Inbox
	next     events.EventHandler
	logger   zerolog.Logger
	onSkip   func(ctx context.Context, event *events.Event)
}

type IdempotentHandlerOption func(*IdempotentHandler)

// WithSkipHook is called for every duplicate that gets skipped
func WithSkipHook(fn func(ctx context.Context, event *events.Event)) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.onSkip = fn
	}
}

func NewIdempotentHandler(consumer string, inbox Inbox, next events.EventHandler, logger zerolog.Logger, opts ...IdempotentHandlerOption) *IdempotentHandler {
	h := &IdempotentHandler{
		consumer: consumer,
		inbox:    inbox,
		next:     next,
		logger:   logger.With().Str("component", "inbox").Str("consumer", consumer).Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *IdempotentHandler) Handle(ctx context.Context, event *events.Event) error {
	seen, err := h.inbox.Seen(ctx, h.consumer, event.ID)
	if err != nil {
		return errors.Wrap(err, "failed to query inbox")
	}
	if seen {
		h.logger.Info().
			Str("event_id", event.ID.String()).
			Str("topic", event.Topic.String()).
			Msg("duplicate envelope skipped")
		if h.onSkip != nil {
			h.onSkip(ctx, event)
		}
		return nil
	}

	if err := h.next.Handle(ctx, event); err != nil {
		return err
	}

	if err := h.inbox.MarkSeen(ctx, h.consumer, event); err != nil {
		// Processing already happened; a redelivery is absorbed by the
		// state machine rejecting the repeated event.
		h.logger.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to record envelope in inbox")
	}
	return nil
}
