package infrastructure

import (
	"context"
	"sync"

	"github.com/draftea/order-saga/shared/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var _ events.EventHandler = (*TopicRouter)(nil)

type route struct {
	pattern events.Topic
	handler events.EventHandler
}

// TopicRouter fans a single inbound stream out to the handlers registered
// for matching topic patterns. It lets one queue carry several channels.
type TopicRouter struct {
	mu     sync.RWMutex
	routes []route
	logger zerolog.Logger
}

// NewTopicRouter creates an empty router
func NewTopicRouter(logger zerolog.Logger) *TopicRouter {
	return &TopicRouter{
		logger: logger.With().Str("component", "topic_router").Logger(),
	}
}

// RegisterHandler registers a handler for every topic matching pattern
func (r *TopicRouter) RegisterHandler(pattern events.Topic, handler events.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route{pattern: pattern, handler: handler})
}

// Handle dispatches the event to every matching handler. All handlers run
// even when one fails; the first failure is returned so the transport
// redelivers the message.
func (r *TopicRouter) Handle(ctx context.Context, event *events.Event) error {
	r.mu.RLock()
	routes := make([]route, 0, len(r.routes))
	for _, rt := range r.routes {
		if event.Topic.Matches(rt.pattern) {
			routes = append(routes, rt)
		}
	}
	r.mu.RUnlock()

	if len(routes) == 0 {
		r.logger.Debug().Str("topic", event.Topic.String()).Msg("no handlers registered for topic")
		return nil
	}

	var firstErr error
	for _, rt := range routes {
		if err := rt.handler.Handle(ctx, event); err != nil {
			r.logger.Error().
				Err(err).
				Str("topic", event.Topic.String()).
				Str("pattern", rt.pattern.String()).
				Str("event_id", event.ID.String()).
				Msg("handler failed")
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "handler for %s failed", rt.pattern)
			}
		}
	}

	return firstErr
}
