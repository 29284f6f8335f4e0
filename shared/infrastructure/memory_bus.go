package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/draftea/order-saga/shared/events"
	"github.com/rs/zerolog"
)

var (
	_ events.Publisher  = (*MemoryBus)(nil)
	_ events.Subscriber = (*MemoryBus)(nil)
)

type memorySubscription struct {
	pattern events.Topic
	handler events.EventHandler
}

// MemoryBus is an in-process broker with at-least-once semantics: every
// matching subscriber gets its own asynchronous delivery, failed handlers
// are retried and exhausted deliveries land in a dead letter list.
type MemoryBus struct {
	mu            sync.RWMutex
	subscriptions []memorySubscription
	published     []*events.Event
	deadLetters   []*events.Event
	wg            sync.WaitGroup

	maxAttempts int
	retryDelay  time.Duration
	duplicate   bool
	logger      zerolog.Logger
}

type MemoryBusOption func(*MemoryBus)

// WithDeliveryAttempts bounds how many times a failing handler is invoked
func WithDeliveryAttempts(attempts int) MemoryBusOption {
	return func(b *MemoryBus) {
		if attempts > 0 {
			b.maxAttempts = attempts
		}
	}
}

func WithRetryDelay(delay time.Duration) MemoryBusOption {
	return func(b *MemoryBus) {
		b.retryDelay = delay
	}
}

// WithDuplicateDelivery delivers every event twice to each subscriber
func WithDuplicateDelivery() MemoryBusOption {
	return func(b *MemoryBus) {
		b.duplicate = true
	}
}

// NewMemoryBus creates an in-process bus
func NewMemoryBus(logger zerolog.Logger, opts ...MemoryBusOption) *MemoryBus {
	b := &MemoryBus{
		maxAttempts: 3,
		retryDelay:  10 * time.Millisecond,
		logger:      logger.With().Str("component", "memory_bus").Logger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for every topic matching pattern
func (b *MemoryBus) Subscribe(_ context.Context, pattern events.Topic, handler events.EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = append(b.subscriptions, memorySubscription{pattern: pattern, handler: handler})
	return nil
}

// Publish records the events and schedules their delivery. Delivery is
// detached from ctx cancellation, like a real broker.
func (b *MemoryBus) Publish(ctx context.Context, evts ...*events.Event) error {
	deliveryCtx := context.WithoutCancel(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, event := range evts {
		b.published = append(b.published, event.Clone())

		copies := 1
		if b.duplicate {
			copies = 2
		}

		for _, sub := range b.subscriptions {
			if !event.Topic.Matches(sub.pattern) {
				continue
			}
			for i := 0; i < copies; i++ {
				b.wg.Add(1)
				go b.deliver(deliveryCtx, sub, event.Clone())
			}
		}
	}

	return nil
}

func (b *MemoryBus) deliver(ctx context.Context, sub memorySubscription, event *events.Event) {
	defer b.wg.Done()

	var err error
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		if err = sub.handler.Handle(ctx, event); err == nil {
			return
		}
		b.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Str("topic", event.Topic.String()).
			Str("event_id", event.ID.String()).
			Msg("delivery failed")
		time.Sleep(b.retryDelay)
	}

	b.logger.Error().
		Err(err).
		Str("topic", event.Topic.String()).
		Str("event_id", event.ID.String()).
		Msg("delivery exhausted, dead lettering")

	b.mu.Lock()
	b.deadLetters = append(b.deadLetters, event)
	b.mu.Unlock()
}

// Wait blocks until every scheduled delivery, including the ones scheduled
// by handlers while waiting, has finished.
func (b *MemoryBus) Wait() {
	b.wg.Wait()
}

// WaitTimeout is Wait with an upper bound. It reports whether the bus drained.
func (b *MemoryBus) WaitTimeout(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Published returns the events published on topics matching pattern
func (b *MemoryBus) Published(pattern events.Topic) []*events.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*events.Event
	for _, event := range b.published {
		if event.Topic.Matches(pattern) {
			out = append(out, event)
		}
	}
	return out
}

// DeadLetters returns deliveries that exhausted their attempts
func (b *MemoryBus) DeadLetters() []*events.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]*events.Event(nil), b.deadLetters...)
}

// Close drains pending deliveries
func (b *MemoryBus) Close() error {
	b.Wait()
	return nil
}
