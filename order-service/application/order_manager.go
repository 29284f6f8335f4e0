package application

import (
	"context"
	"time"

	"github.com/draftea/order-saga/order-service/domain"
	"github.com/draftea/order-saga/shared/events"
	"github.com/draftea/order-saga/shared/models"
	"github.com/draftea/order-saga/shared/telemetry"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultMaxAttempts  = 5
	defaultRetryBackoff = 10 * time.Millisecond
)

// OrderManager drives orders through the fulfillment saga.
//
// Every mutation follows the same protocol under the per-order lock: load
// the order, fire the event, save with the loaded version as precondition
// and only then run the side effect of the transition. Version conflicts
// restart the cycle up to maxAttempts times.
//
// Outbound messages are queued in the order outbox by the transition and
// saved with it. They are published after the save and the outbox is
// cleared once they are out. A failed publish keeps them queued and any
// later event for the order, a redelivered duplicate included, sends them
// again. Delivery is at least once.
//
// Side effects publish while the lock is held, so the publisher must not
// deliver synchronously back into the manager for the same order.
type OrderManager struct {
	repository   domain.OrderRepository
	publisher    events.Publisher
	locker       Locker
	telemetry    *telemetry.Telemetry
	logger       zerolog.Logger
	maxAttempts  int
	retryBackoff time.Duration
}

type Option func(*OrderManager)

func WithLocker(locker Locker) Option {
	return func(m *OrderManager) {
		m.locker = locker
	}
}

// WithMaxAttempts bounds the load-fire-save cycles per event
func WithMaxAttempts(attempts int) Option {
	return func(m *OrderManager) {
		if attempts > 0 {
			m.maxAttempts = attempts
		}
	}
}

func WithRetryBackoff(backoff time.Duration) Option {
	return func(m *OrderManager) {
		m.retryBackoff = backoff
	}
}

func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(m *OrderManager) {
		m.telemetry = tel
	}
}

// NewOrderManager creates the orchestrator
func NewOrderManager(
	repository domain.OrderRepository,
	publisher events.Publisher,
	logger zerolog.Logger,
	opts ...Option,
) *OrderManager {
	m := &OrderManager{
		repository:   repository,
		publisher:    publisher,
		locker:       NewKeyedMutex(),
		logger:       logger.With().Str("component", "order_manager").Logger(),
		maxAttempts:  defaultMaxAttempts,
		retryBackoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// mutation runs on the loaded order after a transition fired and before it
// is saved, so its changes land in the same write as the new status.
type mutation func(order *domain.Order, t domain.Transition)

func (m *OrderManager) startSpan(ctx context.Context, name string, orderID models.ID) (context.Context, trace.Span) {
	ctx = telemetry.WithTelemetry(ctx, m.telemetry)
	return telemetry.StartSpan(ctx, "OrderManager."+name,
		trace.WithAttributes(attribute.String("order.id", orderID.String())),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// sendEvent applies event to the order while holding its lock
func (m *OrderManager) sendEvent(ctx context.Context, orderID models.ID, event domain.OrderEvent, mutate mutation) (*domain.Order, error) {
	unlock, err := m.locker.Lock(ctx, orderID.String())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to lock order %s", orderID)
	}
	defer unlock()

	return m.applyLocked(ctx, orderID, event, mutate)
}

// applyLocked must be called with the order lock held
func (m *OrderManager) applyLocked(ctx context.Context, orderID models.ID, event domain.OrderEvent, mutate mutation) (*domain.Order, error) {
	logger := m.logger.With().Str("order_id", orderID.String()).Str("event", event.String()).Logger()

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		order, err := m.repository.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, domain.ErrOrderNotFound) {
				return nil, err
			}
			return nil, &domain.PersistenceError{Op: "load order " + orderID.String(), Err: err}
		}

		expected := order.Version
		t, err := order.Fire(event)
		if err != nil {
			logger.Warn().Str("status", order.Status().String()).Msg("transition rejected")
			telemetry.RecordCounter(ctx, telemetry.OrderTransitionsRejectedMetric, "Events rejected by the order state machine", 1,
				attribute.String("event", event.String()),
				attribute.String("status", order.Status().String()),
			)
			if pending := order.Outbox(); len(pending) > 0 {
				logger.Warn().Int("pending", len(pending)).Msg("re-sending messages queued by an earlier transition")
			}
			if err := m.drainOutbox(ctx, order); err != nil {
				return order, err
			}
			if order.Status() == domain.OrderStatusValidated && event == domain.OrderEventValidationPassed {
				// an earlier delivery saved VALIDATED but never got to allocation
				logger.Warn().Msg("resuming allocation of a validated order")
				_, err := m.applyLocked(ctx, orderID, domain.OrderEventAllocateOrder, nil)
				return order, err
			}
			return order, nil
		}

		if mutate != nil {
			mutate(order, t)
		}

		err = m.repository.Save(ctx, order, expected)
		if errors.Is(err, domain.ErrVersionConflict) {
			logger.Debug().Int("attempt", attempt).Int("version", expected.Value).Msg("version conflict, retrying")
			if err := m.backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, &domain.PersistenceError{Op: "save order " + orderID.String(), Err: err}
		}

		logger.Info().
			Str("from", t.From.String()).
			Str("to", t.To.String()).
			Int("version", order.Version.Value).
			Msg("order transitioned")
		telemetry.RecordCounter(ctx, telemetry.OrderTransitionsMetric, "Order state transitions applied", 1,
			attribute.String("event", event.String()),
			attribute.String("from", t.From.String()),
			attribute.String("to", t.To.String()),
		)

		m.compensate(ctx, order, t)
		if err := m.drainOutbox(ctx, order); err != nil {
			return order, err
		}

		if t.Action == domain.ActionRaiseAllocateOrder {
			// VALIDATED is saved and the lock is still held, so the chained
			// event sees it without waiting.
			_, err := m.applyLocked(ctx, orderID, domain.OrderEventAllocateOrder, nil)
			return order, err
		}
		return order, nil
	}

	logger.Error().Int("attempts", m.maxAttempts).Msg("giving up after repeated version conflicts")
	return nil, &domain.ConcurrencyError{OrderID: orderID, Event: event, Attempts: m.maxAttempts}
}

func (m *OrderManager) backoff(ctx context.Context, attempt int) error {
	if m.retryBackoff <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(time.Duration(attempt) * m.retryBackoff)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// compensate records the compensations of a saved transition. Their
// messages were queued by Fire and go out with the outbox.
func (m *OrderManager) compensate(ctx context.Context, order *domain.Order, t domain.Transition) {
	switch t.Action {
	case domain.ActionAllocatePartially:
		m.compensatePartialAllocation(ctx, order)

	case domain.ActionSendAllocationFailure:
		m.recordCompensation(ctx, "allocation_failure")
		m.logger.Error().Str("order_id", order.ID.String()).Msg("allocation failed, notifying remediation")

	case domain.ActionSendDeallocationRequest:
		m.recordCompensation(ctx, "deallocation")
		m.logger.Warn().Str("order_id", order.ID.String()).Msg("allocated order cancelled, requesting deallocation")
	}
}

// drainOutbox publishes the queued messages of a saved order in order and
// then clears the stored outbox. The first failed publish stops the drain
// and leaves everything queued.
func (m *OrderManager) drainOutbox(ctx context.Context, order *domain.Order) error {
	pending := order.Outbox()
	if len(pending) == 0 {
		return nil
	}

	for _, action := range pending {
		if err := m.dispatch(ctx, order, action); err != nil {
			return err
		}
	}

	if err := m.repository.ClearOutbox(ctx, order.ID, order.Version); err != nil {
		m.logger.Error().Err(err).
			Str("order_id", order.ID.String()).
			Int("version", order.Version.Value).
			Msg("failed to clear outbox, queued messages will be sent again")
		return nil
	}
	order.ClearOutbox()
	return nil
}

func (m *OrderManager) dispatch(ctx context.Context, order *domain.Order, action domain.Action) error {
	switch action {
	case domain.ActionSendValidationRequest:
		return m.publish(ctx, order, events.ValidateOrderRequestTopic, domain.ValidateOrderRequest{Order: order.Snapshot()})
	case domain.ActionSendAllocationRequest:
		return m.publish(ctx, order, events.AllocateOrderRequestTopic, domain.AllocateOrderRequest{Order: order.Snapshot()})
	case domain.ActionSendAllocationFailure:
		return m.publish(ctx, order, events.AllocationFailureTopic, domain.AllocationFailureEvent{OrderID: order.ID})
	case domain.ActionSendDeallocationRequest:
		return m.publish(ctx, order, events.DeallocateOrderRequestTopic, domain.DeallocateOrderRequest{Order: order.Snapshot()})
	}
	return errors.Errorf("order %s: action %s has no message", order.ID, action)
}

func (m *OrderManager) compensatePartialAllocation(ctx context.Context, order *domain.Order) {
	m.recordCompensation(ctx, "partial_allocation")

	arr := zerolog.Arr()
	for _, line := range order.UnderAllocated() {
		arr = arr.Dict(zerolog.Dict().
			Str("line_id", line.ID.String()).
			Str("upc", line.UPC).
			Int("ordered", line.OrderQuantity).
			Int("allocated", line.QuantityAllocated))
	}

	m.logger.Warn().
		Str("order_id", order.ID.String()).
		Array("under_allocated", arr).
		Msg("order partially allocated, awaiting inventory")
}

func (m *OrderManager) recordCompensation(ctx context.Context, kind string) {
	telemetry.RecordCounter(ctx, telemetry.OrderCompensationsMetric, "Saga compensations executed", 1,
		attribute.String("kind", kind),
	)
}

func (m *OrderManager) publish(ctx context.Context, order *domain.Order, topic events.Topic, payload interface{}) error {
	event := events.NewEvent(order.ID, topic, payload).WithCorrelationID(order.ID)

	if err := m.publisher.Publish(ctx, event); err != nil {
		return errors.Wrapf(err, "failed to publish %s for order %s", topic, order.ID)
	}
	return nil
}
