package handlers

import (
	"context"

	"github.com/draftea/order-saga/order-service/application"
	"github.com/draftea/order-saga/order-service/domain"
	"github.com/draftea/order-saga/shared/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// OrderEventHandlers feeds collaborator results into the order saga
type OrderEventHandlers struct {
	manager *application.OrderManager
	logger  zerolog.Logger
}

// NewOrderEventHandlers creates new order event handlers
func NewOrderEventHandlers(manager *application.OrderManager, logger zerolog.Logger) *OrderEventHandlers {
	return &OrderEventHandlers{
		manager: manager,
		logger:  logger.With().Str("component", "order_event_handlers").Logger(),
	}
}

// Topics lists the channels these handlers consume
func (h *OrderEventHandlers) Topics() []events.Topic {
	return []events.Topic{
		events.ValidateOrderResultTopic,
		events.AllocateOrderResultTopic,
		events.OrderPickedUpTopic,
	}
}

// Handle implements the events.EventHandler interface
func (h *OrderEventHandlers) Handle(ctx context.Context, event *events.Event) error {
	switch event.Topic {
	case events.ValidateOrderResultTopic:
		return h.HandleValidationResult(ctx, event)
	case events.AllocateOrderResultTopic:
		return h.HandleAllocationResult(ctx, event)
	case events.OrderPickedUpTopic:
		return h.HandleOrderPickedUp(ctx, event)
	default:
		return nil
	}
}

// HandlerID returns the unique identifier for this event handler
func (h *OrderEventHandlers) HandlerID() string {
	return "order-service-event-handler"
}

// HandleValidationResult handles validate-result messages
func (h *OrderEventHandlers) HandleValidationResult(ctx context.Context, event *events.Event) error {
	var data domain.ValidateOrderResult
	if err := event.UnmarshalPayload(&data); err != nil || data.OrderID.IsZero() {
		h.dropMalformed(event, err)
		return nil
	}

	err := h.manager.ProcessValidationResult(ctx, data.OrderID, data.IsValid)
	return h.result(event, err, "failed to process validation result")
}

// HandleAllocationResult handles allocate-result messages
func (h *OrderEventHandlers) HandleAllocationResult(ctx context.Context, event *events.Event) error {
	var data domain.AllocateOrderResult
	if err := event.UnmarshalPayload(&data); err != nil || data.Order.ID.IsZero() {
		h.dropMalformed(event, err)
		return nil
	}

	err := h.manager.ProcessAllocationResult(ctx, &data)
	return h.result(event, err, "failed to process allocation result")
}

// HandleOrderPickedUp handles order-picked-up messages
func (h *OrderEventHandlers) HandleOrderPickedUp(ctx context.Context, event *events.Event) error {
	var data domain.OrderPickedUp
	if err := event.UnmarshalPayload(&data); err != nil || data.OrderID.IsZero() {
		h.dropMalformed(event, err)
		return nil
	}

	err := h.manager.PickUp(ctx, data.OrderID)
	return h.result(event, err, "failed to process pickup")
}

// result drops results for unknown orders and hands every other failure
// back to the transport for redelivery
func (h *OrderEventHandlers) result(event *events.Event, err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrOrderNotFound) {
		h.logger.Warn().
			Str("event_id", event.ID.String()).
			Str("topic", event.Topic.String()).
			Str("order_id", event.AggregateID.String()).
			Msg("result for unknown order dropped")
		return nil
	}
	return errors.Wrap(err, msg)
}

func (h *OrderEventHandlers) dropMalformed(event *events.Event, err error) {
	h.logger.Error().
		Err(err).
		Str("event_id", event.ID.String()).
		Str("topic", event.Topic.String()).
		Msg("malformed message dropped")
}
