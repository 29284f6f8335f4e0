// Package simulators provides stand-ins for the validation and allocation
// services. Their answers are driven by the customer reference of the order
// so local runs and tests can steer every saga branch.
package simulators

import (
	"context"
	"sync"

	"github.com/draftea/order-saga/order-service/domain"
	"github.com/draftea/order-saga/shared/events"
	"github.com/draftea/order-saga/shared/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Customer references recognised by the simulators
const (
	CustomerRefValidationFailed  = "validation-failed"
	CustomerRefDontValidate      = "dont-validate"
	CustomerRefAllocationFailed  = "allocation-failed"
	CustomerRefAllocationPartial = "allocation-partial"
	CustomerRefDontAllocate      = "dont-allocate"
)

// ValidationService answers validate-request messages
type ValidationService struct {
	publisher events.Publisher
	logger    zerolog.Logger
}

func NewValidationService(publisher events.Publisher, logger zerolog.Logger) *ValidationService {
	return &ValidationService{
		publisher: publisher,
		logger:    logger.With().Str("component", "validation_simulator").Logger(),
	}
}

func (s *ValidationService) Handle(ctx context.Context, event *events.Event) error {
	if event.Topic != events.ValidateOrderRequestTopic {
		return nil
	}

	var req domain.ValidateOrderRequest
	if err := event.UnmarshalPayload(&req); err != nil {
		return errors.Wrap(err, "failed to parse validate request")
	}

	if req.Order.CustomerRef == CustomerRefDontValidate {
		s.logger.Debug().Str("order_id", req.Order.ID.String()).Msg("validation reply suppressed")
		return nil
	}

	result := domain.ValidateOrderResult{
		OrderID: req.Order.ID,
		IsValid: req.Order.CustomerRef != CustomerRefValidationFailed,
	}

	s.logger.Debug().Str("order_id", req.Order.ID.String()).Bool("is_valid", result.IsValid).Msg("order validated")
	return s.publisher.Publish(ctx, reply(event, req.Order.ID, events.ValidateOrderResultTopic, result))
}

// AllocationService answers allocate-request messages and records
// deallocation requests
type AllocationService struct {
	publisher events.Publisher
	logger    zerolog.Logger

	mu          sync.Mutex
	deallocated []models.ID
}

func NewAllocationService(publisher events.Publisher, logger zerolog.Logger) *AllocationService {
	return &AllocationService{
		publisher: publisher,
		logger:    logger.With().Str("component", "allocation_simulator").Logger(),
	}
}

func (s *AllocationService) Handle(ctx context.Context, event *events.Event) error {
	switch event.Topic {
	case events.AllocateOrderRequestTopic:
		return s.allocate(ctx, event)
	case events.DeallocateOrderRequestTopic:
		return s.deallocate(event)
	default:
		return nil
	}
}

func (s *AllocationService) allocate(ctx context.Context, event *events.Event) error {
	var req domain.AllocateOrderRequest
	if err := event.UnmarshalPayload(&req); err != nil {
		return errors.Wrap(err, "failed to parse allocate request")
	}

	order := req.Order
	if order.CustomerRef == CustomerRefDontAllocate {
		s.logger.Debug().Str("order_id", order.ID.String()).Msg("allocation reply suppressed")
		return nil
	}

	partial := order.CustomerRef == CustomerRefAllocationPartial
	lines := make([]domain.OrderLine, len(order.Lines))
	for i, line := range order.Lines {
		line.QuantityAllocated = line.OrderQuantity
		if partial && line.QuantityAllocated > 0 {
			line.QuantityAllocated--
		}
		lines[i] = line
	}
	order.Lines = lines

	result := domain.AllocateOrderResult{
		Order:            order,
		AllocationError:  order.CustomerRef == CustomerRefAllocationFailed,
		PendingInventory: partial,
	}

	s.logger.Debug().
		Str("order_id", order.ID.String()).
		Bool("allocation_error", result.AllocationError).
		Bool("pending_inventory", result.PendingInventory).
		Msg("order allocated")
	return s.publisher.Publish(ctx, reply(event, order.ID, events.AllocateOrderResultTopic, result))
}

func (s *AllocationService) deallocate(event *events.Event) error {
	var req domain.DeallocateOrderRequest
	if err := event.UnmarshalPayload(&req); err != nil {
		return errors.Wrap(err, "failed to parse deallocate request")
	}

	s.mu.Lock()
	s.deallocated = append(s.deallocated, req.Order.ID)
	s.mu.Unlock()

	s.logger.Info().Str("order_id", req.Order.ID.String()).Msg("inventory released")
	return nil
}

// Deallocated returns the order ids whose inventory was released
func (s *AllocationService) Deallocated() []models.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ID(nil), s.deallocated...)
}

func reply(request *events.Event, orderID models.ID, topic events.Topic, payload interface{}) *events.Event {
	correlationID := request.CorrelationID
	if correlationID.IsZero() {
		correlationID = orderID
	}
	return events.NewEvent(orderID, topic, payload).WithCorrelationID(correlationID)
}

// Register subscribes both simulators to their request channels
func Register(ctx context.Context, subscriber events.Subscriber, validation *ValidationService, allocation *AllocationService) error {
	subscriptions := []struct {
		topic   events.Topic
		handler events.EventHandler
	}{
		{events.ValidateOrderRequestTopic, validation},
		{events.AllocateOrderRequestTopic, allocation},
		{events.DeallocateOrderRequestTopic, allocation},
	}

	for _, sub := range subscriptions {
		if err := subscriber.Subscribe(ctx, sub.topic, sub.handler); err != nil {
			return errors.Wrapf(err, "failed to subscribe simulator to %s", sub.topic)
		}
	}
	return nil
}
