package application

import (
	"context"

	"github.com/draftea/order-saga/order-service/domain"
	"github.com/draftea/order-saga/shared/models"
)

// ProcessValidationResult applies the validation outcome. A passed order is
// moved on to allocation inside the same critical section.
func (m *OrderManager) ProcessValidationResult(ctx context.Context, orderID models.ID, isValid bool) (err error) {
	ctx, span := m.startSpan(ctx, "ProcessValidationResult", orderID)
	defer func() { endSpan(span, err) }()

	event := domain.OrderEventValidationFailed
	if isValid {
		event = domain.OrderEventValidationPassed
	}

	_, err = m.sendEvent(ctx, orderID, event, nil)
	return err
}

// ProcessAllocationResult applies the allocation outcome. An allocation
// error wins over pending inventory. Allocated quantities are written
// together with the new status.
func (m *OrderManager) ProcessAllocationResult(ctx context.Context, result *domain.AllocateOrderResult) (err error) {
	orderID := result.Order.ID

	ctx, span := m.startSpan(ctx, "ProcessAllocationResult", orderID)
	defer func() { endSpan(span, err) }()

	event := allocationEvent(result)
	reported := result.Order.Lines

	_, err = m.sendEvent(ctx, orderID, event, func(order *domain.Order, t domain.Transition) {
		for _, adj := range order.ApplyAllocation(t.Action, reported) {
			m.logger.Warn().
				Str("order_id", orderID.String()).
				Str("line_id", adj.LineID.String()).
				Int("reported", adj.Reported).
				Int("applied", adj.Applied).
				Msg("reported allocation out of range, adjusted")
		}
	})
	return err
}

func allocationEvent(result *domain.AllocateOrderResult) domain.OrderEvent {
	switch {
	case result.AllocationError:
		return domain.OrderEventAllocationFailed
	case result.PendingInventory:
		return domain.OrderEventAllocationNoInventory
	default:
		return domain.OrderEventAllocationSuccess
	}
}
