package application

import (
	"context"

	"github.com/draftea/order-saga/order-service/domain"
	"github.com/draftea/order-saga/shared/models"
	"github.com/pkg/errors"
)

// PickUp marks an allocated order as picked up. Unknown ids are logged
// and ignored since pickup notices can arrive before the order is visible.
func (m *OrderManager) PickUp(ctx context.Context, orderID models.ID) (err error) {
	ctx, span := m.startSpan(ctx, "PickUp", orderID)
	defer func() { endSpan(span, err) }()

	_, err = m.sendEvent(ctx, orderID, domain.OrderEventPickedUp, nil)
	if errors.Is(err, domain.ErrOrderNotFound) {
		m.logger.Warn().Str("order_id", orderID.String()).Msg("pickup for unknown order ignored")
		return nil
	}
	return err
}

// CancelOrder cancels the order. Cancelling an order whose status has no
// cancel edge is a logged no-op; an allocated order gets a deallocation
// request.
func (m *OrderManager) CancelOrder(ctx context.Context, orderID models.ID) (order *domain.Order, err error) {
	ctx, span := m.startSpan(ctx, "CancelOrder", orderID)
	defer func() { endSpan(span, err) }()

	return m.sendEvent(ctx, orderID, domain.OrderEventCancelOrder, nil)
}
