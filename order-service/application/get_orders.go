package application

import (
	"context"

	"github.com/draftea/order-saga/order-service/domain"
	"github.com/draftea/order-saga/shared/models"
	"github.com/pkg/errors"
)

// GetOrder returns the current state of an order
func (m *OrderManager) GetOrder(ctx context.Context, orderID models.ID) (*domain.Order, error) {
	order, err := m.repository.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, err
		}
		return nil, &domain.PersistenceError{Op: "load order " + orderID.String(), Err: err}
	}
	return order, nil
}

// ListOrders returns the orders of a customer
func (m *OrderManager) ListOrders(ctx context.Context, customerRef string) ([]*domain.Order, error) {
	if customerRef == "" {
		return nil, &domain.ValidationError{Reason: "customer reference is required"}
	}

	orders, err := m.repository.FindByCustomerRef(ctx, customerRef)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list orders", Err: err}
	}
	return orders, nil
}
