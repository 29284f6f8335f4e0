package handlers

import (
	"context"
	"testing"

	"github.com/draftea/order-saga/order-service/application"
	"github.com/draftea/order-saga/order-service/domain"
	"github.com/draftea/order-saga/order-service/infrastructure"
	"github.com/draftea/order-saga/order-service/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, repo domain.OrderRepository) *application.OrderManager {
	t.Helper()
	publisher := mocks.NewMockPublisher(t)
	publisher.EXPECT().Publish(mock.Anything, mock.Anything).Return(nil).Maybe()
	return application.NewOrderManager(repo, publisher, zerolog.Nop())
}

func submitOrder(t *testing.T, manager *application.OrderManager, customerRef string, quantity int) *domain.Order {
	t.Helper()
	order, err := manager.NewOrder(context.Background(), &application.NewOrderCommand{
		CustomerRef: customerRef,
		Lines:       []application.NewOrderLine{{UPC: "0631234200036", OrderQuantity: quantity}},
	})
	require.NoError(t, err)
	return order
}

func newMemoryRepository() *infrastructure.MemoryOrderRepository {
	return infrastructure.NewMemoryOrderRepository()
}
