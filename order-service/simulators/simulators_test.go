package simulators

import (
	"context"
	"testing"

	"github.com/draftea/order-saga/order-service/domain"
	"github.com/draftea/order-saga/order-service/mocks"
	"github.com/draftea/order-saga/shared/events"
	"github.com/draftea/order-saga/shared/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func snapshot(customerRef string, quantities ...int) domain.OrderSnapshot {
	lines := make([]domain.OrderLine, len(quantities))
	for i, q := range quantities {
		lines[i] = domain.OrderLine{ID: models.GenerateUUID(), UPC: "0631234200036", OrderQuantity: q}
	}
	return domain.OrderSnapshot{
		ID:          models.GenerateUUID(),
		CustomerRef: customerRef,
		Status:      domain.OrderStatusAllocationPending,
		Lines:       lines,
	}
}

func capture(t *testing.T, publisher *mocks.MockPublisher) *[]*events.Event {
	t.Helper()
	published := &[]*events.Event{}
	publisher.EXPECT().Publish(mock.Anything, mock.Anything).
		Run(func(_ context.Context, evts ...*events.Event) {
			*published = append(*published, evts...)
		}).
		Return(nil).
		Maybe()
	return published
}

func TestValidationService_Handle(t *testing.T) {
	tests := []struct {
		name        string
		customerRef string
		wantReply   bool
		wantValid   bool
	}{
		{name: "valid order", customerRef: "c-1", wantReply: true, wantValid: true},
		{name: "invalid order", customerRef: CustomerRefValidationFailed, wantReply: true, wantValid: false},
		{name: "suppressed reply", customerRef: CustomerRefDontValidate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publisher := mocks.NewMockPublisher(t)
			published := capture(t, publisher)
			service := NewValidationService(publisher, zerolog.Nop())

			order := snapshot(tt.customerRef, 3)
			request := events.NewEvent(order.ID, events.ValidateOrderRequestTopic, domain.ValidateOrderRequest{Order: order}).
				WithCorrelationID(order.ID)

			require.NoError(t, service.Handle(context.Background(), request))

			if !tt.wantReply {
				assert.Empty(t, *published)
				return
			}
			require.Len(t, *published, 1)
			reply := (*published)[0]
			assert.Equal(t, events.ValidateOrderResultTopic, reply.Topic)
			assert.Equal(t, order.ID, reply.CorrelationID)

			var result domain.ValidateOrderResult
			require.NoError(t, reply.UnmarshalPayload(&result))
			assert.Equal(t, order.ID, result.OrderID)
			assert.Equal(t, tt.wantValid, result.IsValid)
		})
	}
}

func TestAllocationService_Allocate(t *testing.T) {
	tests := []struct {
		name          string
		customerRef   string
		quantities    []int
		wantReply     bool
		wantError     bool
		wantPending   bool
		wantAllocated []int
	}{
		{name: "full allocation", customerRef: "c-1", quantities: []int{3, 1}, wantReply: true, wantAllocated: []int{3, 1}},
		{name: "failed allocation", customerRef: CustomerRefAllocationFailed, quantities: []int{3}, wantReply: true, wantError: true, wantAllocated: []int{3}},
		{name: "partial allocation", customerRef: CustomerRefAllocationPartial, quantities: []int{3, 1}, wantReply: true, wantPending: true, wantAllocated: []int{2, 0}},
		{name: "suppressed reply", customerRef: CustomerRefDontAllocate, quantities: []int{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publisher := mocks.NewMockPublisher(t)
			published := capture(t, publisher)
			service := NewAllocationService(publisher, zerolog.Nop())

			order := snapshot(tt.customerRef, tt.quantities...)
			request := events.NewEvent(order.ID, events.AllocateOrderRequestTopic, domain.AllocateOrderRequest{Order: order})

			require.NoError(t, service.Handle(context.Background(), request))

			if !tt.wantReply {
				assert.Empty(t, *published)
				return
			}
			require.Len(t, *published, 1)
			reply := (*published)[0]
			assert.Equal(t, events.AllocateOrderResultTopic, reply.Topic)
			assert.Equal(t, order.ID, reply.CorrelationID)

			var result domain.AllocateOrderResult
			require.NoError(t, reply.UnmarshalPayload(&result))
			assert.Equal(t, tt.wantError, result.AllocationError)
			assert.Equal(t, tt.wantPending, result.PendingInventory)
			require.Len(t, result.Order.Lines, len(tt.wantAllocated))
			for i, want := range tt.wantAllocated {
				assert.Equal(t, want, result.Order.Lines[i].QuantityAllocated)
			}
			assert.Zero(t, order.Lines[0].QuantityAllocated)
		})
	}
}

func TestAllocationService_Deallocate(t *testing.T) {
	service := NewAllocationService(mocks.NewMockPublisher(t), zerolog.Nop())
	order := snapshot("c-1", 2)

	request := events.NewEvent(order.ID, events.DeallocateOrderRequestTopic, domain.DeallocateOrderRequest{Order: order})
	require.NoError(t, service.Handle(context.Background(), request))

	assert.Equal(t, []models.ID{order.ID}, service.Deallocated())
}

func TestAllocationService_MalformedRequest(t *testing.T) {
	service := NewAllocationService(mocks.NewMockPublisher(t), zerolog.Nop())
	request := events.NewEvent(models.GenerateUUID(), events.AllocateOrderRequestTopic, nil)

	assert.Error(t, service.Handle(context.Background(), request))
}
