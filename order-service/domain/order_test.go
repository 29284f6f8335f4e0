package domain

import (
	"testing"

	"github.com/draftea/order-saga/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(t *testing.T, quantities ...int) *Order {
	t.Helper()

	lines := make([]OrderLine, len(quantities))
	for i, q := range quantities {
		lines[i] = OrderLine{UPC: "0631234200036", OrderQuantity: q}
	}

	order, err := NewOrder("customer-1", lines)
	require.NoError(t, err)
	return order
}

func TestNewOrder(t *testing.T) {
	tests := []struct {
		name      string
		lines     []OrderLine
		wantError string
	}{
		{
			name:  "valid order",
			lines: []OrderLine{{UPC: "a", OrderQuantity: 3, QuantityAllocated: 2}, {ID: "line-2", UPC: "b", OrderQuantity: 1}},
		},
		{
			name:      "no lines",
			lines:     nil,
			wantError: "order must have at least one line",
		},
		{
			name:      "non positive quantity",
			lines:     []OrderLine{{UPC: "a", OrderQuantity: 0}},
			wantError: "ordered quantity must be positive",
		},
		{
			name:      "missing product reference",
			lines:     []OrderLine{{OrderQuantity: 1}},
			wantError: "product reference is required",
		},
		{
			name:      "duplicate line ids",
			lines:     []OrderLine{{ID: "l", UPC: "a", OrderQuantity: 1}, {ID: "l", UPC: "b", OrderQuantity: 1}},
			wantError: "duplicate line id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := NewOrder("customer-1", tt.lines)

			if tt.wantError != "" {
				assert.ErrorIs(t, err, ErrInvalidOrder)
				assert.Contains(t, err.Error(), tt.wantError)
				assert.Nil(t, order)
				return
			}

			require.NoError(t, err)
			assert.False(t, order.ID.IsZero())
			assert.Equal(t, OrderStatusNew, order.Status())
			assert.Equal(t, 1, order.Version.Value)
			for _, line := range order.Lines() {
				assert.False(t, line.ID.IsZero())
				assert.Zero(t, line.QuantityAllocated)
			}
			assert.Equal(t, models.ID("line-2"), order.Lines()[1].ID)
		})
	}
}

func TestOrder_FireValidEdges(t *testing.T) {
	order := newTestOrder(t, 3)

	path := []OrderEvent{
		OrderEventValidateOrder,
		OrderEventValidationPassed,
		OrderEventAllocateOrder,
		OrderEventAllocationSuccess,
		OrderEventPickedUp,
	}

	for i, event := range path {
		before := order.Status()
		tr, err := order.Fire(event)
		require.NoError(t, err)
		assert.Equal(t, before, tr.From)
		assert.Equal(t, tr.To, order.Status())
		assert.Equal(t, i+2, order.Version.Value)
	}

	assert.Equal(t, OrderStatusPickedUp, order.Status())
}

func TestOrder_FireRejectedLeavesOrderUntouched(t *testing.T) {
	for _, status := range AllStatuses() {
		for _, event := range AllEvents() {
			if _, err := NextTransition(status, event); err == nil {
				continue
			}

			order, err := RehydrateOrder(models.GenerateUUID(), "c", status,
				[]OrderLine{{ID: "l1", UPC: "u", OrderQuantity: 2}}, models.NewTimestamps(), models.Version{Value: 7})
			require.NoError(t, err)
			before := order.Clone()

			_, err = order.Fire(event)
			assert.ErrorIs(t, err, ErrRejectedTransition)
			assert.Equal(t, before, order, "%s/%s", status, event)
		}
	}
}

func TestOrder_ApplyAllocation(t *testing.T) {
	t.Run("full allocation sets every line to ordered", func(t *testing.T) {
		order := newTestOrder(t, 3, 5)
		order.ApplyAllocation(ActionAllocateFully, nil)

		for _, line := range order.Lines() {
			assert.Equal(t, line.OrderQuantity, line.QuantityAllocated)
		}
		assert.Empty(t, order.UnderAllocated())
	})

	t.Run("partial allocation merges by line id", func(t *testing.T) {
		order := newTestOrder(t, 3, 5, 2)
		lines := order.Lines()

		adjustments := order.ApplyAllocation(ActionAllocatePartially, []OrderLine{
			{ID: lines[0].ID, QuantityAllocated: 1},
			{ID: lines[1].ID, QuantityAllocated: -4},
			{ID: "unknown-line", QuantityAllocated: 9},
			{ID: lines[2].ID, QuantityAllocated: 10},
		})

		got := order.Lines()
		assert.Equal(t, 1, got[0].QuantityAllocated)
		assert.Equal(t, 0, got[1].QuantityAllocated, "negative values are ignored")
		assert.Equal(t, 2, got[2].QuantityAllocated, "capped at ordered quantity")
		assert.Len(t, got, 3)
		assert.Len(t, order.UnderAllocated(), 2)

		assert.Equal(t, []AllocationAdjustment{
			{LineID: lines[1].ID, Reported: -4, Applied: 0},
			{LineID: lines[2].ID, Reported: 10, Applied: 2},
		}, adjustments)
	})

	t.Run("in range quantities need no adjustment", func(t *testing.T) {
		order := newTestOrder(t, 3)
		lines := order.Lines()

		assert.Empty(t, order.ApplyAllocation(ActionAllocatePartially, []OrderLine{{ID: lines[0].ID, QuantityAllocated: 3}}))
		assert.Empty(t, order.ApplyAllocation(ActionAllocateFully, []OrderLine{{ID: lines[0].ID, QuantityAllocated: 7}}))
	})

	t.Run("lines missing from the report keep their value", func(t *testing.T) {
		order := newTestOrder(t, 3, 5)
		lines := order.Lines()
		order.ApplyAllocation(ActionAllocatePartially, []OrderLine{{ID: lines[1].ID, QuantityAllocated: 4}})
		order.ApplyAllocation(ActionAllocatePartially, []OrderLine{{ID: lines[0].ID, QuantityAllocated: 2}})

		got := order.Lines()
		assert.Equal(t, 2, got[0].QuantityAllocated)
		assert.Equal(t, 4, got[1].QuantityAllocated)
	})
}

func TestOrder_LinesAreCopied(t *testing.T) {
	order := newTestOrder(t, 3)

	lines := order.Lines()
	lines[0].QuantityAllocated = 3

	assert.Zero(t, order.Lines()[0].QuantityAllocated)

	snapshot := order.Snapshot()
	snapshot.Lines[0].OrderQuantity = 99
	assert.Equal(t, 3, order.Lines()[0].OrderQuantity)
	assert.Equal(t, OrderStatusNew, snapshot.Status)
}

func TestRehydrateOrder_UnknownStatus(t *testing.T) {
	_, err := RehydrateOrder(models.GenerateUUID(), "c", "SHIPPED", nil, models.NewTimestamps(), models.NewVersion())
	assert.Error(t, err)
}

func TestOrder_Outbox(t *testing.T) {
	t.Run("publishing transitions are queued", func(t *testing.T) {
		order := newTestOrder(t, 3)

		_, err := order.Fire(OrderEventValidateOrder)
		require.NoError(t, err)
		assert.Equal(t, []Action{ActionSendValidationRequest}, order.Outbox())

		order.ClearOutbox()
		_, err = order.Fire(OrderEventValidationPassed)
		require.NoError(t, err)
		assert.Empty(t, order.Outbox(), "raising ALLOCATE_ORDER sends nothing")
	})

	t.Run("requests of a left status are dropped", func(t *testing.T) {
		order, err := RehydrateOrder(models.GenerateUUID(), "c", OrderStatusAllocationPending,
			[]OrderLine{{ID: "l1", UPC: "u", OrderQuantity: 2}}, models.NewTimestamps(), models.Version{Value: 5},
			ActionSendAllocationRequest)
		require.NoError(t, err)

		_, err = order.Fire(OrderEventCancelOrder)
		require.NoError(t, err)
		assert.Empty(t, order.Outbox())
	})

	t.Run("notifications survive later transitions", func(t *testing.T) {
		order, err := RehydrateOrder(models.GenerateUUID(), "c", OrderStatusAllocated,
			[]OrderLine{{ID: "l1", UPC: "u", OrderQuantity: 2}}, models.NewTimestamps(), models.Version{Value: 5})
		require.NoError(t, err)

		_, err = order.Fire(OrderEventCancelOrder)
		require.NoError(t, err)
		assert.Equal(t, []Action{ActionSendDeallocationRequest}, order.Outbox())

		clone := order.Clone()
		clone.ClearOutbox()
		assert.Len(t, order.Outbox(), 1, "clones do not share the outbox")
	})

	t.Run("only publishing actions can be rehydrated", func(t *testing.T) {
		_, err := RehydrateOrder(models.GenerateUUID(), "c", OrderStatusValidated, nil,
			models.NewTimestamps(), models.NewVersion(), ActionRaiseAllocateOrder)
		assert.Error(t, err)
	})
}
