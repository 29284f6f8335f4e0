package domain

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextTransition_Table(t *testing.T) {
	tests := []struct {
		from       OrderStatus
		event      OrderEvent
		wantTo     OrderStatus
		wantAction Action
	}{
		{OrderStatusNew, OrderEventValidateOrder, OrderStatusValidationPending, ActionSendValidationRequest},
		{OrderStatusValidationPending, OrderEventValidationPassed, OrderStatusValidated, ActionRaiseAllocateOrder},
		{OrderStatusValidationPending, OrderEventValidationFailed, OrderStatusValidationException, ActionNone},
		{OrderStatusValidationPending, OrderEventCancelOrder, OrderStatusCancelled, ActionNone},
		{OrderStatusValidated, OrderEventAllocateOrder, OrderStatusAllocationPending, ActionSendAllocationRequest},
		{OrderStatusAllocationPending, OrderEventAllocationSuccess, OrderStatusAllocated, ActionAllocateFully},
		{OrderStatusAllocationPending, OrderEventAllocationNoInventory, OrderStatusPendingInventory, ActionAllocatePartially},
		{OrderStatusAllocationPending, OrderEventAllocationFailed, OrderStatusAllocationException, ActionSendAllocationFailure},
		{OrderStatusAllocationPending, OrderEventCancelOrder, OrderStatusCancelled, ActionNone},
		{OrderStatusAllocated, OrderEventPickedUp, OrderStatusPickedUp, ActionNone},
		{OrderStatusAllocated, OrderEventCancelOrder, OrderStatusCancelled, ActionSendDeallocationRequest},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			tr, err := NextTransition(tt.from, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.from, tr.From)
			assert.Equal(t, tt.event, tr.Event)
			assert.Equal(t, tt.wantTo, tr.To)
			assert.Equal(t, tt.wantAction, tr.Action)
		})
	}

	assert.Len(t, Transitions(), len(tests))
}

func TestNextTransition_RejectsEveryUndefinedPair(t *testing.T) {
	defined := make(map[transitionKey]bool)
	for _, tr := range Transitions() {
		defined[transitionKey{tr.From, tr.Event}] = true
	}

	for _, status := range AllStatuses() {
		for _, event := range AllEvents() {
			if defined[transitionKey{status, event}] {
				continue
			}

			_, err := NextTransition(status, event)
			assert.ErrorIs(t, err, ErrRejectedTransition, "%s/%s", status, event)

			var rejected *RejectedTransitionError
			require.True(t, errors.As(err, &rejected))
			assert.Equal(t, status, rejected.Status)
			assert.Equal(t, event, rejected.Event)
		}
	}
}

func TestTerminalStatusesHaveNoOutgoingEdges(t *testing.T) {
	for _, tr := range Transitions() {
		assert.False(t, tr.From.IsTerminal(), "terminal %s has edge on %s", tr.From, tr.Event)
		assert.True(t, tr.To.IsValid())
	}

	for _, status := range AllStatuses() {
		if !status.IsTerminal() {
			continue
		}
		for _, event := range AllEvents() {
			_, err := NextTransition(status, event)
			assert.Error(t, err)
		}
	}
}

func TestDeliveryStatusesAreUnreachable(t *testing.T) {
	for _, tr := range Transitions() {
		assert.NotEqual(t, OrderStatusDelivered, tr.To)
		assert.NotEqual(t, OrderStatusDeliveryException, tr.To)
	}
}

func TestOrderStatus_IsValid(t *testing.T) {
	assert.True(t, OrderStatusAllocated.IsValid())
	assert.False(t, OrderStatus("SHIPPED").IsValid())
	assert.Len(t, AllStatuses(), 12)
	assert.Len(t, AllEvents(), 9)
}
