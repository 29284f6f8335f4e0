package domain

// Transition is one edge of the order state machine
type Transition struct {
	From   OrderStatus
	Event  OrderEvent
	To     OrderStatus
	Action Action
}

type transitionKey struct {
	from  OrderStatus
	event OrderEvent
}

var transitions = buildTransitionTable([]Transition{
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
})

func buildTransitionTable(edges []Transition) map[transitionKey]Transition {
	table := make(map[transitionKey]Transition, len(edges))
	for _, t := range edges {
		table[transitionKey{t.From, t.Event}] = t
	}
	return table
}

// NextTransition looks up the edge for (from, event). Pairs without an
// edge yield a RejectedTransitionError.
func NextTransition(from OrderStatus, event OrderEvent) (Transition, error) {
	t, ok := transitions[transitionKey{from, event}]
	if !ok {
		return Transition{}, &RejectedTransitionError{Status: from, Event: event}
	}
	return t, nil
}

// Transitions returns every edge of the state machine
func Transitions() []Transition {
	out := make([]Transition, 0, len(transitions))
	for _, t := range transitions {
		out = append(out, t)
	}
	return out
}
