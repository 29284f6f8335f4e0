package domain

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusNew                 OrderStatus = "NEW"
	OrderStatusValidationPending   OrderStatus = "VALIDATION_PENDING"
	OrderStatusValidated           OrderStatus = "VALIDATED"
	OrderStatusValidationException OrderStatus = "VALIDATION_EXCEPTION"
	OrderStatusAllocationPending   OrderStatus = "ALLOCATION_PENDING"
	OrderStatusAllocated           OrderStatus = "ALLOCATED"
	OrderStatusAllocationException OrderStatus = "ALLOCATION_EXCEPTION"
	OrderStatusPendingInventory    OrderStatus = "PENDING_INVENTORY"
	OrderStatusPickedUp            OrderStatus = "PICKED_UP"
	// DELIVERED and DELIVERY_EXCEPTION are declared for downstream
	// delivery tracking; no transition targets them yet.
	OrderStatusDelivered         OrderStatus = "DELIVERED"
	OrderStatusDeliveryException OrderStatus = "DELIVERY_EXCEPTION"
	OrderStatusCancelled         OrderStatus = "CANCELLED"
)

var allStatuses = []OrderStatus{
	OrderStatusNew,
	OrderStatusValidationPending,
	OrderStatusValidated,
	OrderStatusValidationException,
	OrderStatusAllocationPending,
	OrderStatusAllocated,
	OrderStatusAllocationException,
	OrderStatusPendingInventory,
	OrderStatusPickedUp,
	OrderStatusDelivered,
	OrderStatusDeliveryException,
	OrderStatusCancelled,
}

// AllStatuses returns every declared status
func AllStatuses() []OrderStatus {
	return append([]OrderStatus(nil), allStatuses...)
}

func (s OrderStatus) IsValid() bool {
	for _, status := range allStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusPickedUp, OrderStatusDelivered, OrderStatusDeliveryException,
		OrderStatusValidationException, OrderStatusAllocationException, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}

// OrderEvent drives the state machine
type OrderEvent string

const (
	OrderEventValidateOrder         OrderEvent = "VALIDATE_ORDER"
	OrderEventValidationPassed      OrderEvent = "VALIDATION_PASSED"
	OrderEventValidationFailed      OrderEvent = "VALIDATION_FAILED"
	OrderEventAllocateOrder         OrderEvent = "ALLOCATE_ORDER"
	OrderEventAllocationSuccess     OrderEvent = "ALLOCATION_SUCCESS"
	OrderEventAllocationNoInventory OrderEvent = "ALLOCATION_NO_INVENTORY"
	OrderEventAllocationFailed      OrderEvent = "ALLOCATION_FAILED"
	OrderEventPickedUp              OrderEvent = "BEER_ORDER_PICKED_UP"
	OrderEventCancelOrder           OrderEvent = "CANCEL_ORDER"
)

var allEvents = []OrderEvent{
	OrderEventValidateOrder,
	OrderEventValidationPassed,
	OrderEventValidationFailed,
	OrderEventAllocateOrder,
	OrderEventAllocationSuccess,
	OrderEventAllocationNoInventory,
	OrderEventAllocationFailed,
	OrderEventPickedUp,
	OrderEventCancelOrder,
}

// AllEvents returns every declared event
func AllEvents() []OrderEvent {
	return append([]OrderEvent(nil), allEvents...)
}

func (e OrderEvent) String() string {
	return string(e)
}

// Action is the side effect to run once a transition is persisted
type Action string

const (
	ActionNone                    Action = "none"
	ActionSendValidationRequest   Action = "send_validation_request"
	ActionRaiseAllocateOrder      Action = "raise_allocate_order"
	ActionSendAllocationRequest   Action = "send_allocation_request"
	ActionAllocateFully           Action = "allocate_fully"
	ActionAllocatePartially       Action = "allocate_partially"
	ActionSendAllocationFailure   Action = "send_allocation_failure"
	ActionSendDeallocationRequest Action = "send_deallocation_request"
)

// Publishes reports whether the action sends a message to a collaborator.
// Those actions go through the order outbox.
func (a Action) Publishes() bool {
	switch a {
	case ActionSendValidationRequest,
		ActionSendAllocationRequest,
		ActionSendAllocationFailure,
		ActionSendDeallocationRequest:
		return true
	}
	return false
}
