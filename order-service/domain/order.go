package domain

import (
	"fmt"

	"github.com/draftea/order-saga/shared/models"
	"github.com/pkg/errors"
)

// OrderLine is one product line of an order
type OrderLine struct {
	ID                models.ID `json:"id"`
	UPC               string    `json:"upc"`
	OrderQuantity     int       `json:"order_quantity"`
	QuantityAllocated int       `json:"quantity_allocated"`
}

// AllocationAdjustment is a reported line quantity that was not stored as
// reported because it was negative or above the ordered quantity.
type AllocationAdjustment struct {
	LineID   models.ID
	Reported int
	Applied  int
}

// Order aggregate root. Status and lines change only through Fire and
// ApplyAllocation.
//
// The outbox holds the publishing actions of saved transitions that have
// not been confirmed as sent. It is persisted together with the status.
type Order struct {
	ID          models.ID
	CustomerRef string
	Timestamps  models.Timestamps
	Version     models.Version

	status OrderStatus
	lines  []OrderLine
	outbox []Action
}

// NewOrder validates the submitted lines and creates an order in NEW.
// Missing line ids are generated and allocated quantities start at zero.
func NewOrder(customerRef string, lines []OrderLine) (*Order, error) {
	if len(lines) == 0 {
		return nil, &ValidationError{Reason: "order must have at least one line"}
	}

	seen := make(map[models.ID]struct{}, len(lines))
	owned := make([]OrderLine, len(lines))
	for i, line := range lines {
		if line.UPC == "" {
			return nil, &ValidationError{Reason: fmt.Sprintf("line %d: product reference is required", i)}
		}
		if line.OrderQuantity <= 0 {
			return nil, &ValidationError{Reason: fmt.Sprintf("line %d: ordered quantity must be positive", i)}
		}
		if line.ID.IsZero() {
			line.ID = models.GenerateUUID()
		}
		if _, dup := seen[line.ID]; dup {
			return nil, &ValidationError{Reason: fmt.Sprintf("line %d: duplicate line id %s", i, line.ID)}
		}
		seen[line.ID] = struct{}{}

		line.QuantityAllocated = 0
		owned[i] = line
	}

	return &Order{
		ID:          models.GenerateUUID(),
		CustomerRef: customerRef,
		Timestamps:  models.NewTimestamps(),
		Version:     models.NewVersion(),
		status:      OrderStatusNew,
		lines:       owned,
	}, nil
}

// RehydrateOrder rebuilds an order from storage
func RehydrateOrder(
	id models.ID,
	customerRef string,
	status OrderStatus,
	lines []OrderLine,
	timestamps models.Timestamps,
	version models.Version,
	outbox ...Action,
) (*Order, error) {
	if !status.IsValid() {
		return nil, errors.Errorf("order %s: unknown status %q", id, status)
	}
	for _, action := range outbox {
		if !action.Publishes() {
			return nil, errors.Errorf("order %s: action %q cannot be queued", id, action)
		}
	}

	return &Order{
		ID:          id,
		CustomerRef: customerRef,
		Timestamps:  timestamps,
		Version:     version,
		status:      status,
		lines:       append([]OrderLine(nil), lines...),
		outbox:      append([]Action(nil), outbox...),
	}, nil
}

func (o *Order) Status() OrderStatus {
	return o.status
}

// Lines returns a copy of the order lines
func (o *Order) Lines() []OrderLine {
	return append([]OrderLine(nil), o.lines...)
}

// Outbox returns a copy of the queued publishing actions, oldest first
func (o *Order) Outbox() []Action {
	return append([]Action(nil), o.outbox...)
}

// ClearOutbox drops every queued action
func (o *Order) ClearOutbox() {
	o.outbox = nil
}

// Fire applies event through the state machine and queues the action of
// the transition when it publishes. Requests still queued for the status
// the order leaves are dropped; notifications stay queued. A rejected
// event leaves the order untouched.
func (o *Order) Fire(event OrderEvent) (Transition, error) {
	t, err := NextTransition(o.status, event)
	if err != nil {
		return Transition{}, &RejectedTransitionError{OrderID: o.ID, Status: o.status, Event: event}
	}

	o.status = t.To
	o.Timestamps = o.Timestamps.Update()
	o.Version = o.Version.Update()
	o.outbox = keepNotifications(o.outbox)
	if t.Action.Publishes() {
		o.outbox = append(o.outbox, t.Action)
	}
	return t, nil
}

func keepNotifications(queued []Action) []Action {
	var kept []Action
	for _, action := range queued {
		if action == ActionSendAllocationFailure || action == ActionSendDeallocationRequest {
			kept = append(kept, action)
		}
	}
	return kept
}

// ApplyAllocation records allocated quantities for an allocation outcome.
// A full allocation sets every line to its ordered quantity. A partial one
// copies the reported quantity of each known line and ignores unknown line
// ids. Negative values keep the previous quantity and values above the
// ordered quantity are capped; both are returned as adjustments.
func (o *Order) ApplyAllocation(action Action, reported []OrderLine) []AllocationAdjustment {
	var adjustments []AllocationAdjustment

	switch action {
	case ActionAllocateFully:
		for i := range o.lines {
			o.lines[i].QuantityAllocated = o.lines[i].OrderQuantity
		}
	case ActionAllocatePartially:
		byID := make(map[models.ID]int, len(reported))
		for _, line := range reported {
			byID[line.ID] = line.QuantityAllocated
		}
		for i := range o.lines {
			line := &o.lines[i]
			qty, ok := byID[line.ID]
			if !ok {
				continue
			}

			applied := qty
			switch {
			case qty < 0:
				applied = line.QuantityAllocated
			case qty > line.OrderQuantity:
				applied = line.OrderQuantity
			}
			if applied != qty {
				adjustments = append(adjustments, AllocationAdjustment{LineID: line.ID, Reported: qty, Applied: applied})
			}
			line.QuantityAllocated = applied
		}
	}

	return adjustments
}

// UnderAllocated returns the lines with less allocated than ordered
func (o *Order) UnderAllocated() []OrderLine {
	var out []OrderLine
	for _, line := range o.lines {
		if line.QuantityAllocated < line.OrderQuantity {
			out = append(out, line)
		}
	}
	return out
}

// Snapshot copies the order into its wire representation
func (o *Order) Snapshot() OrderSnapshot {
	return OrderSnapshot{
		ID:          o.ID,
		CustomerRef: o.CustomerRef,
		Status:      o.status,
		Version:     o.Version.Value,
		Lines:       o.Lines(),
		CreatedAt:   o.Timestamps.CreatedAt,
		UpdatedAt:   o.Timestamps.UpdatedAt,
	}
}

// Clone returns a deep copy
func (o *Order) Clone() *Order {
	c := *o
	c.lines = o.Lines()
	c.outbox = o.Outbox()
	return &c
}
