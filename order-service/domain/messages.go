package domain

import (
	"time"

	"github.com/draftea/order-saga/shared/models"
)

// OrderSnapshot is the order as carried in messages and API responses
type OrderSnapshot struct {
	ID          models.ID   `json:"id"`
	CustomerRef string      `json:"customer_ref"`
	Status      OrderStatus `json:"status"`
	Version     int         `json:"version"`
	Lines       []OrderLine `json:"lines"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Messages exchanged with the validation and allocation services

type ValidateOrderRequest struct {
	Order OrderSnapshot `json:"order"`
}

type ValidateOrderResult struct {
	OrderID models.ID `json:"order_id"`
	IsValid bool      `json:"is_valid"`
}

type AllocateOrderRequest struct {
	Order OrderSnapshot `json:"order"`
}

type AllocateOrderResult struct {
	Order            OrderSnapshot `json:"order"`
	AllocationError  bool          `json:"allocation_error"`
	PendingInventory bool          `json:"pending_inventory"`
}

type AllocationFailureEvent struct {
	OrderID models.ID `json:"order_id"`
}

type DeallocateOrderRequest struct {
	Order OrderSnapshot `json:"order"`
}

type OrderPickedUp struct {
	OrderID models.ID `json:"order_id"`
}
