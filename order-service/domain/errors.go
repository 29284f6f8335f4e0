package domain

import (
	"fmt"

	"github.com/draftea/order-saga/shared/models"
	"github.com/pkg/errors"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrVersionConflict    = errors.New("order version conflict")
	ErrConcurrency        = errors.New("order concurrently modified")
	ErrPersistence        = errors.New("order persistence failure")
	ErrRejectedTransition = errors.New("transition rejected")
	ErrInvalidOrder       = errors.New("invalid order")
)

// NotFoundError reports an unknown order id
type NotFoundError struct {
	OrderID models.ID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("order %s not found", e.OrderID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrOrderNotFound
}

// ConcurrencyError is returned once version conflicts exhausted every retry attempt
type ConcurrencyError struct {
	OrderID  models.ID
	Event    OrderEvent
	Attempts int
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("order %s: %s not applied after %d attempts: concurrent modification", e.OrderID, e.Event, e.Attempts)
}

func (e *ConcurrencyError) Is(target error) bool {
	return target == ErrConcurrency
}

// PersistenceError wraps a storage failure
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// RejectedTransitionError means (Status, Event) has no edge. It is expected
// under duplicate or late delivery and never crosses the orchestrator.
type RejectedTransitionError struct {
	OrderID models.ID
	Status  OrderStatus
	Event   OrderEvent
}

func (e *RejectedTransitionError) Error() string {
	if e.OrderID.IsZero() {
		return fmt.Sprintf("no transition from %s on %s", e.Status, e.Event)
	}
	return fmt.Sprintf("order %s: no transition from %s on %s", e.OrderID, e.Status, e.Event)
}

func (e *RejectedTransitionError) Is(target error) bool {
	return target == ErrRejectedTransition
}

// ValidationError describes why a submitted order is malformed
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid order: " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidOrder
}
