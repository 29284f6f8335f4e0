package domain

import (
	"context"

	"github.com/draftea/order-saga/shared/models"
)

// OrderRepository is the Order Store port.
//
// FindByID returns a *NotFoundError for unknown ids. Save writes the order,
// outbox included, only if the stored version still equals expectedVersion
// and otherwise returns ErrVersionConflict. ClearOutbox empties the outbox
// of the order stored at version without changing the version.
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id models.ID) (*Order, error)
	FindByCustomerRef(ctx context.Context, customerRef string) ([]*Order, error)
	Save(ctx context.Context, order *Order, expectedVersion models.Version) error
	ClearOutbox(ctx context.Context, id models.ID, version models.Version) error
}
