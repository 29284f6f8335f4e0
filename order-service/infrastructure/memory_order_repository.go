package infrastructure

import (
	"context"
	"sort"
	"sync"

	"github.com/draftea/order-saga/order-service/domain"
	"github.com/draftea/order-saga/shared/models"
	"github.com/pkg/errors"
)

var _ domain.OrderRepository = (*MemoryOrderRepository)(nil)

// MemoryOrderRepository keeps orders in process memory. It enforces the
// same version precondition as the Postgres store.
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[models.ID]*domain.Order
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[models.ID]*domain.Order)}
}

func (r *MemoryOrderRepository) Create(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.ID]; ok {
		return errors.Errorf("order %s already exists", order.ID)
	}
	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *MemoryOrderRepository) FindByID(_ context.Context, id models.ID) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, &domain.NotFoundError{OrderID: id}
	}
	return order.Clone(), nil
}

func (r *MemoryOrderRepository) FindByCustomerRef(_ context.Context, customerRef string) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orders := []*domain.Order{}
	for _, order := range r.orders {
		if order.CustomerRef == customerRef {
			orders = append(orders, order.Clone())
		}
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].Timestamps.CreatedAt.Before(orders[j].Timestamps.CreatedAt)
	})
	return orders, nil
}

func (r *MemoryOrderRepository) Save(_ context.Context, order *domain.Order, expectedVersion models.Version) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[order.ID]
	if !ok {
		return &domain.NotFoundError{OrderID: order.ID}
	}
	if !stored.Version.Equals(expectedVersion) {
		return errors.Wrapf(domain.ErrVersionConflict, "order %s expected version %d, stored %d",
			order.ID, expectedVersion.Value, stored.Version.Value)
	}

	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *MemoryOrderRepository) ClearOutbox(_ context.Context, id models.ID, version models.Version) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[id]
	if !ok {
		return &domain.NotFoundError{OrderID: id}
	}
	if !stored.Version.Equals(version) {
		return errors.Wrapf(domain.ErrVersionConflict, "order %s expected version %d, stored %d",
			id, version.Value, stored.Version.Value)
	}

	cleared := stored.Clone()
	cleared.ClearOutbox()
	r.orders[id] = cleared
	return nil
}
