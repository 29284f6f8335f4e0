package application

import (
	"context"

	"github.com/draftea/order-saga/order-service/domain"
	"github.com/draftea/order-saga/shared/models"
	"github.com/pkg/errors"
)

// NewOrderCommand represents the command to submit an order
type NewOrderCommand struct {
	CustomerRef string         `json:"customer_ref"`
	Lines       []NewOrderLine `json:"lines"`
}

type NewOrderLine struct {
	ID            string `json:"id,omitempty"`
	UPC           string `json:"upc"`
	OrderQuantity int    `json:"order_quantity"`
}

// NewOrder persists a NEW order and sends it to validation. The returned
// order reflects the state after VALIDATE_ORDER was applied.
func (m *OrderManager) NewOrder(ctx context.Context, cmd *NewOrderCommand) (order *domain.Order, err error) {
	lines := make([]domain.OrderLine, len(cmd.Lines))
	for i, l := range cmd.Lines {
		lines[i] = domain.OrderLine{
			ID:            models.ID(l.ID),
			UPC:           l.UPC,
			OrderQuantity: l.OrderQuantity,
		}
	}

	order, err = domain.NewOrder(cmd.CustomerRef, lines)
	if err != nil {
		return nil, err
	}

	ctx, span := m.startSpan(ctx, "NewOrder", order.ID)
	defer func() { endSpan(span, err) }()

	if err := m.repository.Create(ctx, order); err != nil {
		return nil, &domain.PersistenceError{Op: "create order", Err: err}
	}

	m.logger.Info().
		Str("order_id", order.ID.String()).
		Str("customer_ref", order.CustomerRef).
		Int("lines", len(lines)).
		Msg("order created")

	validated, err := m.sendEvent(ctx, order.ID, domain.OrderEventValidateOrder, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to request validation")
	}
	return validated, nil
}
