package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/draftea/order-saga/order-service/domain"
	"github.com/draftea/order-saga/shared/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

var _ domain.OrderRepository = (*PostgresOrderRepository)(nil)

// OrderSchema creates the tables backing PostgresOrderRepository
const OrderSchema = `
CREATE TABLE IF NOT EXISTS orders (
	id           TEXT PRIMARY KEY,
	customer_ref TEXT        NOT NULL,
	status       TEXT        NOT NULL,
	version      INTEGER     NOT NULL,
	outbox       TEXT[]      NOT NULL DEFAULT '{}',
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
ALTER TABLE orders ADD COLUMN IF NOT EXISTS outbox TEXT[] NOT NULL DEFAULT '{}';
CREATE INDEX IF NOT EXISTS orders_customer_ref_idx ON orders (customer_ref);
CREATE TABLE IF NOT EXISTS order_lines (
	order_id           TEXT    NOT NULL REFERENCES orders (id),
	id                 TEXT    NOT NULL,
	upc                TEXT    NOT NULL,
	order_quantity     INTEGER NOT NULL CHECK (order_quantity > 0),
	quantity_allocated INTEGER NOT NULL DEFAULT 0,
	position           INTEGER NOT NULL,
	PRIMARY KEY (order_id, id)
);`

// PostgresOrderRepository implements OrderRepository using PostgreSQL
type PostgresOrderRepository struct {
	db *sqlx.DB
}

// NewPostgresOrderRepository creates a new PostgresOrderRepository
func NewPostgresOrderRepository(db *sqlx.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db}
}

// EnsureSchema creates the order tables if they are missing
func (r *PostgresOrderRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, OrderSchema)
	return errors.Wrap(err, "failed to create order schema")
}

type postgresOrder struct {
	ID          string         `db:"id"`
	CustomerRef string         `db:"customer_ref"`
	Status      string         `db:"status"`
	Version     int            `db:"version"`
	Outbox      pq.StringArray `db:"outbox"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

type postgresOrderLine struct {
	OrderID           string `db:"order_id"`
	ID                string `db:"id"`
	UPC               string `db:"upc"`
	OrderQuantity     int    `db:"order_quantity"`
	QuantityAllocated int    `db:"quantity_allocated"`
	Position          int    `db:"position"`
}

// Create inserts a new order with its lines
func (r *PostgresOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (
			id, customer_ref, status, version, outbox, created_at, updated_at
		) VALUES (
			:id, :customer_ref, :status, :version, :outbox, :created_at, :updated_at
		)`

	if _, err := tx.NamedExecContext(ctx, query, r.toPostgres(order)); err != nil {
		return errors.Wrap(err, "failed to insert order")
	}

	lineQuery := `
		INSERT INTO order_lines (
			order_id, id, upc, order_quantity, quantity_allocated, position
		) VALUES (
			:order_id, :id, :upc, :order_quantity, :quantity_allocated, :position
		)`

	for _, line := range r.linesToPostgres(order) {
		if _, err := tx.NamedExecContext(ctx, lineQuery, line); err != nil {
			return errors.Wrap(err, "failed to insert order line")
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit order")
}

// Save writes status, version, outbox and allocated quantities if the
// stored version still matches expectedVersion
func (r *PostgresOrderRepository) Save(ctx context.Context, order *domain.Order, expectedVersion models.Version) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	query := `
		UPDATE orders
		SET status = :status, updated_at = :updated_at, version = :version, outbox = :outbox
		WHERE id = :id AND version = :old_version`

	res, err := tx.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          order.ID.String(),
		"status":      order.Status().String(),
		"updated_at":  order.Timestamps.UpdatedAt,
		"version":     order.Version.Value,
		"outbox":      outboxToPostgres(order),
		"old_version": expectedVersion.Value,
	})
	if err != nil {
		return errors.Wrap(err, "failed to update order")
	}

	if err := checkVersionedUpdate(ctx, tx, res, order.ID, expectedVersion); err != nil {
		return err
	}

	lineQuery := `
		UPDATE order_lines
		SET quantity_allocated = :quantity_allocated
		WHERE order_id = :order_id AND id = :id`

	for _, line := range r.linesToPostgres(order) {
		if _, err := tx.NamedExecContext(ctx, lineQuery, line); err != nil {
			return errors.Wrap(err, "failed to update order line")
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit order")
}

// ClearOutbox empties the outbox of the order stored at version
func (r *PostgresOrderRepository) ClearOutbox(ctx context.Context, id models.ID, version models.Version) error {
	query := `
		UPDATE orders
		SET outbox = '{}'
		WHERE id = $1 AND version = $2`

	res, err := r.db.ExecContext(ctx, query, id.String(), version.Value)
	if err != nil {
		return errors.Wrap(err, "failed to clear order outbox")
	}

	return checkVersionedUpdate(ctx, r.db, res, id, version)
}

// checkVersionedUpdate tells a missing order from a stale version when an
// update guarded by version touched no rows
func checkVersionedUpdate(ctx context.Context, q sqlx.QueryerContext, res sql.Result, id models.ID, version models.Version) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, "SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)", id.String()); err != nil {
		return errors.Wrap(err, "failed to check order existence")
	}
	if !exists {
		return &domain.NotFoundError{OrderID: id}
	}
	return errors.Wrapf(domain.ErrVersionConflict, "order %s expected version %d", id, version.Value)
}

// FindByID finds an order by ID
func (r *PostgresOrderRepository) FindByID(ctx context.Context, id models.ID) (*domain.Order, error) {
	query := `
		SELECT id, customer_ref, status, version, outbox, created_at, updated_at
		FROM orders
		WHERE id = $1`

	var pgOrder postgresOrder
	if err := r.db.GetContext(ctx, &pgOrder, query, id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{OrderID: id}
		}
		return nil, errors.Wrap(err, "failed to find order")
	}

	lines, err := r.findLines(ctx, []string{pgOrder.ID})
	if err != nil {
		return nil, err
	}

	return r.toDomain(&pgOrder, lines[pgOrder.ID])
}

// FindByCustomerRef finds the orders of a customer, oldest first
func (r *PostgresOrderRepository) FindByCustomerRef(ctx context.Context, customerRef string) ([]*domain.Order, error) {
	query := `
		SELECT id, customer_ref, status, version, outbox, created_at, updated_at
		FROM orders
		WHERE customer_ref = $1
		ORDER BY created_at ASC`

	var pgOrders []postgresOrder
	if err := r.db.SelectContext(ctx, &pgOrders, query, customerRef); err != nil {
		return nil, errors.Wrap(err, "failed to find orders by customer")
	}
	if len(pgOrders) == 0 {
		return []*domain.Order{}, nil
	}

	ids := make([]string, len(pgOrders))
	for i, o := range pgOrders {
		ids[i] = o.ID
	}

	lines, err := r.findLines(ctx, ids)
	if err != nil {
		return nil, err
	}

	orders := make([]*domain.Order, len(pgOrders))
	for i := range pgOrders {
		order, err := r.toDomain(&pgOrders[i], lines[pgOrders[i].ID])
		if err != nil {
			return nil, err
		}
		orders[i] = order
	}

	return orders, nil
}

func (r *PostgresOrderRepository) findLines(ctx context.Context, orderIDs []string) (map[string][]postgresOrderLine, error) {
	query := `
		SELECT order_id, id, upc, order_quantity, quantity_allocated, position
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`

	var pgLines []postgresOrderLine
	if err := r.db.SelectContext(ctx, &pgLines, query, pq.Array(orderIDs)); err != nil {
		return nil, errors.Wrap(err, "failed to find order lines")
	}

	byOrder := make(map[string][]postgresOrderLine, len(orderIDs))
	for _, line := range pgLines {
		byOrder[line.OrderID] = append(byOrder[line.OrderID], line)
	}
	return byOrder, nil
}

func (r *PostgresOrderRepository) toPostgres(order *domain.Order) *postgresOrder {
	return &postgresOrder{
		ID:          order.ID.String(),
		CustomerRef: order.CustomerRef,
		Status:      order.Status().String(),
		Version:     order.Version.Value,
		Outbox:      outboxToPostgres(order),
		CreatedAt:   order.Timestamps.CreatedAt,
		UpdatedAt:   order.Timestamps.UpdatedAt,
	}
}

func outboxToPostgres(order *domain.Order) pq.StringArray {
	outbox := pq.StringArray{}
	for _, action := range order.Outbox() {
		outbox = append(outbox, string(action))
	}
	return outbox
}

func (r *PostgresOrderRepository) linesToPostgres(order *domain.Order) []postgresOrderLine {
	lines := order.Lines()
	out := make([]postgresOrderLine, len(lines))
	for i, line := range lines {
		out[i] = postgresOrderLine{
			OrderID:           order.ID.String(),
			ID:                line.ID.String(),
			UPC:               line.UPC,
			OrderQuantity:     line.OrderQuantity,
			QuantityAllocated: line.QuantityAllocated,
			Position:          i,
		}
	}
	return out
}

func (r *PostgresOrderRepository) toDomain(pgOrder *postgresOrder, pgLines []postgresOrderLine) (*domain.Order, error) {
	lines := make([]domain.OrderLine, len(pgLines))
	for i, line := range pgLines {
		lines[i] = domain.OrderLine{
			ID:                models.ID(line.ID),
			UPC:               line.UPC,
			OrderQuantity:     line.OrderQuantity,
			QuantityAllocated: line.QuantityAllocated,
		}
	}

	var outbox []domain.Action
	for _, action := range pgOrder.Outbox {
		outbox = append(outbox, domain.Action(action))
	}

	return domain.RehydrateOrder(
		models.ID(pgOrder.ID),
		pgOrder.CustomerRef,
		domain.OrderStatus(pgOrder.Status),
		lines,
		models.Timestamps{CreatedAt: pgOrder.CreatedAt.UTC(), UpdatedAt: pgOrder.UpdatedAt.UTC()},
		models.Version{Value: pgOrder.Version},
		outbox...,
	)
}
