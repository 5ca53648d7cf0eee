package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/provapub/internal/domain/order"
	"github.com/xenking/provapub/internal/domain/page"
)

const (
	// The no-op update lets RETURNING yield the row stored by an earlier
	// attempt with the same payment reference.
	createOrderSQL = `INSERT INTO orders (order_date, value, customer_id, payment_method, payment_ref)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (payment_ref) DO UPDATE SET payment_ref = EXCLUDED.payment_ref
		RETURNING id, order_date, value`

	countOrdersSQL = `SELECT COUNT(*) FROM orders`

	listOrdersSQL = `SELECT id, order_date, value, customer_id, payment_method, payment_ref
		FROM orders ORDER BY id LIMIT $1 OFFSET $2`

	createImportTableSQL = `CREATE TEMP TABLE orders_import (
		order_date     TIMESTAMPTZ NOT NULL,
		value          NUMERIC(12, 2) NOT NULL,
		customer_id    BIGINT NOT NULL,
		payment_method TEXT NOT NULL,
		payment_ref    TEXT NOT NULL
	) ON COMMIT DROP`

	mergeImportSQL = `INSERT INTO orders (order_date, value, customer_id, payment_method, payment_ref)
		SELECT order_date, value, customer_id, payment_method, payment_ref FROM orders_import
		ON CONFLICT (payment_ref) DO NOTHING`
)

var (
	_ order.Repository         = (*OrderRepository)(nil)
	_ page.Lister[order.Order] = (*OrderRepository)(nil)
)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order and sets its ID. An order whose payment
// reference is already stored resolves to the stored row.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := r.pool.QueryRow(ctx, createOrderSQL,
		o.OrderDate.UTC(), o.Value, o.CustomerID, o.PaymentMethod, o.PaymentRef,
	).Scan(&o.ID, &o.OrderDate, &o.Value)
	if isPermanent(err) {
		return fmt.Errorf("creating order for payment %q: %w: %w", o.PaymentRef, order.ErrRejected, err)
	}
	if err != nil {
		return fmt.Errorf("creating order for payment %q: %w", o.PaymentRef, err)
	}
	o.OrderDate = o.OrderDate.UTC()
	return nil
}

// Count returns the number of orders.
func (r *OrderRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countOrdersSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting orders: %w", err)
	}
	return n, nil
}

// List returns orders ordered by id.
func (r *OrderRepository) List(ctx context.Context, offset, limit int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// Import bulk-loads historical orders with COPY. Orders whose payment
// reference is already stored are skipped. It returns the number of rows
// inserted.
func (r *OrderRepository) Import(ctx context.Context, orders []order.Order) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning import: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, createImportTableSQL); err != nil {
		return 0, fmt.Errorf("creating import table: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"orders_import"},
		[]string{"order_date", "value", "customer_id", "payment_method", "payment_ref"},
		pgx.CopyFromSlice(len(orders), func(i int) ([]any, error) {
			o := orders[i]
			return []any{o.OrderDate.UTC(), o.Value, o.CustomerID, o.PaymentMethod, o.PaymentRef}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copying orders: %w", err)
	}

	tag, err := tx.Exec(ctx, mergeImportSQL)
	if err != nil {
		return 0, fmt.Errorf("merging imported orders: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o     order.Order
		value decimal.Decimal
	)
	err := row.Scan(&o.ID, &o.OrderDate, &value, &o.CustomerID, &o.PaymentMethod, &o.PaymentRef)
	o.Value = value
	o.OrderDate = o.OrderDate.UTC()
	return o, err
}
