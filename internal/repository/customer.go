package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/provapub/internal/domain/customer"
	"github.com/xenking/provapub/internal/domain/page"
)

const (
	getCustomerByIDSQL = `SELECT id, name FROM customers WHERE id = $1`

	countCustomerOrdersSQL = `SELECT COUNT(*) FROM orders WHERE customer_id = $1`

	countCustomerOrdersSinceSQL = `SELECT COUNT(*) FROM orders WHERE customer_id = $1 AND order_date >= $2`

	countCustomersSQL = `SELECT COUNT(*) FROM customers`

	listCustomersSQL = `SELECT id, name FROM customers ORDER BY id LIMIT $1 OFFSET $2`

	upsertCustomerSQL = `INSERT INTO customers (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`

	syncCustomerSequenceSQL = `SELECT setval(pg_get_serial_sequence('customers', 'id'),
		GREATEST((SELECT COALESCE(MAX(id), 0) FROM customers), 1))`
)

var (
	_ customer.Repository            = (*CustomerRepository)(nil)
	_ page.Lister[customer.Customer] = (*CustomerRepository)(nil)
)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// FindByID returns customer.ErrNotFound when no customer has the given id.
func (r *CustomerRepository) FindByID(ctx context.Context, id int64) (*customer.Customer, error) {
	rows, err := r.pool.Query(ctx, getCustomerByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting customer %d: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("getting customer %d: %w", id, err)
	}
	return &c, nil
}

// CountOrdersSince counts the customer's orders dated at or after since.
// A zero since counts all of them.
func (r *CustomerRepository) CountOrdersSince(ctx context.Context, customerID int64, since time.Time) (int, error) {
	var (
		n   int
		err error
	)
	if since.IsZero() {
		err = r.pool.QueryRow(ctx, countCustomerOrdersSQL, customerID).Scan(&n)
	} else {
		err = r.pool.QueryRow(ctx, countCustomerOrdersSinceSQL, customerID, since.UTC()).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("counting orders of customer %d: %w", customerID, err)
	}
	return n, nil
}

// Count returns the number of customers.
func (r *CustomerRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countCustomersSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting customers: %w", err)
	}
	return n, nil
}

// List returns customers ordered by id.
func (r *CustomerRepository) List(ctx context.Context, offset, limit int) ([]customer.Customer, error) {
	rows, err := r.pool.Query(ctx, listCustomersSQL, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing customers: %w", err)
	}
	return pgx.CollectRows(rows, scanCustomer)
}

// Upsert inserts or renames customers keeping their ids, then moves the id
// sequence past the highest id.
func (r *CustomerRepository) Upsert(ctx context.Context, customers ...customer.Customer) error {
	batch := &pgx.Batch{}
	for _, c := range customers {
		batch.Queue(upsertCustomerSQL, c.ID, c.Name)
	}
	batch.Queue(syncCustomerSequenceSQL)

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting customers: %w", err)
	}
	return nil
}

func scanCustomer(row pgx.CollectableRow) (customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(&c.ID, &c.Name)
	return c, err
}
