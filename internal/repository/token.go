package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/provapub/internal/domain/token"
)

const (
	tokenExistsSQL = `SELECT EXISTS (SELECT 1 FROM tokens WHERE number = $1)`

	insertTokenSQL = `INSERT INTO tokens (number) VALUES ($1)`

	countTokensSQL = `SELECT COUNT(*) FROM tokens WHERE number < $1`

	listTokensSQL = `SELECT number FROM tokens WHERE number < $1 ORDER BY number`
)

var _ token.Repository = (*TokenRepository)(nil)

// TokenRepository implements token.Repository backed by PostgreSQL. The
// primary key on tokens.number enforces uniqueness.
type TokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository returns a TokenRepository that uses the given pool.
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// Exists reports whether n is stored.
func (r *TokenRepository) Exists(ctx context.Context, n int) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, tokenExistsSQL, n).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking token %d: %w", n, err)
	}
	return ok, nil
}

// Insert stores n. It returns token.ErrTaken when n is already stored.
func (r *TokenRepository) Insert(ctx context.Context, n int) error {
	if _, err := r.pool.Exec(ctx, insertTokenSQL, n); err != nil {
		if isUniqueViolation(err) {
			return token.ErrTaken
		}
		return fmt.Errorf("inserting token %d: %w", n, err)
	}
	return nil
}

// Count returns the number of stored tokens below size.
func (r *TokenRepository) Count(ctx context.Context, size int) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countTokensSQL, size).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting tokens: %w", err)
	}
	return n, nil
}

// Taken returns the stored numbers below size.
func (r *TokenRepository) Taken(ctx context.Context, size int) ([]int, error) {
	rows, err := r.pool.Query(ctx, listTokensSQL, size)
	if err != nil {
		return nil, fmt.Errorf("listing tokens: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}
