package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrRejected is returned by Repository.Create when storage refuses the
// order itself, for example an unknown customer. Retrying cannot succeed.
var ErrRejected = errors.New("order rejected by storage")

// Order is a paid purchase. It is created only after the payment provider
// accepted the amount and is never modified afterwards.
type Order struct {
	ID            int64
	OrderDate     time.Time
	Value         decimal.Decimal
	CustomerID    int64
	PaymentMethod string
	// PaymentRef identifies the payment attempt. Storage keeps it unique, so
	// persisting the same order twice yields the same row.
	PaymentRef string
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists o and sets o.ID. Creating an order whose PaymentRef is
	// already stored returns the existing ID instead of a second row.
	// Errors wrapping ErrRejected are permanent.
	Create(ctx context.Context, o *Order) error
}
