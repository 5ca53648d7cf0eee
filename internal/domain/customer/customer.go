package customer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a customer id has no matching record.
var ErrNotFound = errors.New("customer not found")

// Customer is a registered buyer. Customers are owned by the store; this
// service only reads them.
type Customer struct {
	ID   int64
	Name string
}

// Repository defines the customer lookups needed by the eligibility rules.
type Repository interface {
	// FindByID returns ErrNotFound when the customer does not exist.
	FindByID(ctx context.Context, id int64) (*Customer, error)
	// CountOrdersSince counts orders of the customer dated at or after since.
	// A zero since counts every order.
	CountOrdersSince(ctx context.Context, customerID int64, since time.Time) (int, error)
}
