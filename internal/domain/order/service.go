package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/provapub/internal/domain/payment"
)

// Sentinel errors for order placement.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrPaymentFailed     = errors.New("payment failed")
	ErrPersistenceFailed = errors.New("order persistence failed")

	ErrInvalidCustomerID = fmt.Errorf("%w: customer id must be positive", ErrInvalidArgument)
	ErrInvalidAmount     = fmt.Errorf("%w: payment value must be positive, with at most 2 decimal places and below 10^10", ErrInvalidArgument)
)

// DefaultPersistAttempts bounds order inserts after a successful payment.
const DefaultPersistAttempts = 3

// PaymentFailedError wraps a provider failure. No order exists for it.
type PaymentFailedError struct {
	Method string
	Err    error
}

func (e *PaymentFailedError) Error() string {
	return fmt.Sprintf("payment via %s failed: %v", e.Method, e.Err)
}

func (e *PaymentFailedError) Unwrap() error { return e.Err }

// Is reports whether target is ErrPaymentFailed.
func (e *PaymentFailedError) Is(target error) bool { return target == ErrPaymentFailed }

// PersistenceFailedError is returned when the payment succeeded but the order
// could not be stored. PaymentRef identifies the charge for reconciliation.
type PersistenceFailedError struct {
	PaymentRef string
	Err        error
}

func (e *PersistenceFailedError) Error() string {
	return fmt.Sprintf("store order for payment %s: %v", e.PaymentRef, e.Err)
}

func (e *PersistenceFailedError) Unwrap() error { return e.Err }

// Is reports whether target is ErrPersistenceFailed.
func (e *PersistenceFailedError) Is(target error) bool { return target == ErrPersistenceFailed }

// Dispatcher resolves a provider key to a payment strategy.
type Dispatcher interface {
	Resolve(method string) (payment.Strategy, error)
}

// Options tunes a Service.
type Options struct {
	// PersistAttempts is the number of Create calls made for one paid order.
	PersistAttempts int
	// RetryDelay is the pause between Create attempts.
	RetryDelay time.Duration
}

// Service pays for orders and records them.
type Service struct {
	payments Dispatcher
	orders   Repository
	attempts int
	delay    time.Duration

	now   func() time.Time
	newID func() string
}

// NewService creates an order Service.
func NewService(payments Dispatcher, orders Repository, opts Options) *Service {
	if opts.PersistAttempts <= 0 {
		opts.PersistAttempts = DefaultPersistAttempts
	}
	return &Service{
		payments: payments,
		orders:   orders,
		attempts: opts.PersistAttempts,
		delay:    opts.RetryDelay,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// PayOrder charges amount through the provider registered for method and,
// once the charge succeeded, persists the order for customerID.
func (s *Service) PayOrder(ctx context.Context, method string, amount decimal.Decimal, customerID int64) (*Order, error) {
	if customerID <= 0 {
		return nil, ErrInvalidCustomerID
	}
	if !payment.ValidAmount(amount) {
		return nil, ErrInvalidAmount
	}

	strategy, err := s.payments.Resolve(method)
	if err != nil {
		return nil, err
	}

	ref := s.newID()
	if err := strategy.ProcessPayment(ctx, amount); err != nil {
		return nil, &PaymentFailedError{Method: method, Err: err}
	}

	o := &Order{
		OrderDate:     s.now().UTC(),
		Value:         amount,
		CustomerID:    customerID,
		PaymentMethod: strings.ToLower(strings.TrimSpace(method)),
		PaymentRef:    ref,
	}
	if err := s.persist(ctx, o); err != nil {
		return nil, &PersistenceFailedError{PaymentRef: ref, Err: err}
	}

	return o, nil
}

// persist retries Create with the same PaymentRef, relying on the repository
// to deduplicate an insert that committed but reported failure.
func (s *Service) persist(ctx context.Context, o *Order) error {
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		err := s.orders.Create(ctx, o)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == s.attempts || ctx.Err() != nil || errors.Is(err, ErrRejected) {
			break
		}
		if s.delay > 0 {
			select {
			case <-ctx.Done():
				return errors.Wrap(lastErr, "create order")
			case <-time.After(s.delay):
			}
		}
	}
	return errors.Wrap(lastErr, "create order")
}
