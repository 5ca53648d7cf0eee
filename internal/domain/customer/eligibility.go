package customer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/provapub/internal/domain/payment"
)

// ErrInvalidArgument is matched by every input validation error.
var ErrInvalidArgument = errors.New("invalid argument")

var (
	ErrInvalidCustomerID    = fmt.Errorf("%w: customer id must be positive", ErrInvalidArgument)
	ErrInvalidPurchaseValue = fmt.Errorf("%w: purchase value must be positive, with at most 2 decimal places and below 10^10", ErrInvalidArgument)
)

// Reason names the rule that rejected a purchase.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonCooldown         Reason = "cooldown"
	ReasonFirstPurchaseCap Reason = "first_purchase_cap"
	ReasonOutsideWindow    Reason = "outside_window"
)

// Policy holds the thresholds of the purchase rules. Hours are UTC.
type Policy struct {
	// Cooldown is how long after an order the customer may not buy again.
	Cooldown time.Duration
	// FirstPurchaseCap is the largest value accepted from a customer
	// without any previous order.
	FirstPurchaseCap decimal.Decimal
	// OpenHour and CloseHour bound the operating window, both inclusive:
	// purchases are accepted from OpenHour:00 until CloseHour:59.
	OpenHour  int
	CloseHour int
}

// DefaultPolicy returns a 30 day cooldown, a first purchase cap of 100 and
// a weekday window from 08:00 to 18:59 UTC.
func DefaultPolicy() Policy {
	return Policy{
		Cooldown:         30 * 24 * time.Hour,
		FirstPurchaseCap: decimal.NewFromInt(100),
		OpenHour:         8,
		CloseHour:        18,
	}
}

// Decision is the outcome of an eligibility evaluation.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Eligibility decides whether a customer may purchase a given value now.
type Eligibility struct {
	customers Repository
	policy    Policy
	now       func() time.Time
}

// NewEligibility creates an Eligibility evaluator. A nil now defaults to
// time.Now.
func NewEligibility(customers Repository, policy Policy, now func() time.Time) *Eligibility {
	if now == nil {
		now = time.Now
	}
	return &Eligibility{customers: customers, policy: policy, now: now}
}

// CanPurchase reports whether customerID may spend purchaseValue right now.
// Invalid input and unknown customers are errors, not a false result.
func (e *Eligibility) CanPurchase(ctx context.Context, customerID int64, purchaseValue decimal.Decimal) (bool, error) {
	d, err := e.Evaluate(ctx, customerID, purchaseValue)
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

// Evaluate applies the cooldown, first purchase cap and operating window
// rules in that order and returns the first rejection.
func (e *Eligibility) Evaluate(ctx context.Context, customerID int64, purchaseValue decimal.Decimal) (Decision, error) {
	if customerID <= 0 {
		return Decision{}, ErrInvalidCustomerID
	}
	if !payment.ValidAmount(purchaseValue) {
		return Decision{}, ErrInvalidPurchaseValue
	}

	if _, err := e.customers.FindByID(ctx, customerID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Decision{}, ErrNotFound
		}
		return Decision{}, errors.Wrap(err, "find customer")
	}

	now := e.now().UTC()

	recent, err := e.customers.CountOrdersSince(ctx, customerID, now.Add(-e.policy.Cooldown))
	if err != nil {
		return Decision{}, errors.Wrap(err, "count recent orders")
	}
	if recent > 0 {
		return Decision{Reason: ReasonCooldown}, nil
	}

	total, err := e.customers.CountOrdersSince(ctx, customerID, time.Time{})
	if err != nil {
		return Decision{}, errors.Wrap(err, "count orders")
	}
	if total == 0 && purchaseValue.GreaterThan(e.policy.FirstPurchaseCap) {
		return Decision{Reason: ReasonFirstPurchaseCap}, nil
	}

	if !e.policy.inWindow(now) {
		return Decision{Reason: ReasonOutsideWindow}, nil
	}

	return Decision{Allowed: true}, nil
}

func (p Policy) inWindow(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	h := t.Hour()
	return h >= p.OpenHour && h <= p.CloseHour
}
