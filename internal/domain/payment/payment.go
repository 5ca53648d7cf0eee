package payment

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidMethod is matched by InvalidMethodError for unknown provider keys.
var ErrInvalidMethod = errors.New("invalid payment method")

// InvalidMethodError indicates the requested provider key is not registered.
type InvalidMethodError struct {
	Method string
}

func (e *InvalidMethodError) Error() string {
	return fmt.Sprintf("invalid payment method %q", e.Method)
}

// Is reports whether target is ErrInvalidMethod.
func (e *InvalidMethodError) Is(target error) bool {
	return target == ErrInvalidMethod
}

// Strategy executes a payment against one provider. A nil error means the
// provider accepted the payment.
type Strategy interface {
	ProcessPayment(ctx context.Context, amount decimal.Decimal) error
}

// Dispatcher resolves a provider key to its Strategy. The table is fixed at
// construction time.
type Dispatcher struct {
	strategies map[string]Strategy
}

// NewDispatcher builds a Dispatcher from an explicit key to strategy table.
// Keys are canonicalized to lowercase.
func NewDispatcher(strategies map[string]Strategy) (*Dispatcher, error) {
	table := make(map[string]Strategy, len(strategies))
	for key, s := range strategies {
		k := canonicalKey(key)
		if k == "" {
			return nil, errors.New("empty payment method key")
		}
		if s == nil {
			return nil, errors.Errorf("nil strategy for payment method %q", k)
		}
		if _, dup := table[k]; dup {
			return nil, errors.Errorf("duplicate payment method %q", k)
		}
		table[k] = s
	}
	return &Dispatcher{strategies: table}, nil
}

// Resolve returns the strategy registered for method. Lookup is
// case-insensitive and never falls back to another provider.
func (d *Dispatcher) Resolve(method string) (Strategy, error) {
	s, ok := d.strategies[canonicalKey(method)]
	if !ok {
		return nil, &InvalidMethodError{Method: method}
	}
	return s, nil
}

// Methods returns the registered provider keys in sorted order.
func (d *Dispatcher) Methods() []string {
	keys := make([]string, 0, len(d.strategies))
	for k := range d.strategies {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func canonicalKey(method string) string {
	return strings.ToLower(strings.TrimSpace(method))
}
