package payment

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Provider keys of the built-in strategies.
const (
	MethodCreditCard = "creditcard"
	MethodPix        = "pix"
	MethodPayPal     = "paypal"
)

// DefaultLatency is the simulated provider round trip.
const DefaultLatency = 100 * time.Millisecond

// DefaultStrategies returns the built-in provider table.
func DefaultStrategies(latency time.Duration) map[string]Strategy {
	return map[string]Strategy{
		MethodCreditCard: &CreditCard{Latency: latency},
		MethodPix:        &Pix{Latency: latency},
		MethodPayPal:     &PayPal{Latency: latency},
	}
}

// CreditCard charges a credit card.
type CreditCard struct {
	Latency time.Duration
}

func (s *CreditCard) ProcessPayment(ctx context.Context, amount decimal.Decimal) error {
	return simulate(ctx, MethodCreditCard, amount, s.Latency)
}

// Pix settles through an instant Pix transfer.
type Pix struct {
	Latency time.Duration
}

func (s *Pix) ProcessPayment(ctx context.Context, amount decimal.Decimal) error {
	return simulate(ctx, MethodPix, amount, s.Latency)
}

// PayPal settles through a PayPal wallet transfer.
type PayPal struct {
	Latency time.Duration
}

func (s *PayPal) ProcessPayment(ctx context.Context, amount decimal.Decimal) error {
	return simulate(ctx, MethodPayPal, amount, s.Latency)
}

// simulate stands in for the provider call: it waits for latency, honouring
// cancellation, and logs the processed amount.
func simulate(ctx context.Context, method string, amount decimal.Decimal, latency time.Duration) error {
	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	zctx.From(ctx).Info("Payment processed",
		zap.String("method", method),
		zap.String("amount", amount.StringFixed(2)),
	)
	return nil
}
