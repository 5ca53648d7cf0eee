// Package handler exposes the order service over HTTP with JSON bodies.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/provapub/internal/domain/customer"
	"github.com/xenking/provapub/internal/domain/order"
	"github.com/xenking/provapub/internal/domain/page"
	"github.com/xenking/provapub/internal/domain/product"
)

// OrderPayer is implemented by *order.Service.
type OrderPayer interface {
	PayOrder(ctx context.Context, method string, amount decimal.Decimal, customerID int64) (*order.Order, error)
}

// EligibilityEvaluator is implemented by *customer.Eligibility.
type EligibilityEvaluator interface {
	Evaluate(ctx context.Context, customerID int64, purchaseValue decimal.Decimal) (customer.Decision, error)
}

// TokenAllocator is implemented by *token.Allocator.
type TokenAllocator interface {
	Allocate(ctx context.Context) (int, error)
	Exists(ctx context.Context, n int) (bool, error)
	Size() int
}

// MethodLister is implemented by *payment.Dispatcher.
type MethodLister interface {
	Methods() []string
}

// Deps groups the collaborators of Handler.
type Deps struct {
	Orders      OrderPayer
	Eligibility EligibilityEvaluator
	Tokens      TokenAllocator
	Methods     MethodLister

	ProductList  page.Lister[product.Product]
	CustomerList page.Lister[customer.Customer]
	OrderList    page.Lister[order.Order]
}

// Config holds presentation settings.
type Config struct {
	// Location is the time zone order dates are rendered in. Nil means UTC.
	Location *time.Location
}

// Handler serves the HTTP API.
type Handler struct {
	deps     Deps
	location *time.Location

	ordersPaid      metric.Int64Counter
	decisions       metric.Int64Counter
	tokensAllocated metric.Int64Counter
}

// NewHandler creates a Handler recording its counters with meter.
func NewHandler(cfg Config, deps Deps, meter metric.Meter) (*Handler, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	h := &Handler{deps: deps, location: loc}

	var err error
	if h.ordersPaid, err = meter.Int64Counter("provapub.orders.paid",
		metric.WithDescription("Orders paid and persisted"),
	); err != nil {
		return nil, errors.Wrap(err, "orders counter")
	}
	if h.decisions, err = meter.Int64Counter("provapub.eligibility.decisions",
		metric.WithDescription("Purchase eligibility decisions"),
	); err != nil {
		return nil, errors.Wrap(err, "decisions counter")
	}
	if h.tokensAllocated, err = meter.Int64Counter("provapub.tokens.allocated",
		metric.WithDescription("Random tokens allocated"),
	); err != nil {
		return nil, errors.Wrap(err, "tokens counter")
	}
	return h, nil
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders", h.PayOrder)
	mux.HandleFunc("GET /api/orders", h.ListOrders)
	mux.HandleFunc("GET /api/payment-methods", h.ListPaymentMethods)

	mux.HandleFunc("GET /api/customers", h.ListCustomers)
	mux.HandleFunc("GET /api/customers/{id}/eligibility", h.CheckEligibility)

	mux.HandleFunc("POST /api/tokens", h.AllocateToken)
	mux.HandleFunc("GET /api/tokens/{number}", h.GetToken)

	mux.HandleFunc("GET /api/products", h.ListProducts)
}
