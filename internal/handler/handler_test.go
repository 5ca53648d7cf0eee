package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/provapub/internal/domain/customer"
	"github.com/xenking/provapub/internal/domain/order"
	"github.com/xenking/provapub/internal/domain/payment"
	"github.com/xenking/provapub/internal/domain/product"
	"github.com/xenking/provapub/internal/domain/token"
)

// --- Mock implementations ---

type mockPayer struct {
	order *order.Order
	err   error

	method     string
	amount     decimal.Decimal
	customerID int64
}

func (m *mockPayer) PayOrder(_ context.Context, method string, amount decimal.Decimal, customerID int64) (*order.Order, error) {
	m.method, m.amount, m.customerID = method, amount, customerID
	return m.order, m.err
}

type mockEvaluator struct {
	decision customer.Decision
	err      error
}

func (m *mockEvaluator) Evaluate(context.Context, int64, decimal.Decimal) (customer.Decision, error) {
	return m.decision, m.err
}

type mockTokens struct {
	next      int
	err       error
	allocated map[int]bool
}

func (m *mockTokens) Allocate(context.Context) (int, error) { return m.next, m.err }

func (m *mockTokens) Exists(_ context.Context, n int) (bool, error) { return m.allocated[n], nil }

func (m *mockTokens) Size() int { return token.DefaultSize }

type mockMethods []string

func (m mockMethods) Methods() []string { return m }

type sliceLister[T any] struct {
	items []T
	err   error
}

func (s *sliceLister[T]) Count(context.Context) (int, error) { return len(s.items), s.err }

func (s *sliceLister[T]) List(_ context.Context, offset, limit int) ([]T, error) {
	if offset >= len(s.items) {
		return nil, nil
	}
	return s.items[offset:min(offset+limit, len(s.items))], nil
}

// --- Helpers ---

type fixture struct {
	payer     *mockPayer
	evaluator *mockEvaluator
	tokens    *mockTokens
	products  *sliceLister[product.Product]
	customers *sliceLister[customer.Customer]
	orders    *sliceLister[order.Order]
	mux       *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	f := &fixture{
		payer:     &mockPayer{},
		evaluator: &mockEvaluator{},
		tokens:    &mockTokens{allocated: map[int]bool{}},
		products:  &sliceLister[product.Product]{},
		customers: &sliceLister[customer.Customer]{},
		orders:    &sliceLister[order.Order]{},
		mux:       http.NewServeMux(),
	}
	h, err := NewHandler(Config{Location: saoPaulo}, Deps{
		Orders:       f.payer,
		Eligibility:  f.evaluator,
		Tokens:       f.tokens,
		Methods:      mockMethods{"creditcard", "paypal", "pix"},
		ProductList:  f.products,
		CustomerList: f.customers,
		OrderList:    f.orders,
	}, noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	h.Register(f.mux)
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

var paidAt = time.Date(2025, 6, 16, 15, 30, 0, 0, time.UTC)

// --- Tests ---

func TestPayOrder_Created(t *testing.T) {
	f := newFixture(t)
	f.payer.order = &order.Order{
		ID:            42,
		OrderDate:     paidAt,
		Value:         decimal.RequireFromString("99.90"),
		CustomerID:    7,
		PaymentMethod: "pix",
		PaymentRef:    "ref-1",
	}

	code, body := f.do(t, http.MethodPost, "/api/orders",
		`{"paymentMethod":"PIX","value":99.90,"customerId":7,"extra":true}`)

	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "PIX", f.payer.method)
	assert.True(t, decimal.RequireFromString("99.9").Equal(f.payer.amount))
	assert.EqualValues(t, 7, f.payer.customerID)

	assert.EqualValues(t, 42, body["id"])
	assert.Equal(t, "2025-06-16T12:30:00-03:00", body["orderDate"])
	assert.EqualValues(t, 99.9, body["value"])
	assert.Equal(t, "pix", body["paymentMethod"])
	assert.Equal(t, "ref-1", body["paymentRef"])
}

func TestPayOrder_ValueAsString(t *testing.T) {
	f := newFixture(t)
	f.payer.order = &order.Order{ID: 1, OrderDate: paidAt, Value: decimal.NewFromInt(10)}

	code, _ := f.do(t, http.MethodPost, "/api/orders",
		`{"paymentMethod":"pix","value":"10.00","customerId":1}`)
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, decimal.NewFromInt(10).Equal(f.payer.amount))
}

func TestPayOrder_MalformedBody(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{``, `[]`, `{"value":true}`, `{"customerId":"x"}`} {
		code, out := f.do(t, http.MethodPost, "/api/orders", body)
		assert.Equal(t, http.StatusBadRequest, code, body)
		assert.Equal(t, codeInvalidRequest, out["code"], body)
	}
}

func TestPayOrder_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid customer", order.ErrInvalidCustomerID, http.StatusBadRequest, codeInvalidArgument},
		{"invalid amount", order.ErrInvalidAmount, http.StatusBadRequest, codeInvalidArgument},
		{"invalid method", &payment.InvalidMethodError{Method: "boleto"}, http.StatusUnprocessableEntity, codeInvalidPaymentMethod},
		{"payment failed", &order.PaymentFailedError{Method: "pix", Err: errors.New("declined")}, http.StatusPaymentRequired, codePaymentFailed},
		{"persistence failed", &order.PersistenceFailedError{PaymentRef: "ref-9", Err: errors.New("db down")}, http.StatusInternalServerError, codePersistenceFailed},
		{"persistence rejected", &order.PersistenceFailedError{PaymentRef: "ref-9", Err: order.ErrRejected}, http.StatusInternalServerError, codePersistenceFailed},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, codeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.payer.err = tt.err

			code, body := f.do(t, http.MethodPost, "/api/orders",
				`{"paymentMethod":"pix","value":10,"customerId":1}`)
			assert.Equal(t, tt.status, code)
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestPayOrder_PersistenceFailedReportsRef(t *testing.T) {
	f := newFixture(t)
	f.payer.err = &order.PersistenceFailedError{PaymentRef: "ref-9", Err: errors.New("db down")}

	_, body := f.do(t, http.MethodPost, "/api/orders", `{"paymentMethod":"pix","value":10,"customerId":1}`)
	assert.Contains(t, body["message"], "ref-9")
	assert.NotContains(t, body["message"], "db down")
}

func TestCheckEligibility(t *testing.T) {
	f := newFixture(t)

	f.evaluator.decision = customer.Decision{Allowed: true}
	code, body := f.do(t, http.MethodGet, "/api/customers/1/eligibility?value=50", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["allowed"])
	assert.NotContains(t, body, "reason")

	f.evaluator.decision = customer.Decision{Reason: customer.ReasonCooldown}
	code, body = f.do(t, http.MethodGet, "/api/customers/1/eligibility?value=50", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["allowed"])
	assert.Equal(t, "cooldown", body["reason"])
}

func TestCheckEligibility_Errors(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, http.MethodGet, "/api/customers/abc/eligibility?value=1", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodGet, "/api/customers/1/eligibility", "")
	assert.Equal(t, http.StatusBadRequest, code)

	f.evaluator.err = customer.ErrNotFound
	code, body := f.do(t, http.MethodGet, "/api/customers/9/eligibility?value=1", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, codeNotFound, body["code"])

	f.evaluator.err = customer.ErrInvalidCustomerID
	code, body = f.do(t, http.MethodGet, "/api/customers/0/eligibility?value=1", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, codeInvalidArgument, body["code"])
}

func TestAllocateToken(t *testing.T) {
	f := newFixture(t)
	f.tokens.next = 17

	code, body := f.do(t, http.MethodPost, "/api/tokens", "")
	require.Equal(t, http.StatusCreated, code)
	assert.EqualValues(t, 17, body["token"])

	f.tokens.err = token.ErrExhausted
	code, body = f.do(t, http.MethodPost, "/api/tokens", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, codeTokensExhausted, body["code"])
}

func TestGetToken(t *testing.T) {
	f := newFixture(t)
	f.tokens.allocated[3] = true

	code, body := f.do(t, http.MethodGet, "/api/tokens/3", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["allocated"])

	code, body = f.do(t, http.MethodGet, "/api/tokens/4", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["allocated"])

	for _, n := range []string{"-1", "100", "x"} {
		code, _ = f.do(t, http.MethodGet, "/api/tokens/"+n, "")
		assert.Equal(t, http.StatusBadRequest, code, n)
	}
}

func TestListProducts_Paging(t *testing.T) {
	f := newFixture(t)
	for i := range 15 {
		f.products.items = append(f.products.items, product.Product{
			ID: int64(i + 1), Name: "p", Price: decimal.RequireFromString("1.50"),
		})
	}

	code, body := f.do(t, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["page"])
	assert.Len(t, body["items"], 10)
	assert.EqualValues(t, 15, body["totalCount"])
	assert.Equal(t, true, body["hasNext"])

	code, body = f.do(t, http.MethodGet, "/api/products?page=2", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"], 5)
	assert.Equal(t, false, body["hasNext"])

	code, body = f.do(t, http.MethodGet, "/api/products?page=-3", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["page"])

	code, body = f.do(t, http.MethodGet, "/api/products?page=9", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["items"])
	assert.NotNil(t, body["items"])

	code, body = f.do(t, http.MethodGet, "/api/products?page=9223372036854775807", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["items"])
	assert.Equal(t, false, body["hasNext"])

	code, _ = f.do(t, http.MethodGet, "/api/products?page=two", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListCustomersAndOrders(t *testing.T) {
	f := newFixture(t)
	f.customers.items = []customer.Customer{{ID: 1, Name: "Ana"}}
	f.orders.items = []order.Order{{ID: 5, OrderDate: paidAt, Value: decimal.NewFromInt(3), PaymentMethod: "paypal"}}

	code, body := f.do(t, http.MethodGet, "/api/customers", "")
	require.Equal(t, http.StatusOK, code)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Ana", items[0].(map[string]any)["name"])

	code, body = f.do(t, http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusOK, code)
	items = body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "2025-06-16T12:30:00-03:00", items[0].(map[string]any)["orderDate"])

	f.orders.err = errors.New("db down")
	code, body = f.do(t, http.MethodGet, "/api/orders", "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, codeInternal, body["code"])
}

func TestListPaymentMethods(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/api/payment-methods", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"creditcard", "paypal", "pix"}, body["methods"])
}
