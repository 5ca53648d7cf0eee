package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/provapub/internal/domain/order"
)

type payOrderRequest struct {
	PaymentMethod string
	Value         decimal.Decimal
	CustomerID    int64
}

// PayOrder handles POST /api/orders.
func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request) {
	var req payOrderRequest
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "paymentMethod":
			req.PaymentMethod, err = d.Str()
		case "value":
			req.Value, err = decodeDecimal(d)
		case "customerId":
			req.CustomerID, err = d.Int64()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	o, err := h.deps.Orders.PayOrder(r.Context(), req.PaymentMethod, req.Value, req.CustomerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.ordersPaid.Add(r.Context(), 1, metric.WithAttributes(
		attribute.String("payment.method", o.PaymentMethod),
	))
	zctx.From(r.Context()).Info("Order paid",
		zap.Int64("order_id", o.ID),
		zap.Int64("customer_id", o.CustomerID),
		zap.String("payment_ref", o.PaymentRef),
	)

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		h.encodeOrder(e, *o)
	})
}

// ListOrders handles GET /api/orders?page=.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	listPage(w, r, h.deps.OrderList, h.encodeOrder)
}

// ListPaymentMethods handles GET /api/payment-methods.
func (h *Handler) ListPaymentMethods(w http.ResponseWriter, _ *http.Request) {
	methods := h.deps.Methods.Methods()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("methods", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, m := range methods {
						e.Str(m)
					}
				})
			})
		})
	})
}

// encodeOrder renders o with its date in the display time zone.
func (h *Handler) encodeOrder(e *jx.Encoder, o order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("orderDate", func(e *jx.Encoder) {
			e.Str(o.OrderDate.In(h.location).Format(time.RFC3339))
		})
		e.Field("value", func(e *jx.Encoder) { encodeDecimal(e, o.Value) })
		e.Field("customerId", func(e *jx.Encoder) { e.Int64(o.CustomerID) })
		e.Field("paymentMethod", func(e *jx.Encoder) { e.Str(o.PaymentMethod) })
		e.Field("paymentRef", func(e *jx.Encoder) { e.Str(o.PaymentRef) })
	})
}
