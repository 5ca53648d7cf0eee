package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/provapub/internal/domain/customer"
)

// CheckEligibility handles GET /api/customers/{id}/eligibility?value=.
func (h *Handler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		badRequest(w, "customer id must be an integer")
		return
	}
	value, err := decimal.NewFromString(r.URL.Query().Get("value"))
	if err != nil {
		badRequest(w, "value must be a decimal number")
		return
	}

	d, err := h.deps.Eligibility.Evaluate(r.Context(), id, value)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.decisions.Add(r.Context(), 1, metric.WithAttributes(
		attribute.Bool("allowed", d.Allowed),
		attribute.String("reason", string(d.Reason)),
	))

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("customerId", func(e *jx.Encoder) { e.Int64(id) })
			e.Field("value", func(e *jx.Encoder) { encodeDecimal(e, value) })
			e.Field("allowed", func(e *jx.Encoder) { e.Bool(d.Allowed) })
			if d.Reason != customer.ReasonNone {
				e.Field("reason", func(e *jx.Encoder) { e.Str(string(d.Reason)) })
			}
		})
	})
}

// ListCustomers handles GET /api/customers?page=.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	listPage(w, r, h.deps.CustomerList, func(e *jx.Encoder, c customer.Customer) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
			e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
		})
	})
}
