package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/provapub/internal/domain/customer"
	"github.com/xenking/provapub/internal/domain/order"
	"github.com/xenking/provapub/internal/domain/payment"
	"github.com/xenking/provapub/internal/domain/token"
)

// Error codes returned in the "code" field of error bodies.
const (
	codeInvalidRequest       = "invalid_request"
	codeInvalidArgument      = "invalid_argument"
	codeInvalidPaymentMethod = "invalid_payment_method"
	codeNotFound             = "not_found"
	codePaymentFailed        = "payment_failed"
	codeTokensExhausted      = "tokens_exhausted"
	codePersistenceFailed    = "persistence_failed"
	codeInternal             = "internal"
)

// apiError is an error body with its status.
type apiError struct {
	status  int
	code    string
	message string
}

// mapError converts a domain error to its HTTP representation.
func mapError(err error) apiError {
	var (
		methodErr  *payment.InvalidMethodError
		persistErr *order.PersistenceFailedError
	)
	switch {
	case errors.As(err, &methodErr):
		return apiError{http.StatusUnprocessableEntity, codeInvalidPaymentMethod, methodErr.Error()}
	case errors.Is(err, payment.ErrInvalidMethod):
		return apiError{http.StatusUnprocessableEntity, codeInvalidPaymentMethod, err.Error()}
	case errors.Is(err, order.ErrInvalidArgument), errors.Is(err, customer.ErrInvalidArgument):
		return apiError{http.StatusBadRequest, codeInvalidArgument, err.Error()}
	case errors.Is(err, customer.ErrNotFound):
		return apiError{http.StatusNotFound, codeNotFound, err.Error()}
	case errors.Is(err, order.ErrPaymentFailed):
		return apiError{http.StatusPaymentRequired, codePaymentFailed, "payment was not accepted"}
	case errors.Is(err, token.ErrExhausted):
		return apiError{http.StatusConflict, codeTokensExhausted, err.Error()}
	case errors.As(err, &persistErr):
		return apiError{
			http.StatusInternalServerError, codePersistenceFailed,
			"payment " + persistErr.PaymentRef + " was charged but the order was not saved",
		}
	default:
		return apiError{http.StatusInternalServerError, codeInternal, "internal server error"}
	}
}

// writeError logs server-side failures and writes the mapped error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := mapError(err)
	if e.status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	writeErrorBody(w, e)
}

// badRequest writes a 400 for malformed input that never reached the domain.
func badRequest(w http.ResponseWriter, message string) {
	writeErrorBody(w, apiError{http.StatusBadRequest, codeInvalidRequest, message})
}

func writeErrorBody(w http.ResponseWriter, e apiError) {
	writeJSON(w, e.status, func(enc *jx.Encoder) {
		enc.Obj(func(enc *jx.Encoder) {
			enc.Field("code", func(enc *jx.Encoder) { enc.Str(e.code) })
			enc.Field("message", func(enc *jx.Encoder) { enc.Str(e.message) })
		})
	})
}
