package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"
)

// AllocateToken handles POST /api/tokens.
func (h *Handler) AllocateToken(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.Tokens.Allocate(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.tokensAllocated.Add(r.Context(), 1)

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("token", func(e *jx.Encoder) { e.Int(n) })
		})
	})
}

// GetToken handles GET /api/tokens/{number}.
func (h *Handler) GetToken(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("number"))
	if err != nil || n < 0 || n >= h.deps.Tokens.Size() {
		badRequest(w, "token must be an integer in range")
		return
	}

	ok, err := h.deps.Tokens.Exists(r.Context(), n)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("token", func(e *jx.Encoder) { e.Int(n) })
			e.Field("allocated", func(e *jx.Encoder) { e.Bool(ok) })
		})
	})
}
