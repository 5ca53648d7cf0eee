package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/provapub/internal/domain/page"
	"github.com/xenking/provapub/internal/domain/product"
)

// ListProducts handles GET /api/products?page=.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	listPage(w, r, h.deps.ProductList, func(e *jx.Encoder, p product.Product) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
			e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
			e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, p.Price) })
		})
	})
}

// listPage writes {"page","items","totalCount","hasNext"} for ?page= of l.
func listPage[T any](w http.ResponseWriter, r *http.Request, l page.Lister[T], item func(e *jx.Encoder, v T)) {
	number, err := pageNumber(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	number = page.Normalize(number)

	p, err := page.List(r.Context(), l, number)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("page", func(e *jx.Encoder) { e.Int(number) })
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, v := range p.Items {
						item(e, v)
					}
				})
			})
			e.Field("totalCount", func(e *jx.Encoder) { e.Int(p.TotalCount) })
			e.Field("hasNext", func(e *jx.Encoder) { e.Bool(p.HasNext) })
		})
	})
}
