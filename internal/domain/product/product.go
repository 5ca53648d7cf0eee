package product

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/provapub/internal/domain/page"
)

// Product is a catalog item.
type Product struct {
	ID    int64
	Name  string
	Price decimal.Decimal
}

// Repository lists the catalog page by page.
type Repository interface {
	page.Lister[Product]
}
