// Package page implements fixed-size paged listing over any repository.
package page

import (
	"context"
	"math"

	"github.com/go-faster/errors"
)

// Size is the number of items per page.
const Size = 10

// MaxNumber is the highest page number whose item offsets fit in an int.
const MaxNumber = math.MaxInt / Size

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T
	TotalCount int
	HasNext    bool
}

// Lister is implemented by repositories that support paged listing.
type Lister[T any] interface {
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, offset, limit int) ([]T, error)
}

// Normalize clamps a page number to [1, MaxNumber].
func Normalize(number int) int {
	switch {
	case number < 1:
		return 1
	case number > MaxNumber:
		return MaxNumber
	}
	return number
}

// List returns page number of l. Numbers below 1 return the first page and
// numbers above MaxNumber return page MaxNumber.
func List[T any](ctx context.Context, l Lister[T], number int) (Page[T], error) {
	number = Normalize(number)

	total, err := l.Count(ctx)
	if err != nil {
		return Page[T]{}, errors.Wrap(err, "count items")
	}

	items, err := l.List(ctx, (number-1)*Size, Size)
	if err != nil {
		return Page[T]{}, errors.Wrap(err, "list items")
	}
	if items == nil {
		items = []T{}
	}

	return Page[T]{
		Items:      items,
		TotalCount: total,
		HasNext:    number*Size < total,
	}, nil
}
