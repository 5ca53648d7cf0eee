// Package token allocates small random numbers that are unique across
// everything already stored.
package token

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/go-faster/errors"
)

var (
	// ErrTaken is returned by Repository.Insert when the number is already stored.
	ErrTaken = errors.New("token already taken")
	// ErrExhausted is returned when every number of the range is allocated.
	ErrExhausted = errors.New("token range exhausted")
)

// DefaultSize is the number of distinct tokens, allocated from [0, DefaultSize).
const DefaultSize = 100

// Repository stores allocated tokens. Insert must enforce uniqueness.
type Repository interface {
	Exists(ctx context.Context, n int) (bool, error)
	Insert(ctx context.Context, n int) error
	// Count returns how many stored numbers are below size.
	Count(ctx context.Context, size int) (int, error)
	// Taken returns every stored number below size.
	Taken(ctx context.Context, size int) ([]int, error)
}

// Allocator hands out unique tokens in [0, size). Calls are serialized
// within the process; the repository's unique constraint covers other
// processes.
type Allocator struct {
	repo     Repository
	size     int
	maxDraws int

	mu   sync.Mutex
	intn func(n int) int
}

// NewAllocator creates an Allocator for [0, size). A non-positive size
// means DefaultSize.
func NewAllocator(repo Repository, size int) *Allocator {
	if size <= 0 {
		size = DefaultSize
	}
	return &Allocator{
		repo:     repo,
		size:     size,
		maxDraws: 4 * size,
		intn:     rand.IntN,
	}
}

// Size returns the number of distinct tokens.
func (a *Allocator) Size() int {
	return a.size
}

// Exists reports whether n is allocated.
func (a *Allocator) Exists(ctx context.Context, n int) (bool, error) {
	return a.repo.Exists(ctx, n)
}

// Allocate picks a random unallocated number, stores it and returns it.
// It returns ErrExhausted once the whole range is allocated.
func (a *Allocator) Allocate(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	count, err := a.repo.Count(ctx, a.size)
	if err != nil {
		return 0, errors.Wrap(err, "count tokens")
	}
	if count >= a.size {
		return 0, ErrExhausted
	}

	for range a.maxDraws {
		n := a.intn(a.size)

		exists, err := a.repo.Exists(ctx, n)
		if err != nil {
			return 0, errors.Wrapf(err, "check token %d", n)
		}
		if exists {
			continue
		}

		ok, err := a.insert(ctx, n)
		if err != nil {
			return 0, err
		}
		if ok {
			return n, nil
		}
	}

	// Random draws keep colliding: choose among the remaining free numbers.
	return a.allocateFree(ctx)
}

func (a *Allocator) allocateFree(ctx context.Context) (int, error) {
	for {
		taken, err := a.repo.Taken(ctx, a.size)
		if err != nil {
			return 0, errors.Wrap(err, "list tokens")
		}

		used := make([]bool, a.size)
		for _, n := range taken {
			if n >= 0 && n < a.size {
				used[n] = true
			}
		}
		free := make([]int, 0, a.size)
		for n, u := range used {
			if !u {
				free = append(free, n)
			}
		}
		if len(free) == 0 {
			return 0, ErrExhausted
		}

		n := free[a.intn(len(free))]
		ok, err := a.insert(ctx, n)
		if err != nil {
			return 0, err
		}
		if ok {
			return n, nil
		}
	}
}

// insert stores n. It reports false when another writer stored n first.
func (a *Allocator) insert(ctx context.Context, n int) (bool, error) {
	err := a.repo.Insert(ctx, n)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrTaken):
		return false, nil
	default:
		return false, errors.Wrapf(err, "insert token %d", n)
	}
}
