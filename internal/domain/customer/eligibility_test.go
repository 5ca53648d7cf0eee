package customer

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCustomerRepo struct {
	customers map[int64]*Customer
	// orders holds order dates per customer.
	orders   map[int64][]time.Time
	findErr  error
	countErr error

	lookups int
	since   []time.Time
}

func (m *mockCustomerRepo) FindByID(_ context.Context, id int64) (*Customer, error) {
	m.lookups++
	if m.findErr != nil {
		return nil, m.findErr
	}
	c, ok := m.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *mockCustomerRepo) CountOrdersSince(_ context.Context, customerID int64, since time.Time) (int, error) {
	m.since = append(m.since, since)
	if m.countErr != nil {
		return 0, m.countErr
	}
	n := 0
	for _, d := range m.orders[customerID] {
		if !d.Before(since) {
			n++
		}
	}
	return n, nil
}

func newRepo(orders map[int64][]time.Time) *mockCustomerRepo {
	return &mockCustomerRepo{
		customers: map[int64]*Customer{
			1: {ID: 1, Name: "Ana"},
			2: {ID: 2, Name: "Bruno"},
		},
		orders: orders,
	}
}

// monday noon, inside the operating window.
var monday = time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)

func at(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCanPurchase_InvalidCustomerID(t *testing.T) {
	for _, id := range []int64{0, -1, -1000} {
		for _, value := range []string{"0", "10", "-5"} {
			repo := newRepo(nil)
			e := NewEligibility(repo, DefaultPolicy(), at(monday))

			_, err := e.CanPurchase(context.Background(), id, decimal.RequireFromString(value))
			require.ErrorIs(t, err, ErrInvalidCustomerID)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Zero(t, repo.lookups)
		}
	}
}

func TestCanPurchase_InvalidPurchaseValue(t *testing.T) {
	for _, id := range []int64{1, 999} {
		for _, value := range []string{"0", "-0.01", "-100", "0.001", "50.005", "12345678901.00"} {
			repo := newRepo(nil)
			e := NewEligibility(repo, DefaultPolicy(), at(monday))

			_, err := e.CanPurchase(context.Background(), id, decimal.RequireFromString(value))
			require.ErrorIs(t, err, ErrInvalidPurchaseValue)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Zero(t, repo.lookups)
		}
	}
}

func TestCanPurchase_CustomerNotFound(t *testing.T) {
	e := NewEligibility(newRepo(nil), DefaultPolicy(), at(monday))

	ok, err := e.CanPurchase(context.Background(), 999, decimal.NewFromInt(100))
	require.ErrorIs(t, err, ErrNotFound)
	assert.False(t, ok)
}

func TestCanPurchase_RepositoryErrors(t *testing.T) {
	repo := newRepo(nil)
	repo.findErr = errors.New("db down")
	e := NewEligibility(repo, DefaultPolicy(), at(monday))

	_, err := e.CanPurchase(context.Background(), 1, decimal.NewFromInt(10))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "find customer")

	repo = newRepo(nil)
	repo.countErr = errors.New("timeout")
	e = NewEligibility(repo, DefaultPolicy(), at(monday))

	_, err = e.CanPurchase(context.Background(), 1, decimal.NewFromInt(10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count recent orders")
}

func TestEvaluate_Rules(t *testing.T) {
	tests := []struct {
		name       string
		now        time.Time
		orders     map[int64][]time.Time
		customerID int64
		value      string
		want       Decision
	}{
		{
			name:       "returning customer inside window",
			now:        monday,
			orders:     map[int64][]time.Time{1: {monday.AddDate(0, -3, 0)}},
			customerID: 1,
			value:      "500",
			want:       Decision{Allowed: true},
		},
		{
			name:       "order within cooldown",
			now:        monday,
			orders:     map[int64][]time.Time{1: {monday.Add(-10 * 24 * time.Hour)}},
			customerID: 1,
			value:      "10",
			want:       Decision{Reason: ReasonCooldown},
		},
		{
			name:       "order exactly at cooldown boundary",
			now:        monday,
			orders:     map[int64][]time.Time{1: {monday.Add(-30 * 24 * time.Hour)}},
			customerID: 1,
			value:      "10",
			want:       Decision{Reason: ReasonCooldown},
		},
		{
			name:       "order just before cooldown window",
			now:        monday,
			orders:     map[int64][]time.Time{1: {monday.Add(-30*24*time.Hour - time.Second)}},
			customerID: 1,
			value:      "10",
			want:       Decision{Allowed: true},
		},
		{
			name:       "first purchase above cap",
			now:        monday,
			customerID: 2,
			value:      "100.01",
			want:       Decision{Reason: ReasonFirstPurchaseCap},
		},
		{
			name:       "first purchase equal to cap",
			now:        monday,
			customerID: 2,
			value:      "100",
			want:       Decision{Allowed: true},
		},
		{
			name:       "cooldown wins over window",
			now:        time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC),
			orders:     map[int64][]time.Time{1: {monday.AddDate(0, 0, -3)}},
			customerID: 1,
			value:      "10",
			want:       Decision{Reason: ReasonCooldown},
		},
		{
			name:       "saturday",
			now:        time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC),
			customerID: 2,
			value:      "10",
			want:       Decision{Reason: ReasonOutsideWindow},
		},
		{
			name:       "sunday",
			now:        time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
			customerID: 2,
			value:      "10",
			want:       Decision{Reason: ReasonOutsideWindow},
		},
		{
			name:       "before opening",
			now:        time.Date(2025, 6, 16, 7, 59, 59, 0, time.UTC),
			customerID: 2,
			value:      "10",
			want:       Decision{Reason: ReasonOutsideWindow},
		},
		{
			name:       "at opening",
			now:        time.Date(2025, 6, 16, 8, 0, 0, 0, time.UTC),
			customerID: 2,
			value:      "10",
			want:       Decision{Allowed: true},
		},
		{
			name:       "last minute of closing hour",
			now:        time.Date(2025, 6, 20, 18, 59, 0, 0, time.UTC),
			customerID: 2,
			value:      "10",
			want:       Decision{Allowed: true},
		},
		{
			name:       "after closing",
			now:        time.Date(2025, 6, 20, 19, 0, 0, 0, time.UTC),
			customerID: 2,
			value:      "10",
			want:       Decision{Reason: ReasonOutsideWindow},
		},
		{
			name:       "local clock converted to UTC",
			now:        time.Date(2025, 6, 16, 17, 0, 0, 0, time.FixedZone("BRT", -3*60*60)),
			customerID: 2,
			value:      "10",
			want:       Decision{Reason: ReasonOutsideWindow},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEligibility(newRepo(tt.orders), DefaultPolicy(), at(tt.now))

			got, err := e.Evaluate(context.Background(), tt.customerID, decimal.RequireFromString(tt.value))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			ok, err := e.CanPurchase(context.Background(), tt.customerID, decimal.RequireFromString(tt.value))
			require.NoError(t, err)
			assert.Equal(t, tt.want.Allowed, ok)
		})
	}
}

func TestEvaluate_CooldownSinceIsUTC(t *testing.T) {
	repo := newRepo(nil)
	local := time.Date(2025, 6, 16, 9, 0, 0, 0, time.FixedZone("BRT", -3*60*60))
	e := NewEligibility(repo, DefaultPolicy(), at(local))

	_, err := e.Evaluate(context.Background(), 1, decimal.NewFromInt(10))
	require.NoError(t, err)

	require.Len(t, repo.since, 2)
	assert.Equal(t, time.UTC, repo.since[0].Location())
	assert.True(t, local.Add(-30*24*time.Hour).Equal(repo.since[0]))
	assert.True(t, repo.since[1].IsZero())
}

func TestEvaluate_CustomPolicy(t *testing.T) {
	policy := Policy{
		Cooldown:         time.Hour,
		FirstPurchaseCap: decimal.NewFromInt(20),
		OpenHour:         0,
		CloseHour:        23,
	}
	repo := newRepo(map[int64][]time.Time{1: {monday.Add(-2 * time.Hour)}})
	e := NewEligibility(repo, policy, at(monday))

	got, err := e.Evaluate(context.Background(), 1, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, got.Allowed)

	got, err = e.Evaluate(context.Background(), 2, decimal.NewFromInt(25))
	require.NoError(t, err)
	assert.Equal(t, ReasonFirstPurchaseCap, got.Reason)
}
