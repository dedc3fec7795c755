package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailshop-bot/internal/model"
)

func TestRatesSorted(t *testing.T) {
	f := newFixture(t)

	rates := f.discount.Rates()
	require.Len(t, rates, 5)
	for i := 1; i < len(rates); i++ {
		assert.Less(t, rates[i-1].Quantity, rates[i].Quantity)
	}
	assert.Equal(t, 10, rates[0].Quantity)
	assert.Equal(t, int64(10000), rates[0].Amount)
}

func TestEligibleAmount(t *testing.T) {
	f := newFixture(t)

	// Defaults: 10->10000, 20->40000, 30->70000, 40->105000, 50->170000.
	assert.Equal(t, int64(0), f.discount.EligibleAmount(9))
	assert.Equal(t, int64(10000), f.discount.EligibleAmount(10))
	assert.Equal(t, int64(10000), f.discount.EligibleAmount(19))
	assert.Equal(t, int64(40000), f.discount.EligibleAmount(20))
	assert.Equal(t, int64(170000), f.discount.EligibleAmount(120))
}

func TestClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fund(t, 100, 0)
	orderID, err := f.repo.CreateOrder(ctx, 100, 20, 1000000)
	require.NoError(t, err)

	amount, err := f.discount.Claim(ctx, 100, orderID)
	require.NoError(t, err)
	assert.Equal(t, int64(40000), amount)

	balance, err := f.repo.GetBalance(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(40000), balance)

	// Second claim on the same order is rejected.
	_, err = f.discount.Claim(ctx, 100, orderID)
	assert.ErrorIs(t, err, model.ErrAlreadyClaimed)
}

func TestClaimUnknownOrder(t *testing.T) {
	f := newFixture(t)
	f.fund(t, 100, 0)

	_, err := f.discount.Claim(context.Background(), 100, "ORDFFFFFFFF")
	assert.ErrorIs(t, err, model.ErrOrderNotFound)
}

func TestClaimWrongOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fund(t, 100, 0)
	f.fund(t, 200, 0)
	orderID, err := f.repo.CreateOrder(ctx, 100, 20, 1000000)
	require.NoError(t, err)

	_, err = f.discount.Claim(ctx, 200, orderID)
	assert.ErrorIs(t, err, model.ErrNotOrderOwner)
}

func TestClaimNotEligible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fund(t, 100, 0)
	orderID, err := f.repo.CreateOrder(ctx, 100, 5, 250000)
	require.NoError(t, err)

	_, err = f.discount.Claim(ctx, 100, orderID)
	assert.ErrorIs(t, err, model.ErrNotEligible)
}

func TestSetAndRemoveRate(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.discount.SetRate(100, 400000))
	assert.Equal(t, int64(400000), f.discount.EligibleAmount(100))

	removed, err := f.discount.RemoveRate(100)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, int64(170000), f.discount.EligibleAmount(100))

	removed, err = f.discount.RemoveRate(100)
	require.NoError(t, err)
	assert.False(t, removed)

	assert.ErrorIs(t, f.discount.SetRate(0, 1000), model.ErrInvalidInput)
}
