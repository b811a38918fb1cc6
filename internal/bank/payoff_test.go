package bank

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictPayoff(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	// 10000 at 12% with a 500 payment clears in 23 months.
	pred, err := predictPayoff(
		decimal.NewFromInt(10000), 12, decimal.NewFromInt(500), now,
	)
	require.NoError(t, err)

	assert.Equal(t, 23, pred.MonthsRemaining)
	assert.Equal(t, "2028-07-30", pred.PayoffDate)
	assert.True(t, pred.TotalPaid.Equal(decimal.NewFromInt(11500)), pred.TotalPaid.String())
	assert.True(t, pred.TotalInterest.Equal(decimal.NewFromInt(1500)), pred.TotalInterest.String())
}

func TestPredictPayoffAcceleratedScenarios(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	pred, err := predictPayoff(
		decimal.NewFromInt(10000), 12, decimal.NewFromInt(500), now,
	)
	require.NoError(t, err)
	require.Len(t, pred.Accelerated, 3)

	for i, sc := range pred.Accelerated {
		assert.Positive(t, sc.MonthsSaved, "scenario %d", i)
		assert.True(t, sc.InterestSaved.IsPositive(), "scenario %d", i)
		assert.Less(t, sc.MonthsRemaining, pred.MonthsRemaining)
	}
	// Bigger extra payments save more months.
	assert.GreaterOrEqual(t,
		pred.Accelerated[2].MonthsSaved, pred.Accelerated[0].MonthsSaved)
}

func TestPredictPayoffPaymentTooLow(t *testing.T) {
	now := time.Now()

	// 1% monthly interest on 10000 is 100; a 100 payment never
	// reduces the balance.
	_, err := predictPayoff(
		decimal.NewFromInt(10000), 12, decimal.NewFromInt(100), now,
	)
	assert.ErrorIs(t, err, ErrPaymentTooLow)

	_, err = predictPayoff(
		decimal.NewFromInt(10000), 12, decimal.Zero, now,
	)
	assert.ErrorIs(t, err, ErrPaymentTooLow)
}

func TestPredictPayoffZeroRate(t *testing.T) {
	now := time.Now()

	pred, err := predictPayoff(
		decimal.NewFromInt(1200), 0, decimal.NewFromInt(100), now,
	)
	require.NoError(t, err)
	assert.Equal(t, 12, pred.MonthsRemaining)
	assert.True(t, pred.TotalInterest.IsZero())
}

func TestPredictPayoffZeroBalance(t *testing.T) {
	pred, err := predictPayoff(
		decimal.Zero, 12, decimal.NewFromInt(100), time.Now(),
	)
	require.NoError(t, err)
	assert.Equal(t, 0, pred.MonthsRemaining)
}
