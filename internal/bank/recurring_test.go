package bank

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outflow(merchant, date string, amount float64) Transaction {
	return Transaction{
		MerchantName: merchant,
		Name:         merchant,
		Date:         date,
		Amount:       decimal.NewFromFloat(amount),
	}
}

func TestDetectRecurringMonthlySubscription(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	txns := []Transaction{
		outflow("Netflix", "2026-05-15", 15.49),
		outflow("Netflix", "2026-06-15", 15.49),
		outflow("Netflix", "2026-07-15", 15.49),
		outflow("Netflix", "2026-08-15", 15.49),
		// One-off purchases must not register.
		outflow("Hardware Store", "2026-06-02", 84.13),
	}

	found := detectRecurring(txns, now)
	require.Len(t, found, 1)

	r := found[0]
	assert.Equal(t, "Netflix", r.Name)
	assert.Equal(t, "monthly", r.Frequency)
	assert.True(t, r.Amount.Equal(decimal.RequireFromString("15.49")))
	assert.Equal(t, "2026-08-15", r.LastPayment)
	assert.Equal(t, "2026-09-15", r.NextPayment)

	// Identical amounts and near-identical spacing score high.
	assert.Greater(t, r.Confidence, recurringConfidenceFloor)
}

func TestDetectRecurringIgnoresIrregularAmounts(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	txns := []Transaction{
		outflow("Grocery Mart", "2026-06-01", 42.10),
		outflow("Grocery Mart", "2026-07-01", 118.75),
		outflow("Grocery Mart", "2026-08-01", 61.30),
	}

	assert.Empty(t, detectRecurring(txns, now))
}

func TestDetectRecurringIgnoresInflows(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	txns := []Transaction{
		outflow("Employer Payroll", "2026-07-01", -3200),
		outflow("Employer Payroll", "2026-08-01", -3200),
	}

	assert.Empty(t, detectRecurring(txns, now))
}

func TestDetectRecurringWeekly(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	var txns []Transaction
	day := time.Date(2026, 6, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		txns = append(txns, outflow("Gym", day.Format("2006-01-02"), 12))
		day = day.AddDate(0, 0, 7)
	}

	found := detectRecurring(txns, now)
	require.Len(t, found, 1)
	assert.Equal(t, "weekly", found[0].Frequency)
	assert.InDelta(t, 7, found[0].IntervalDays, 0.01)
}

func TestDetectRecurringOrderedByConfidence(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	var txns []Transaction

	// A long, perfectly regular history.
	day := time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		txns = append(txns, outflow("Rent Co", day.Format("2006-01-02"), 1800))
		day = day.AddDate(0, 1, 0)
	}
	// A short one with slightly wobbly amounts.
	txns = append(txns,
		outflow("Streaming Plus", "2026-07-03", 9.99),
		outflow("Streaming Plus", "2026-08-02", 10.49),
	)

	found := detectRecurring(txns, now)
	require.Len(t, found, 2)
	assert.Equal(t, "Rent Co", found[0].Name)
	assert.Greater(t, found[0].Confidence, found[1].Confidence)
}

func TestMonthlyRecurringTotal(t *testing.T) {
	payments := []RecurringPayment{
		{Name: "Rent Co", Amount: decimal.NewFromInt(1800), IntervalDays: 30, Confidence: 0.95},
		{Name: "Gym", Amount: decimal.NewFromInt(12), IntervalDays: 7.5, Confidence: 0.9},
		// Too uncertain to project.
		{Name: "Maybe", Amount: decimal.NewFromInt(100), IntervalDays: 30, Confidence: 0.5},
	}

	total := monthlyRecurringTotal(payments)
	// 1800 + 12 * (30 / 7.5) = 1848
	assert.True(t, total.Equal(decimal.NewFromInt(1848)), total.String())
}

func TestClassifyInterval(t *testing.T) {
	cases := []struct {
		days float64
		want string
	}{
		{7, "weekly"},
		{14, "biweekly"},
		{30, "monthly"},
		{91, "quarterly"},
		{3, "irregular"},
		{50, "irregular"},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%v", tc.days), func(t *testing.T) {
			assert.Equal(t, tc.want, classifyInterval(tc.days))
		})
	}
}
