package bank

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// ErrPaymentTooLow means the monthly payment does not cover the
// interest accruing each month, so the balance never shrinks.
var ErrPaymentTooLow = errors.New("bank: payment does not cover monthly interest")

// PayoffPrediction is the amortization outcome for a loan at its
// current balance, rate, and payment.
type PayoffPrediction struct {
	MonthsRemaining int             `json:"months_remaining"`
	PayoffDate      string          `json:"payoff_date"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
	TotalInterest   decimal.Decimal `json:"total_interest"`
	Accelerated     []Acceleration  `json:"accelerated_scenarios"`
}

// Acceleration shows the effect of paying a fixed extra amount each
// month.
type Acceleration struct {
	ExtraMonthly    decimal.Decimal `json:"extra_monthly"`
	MonthsRemaining int             `json:"months_remaining"`
	MonthsSaved     int             `json:"months_saved"`
	InterestSaved   decimal.Decimal `json:"interest_saved"`
}

var acceleratedExtras = []int64{100, 200, 500}

// predictPayoff amortizes a loan balance under a fixed monthly
// payment. annualRatePercent is the nominal annual rate, e.g. 5.25
// for 5.25%.
func predictPayoff(balance decimal.Decimal, annualRatePercent float64, payment decimal.Decimal, now time.Time) (PayoffPrediction, error) {
	months, interest, err := amortize(balance, annualRatePercent, payment)
	if err != nil {
		return PayoffPrediction{}, err
	}

	pred := PayoffPrediction{
		MonthsRemaining: months,
		PayoffDate:      now.AddDate(0, months, 0).Format(dateLayout),
		TotalPaid:       balance.Add(interest).Round(2),
		TotalInterest:   interest.Round(2),
	}

	for _, extra := range acceleratedExtras {
		extraD := decimal.NewFromInt(extra)
		fasterMonths, fasterInterest, err := amortize(balance, annualRatePercent, payment.Add(extraD))
		if err != nil {
			continue
		}
		pred.Accelerated = append(pred.Accelerated, Acceleration{
			ExtraMonthly:    extraD,
			MonthsRemaining: fasterMonths,
			MonthsSaved:     months - fasterMonths,
			InterestSaved:   interest.Sub(fasterInterest).Round(2),
		})
	}

	return pred, nil
}

// amortize returns the number of monthly payments needed to clear the
// balance and the total interest paid along the way.
func amortize(balance decimal.Decimal, annualRatePercent float64, payment decimal.Decimal) (int, decimal.Decimal, error) {
	b := balance.InexactFloat64()
	p := payment.InexactFloat64()
	if b <= 0 {
		return 0, decimal.Zero, nil
	}
	if p <= 0 {
		return 0, decimal.Zero, ErrPaymentTooLow
	}

	r := annualRatePercent / 12 / 100
	if r <= 0 {
		months := int(math.Ceil(b / p))
		return months, decimal.Zero, nil
	}

	if p <= b*r {
		return 0, decimal.Zero, ErrPaymentTooLow
	}

	months := int(math.Ceil(math.Log(p/(p-b*r)) / math.Log(1+r)))
	totalPaid := decimal.NewFromFloat(p).Mul(decimal.NewFromInt(int64(months)))
	interest := totalPaid.Sub(balance)
	if interest.IsNegative() {
		interest = decimal.Zero
	}
	return months, interest, nil
}
