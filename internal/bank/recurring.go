package bank

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Recurring detection thresholds. A merchant needs at least two
// charges with stable amounts and stable spacing before it counts as
// a recurring payment.
const (
	minRecurringOccurrences = 2
	maxAmountVariation      = 0.1
	maxIntervalVariation    = 0.3

	// Payments older than this stop contributing recency weight.
	recencyWindowDays = 180

	// Below this confidence a candidate is excluded from the
	// projected monthly total.
	recurringConfidenceFloor = 0.7
)

const dateLayout = "2006-01-02"

// RecurringPayment is one detected subscription or bill.
type RecurringPayment struct {
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"`
	Frequency    string          `json:"frequency"`
	IntervalDays float64         `json:"interval_days"`
	Confidence   float64         `json:"confidence"`
	LastPayment  string          `json:"last_payment"`
	NextPayment  string          `json:"next_payment"`
}

// detectRecurring groups outflows by merchant and keeps the groups
// whose amounts and spacing are regular enough to look like a
// standing payment. Results are ordered by confidence.
func detectRecurring(txns []Transaction, now time.Time) []RecurringPayment {
	type dated struct {
		date   time.Time
		amount float64
	}

	groups := make(map[string][]dated)
	for _, t := range txns {
		if !t.Amount.IsPositive() {
			continue
		}
		name := t.MerchantName
		if name == "" {
			name = t.Name
		}
		if name == "" {
			continue
		}
		d, err := time.Parse(dateLayout, t.Date)
		if err != nil {
			continue
		}
		groups[name] = append(groups[name], dated{date: d, amount: t.Amount.InexactFloat64()})
	}

	var out []RecurringPayment
	for name, items := range groups {
		if len(items) < minRecurringOccurrences {
			continue
		}
		sort.Slice(items, func(i, j int) bool { return items[i].date.Before(items[j].date) })

		amounts := make([]float64, len(items))
		for i, it := range items {
			amounts[i] = it.amount
		}
		amountMean, amountCV := meanAndVariation(amounts)
		if amountMean <= 0 || amountCV > maxAmountVariation {
			continue
		}

		intervals := make([]float64, 0, len(items)-1)
		for i := 1; i < len(items); i++ {
			intervals = append(intervals, items[i].date.Sub(items[i-1].date).Hours()/24)
		}
		intervalMean, intervalCV := meanAndVariation(intervals)
		if intervalMean <= 0 || intervalCV > maxIntervalVariation {
			continue
		}

		last := items[len(items)-1].date
		daysSinceLast := now.Sub(last).Hours() / 24
		recency := math.Max(0, 1-daysSinceLast/recencyWindowDays)

		confidence := 0.4*(1-amountCV/maxAmountVariation) +
			0.3*(1-intervalCV/maxIntervalVariation) +
			0.2*math.Min(float64(len(items))/12, 1) +
			0.1*recency

		next := last.AddDate(0, 0, int(math.Round(intervalMean)))

		out = append(out, RecurringPayment{
			Name:         name,
			Amount:       decimal.NewFromFloat(amountMean).Round(2),
			Frequency:    classifyInterval(intervalMean),
			IntervalDays: intervalMean,
			Confidence:   confidence,
			LastPayment:  last.Format(dateLayout),
			NextPayment:  next.Format(dateLayout),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// monthlyRecurringTotal projects confident recurring payments onto a
// thirty day month.
func monthlyRecurringTotal(payments []RecurringPayment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.Confidence < recurringConfidenceFloor || p.IntervalDays <= 0 {
			continue
		}
		monthly := p.Amount.Mul(decimal.NewFromFloat(30 / p.IntervalDays))
		total = total.Add(monthly)
	}
	return total.Round(2)
}

func classifyInterval(days float64) string {
	switch {
	case days >= 25 && days <= 35:
		return "monthly"
	case days >= 5 && days <= 9:
		return "weekly"
	case days >= 12 && days <= 16:
		return "biweekly"
	case days >= 85 && days <= 95:
		return "quarterly"
	default:
		return "irregular"
	}
}

// meanAndVariation returns the mean and the coefficient of variation
// (population standard deviation over mean) of vs.
func meanAndVariation(vs []float64) (mean, cv float64) {
	if len(vs) == 0 {
		return 0, 0
	}
	for _, v := range vs {
		mean += v
	}
	mean /= float64(len(vs))
	if mean == 0 {
		return 0, 0
	}

	var variance float64
	for _, v := range vs {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(vs))

	return mean, math.Sqrt(variance) / mean
}
