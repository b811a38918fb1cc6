package bank

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liamba05/Fynnance/internal/logger"

	"github.com/shopspring/decimal"
)

const (
	defaultTransactionsDays = 30
	recentTransactionsCap   = 10
)

// BalanceTotals sums current balances by account type.
type BalanceTotals struct {
	Checking   decimal.Decimal `json:"checking"`
	Savings    decimal.Decimal `json:"savings"`
	Investment decimal.Decimal `json:"investment"`
	Credit     decimal.Decimal `json:"credit"`
	Loan       decimal.Decimal `json:"loan"`
}

// CategoryTotal aggregates spending within one category.
type CategoryTotal struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total_amount"`
}

// TransactionSummary condenses the transaction window.
type TransactionSummary struct {
	Total       int                      `json:"total"`
	TotalSpend  decimal.Decimal          `json:"total_spend"`
	TotalIncome decimal.Decimal          `json:"total_income"`
	ByCategory  map[string]CategoryTotal `json:"by_category"`
}

// LoanProjection ties a payoff prediction to its loan account. Note
// is set instead of Prediction when no amortization is possible.
type LoanProjection struct {
	AccountID  string            `json:"account_id"`
	Type       string            `json:"type"`
	Prediction *PayoffPrediction `json:"prediction,omitempty"`
	Note       string            `json:"note,omitempty"`
}

// LiabilitySummary condenses the item's debts.
type LiabilitySummary struct {
	TotalDebt            decimal.Decimal  `json:"total_debt"`
	TotalMinimumPayments decimal.Decimal  `json:"total_minimum_payments"`
	OverdueAccounts      int              `json:"overdue_accounts"`
	Projections          []LoanProjection `json:"projections,omitempty"`
}

// FinancialProfile is the assembled picture of one linked item:
// balances, a transaction window, recurring payments, and debts.
type FinancialProfile struct {
	Balances         BalanceTotals      `json:"balances"`
	NetWorth         decimal.Decimal    `json:"net_worth"`
	Transactions     TransactionSummary `json:"transactions"`
	Recent           []Transaction      `json:"recent_transactions"`
	Recurring        []RecurringPayment `json:"recurring_payments"`
	MonthlyRecurring decimal.Decimal    `json:"monthly_recurring_total"`
	Liabilities      LiabilitySummary   `json:"liabilities"`
	WindowDays       int                `json:"transactions_days"`
	GeneratedAt      time.Time          `json:"generated_at"`
}

// financialData is the slice of the aggregator the profile builder
// reads from.
type financialData interface {
	Accounts(ctx context.Context, accessToken string) ([]Account, error)
	Transactions(ctx context.Context, accessToken string, start, end time.Time) ([]Transaction, error)
	ItemLiabilities(ctx context.Context, accessToken string) (Liabilities, error)
}

// ProfileService builds financial profiles for linked items.
type ProfileService struct {
	data  financialData
	items TokenStore
	now   func() time.Time
}

func NewProfileService(data financialData, items TokenStore) *ProfileService {
	return &ProfileService{data: data, items: items, now: time.Now}
}

// Build assembles the financial profile for one of the user's linked
// items, covering the last days of transactions.
func (s *ProfileService) Build(ctx context.Context, userID, itemID string, days int) (*FinancialProfile, error) {
	if days <= 0 {
		days = defaultTransactionsDays
	}

	accessToken, err := s.items.AccessToken(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	accounts, err := s.data.Accounts(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	now := s.now()
	txns, err := s.data.Transactions(ctx, accessToken, now.AddDate(0, 0, -days), now)
	if err != nil {
		return nil, err
	}

	// Not every institution supports the liabilities product, so a
	// failure here degrades to an empty section.
	liabilities, err := s.data.ItemLiabilities(ctx, accessToken)
	if err != nil {
		logger.Warn("liabilities fetch failed, continuing without", map[string]any{
			"user_id": userID,
			"item_id": itemID,
			"error":   err.Error(),
		})
		liabilities = Liabilities{}
	}

	recurring := detectRecurring(txns, now)

	p := &FinancialProfile{
		Balances:         sumBalances(accounts),
		Transactions:     summarizeTransactions(txns),
		Recent:           recentTransactions(txns),
		Recurring:        recurring,
		MonthlyRecurring: monthlyRecurringTotal(recurring),
		Liabilities:      summarizeLiabilities(liabilities, accounts, now),
		WindowDays:       days,
		GeneratedAt:      now,
	}
	p.NetWorth = p.Balances.Checking.
		Add(p.Balances.Savings).
		Add(p.Balances.Investment).
		Sub(p.Balances.Credit).
		Sub(p.Balances.Loan)

	return p, nil
}

// Summary renders a compact plain-text snapshot of the profile,
// suitable for prompt context.
func (s *ProfileService) Summary(ctx context.Context, userID, itemID string) (string, error) {
	p, err := s.Build(ctx, userID, itemID, defaultTransactionsDays)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Net worth: %s\n", p.NetWorth.StringFixed(2))
	fmt.Fprintf(&b, "Balances: checking %s, savings %s, investment %s, credit %s, loans %s\n",
		p.Balances.Checking.StringFixed(2),
		p.Balances.Savings.StringFixed(2),
		p.Balances.Investment.StringFixed(2),
		p.Balances.Credit.StringFixed(2),
		p.Balances.Loan.StringFixed(2),
	)
	fmt.Fprintf(&b, "Last %d days: %d transactions, spent %s, received %s\n",
		p.WindowDays, p.Transactions.Total,
		p.Transactions.TotalSpend.StringFixed(2),
		p.Transactions.TotalIncome.StringFixed(2),
	)
	if len(p.Recurring) > 0 {
		fmt.Fprintf(&b, "Recurring payments (~%s/month):\n", p.MonthlyRecurring.StringFixed(2))
		for _, r := range p.Recurring {
			fmt.Fprintf(&b, "- %s: %s %s, next around %s\n",
				r.Name, r.Amount.StringFixed(2), r.Frequency, r.NextPayment)
		}
	}
	if p.Liabilities.TotalDebt.IsPositive() {
		fmt.Fprintf(&b, "Total debt: %s, minimum payments %s/month\n",
			p.Liabilities.TotalDebt.StringFixed(2),
			p.Liabilities.TotalMinimumPayments.StringFixed(2),
		)
	}
	return b.String(), nil
}

func sumBalances(accounts []Account) BalanceTotals {
	var t BalanceTotals
	for _, a := range accounts {
		current := a.Balances.Current
		switch a.Type {
		case "depository":
			if a.Subtype == "savings" {
				t.Savings = t.Savings.Add(current)
			} else {
				t.Checking = t.Checking.Add(current)
			}
		case "investment":
			t.Investment = t.Investment.Add(current)
		case "credit":
			t.Credit = t.Credit.Add(current)
		case "loan":
			t.Loan = t.Loan.Add(current)
		}
	}
	return t
}

func summarizeTransactions(txns []Transaction) TransactionSummary {
	s := TransactionSummary{
		Total:      len(txns),
		ByCategory: make(map[string]CategoryTotal),
	}
	for _, t := range txns {
		if t.Amount.IsPositive() {
			s.TotalSpend = s.TotalSpend.Add(t.Amount)
		} else {
			s.TotalIncome = s.TotalIncome.Add(t.Amount.Abs())
		}

		category := "uncategorized"
		if len(t.Category) > 0 {
			category = t.Category[0]
		}
		ct := s.ByCategory[category]
		ct.Count++
		ct.Total = ct.Total.Add(t.Amount)
		s.ByCategory[category] = ct
	}
	return s
}

// recentTransactions keeps the newest transactions, assuming the
// provider returns them newest first.
func recentTransactions(txns []Transaction) []Transaction {
	if len(txns) <= recentTransactionsCap {
		return txns
	}
	return txns[:recentTransactionsCap]
}

func summarizeLiabilities(l Liabilities, accounts []Account, now time.Time) LiabilitySummary {
	var s LiabilitySummary

	balanceByAccount := make(map[string]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		balanceByAccount[a.ID] = a.Balances.Current
	}

	for _, c := range l.Credit {
		s.TotalDebt = s.TotalDebt.Add(c.LastStatementBalance)
		s.TotalMinimumPayments = s.TotalMinimumPayments.Add(c.MinimumPayment)
		if c.IsOverdue {
			s.OverdueAccounts++
		}
	}

	for _, m := range l.Mortgage {
		s.TotalDebt = s.TotalDebt.Add(m.PrincipalBalance)
		s.TotalMinimumPayments = s.TotalMinimumPayments.Add(m.NextMonthlyPayment)
		s.Projections = append(s.Projections, projectLoan(
			m.AccountID, "mortgage",
			m.PrincipalBalance, m.InterestRate.Percentage, m.NextMonthlyPayment, now,
		))
	}

	for _, st := range l.Student {
		balance := balanceByAccount[st.AccountID]
		s.TotalDebt = s.TotalDebt.Add(balance)
		s.TotalMinimumPayments = s.TotalMinimumPayments.Add(st.MinimumPayment)
		s.Projections = append(s.Projections, projectLoan(
			st.AccountID, "student",
			balance, st.InterestRatePercentage, st.MinimumPayment, now,
		))
	}

	return s
}

func projectLoan(accountID, loanType string, balance decimal.Decimal, ratePercent float64, payment decimal.Decimal, now time.Time) LoanProjection {
	p := LoanProjection{AccountID: accountID, Type: loanType}
	pred, err := predictPayoff(balance, ratePercent, payment, now)
	if err != nil {
		p.Note = "Minimum payment too low to pay off this loan"
		return p
	}
	p.Prediction = &pred
	return p
}
