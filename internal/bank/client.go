// Package bank talks to the account-aggregation provider: minting
// link tokens, exchanging public tokens, and storing the resulting
// access credentials.
package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Client calls the aggregator's REST API (Plaid-compatible sandbox).
type Client struct {
	baseURL     string
	clientID    string
	secret      string
	redirectURI string
	client      *http.Client
	timeout     time.Duration
}

func NewClient(baseURL, clientID, secret, redirectURI string, timeout time.Duration) (*Client, error) {
	if clientID == "" || secret == "" {
		return nil, errors.New("bank: aggregator credentials missing")
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		clientID:    clientID,
		secret:      secret,
		redirectURI: redirectURI,
		client:      &http.Client{},
		timeout:     timeout,
	}, nil
}

// aggregatorError is a non-2xx reply from the provider.
type aggregatorError struct {
	Status    int
	ErrorCode string `json:"error_code"`
	Message   string `json:"error_message"`
}

func (e *aggregatorError) Error() string {
	return fmt.Sprintf("bank: aggregator error (status %d, code %s): %s",
		e.Status, e.ErrorCode, e.Message)
}

func (c *Client) post(ctx context.Context, path string, payload map[string]any, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	payload["client_id"] = c.clientID
	payload["secret"] = c.secret

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bank: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("bank: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("bank: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("bank: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		aggErr := &aggregatorError{Status: resp.StatusCode}
		_ = json.Unmarshal(raw, aggErr)
		return aggErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("bank: failed to decode response: %w", err)
	}
	return nil
}

// LinkToken is a single-use session token authorizing one widget run.
type LinkToken struct {
	Token      string `json:"link_token"`
	Expiration string `json:"expiration"`
}

// CreateLinkToken mints a link session for the given user.
func (c *Client) CreateLinkToken(ctx context.Context, userID string) (LinkToken, error) {
	var out LinkToken
	err := c.post(ctx, "/link/token/create", map[string]any{
		"user":          map[string]string{"client_user_id": userID},
		"client_name":   "Fynn",
		"products":      []string{"auth", "transactions", "liabilities"},
		"country_codes": []string{"US"},
		"language":      "en",
		"redirect_uri":  c.redirectURI,
	}, &out)
	if err != nil {
		return LinkToken{}, err
	}
	if out.Token == "" {
		return LinkToken{}, errors.New("bank: no link token in aggregator response")
	}
	return out, nil
}

// Exchange swaps a widget public token for an access token and the
// durable item id.
func (c *Client) Exchange(ctx context.Context, publicToken string) (accessToken, itemID string, err error) {
	var out struct {
		AccessToken string `json:"access_token"`
		ItemID      string `json:"item_id"`
	}
	err = c.post(ctx, "/item/public_token/exchange", map[string]any{
		"public_token": publicToken,
	}, &out)
	if err != nil {
		return "", "", err
	}
	if out.AccessToken == "" || out.ItemID == "" {
		return "", "", errors.New("bank: incomplete exchange response")
	}
	return out.AccessToken, out.ItemID, nil
}

// Account is one depository or credit account on a linked item.
type Account struct {
	ID       string          `json:"account_id"`
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Subtype  string          `json:"subtype"`
	Mask     string          `json:"mask"`
	Balances AccountBalances `json:"balances"`
}

// AccountBalances carries the provider's balance figures. Available
// may be absent for some account types.
type AccountBalances struct {
	Available decimal.NullDecimal `json:"available"`
	Current   decimal.Decimal     `json:"current"`
	Currency  string              `json:"iso_currency_code"`
}

// Accounts fetches the accounts and balances for a linked item.
func (c *Client) Accounts(ctx context.Context, accessToken string) ([]Account, error) {
	var out struct {
		Accounts []Account `json:"accounts"`
	}
	err := c.post(ctx, "/accounts/balance/get", map[string]any{
		"access_token": accessToken,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Accounts, nil
}

// Transaction is one settled or pending transaction. A positive amount
// is money leaving the account, a negative amount is money coming in.
type Transaction struct {
	ID             string          `json:"transaction_id"`
	AccountID      string          `json:"account_id"`
	Date           string          `json:"date"`
	Name           string          `json:"name"`
	MerchantName   string          `json:"merchant_name"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"iso_currency_code"`
	Category       []string        `json:"category"`
	Pending        bool            `json:"pending"`
	PaymentChannel string          `json:"payment_channel"`
}

const transactionsPageSize = 500

// Transactions fetches every transaction in [start, end], following
// the provider's offset pagination until the reported total is
// reached.
func (c *Client) Transactions(ctx context.Context, accessToken string, start, end time.Time) ([]Transaction, error) {
	var all []Transaction
	for {
		var out struct {
			Transactions []Transaction `json:"transactions"`
			Total        int           `json:"total_transactions"`
		}
		err := c.post(ctx, "/transactions/get", map[string]any{
			"access_token": accessToken,
			"start_date":   start.Format("2006-01-02"),
			"end_date":     end.Format("2006-01-02"),
			"options": map[string]any{
				"count":  transactionsPageSize,
				"offset": len(all),
			},
		}, &out)
		if err != nil {
			return nil, err
		}

		all = append(all, out.Transactions...)
		if len(all) >= out.Total || len(out.Transactions) == 0 {
			return all, nil
		}
	}
}

// InterestRate is the provider's nested rate object.
type InterestRate struct {
	Percentage float64 `json:"percentage"`
}

// CreditLiability is one revolving credit account's statement detail.
type CreditLiability struct {
	AccountID            string          `json:"account_id"`
	LastStatementBalance decimal.Decimal `json:"last_statement_balance"`
	MinimumPayment       decimal.Decimal `json:"minimum_payment_amount"`
	IsOverdue            bool            `json:"is_overdue"`
}

// MortgageLiability is one mortgage's amortization detail.
type MortgageLiability struct {
	AccountID            string          `json:"account_id"`
	PrincipalBalance     decimal.Decimal `json:"outstanding_principal_balance"`
	OriginationPrincipal decimal.Decimal `json:"origination_principal_amount"`
	InterestRate         InterestRate    `json:"interest_rate"`
	NextMonthlyPayment   decimal.Decimal `json:"next_monthly_payment"`
}

// StudentLoanLiability is one student or personal loan's detail. The
// current balance lives on the matching account record.
type StudentLoanLiability struct {
	AccountID              string          `json:"account_id"`
	InterestRatePercentage float64         `json:"interest_rate_percentage"`
	MinimumPayment         decimal.Decimal `json:"minimum_payment_amount"`
	OriginationPrincipal   decimal.Decimal `json:"origination_principal_amount"`
}

// Liabilities groups the item's debts by kind.
type Liabilities struct {
	Credit   []CreditLiability      `json:"credit"`
	Mortgage []MortgageLiability    `json:"mortgage"`
	Student  []StudentLoanLiability `json:"student"`
}

// ItemLiabilities fetches the liability detail for a linked item.
func (c *Client) ItemLiabilities(ctx context.Context, accessToken string) (Liabilities, error) {
	var out struct {
		Liabilities Liabilities `json:"liabilities"`
	}
	err := c.post(ctx, "/liabilities/get", map[string]any{
		"access_token": accessToken,
	}, &out)
	if err != nil {
		return Liabilities{}, err
	}
	return out.Liabilities, nil
}
