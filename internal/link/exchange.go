package link

import (
	"context"
	"net/http"
	"time"

	"github.com/liamba05/Fynnance/internal/auth"
	"github.com/liamba05/Fynnance/internal/retry"
)

// Exchanger swaps the widget's temporary credential for a durable
// connection identifier via the backend exchange endpoint.
type Exchanger struct {
	api   apiCaller
	retry retry.Policy
}

// ExchangerConfig mirrors InitiatorConfig; the two clients talk to
// the same backend under the same policy.
type ExchangerConfig struct {
	Origin     string
	Tokens     auth.TokenSource
	HTTPClient *http.Client
	Retry      *retry.Policy
	Timeout    time.Duration
}

func NewExchanger(cfg ExchangerConfig) *Exchanger {
	policy := retry.DefaultPolicy()
	policy.Retryable = retryableRemote
	if cfg.Retry != nil {
		policy = *cfg.Retry
	}

	return &Exchanger{
		api:   newAPICaller(cfg.Origin, cfg.Tokens, cfg.HTTPClient, cfg.Timeout),
		retry: policy,
	}
}

type exchangeResponse struct {
	ItemID string `json:"item_id"`
}

// Exchange posts the temporary credential and returns the durable
// connection identifier. Each attempt fetches a fresh identity token.
func (e *Exchanger) Exchange(ctx context.Context, publicToken string) (string, error) {
	resp, err := retry.DoValue(ctx, e.retry, func(ctx context.Context) (exchangeResponse, error) {
		var out exchangeResponse
		err := e.api.postJSON(ctx, "/api/exchange_public_token", map[string]string{
			"public_token": publicToken,
		}, &out)
		if err != nil {
			return exchangeResponse{}, err
		}
		return out, nil
	})
	if err != nil {
		return "", err
	}

	if resp.ItemID == "" {
		return "", ErrMalformedResponse
	}

	return resp.ItemID, nil
}
