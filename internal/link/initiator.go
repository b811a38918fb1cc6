package link

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/liamba05/Fynnance/internal/auth"
	"github.com/liamba05/Fynnance/internal/logger"
	"github.com/liamba05/Fynnance/internal/retry"
)

// InitiatorConfig configures a session initiator. Zero values get
// safe defaults from NewInitiator.
type InitiatorConfig struct {
	Origin     string
	Tokens     auth.TokenSource
	HTTPClient *http.Client  // nil => http.DefaultClient
	Retry      *retry.Policy // nil => default policy with the 4xx gate
	Timeout    time.Duration // per-call deadline; 0 disables

	// SkipHealthProbe disables the pre-flight liveness check.
	SkipHealthProbe bool
}

// Initiator obtains a single-use link session token from the backend,
// authenticated as the current user.
type Initiator struct {
	api         apiCaller
	retry       retry.Policy
	probeHealth bool
}

func NewInitiator(cfg InitiatorConfig) *Initiator {
	policy := retry.DefaultPolicy()
	policy.Retryable = retryableRemote
	if cfg.Retry != nil {
		policy = *cfg.Retry
	}

	return &Initiator{
		api:         newAPICaller(cfg.Origin, cfg.Tokens, cfg.HTTPClient, cfg.Timeout),
		retry:       policy,
		probeHealth: !cfg.SkipHealthProbe,
	}
}

type linkTokenResponse struct {
	LinkToken  string `json:"link_token"`
	Expiration string `json:"expiration"`
}

// CreateSession mints a link session token.
//
// Preconditions run before any session request: an authenticated user
// must be present (ErrUnauthenticated, zero network calls otherwise)
// and the backend must answer its liveness probe
// (ErrBackendUnavailable). A success response without a link_token is
// ErrMalformedResponse.
func (i *Initiator) CreateSession(ctx context.Context) (string, error) {
	if _, err := i.api.tokens.IdentityToken(ctx); err != nil {
		if errors.Is(err, auth.ErrNotSignedIn) {
			return "", ErrUnauthenticated
		}
		return "", fmt.Errorf("link: failed to obtain identity token: %w", err)
	}

	if i.probeHealth {
		if err := i.checkHealth(ctx); err != nil {
			return "", err
		}
	}

	resp, err := retry.DoValue(ctx, i.retry, func(ctx context.Context) (linkTokenResponse, error) {
		var out linkTokenResponse
		if err := i.api.postJSON(ctx, "/api/create_link_token", nil, &out); err != nil {
			return linkTokenResponse{}, err
		}
		return out, nil
	})
	if err != nil {
		return "", err
	}

	if resp.LinkToken == "" {
		return "", ErrMalformedResponse
	}

	return resp.LinkToken, nil
}

// checkHealth probes the backend liveness endpoint. Unreachability is
// reported as the distinct ErrBackendUnavailable so the user gets an
// actionable message instead of a generic network failure.
func (i *Initiator) checkHealth(ctx context.Context) error {
	ctx, cancel := i.api.callCtx(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.api.origin+"/health", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	resp, err := i.api.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("backend health probe failed", map[string]any{
			"status": resp.StatusCode,
		})
		return fmt.Errorf("%w: health status %d", ErrBackendUnavailable, resp.StatusCode)
	}

	return nil
}
