package link

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

	"github.com/liamba05/Fynnance/internal/auth"
)

// apiCaller holds the pieces shared by the session initiator and the
// token exchanger: backend origin, identity token source, and the
// per-call deadline.
type apiCaller struct {
	origin  string
	tokens  auth.TokenSource
	client  *http.Client
	timeout time.Duration
}

func newAPICaller(origin string, tokens auth.TokenSource, client *http.Client, timeout time.Duration) apiCaller {
	if client == nil {
		client = http.DefaultClient
	}
	return apiCaller{
		origin:  strings.TrimRight(origin, "/"),
		tokens:  tokens,
		client:  client,
		timeout: timeout,
	}
}

func (a apiCaller) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}

// postJSON issues one authenticated POST. The identity token is
// fetched fresh for every attempt, never cached. A non-success status
// becomes a *RemoteError carrying the structured {error, details}
// message when the body parses, or the raw body otherwise.
func (a apiCaller) postJSON(ctx context.Context, path string, payload any, out any) error {
	ctx, cancel := a.callCtx(ctx)
	defer cancel()

	token, err := a.tokens.IdentityToken(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrNotSignedIn) {
			return ErrUnauthenticated
		}
		return fmt.Errorf("link: failed to obtain identity token: %w", err)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("link: failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.origin+path, body)
	if err != nil {
		return fmt.Errorf("link: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("link: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("link: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RemoteError{
			Status:  resp.StatusCode,
			Message: remoteMessage(raw),
		}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("link: failed to decode response: %w", err)
		}
	}

	return nil
}

// remoteMessage extracts the backend's structured error message,
// falling back to the raw body when parsing fails.
func remoteMessage(raw []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		if payload.Details != "" {
			return payload.Error + ": " + payload.Details
		}
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}

// retryableRemote classifies failures for the retry gate: network
// errors and server-side statuses are retried, client errors (other
// than timeout and rate-limit statuses) are not — retrying a 401
// can never succeed.
func retryableRemote(err error) bool {
	if errors.Is(err, ErrUnauthenticated) {
		return false
	}
	var re *RemoteError
	if !errors.As(err, &re) {
		return true
	}
	if re.Status == http.StatusRequestTimeout || re.Status == http.StatusTooManyRequests {
		return true
	}
	return re.Status >= 500
}
