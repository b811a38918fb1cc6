package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/liamba05/Fynnance/internal/auth"
)

// The fixed field set the intake screens read, combined client-side
// into one snapshot.
var snapshotFields = []string{
	"first_name",
	"last_name",
	"email",
	"date_of_birth",
	"preferences",
}

// Snapshot is the combined client-side view of the profile fields.
type Snapshot struct {
	FirstName   string
	LastName    string
	Email       string
	DateOfBirth string
	Preferences string
}

// Client reads profile fields from the backend, one request per
// field, with a fresh identity token for each.
type Client struct {
	origin  string
	tokens  auth.TokenSource
	client  *http.Client
	timeout time.Duration
}

func NewClient(origin string, tokens auth.TokenSource, httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		origin:  strings.TrimRight(origin, "/"),
		tokens:  tokens,
		client:  httpClient,
		timeout: timeout,
	}
}

// Fetch reads the fixed field set and combines it.
func (c *Client) Fetch(ctx context.Context) (*Snapshot, error) {
	values := make(map[string]string, len(snapshotFields))
	for _, field := range snapshotFields {
		v, err := c.fetchField(ctx, field)
		if err != nil {
			return nil, err
		}
		values[field] = v
	}

	return &Snapshot{
		FirstName:   values["first_name"],
		LastName:    values["last_name"],
		Email:       values["email"],
		DateOfBirth: values["date_of_birth"],
		Preferences: values["preferences"],
	}, nil
}

func (c *Client) fetchField(ctx context.Context, field string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	token, err := c.tokens.IdentityToken(ctx)
	if err != nil {
		return "", fmt.Errorf("profile: failed to obtain identity token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.origin+"/api/user/"+field, nil)
	if err != nil {
		return "", fmt.Errorf("profile: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("profile: failed to fetch %s: %w", field, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("profile: fetch %s returned status %d", field, resp.StatusCode)
	}

	// Each endpoint answers {<field>: <value>}; null values come back
	// as empty strings.
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("profile: failed to decode %s: %w", field, err)
	}

	if v, ok := payload[field].(string); ok {
		return v, nil
	}
	return "", nil
}
