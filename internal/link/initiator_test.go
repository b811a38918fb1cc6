package link

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/liamba05/Fynnance/internal/auth"
	"github.com/liamba05/Fynnance/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	token string
	err   error
	calls int
}

func (f *fakeTokens) IdentityToken(ctx context.Context) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

func fastRetry() *retry.Policy {
	return &retry.Policy{Retries: 3, Delay: time.Millisecond, Retryable: retryableRemote}
}

// backend is a scripted fake of the link endpoints with call counters.
type backend struct {
	healthStatus int
	createFn     func(w http.ResponseWriter, attempt int64)

	healthCalls int64
	createCalls int64
}

func (b *backend) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&b.healthCalls, 1)
		status := b.healthStatus
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
	})
	mux.HandleFunc("/api/create_link_token", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&b.createCalls, 1)
		b.createFn(w, n)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCreateSessionSuccess(t *testing.T) {
	b := &backend{
		createFn: func(w http.ResponseWriter, _ int64) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"link_token":"link-sandbox-123","expiration":"2026-01-01T00:00:00Z"}`))
		},
	}
	srv := b.server(t)

	tokens := &fakeTokens{token: "id-token"}
	init := NewInitiator(InitiatorConfig{Origin: srv.URL, Tokens: tokens, Retry: fastRetry()})

	got, err := init.CreateSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "link-sandbox-123", got)
	assert.EqualValues(t, 1, b.createCalls)
}

func TestCreateSessionUnauthenticatedMakesNoCalls(t *testing.T) {
	b := &backend{
		createFn: func(w http.ResponseWriter, _ int64) {
			t.Error("create_link_token must not be called")
		},
	}
	srv := b.server(t)

	tokens := &fakeTokens{err: auth.ErrNotSignedIn}
	init := NewInitiator(InitiatorConfig{Origin: srv.URL, Tokens: tokens, Retry: fastRetry()})

	_, err := init.CreateSession(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.EqualValues(t, 0, b.healthCalls)
	assert.EqualValues(t, 0, b.createCalls)
}

func TestCreateSessionTokenMintFailureKeepsCause(t *testing.T) {
	b := &backend{
		createFn: func(w http.ResponseWriter, _ int64) {
			t.Error("create_link_token must not be called")
		},
	}
	srv := b.server(t)

	// A timeout minting the token is not the signed-out case.
	tokens := &fakeTokens{err: context.DeadlineExceeded}
	init := NewInitiator(InitiatorConfig{Origin: srv.URL, Tokens: tokens, Retry: fastRetry()})

	_, err := init.CreateSession(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualValues(t, 0, b.healthCalls)
	assert.EqualValues(t, 0, b.createCalls)
}

func TestCreateSessionBackendUnavailable(t *testing.T) {
	b := &backend{
		healthStatus: http.StatusServiceUnavailable,
		createFn: func(w http.ResponseWriter, _ int64) {
			t.Error("create_link_token must not be called when health fails")
		},
	}
	srv := b.server(t)

	tokens := &fakeTokens{token: "id-token"}
	init := NewInitiator(InitiatorConfig{Origin: srv.URL, Tokens: tokens, Retry: fastRetry()})

	_, err := init.CreateSession(context.Background())
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.EqualValues(t, 0, b.createCalls)
}

func TestCreateSessionMalformedResponse(t *testing.T) {
	b := &backend{
		createFn: func(w http.ResponseWriter, _ int64) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{}`))
		},
	}
	srv := b.server(t)

	tokens := &fakeTokens{token: "id-token"}
	init := NewInitiator(InitiatorConfig{Origin: srv.URL, Tokens: tokens, Retry: fastRetry()})

	_, err := init.CreateSession(context.Background())
	assert.ErrorIs(t, err, ErrMalformedResponse)
	// 200 with a missing field is not retried.
	assert.EqualValues(t, 1, b.createCalls)
}

func TestCreateSessionStructuredErrorMessage(t *testing.T) {
	b := &backend{
		createFn: func(w http.ResponseWriter, _ int64) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"Failed to create link token","details":"upstream exploded"}`))
		},
	}
	srv := b.server(t)

	tokens := &fakeTokens{token: "id-token"}
	init := NewInitiator(InitiatorConfig{Origin: srv.URL, Tokens: tokens, Retry: fastRetry()})

	_, err := init.CreateSession(context.Background())
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusInternalServerError, re.Status)
	assert.Equal(t, "Failed to create link token: upstream exploded", re.Message)
	// 5xx is retryable: initial attempt plus three retries.
	assert.EqualValues(t, 4, b.createCalls)
}

func TestCreateSessionRecoversFromTransientFailures(t *testing.T) {
	b := &backend{
		createFn: func(w http.ResponseWriter, attempt int64) {
			if attempt <= 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"link_token":"link-sandbox-456"}`))
		},
	}
	srv := b.server(t)

	tokens := &fakeTokens{token: "id-token"}
	init := NewInitiator(InitiatorConfig{Origin: srv.URL, Tokens: tokens, Retry: fastRetry()})

	got, err := init.CreateSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "link-sandbox-456", got)
	assert.EqualValues(t, 3, b.createCalls)
}

func TestCreateSessionClientErrorNotRetried(t *testing.T) {
	b := &backend{
		createFn: func(w http.ResponseWriter, _ int64) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Invalid authentication token"}`))
		},
	}
	srv := b.server(t)

	tokens := &fakeTokens{token: "stale-token"}
	init := NewInitiator(InitiatorConfig{Origin: srv.URL, Tokens: tokens, Retry: fastRetry()})

	_, err := init.CreateSession(context.Background())
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusUnauthorized, re.Status)
	assert.EqualValues(t, 1, b.createCalls)
}

func TestCreateSessionFreshTokenPerAttempt(t *testing.T) {
	b := &backend{
		createFn: func(w http.ResponseWriter, attempt int64) {
			if attempt == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"link_token":"link-sandbox-789"}`))
		},
	}
	srv := b.server(t)

	tokens := &fakeTokens{token: "id-token"}
	init := NewInitiator(InitiatorConfig{Origin: srv.URL, Tokens: tokens, Retry: fastRetry()})

	_, err := init.CreateSession(context.Background())
	require.NoError(t, err)
	// Precondition check plus one mint per attempt; never cached.
	assert.Equal(t, 3, tokens.calls)
}
