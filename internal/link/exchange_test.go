package link

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchangeSuccess(t *testing.T) {
	var gotPublic string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotPublic = body["public_token"]
		w.Write([]byte(`{"item_id":"item_abc"}`))
	}))
	defer srv.Close()

	ex := NewExchanger(ExchangerConfig{
		Origin: srv.URL,
		Tokens: &fakeTokens{token: "id-token"},
		Retry:  fastRetry(),
	})

	itemID, err := ex.Exchange(context.Background(), "tok_123")
	require.NoError(t, err)
	assert.Equal(t, "item_abc", itemID)
	assert.Equal(t, "tok_123", gotPublic)
}

func TestExchangeMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ex := NewExchanger(ExchangerConfig{
		Origin: srv.URL,
		Tokens: &fakeTokens{token: "id-token"},
		Retry:  fastRetry(),
	})

	_, err := ex.Exchange(context.Background(), "tok_123")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestExchangeRecoversFromTransientFailures(t *testing.T) {
	var attempts int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"item_id":"item_abc"}`))
	}))
	defer srv.Close()

	ex := NewExchanger(ExchangerConfig{
		Origin: srv.URL,
		Tokens: &fakeTokens{token: "id-token"},
		Retry:  fastRetry(),
	})

	itemID, err := ex.Exchange(context.Background(), "tok_123")
	require.NoError(t, err)
	assert.Equal(t, "item_abc", itemID)
	assert.EqualValues(t, 2, attempts)
}
