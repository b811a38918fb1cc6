package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/liamba05/Fynnance/internal/auth/credentials"
	"github.com/liamba05/Fynnance/internal/auth/provider"
	"github.com/liamba05/Fynnance/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCredentials struct {
	registerID  string
	registerErr error
	authID      string
	authErr     error
}

func (f *fakeCredentials) Register(ctx context.Context, email, password string) (string, error) {
	return f.registerID, f.registerErr
}

func (f *fakeCredentials) Authenticate(ctx context.Context, email, password string) (string, error) {
	return f.authID, f.authErr
}

type fakeSessions struct {
	created []session.Session
}

func (f *fakeSessions) Create(ctx context.Context, s session.Session) error {
	f.created = append(f.created, s)
	return nil
}

func (f *fakeSessions) Get(ctx context.Context, sessionID string) (*session.Session, error) {
	return nil, errors.New("not found")
}

func (f *fakeSessions) Update(ctx context.Context, s session.Session) error { return nil }

func (f *fakeSessions) Delete(ctx context.Context, sessionID string) error { return nil }

type recordingEnsurer struct{ ids []string }

func (r *recordingEnsurer) Ensure(ctx context.Context, userID string) error {
	r.ids = append(r.ids, userID)
	return nil
}

func setupAuthRouter(creds CredentialService, sessions session.Store, profiles ProfileEnsurer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(provider.NewRegistry(), sessions, nil, creds, profiles)
	h.RegisterRoutes(r)
	return r
}

func TestLoginEnsuresProfile(t *testing.T) {
	sessions := &fakeSessions{}
	profiles := &recordingEnsurer{}
	r := setupAuthRouter(&fakeCredentials{authID: "user-1"}, sessions, profiles)

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"user@example.com","password":"hunter2secret"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	// Password sign-in recreates a missing profile row.
	assert.Equal(t, []string{"user-1"}, profiles.ids)

	require.Len(t, sessions.created, 1)
	assert.Equal(t, "user-1", sessions.created[0].UserID)
	assert.NotEmpty(t, w.Header().Get("Set-Cookie"))
}

func TestLoginInvalidCredentials(t *testing.T) {
	sessions := &fakeSessions{}
	profiles := &recordingEnsurer{}
	r := setupAuthRouter(
		&fakeCredentials{authErr: credentials.ErrInvalidCredentials},
		sessions, profiles,
	)

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"user@example.com","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, profiles.ids)
	assert.Empty(t, sessions.created)
}

func TestRegisterConflict(t *testing.T) {
	sessions := &fakeSessions{}
	r := setupAuthRouter(
		&fakeCredentials{registerErr: credentials.ErrAlreadyRegistered},
		sessions, &recordingEnsurer{},
	)

	req := httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"email":"dup@example.com","password":"hunter2secret"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, sessions.created)
}
