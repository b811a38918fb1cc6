package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	userID string
	err    error
	got    string
}

func (f *fakeVerifier) Verify(ctx context.Context, rawToken string) (string, error) {
	f.got = rawToken
	if f.err != nil {
		return "", f.err
	}
	return f.userID, nil
}

func bearerRouter(v *fakeVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api")
	api.Use(GinRequireBearer(v))
	api.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(ContextUserID)})
	})
	return r
}

func TestGinRequireBearerValidToken(t *testing.T) {
	v := &fakeVerifier{userID: "user-1"}
	r := bearerRouter(v)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "good-token", v.got)
	assert.Contains(t, w.Body.String(), "user-1")
}

func TestGinRequireBearerMissingHeader(t *testing.T) {
	r := bearerRouter(&fakeVerifier{userID: "user-1"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "No authentication token provided")
}

func TestGinRequireBearerInvalidToken(t *testing.T) {
	v := &fakeVerifier{err: errors.New("expired")}
	r := bearerRouter(v)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Authorization", "Bearer stale-token")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid authentication token")
}
