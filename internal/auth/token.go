package auth

import (
	"context"
	"errors"
)

// ErrNotSignedIn is returned by a TokenSource when no user is
// currently authenticated.
var ErrNotSignedIn = errors.New("auth: not signed in")

// TokenSource yields a short-lived bearer identity token for the
// current user. Implementations must mint or refresh on every call;
// callers never cache the result, so a stale token is never sent.
type TokenSource interface {
	IdentityToken(ctx context.Context) (string, error)
}

// Verifier checks a bearer identity token and resolves it to an
// internal user ID.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (userID string, err error)
}
