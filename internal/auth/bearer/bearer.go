// Package bearer verifies the short-lived identity tokens carried on
// API requests and maps them to internal users. Tokens are issued by
// the same OIDC provider used for sign-in.
package bearer

import (
	"context"
	"errors"
	"fmt"

	"github.com/liamba05/Fynnance/internal/auth"
	"github.com/liamba05/Fynnance/internal/auth/resolver"

	"github.com/coreos/go-oidc/v3/oidc"
)

type Verifier struct {
	idToken  *oidc.IDTokenVerifier
	provider string
	resolver resolver.Resolver
}

func NewVerifier(idToken *oidc.IDTokenVerifier, providerName string, res resolver.Resolver) *Verifier {
	return &Verifier{
		idToken:  idToken,
		provider: providerName,
		resolver: res,
	}
}

// Verify checks signature, issuer, audience and expiry, then resolves
// the token subject to an internal user ID.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (string, error) {
	if rawToken == "" {
		return "", auth.ErrNotSignedIn
	}

	idToken, err := v.idToken.Verify(ctx, rawToken)
	if err != nil {
		return "", fmt.Errorf("bearer: token verification failed: %w", err)
	}

	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("bearer: claims parse failed: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("bearer: token missing subject")
	}

	return v.resolver.Resolve(ctx, &auth.Identity{
		Provider:       v.provider,
		ProviderUserID: claims.Subject,
		Email:          claims.Email,
		EmailVerified:  claims.EmailVerified,
	})
}
