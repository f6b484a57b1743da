// Package googleauthsvc verifies Google ID tokens against Google's public
// keys via the official idtoken validator.
package googleauthsvc

import (
	"context"

	"google.golang.org/api/idtoken"

	"github.com/bhoidhruv/ddquest/core"
	"github.com/bhoidhruv/ddquest/core/identity"
)

type verifier struct {
	audience string
}

var _ identity.GoogleTokenVerifier = (*verifier)(nil)

func NewVerifier(conf *core.Config) identity.GoogleTokenVerifier {
	return &verifier{audience: conf.Google.ClientID}
}

func (v *verifier) Verify(ctx context.Context, rawToken string) (identity.GoogleClaims, error) {
	payload, err := idtoken.Validate(ctx, rawToken, v.audience)
	if err != nil {
		return identity.GoogleClaims{}, err
	}

	claims := identity.GoogleClaims{Subject: payload.Subject}
	if email, ok := payload.Claims["email"].(string); ok {
		claims.Email = email
	}
	if name, ok := payload.Claims["name"].(string); ok {
		claims.Name = name
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok {
		claims.EmailVerified = verified
	}
	return claims, nil
}
