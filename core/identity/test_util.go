package identity

import (
	"context"

	"github.com/bhoidhruv/ddquest/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service whose outgoing emails run synchronously.
func NewServiceMock(conf *core.Config, repo Repository, mailSvc core.EmailService, verifier GoogleTokenVerifier) Service {
	secretKey = conf.SecretKey
	emailVerificationTimeoutDelta = conf.EmailVerificationTimeoutDelta
	passwordResetTimeoutDelta = conf.PasswordResetTimeoutDelta
	return &serviceMock{
		service: service{
			conf:     conf,
			repo:     repo,
			mailSvc:  mailSvc,
			verifier: verifier,
		},
	}
}

func (svc *serviceMock) RequestEmailVerification(ctx context.Context, ident Identity) error {
	if ident.EmailVerified {
		return nil
	}
	// run synchronously
	svc.sendEmailVerificationMail(ident)
	return nil
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	ident, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	// run synchronously
	svc.sendPasswordResetMail(ident)
	return nil
}

// VerifierMock resolves tokens from a static map of raw token to claims.
type VerifierMock struct {
	Tokens map[string]GoogleClaims
}

func (v VerifierMock) Verify(ctx context.Context, rawToken string) (GoogleClaims, error) {
	if claims, ok := v.Tokens[rawToken]; ok {
		return claims, nil
	}
	return GoogleClaims{}, ErrInvalidToken
}
