package identity

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/bhoidhruv/ddquest/core"
)

var (
	// errors
	ErrNotFound           = errors.New("account not found")
	ErrEmailExists        = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email address not verified")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type (
	// GoogleClaims are the fields consumed from a verified Google ID token.
	GoogleClaims struct {
		Subject       string
		Email         string
		Name          string
		EmailVerified bool
	}

	// GoogleTokenVerifier validates a raw Google ID token against the app's
	// OAuth client ID.
	GoogleTokenVerifier interface {
		Verify(ctx context.Context, rawToken string) (GoogleClaims, error)
	}

	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string) error
		CreateIdentity(ctx context.Context, ident Identity) (Identity, error)
		GetIdentityByUID(ctx context.Context, uid string) (Identity, error)
		GetIdentityByEmail(ctx context.Context, email string) (Identity, error)
		UpdateIdentity(ctx context.Context, ident Identity) (Identity, error)
	}

	Service interface {
		Register(ctx context.Context, ni NewIdentity) (Identity, error)
		Authenticate(ctx context.Context, email, password string) (Identity, error)
		// AuthenticateGoogle signs a user in with a Google ID token, creating
		// the Identity on first sign-in. The bool reports whether it did.
		AuthenticateGoogle(ctx context.Context, rawToken string) (Identity, bool, error)
		GetByUID(ctx context.Context, uid string) (Identity, error)
		GetByEmail(ctx context.Context, email string) (Identity, error)
		SetLastLogin(ctx context.Context, ident Identity) (Identity, error)
		CheckEmailUniqueness(ctx context.Context, email string) error
		RequestEmailVerification(ctx context.Context, ident Identity) error
		ConfirmEmailVerification(ctx context.Context, data ConfirmEmail) (Identity, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ConfirmPasswordReset(ctx context.Context, data ResetPassword) (Identity, error)
	}

	service struct {
		conf     *core.Config
		repo     Repository
		mailSvc  core.EmailService
		verifier GoogleTokenVerifier
	}
)

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService, verifier GoogleTokenVerifier) Service {
	secretKey = conf.SecretKey
	emailVerificationTimeoutDelta = conf.EmailVerificationTimeoutDelta
	passwordResetTimeoutDelta = conf.PasswordResetTimeoutDelta
	return &service{
		conf:     conf,
		repo:     repo,
		mailSvc:  mailSvc,
		verifier: verifier,
	}
}

func (svc *service) Register(ctx context.Context, ni NewIdentity) (Identity, error) {
	now := time.Now().UTC()
	ident := Identity{
		Name:      ni.Name,
		Email:     ni.Email,
		CreatedAt: now,
	}
	if ident.Name == "" {
		ident.Name = emailLocalPart(ident.Email)
	}
	if err := ident.SetPassword(ni.Password); err != nil {
		return Identity{}, err
	}
	return svc.repo.CreateIdentity(ctx, ident)
}

func (svc *service) Authenticate(ctx context.Context, email, password string) (Identity, error) {
	ident, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if err == ErrNotFound {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, err
	}
	if err := ident.CheckPassword(password); err != nil {
		return Identity{}, ErrInvalidCredentials
	}
	if !ident.EmailVerified {
		return ident, ErrEmailNotVerified
	}
	return ident, nil
}

func (svc *service) AuthenticateGoogle(ctx context.Context, rawToken string) (Identity, bool, error) {
	claims, err := svc.verifier.Verify(ctx, rawToken)
	if err != nil {
		return Identity{}, false, ErrInvalidToken
	}

	email := core.CleanString(claims.Email, true /* lower */)
	ident, err := svc.repo.GetIdentityByEmail(ctx, email)
	if err == nil {
		return ident, false, nil
	}
	if err != ErrNotFound {
		return Identity{}, false, err
	}

	// first sign-in via Google; no local password is set
	name := core.CleanString(claims.Name)
	if name == "" {
		name = emailLocalPart(email)
	}
	ident = Identity{
		Name:          name,
		Email:         email,
		EmailVerified: claims.EmailVerified,
		CreatedAt:     time.Now().UTC(),
	}
	ident, err = svc.repo.CreateIdentity(ctx, ident)
	if err != nil {
		return Identity{}, false, err
	}
	return ident, true, nil
}

func (svc *service) GetByUID(ctx context.Context, uid string) (Identity, error) {
	return svc.repo.GetIdentityByUID(ctx, uid)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (Identity, error) {
	return svc.repo.GetIdentityByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) SetLastLogin(ctx context.Context, ident Identity) (Identity, error) {
	ident.LastLogin = time.Now().UTC()
	return svc.repo.UpdateIdentity(ctx, ident)
}

func (svc *service) CheckEmailUniqueness(ctx context.Context, email string) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) RequestEmailVerification(ctx context.Context, ident Identity) error {
	if ident.EmailVerified {
		return nil
	}
	// run in background
	go svc.sendEmailVerificationMail(ident)
	return nil
}

func (svc *service) ConfirmEmailVerification(ctx context.Context, data ConfirmEmail) (Identity, error) {
	uid, err := decodeUID(data.UID)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	ident, err := svc.repo.GetIdentityByUID(ctx, uid)
	if err != nil {
		if err == ErrNotFound {
			return Identity{}, ErrInvalidToken
		}
		return Identity{}, err
	}
	if err := verifyToken(ident, data.Token, purposeEmailVerification); err != nil {
		return Identity{}, ErrInvalidToken
	}
	ident.EmailVerified = true
	return svc.repo.UpdateIdentity(ctx, ident)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	ident, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	// run in background
	go svc.sendPasswordResetMail(ident)
	return nil
}

func (svc *service) ConfirmPasswordReset(ctx context.Context, data ResetPassword) (Identity, error) {
	uid, err := decodeUID(data.UID)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	ident, err := svc.repo.GetIdentityByUID(ctx, uid)
	if err != nil {
		if err == ErrNotFound {
			return Identity{}, ErrInvalidToken
		}
		return Identity{}, err
	}
	if err := verifyToken(ident, data.Token, purposePasswordReset); err != nil {
		return Identity{}, ErrInvalidToken
	}
	if err := ident.SetPassword(data.Password); err != nil {
		return Identity{}, err
	}
	return svc.repo.UpdateIdentity(ctx, ident)
}

// mails

type tokenEmailData struct {
	Name  string
	UID   string
	Token string
}

func (svc *service) sendEmailVerificationMail(ident Identity) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: ident.Name, Address: ident.Email}},
		Subject:      "Verify your email address",
		TemplateName: "email-verification",
		TemplateData: tokenEmailData{
			Name:  ident.Name,
			UID:   EncodeUID(ident),
			Token: makeToken(ident, purposeEmailVerification),
		},
	})
}

func (svc *service) sendPasswordResetMail(ident Identity) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: ident.Name, Address: ident.Email}},
		Subject:      "Password reset",
		TemplateName: "password-reset",
		TemplateData: tokenEmailData{
			Name:  ident.Name,
			UID:   EncodeUID(ident),
			Token: makeToken(ident, purposePasswordReset),
		},
	})
}

func emailLocalPart(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
