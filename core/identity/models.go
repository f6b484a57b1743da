package identity

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/bhoidhruv/ddquest/core"
)

// Identity is an authenticated principal. The uid is opaque to callers;
// everything else about the user lives on their Profile.
type Identity struct {
	UID           string    `json:"uid"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	PasswordHash  []byte    `json:"-"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	LastLogin     time.Time `json:"last_login"` // UTC
}

func (id *Identity) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	id.PasswordHash = hash
	return nil
}

func (id *Identity) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(id.PasswordHash, []byte(pwd))
}

// NewIdentity contains information needed to register a new Identity.
type NewIdentity struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (ni *NewIdentity) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	ni.Name = core.CleanString(ni.Name)
	ni.Email = core.CleanString(ni.Email, true /* lower */)

	if err := validate.Struct(ni); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(ctx, ni.Email)
}

// ResetPassword carries a password-reset confirmation.
type ResetPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required,min=6"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp *ResetPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

// ConfirmEmail carries an email-verification confirmation.
type ConfirmEmail struct {
	Token string `json:"token,omitempty" validate:"required"`
	UID   string `json:"uid,omitempty" validate:"required"`
}

func (ce *ConfirmEmail) Validate(validate *validator.Validate) error {
	return validate.Struct(ce)
}

// InitValidators registers identity-specific validation translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterCustomTranslation(validate, translator, "min", "password is too short", true)
	core.RegisterCustomTranslation(validate, translator, "eqfield", "passwords do not match", true)
}
