package echoapi

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/bhoidhruv/ddquest/core"
	"github.com/bhoidhruv/ddquest/core/identity"
	"github.com/bhoidhruv/ddquest/core/profile"
)

type (
	RegisterRequest struct {
		identity.NewIdentity
		Semester string `json:"semester"`
		Branch   string `json:"branch"`
	}

	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	GoogleLoginRequest struct {
		Token string `json:"token" validate:"required"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	VerifyEmailRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	// DashboardResponse is everything the home screen renders in one fetch.
	DashboardResponse struct {
		Profile        profile.Profile `json:"profile"`
		Streak         int             `json:"streak"`
		Completion     int             `json:"completion"`
		SubjectOfDay   string          `json:"subjectOfDay"`
		WeeklyProgress int             `json:"weeklyProgress"`
		WeeklyOpen     bool            `json:"weeklyOpen"`
	}
)

func (rr *RegisterRequest) Validate(ctx context.Context, validate *validator.Validate, svc identity.Service) error {
	rr.Semester = core.CleanString(rr.Semester)
	rr.Branch = core.CleanString(rr.Branch)
	return rr.NewIdentity.Validate(ctx, validate, svc)
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (gr *GoogleLoginRequest) Validate(validate *validator.Validate) error {
	gr.Token = core.CleanString(gr.Token)
	return validate.Struct(gr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

func (vr *VerifyEmailRequest) Validate(validate *validator.Validate) error {
	vr.Email = core.CleanString(vr.Email, true /* lower */)
	return validate.Struct(vr)
}
