package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/bhoidhruv/ddquest/core/identity"
	"github.com/bhoidhruv/ddquest/core/session"
)

type accountApi struct {
	svc      identity.Service
	resolver *session.Resolver
	validate *validator.Validate
}

func registerAccountAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc identity.Service,
	resolver *session.Resolver,
	validate *validator.Validate,
) {
	api := accountApi{
		svc:      svc,
		resolver: resolver,
		validate: validate,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	// TODO: rate limit `/password-reset` & `/password-reset-confirm`
	ag.POST("/register", api.register)
	ag.POST("/login", api.login)
	ag.POST("/google", api.googleLogin)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)
	ag.POST("/verify-email", api.requestEmailVerification)
	ag.POST("/verify-email/confirm", api.confirmEmailVerification)

	// authed endpoints
	authed := ag.Group("", jwt)
	authed.POST("/token-refresh", api.refreshToken)
	authed.POST("/logout", api.logout)
}

// Handlers

func (api *accountApi) register(ctx echo.Context) error {
	var data RegisterRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RegisterRequest")
	}
	rctx := ctx.Request().Context()
	if err := data.Validate(rctx, api.validate, api.svc); err != nil {
		return err
	}

	ident, err := api.svc.Register(rctx, data.NewIdentity)
	if err != nil {
		return errors.Wrap(err, "registering identity")
	}
	if _, err := api.resolver.Register(rctx, ident, data.Semester, data.Branch); err != nil {
		return errors.Wrap(err, "provisioning profile")
	}

	// no session yet: the account must be verified first
	if err := api.svc.RequestEmailVerification(rctx, ident); err != nil {
		return errors.Wrap(err, "requesting email verification")
	}
	return ctx.JSON(http.StatusCreated, SuccessResponse{
		Success: "Account created. Check your inbox for a verification link before logging in.",
	})
}

func (api *accountApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := authenticate(ctx.Request().Context(), data.Email, data.Password, api.svc, api.resolver)
	if err != nil {
		return err
	}
	token, err := GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *accountApi) googleLogin(ctx echo.Context) error {
	var data GoogleLoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GoogleLoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	ident, first, err := api.svc.AuthenticateGoogle(rctx, data.Token)
	if err != nil {
		return err
	}

	var res session.Resolution
	if first {
		if res, err = api.resolver.Register(rctx, ident, "", ""); err != nil {
			return errors.Wrap(err, "provisioning profile")
		}
	} else {
		res = api.resolver.Resolve(rctx, ident)
	}

	if ident, err = api.svc.SetLastLogin(rctx, ident); err != nil {
		return errors.Wrap(err, "setting lastLogin")
	}

	token, err := GenerateToken(GetSessionClaims(ident, res.Role))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *accountApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == identity.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *accountApi) confirmPasswordReset(ctx echo.Context) error {
	var data identity.ResetPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if _, err := api.svc.ConfirmPasswordReset(ctx.Request().Context(), data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *accountApi) requestEmailVerification(ctx echo.Context) error {
	var data VerifyEmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyEmailRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	if ident, err := api.svc.GetByEmail(rctx, data.Email); err == nil {
		if err := api.svc.RequestEmailVerification(rctx, ident); err != nil {
			ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting email verification"))
		}
	} else if errors.Cause(err) != identity.ErrNotFound {
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "finding identity by email"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an account on this system, " +
			"a verification link will arrive in your inbox shortly.",
	})
}

func (api *accountApi) confirmEmailVerification(ctx echo.Context) error {
	var data identity.ConfirmEmail
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfirmEmail")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if _, err := api.svc.ConfirmEmailVerification(ctx.Request().Context(), data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Email address verified. You can now log in."})
}

func (api *accountApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc, api.resolver)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *accountApi) logout(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	// the cached role dies with the session
	api.resolver.Invalidate(claims.Subject)
	return ctx.NoContent(http.StatusNoContent)
}
