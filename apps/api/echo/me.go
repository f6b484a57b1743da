package echoapi

import (
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/bhoidhruv/ddquest/core"
	"github.com/bhoidhruv/ddquest/core/identity"
	"github.com/bhoidhruv/ddquest/core/material"
	"github.com/bhoidhruv/ddquest/core/profile"
	"github.com/bhoidhruv/ddquest/core/session"
)

type meApi struct {
	svc       identity.Service
	profiles  profile.Service
	materials material.Service
	resolver  *session.Resolver
	validate  *validator.Validate
}

func registerMeAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc identity.Service,
	profiles profile.Service,
	materials material.Service,
	resolver *session.Resolver,
	validate *validator.Validate,
) {
	api := meApi{
		svc:       svc,
		profiles:  profiles,
		materials: materials,
		resolver:  resolver,
		validate:  validate,
	}

	mg := g.Group("/me", jwt)
	mg.GET("", api.retrieve)
	mg.PUT("", api.update)
	mg.PUT("/photo", api.setPhoto)
}

// Handlers

func (api *meApi) retrieve(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx, api.svc)
	if err != nil {
		return err
	}
	// Resolve re-creates a missing profile doc instead of 404ing
	res := api.resolver.Resolve(ctx.Request().Context(), ident)
	return ctx.JSON(http.StatusOK, res.Profile)
}

func (api *meApi) update(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data profile.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	prof, err := api.profiles.UpdateInfo(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, prof)
}

func (api *meApi) setPhoto(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	fh, err := ctx.FormFile("photo")
	if err != nil {
		return core.NewValidationError(errors.New("a photo file is required"))
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded photo")
	}
	defer f.Close()

	rctx := ctx.Request().Context()
	if err := api.profiles.SetPhoto(rctx, claims.Subject, f, fh.Size); err != nil {
		return err
	}

	// blob copy is best effort; the inline base64 is the source of truth
	var url string
	if _, err := f.Seek(0, io.SeekStart); err == nil {
		if url, err = api.materials.UploadProfileImage(rctx, claims.Subject, f, fh.Size); err != nil {
			ctx.Logger().Errorf("%+v", errors.Wrap(err, "uploading profile image blob"))
			url = ""
		}
	}

	return ctx.JSON(http.StatusOK, echo.Map{"success": "Profile photo updated.", "url": url})
}
