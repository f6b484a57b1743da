package echoapi

import (
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/bhoidhruv/ddquest/core"
	"github.com/bhoidhruv/ddquest/core/material"
	"github.com/bhoidhruv/ddquest/storage/blob"
)

type materialApi struct {
	svc      material.Service
	validate *validator.Validate
}

func registerMaterialAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc material.Service, validate *validator.Validate) {
	api := materialApi{svc: svc, validate: validate}

	mg := g.Group("/materials", jwt)
	mg.GET("", api.list)
	mg.GET("/:id", api.retrieve)
	mg.GET("/:id/file", api.download)
}

// registerFilesAPI exposes raw blob paths (materials/..., profile_images/...)
// so URLs returned by the store resolve against this server.
func registerFilesAPI(g *echo.Group, blobs blob.Store) {
	api := filesApi{blobs: blobs}
	g.GET("/files/*", api.download)
}

// Handlers

func (api *materialApi) list(ctx echo.Context) error {
	rctx := ctx.Request().Context()

	var (
		mats []material.Material
		err  error
	)
	if subject := core.CleanString(ctx.QueryParam("subject")); subject != "" {
		mats, err = api.svc.BySubject(rctx, subject)
	} else {
		mats, err = api.svc.List(rctx)
	}
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, mats)
}

func (api *materialApi) retrieve(ctx echo.Context) error {
	mat, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, mat)
}

func (api *materialApi) download(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	mat, err := api.svc.Get(rctx, ctx.Param("id"))
	if err != nil {
		return err
	}

	resp := ctx.Response()
	resp.Header().Set(echo.HeaderContentType, "application/pdf")
	resp.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", mat.FileName))
	resp.WriteHeader(http.StatusOK)
	if err := api.svc.Download(rctx, mat.FileName, resp); err != nil {
		return errors.Wrapf(err, "streaming material %s", mat.ID)
	}
	return nil
}

type filesApi struct {
	blobs blob.Store
}

func (api *filesApi) download(ctx echo.Context) error {
	p := strings.TrimPrefix(ctx.Param("*"), "/")
	if p == "" || strings.Contains(p, "..") {
		return errHttpNotFound
	}
	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		ctx.Response().Header().Set(echo.HeaderContentType, ct)
	}

	err := api.blobs.Download(ctx.Request().Context(), p, ctx.Response())
	if errors.Cause(err) == blob.ErrNotFound {
		return errHttpNotFound
	}
	return err
}
