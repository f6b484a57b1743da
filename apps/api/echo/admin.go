package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/bhoidhruv/ddquest/core"
	"github.com/bhoidhruv/ddquest/core/material"
	"github.com/bhoidhruv/ddquest/core/profile"
	"github.com/bhoidhruv/ddquest/core/quiz"
)

type adminApi struct {
	materials material.Service
	quizzes   quiz.Service
	validate  *validator.Validate
}

func registerAdminAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	profiles profile.Service,
	materials material.Service,
	quizzes quiz.Service,
	validate *validator.Validate,
) {
	api := adminApi{
		materials: materials,
		quizzes:   quizzes,
		validate:  validate,
	}

	ag := g.Group("/admin", jwt, adminMiddleware(profiles))
	ag.POST("/materials", api.uploadMaterial)
	ag.DELETE("/materials/:id", api.deleteMaterial)
	ag.POST("/quizzes", api.createQuiz)
}

// Handlers

func (api *adminApi) uploadMaterial(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	nm := material.NewMaterial{
		Title:   ctx.FormValue("title"),
		Subject: ctx.FormValue("subject"),
	}
	if err := nm.Validate(api.validate); err != nil {
		return err
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(errors.New("a PDF file is required"))
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	mat, err := api.materials.Upload(ctx.Request().Context(), nm, claims.Subject, f, fh.Size, nil)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, mat)
}

func (api *adminApi) deleteMaterial(ctx echo.Context) error {
	if err := api.materials.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) createQuiz(ctx echo.Context) error {
	var data quiz.NewQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.quizzes.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, q)
}
