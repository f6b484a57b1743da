package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/bhoidhruv/ddquest/core/quiz"
)

type quizApi struct {
	svc      quiz.Service
	validate *validator.Validate
}

func registerQuizAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc quiz.Service, validate *validator.Validate) {
	api := quizApi{svc: svc, validate: validate}

	qg := g.Group("/quizzes", jwt)
	qg.GET("/:kind", api.today)
	qg.POST("/:kind/submit", api.submit)
	qg.GET("/scores", api.scores)
}

// Handlers

func (api *quizApi) today(ctx echo.Context) error {
	kind, ok := quiz.ParseKind(ctx.Param("kind"))
	if !ok {
		return errHttpNotFound
	}
	q, err := api.svc.Today(ctx.Request().Context(), kind)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *quizApi) submit(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	kind, ok := quiz.ParseKind(ctx.Param("kind"))
	if !ok {
		return errHttpNotFound
	}

	var data quiz.Submission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}
	// clients may omit the id; it defaults to today's quiz of that kind
	if data.QuizID == "" {
		data.QuizID = quiz.ID(kind, time.Now())
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	score, streak, err := api.svc.Submit(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, echo.Map{
		"score":  score,
		"streak": streak,
	})
}

func (api *quizApi) scores(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	scores, err := api.svc.Scores(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, scores)
}
