package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/bhoidhruv/ddquest/core/profile"
	"github.com/bhoidhruv/ddquest/core/quiz"
)

type dashboardApi struct {
	profiles profile.Service
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, profiles profile.Service) {
	api := dashboardApi{profiles: profiles}
	g.GET("/dashboard", api.dashboard, jwt)
}

// dashboard aggregates everything the app home screen needs in one call.
// A failed profile read degrades to zeroed defaults so the screen always renders.
func (api *dashboardApi) dashboard(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	prof, err := api.profiles.Get(ctx.Request().Context(), claims.Subject)
	if err != nil {
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "reading dashboard profile"))
		prof = profile.Profile{
			Name:     claims.Name,
			Email:    claims.Email,
			Semester: profile.NotSet,
			Branch:   profile.NotSet,
		}
	}

	now := time.Now()
	return ctx.JSON(http.StatusOK, DashboardResponse{
		Profile:        prof,
		Streak:         prof.Streak,
		Completion:     prof.Completion,
		SubjectOfDay:   quiz.SubjectOfDay(now),
		WeeklyProgress: quiz.WeeklyProgress(prof.Streak),
		WeeklyOpen:     quiz.WeeklyAvailable(now),
	})
}
