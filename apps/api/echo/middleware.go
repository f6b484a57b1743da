package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/bhoidhruv/ddquest/core/profile"
)

// adminMiddleware gates admin endpoints on a live marker check rather than
// the role label baked into the token: a revoked admin loses access as soon
// as their marker is gone, token or not.
func adminMiddleware(profiles profile.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			isAdmin, err := profiles.IsAdmin(ctx.Request().Context(), claims.Subject)
			if err != nil {
				return errors.Wrap(err, "checking admin marker")
			}
			if isAdmin {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
