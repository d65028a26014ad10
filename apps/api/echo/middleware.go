package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/coachdesk/backend/core/user"
)

// roleMiddleware only lets through users holding at least one of the given
// roles, matched exactly. An admin role does not imply a mentor role: the
// mentor portals are gated on the mentor role itself.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			for _, role := range roles {
				for _, held := range claims.Roles {
					if role == held {
						return next(ctx)
					}
				}
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleAdmin)
}
