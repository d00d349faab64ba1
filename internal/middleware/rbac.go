package middleware

import (
	"net/http"
	"slices"

	"marketplace/internal/common"

	"github.com/labstack/echo/v4"
)

// RequireRole admits callers whose role claim is one of roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if _, ok := common.GetUserIDFromContext(ctx); !ok {
				return common.SendUnauthorizedError(c)
			}
			if !slices.Contains(roles, common.GetRoleFromContext(ctx)) {
				return c.JSON(http.StatusForbidden, common.CreateErrorResponse("FORBIDDEN", "Insufficient permissions", nil))
			}
			return next(c)
		}
	}
}
