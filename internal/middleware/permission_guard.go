package middleware

import (
	"net/http"

	"pos/internal/domain/model"

	"github.com/labstack/echo/v4"
)

// contextに入っているroleが権限を持っているかを確認します。
func RequirePermission(perm model.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxUserRoleKey).(string)
			if !ok || role == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			if !model.RolePermissions.Allows(model.Role(role), perm) {
				return c.JSON(http.StatusForbidden, errorJSON("forbidden"))
			}

			return next(c)
		}
	}
}
