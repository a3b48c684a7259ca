package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/agroplan/planner/internal/access"
)

// RequireRole returns a middleware that rejects callers whose role is not
// one of roles with 403.  With no roles given any authenticated caller is
// accepted.  It assumes JWTAuth has already run.
func RequireRole(roles ...access.Role) echo.MiddlewareFunc {
	allowed := make(map[access.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := IdentityFrom(c)
			if !id.Authenticated() || (len(allowed) > 0 && !allowed[id.Role]) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
