package middleware

// identity.go turns the claims stored by JWTAuth into an access.Identity
// and evaluates the caller's access predicate once per request.

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/agroplan/planner/internal/access"
)

const ctxPredicate = "access_predicate"

// GrantLookup returns the explicit grants recorded for a user id.
type GrantLookup interface {
	GrantsFor(ctx context.Context, userID string) (access.Grants, error)
}

// IdentityFrom builds the caller identity from context.  A request that
// never passed JWTAuth is anonymous.
func IdentityFrom(c echo.Context) access.Identity {
	role, _ := c.Get(ctxRole).(access.Role)
	uid, _ := c.Get(ctxUserID).(string)
	code, _ := c.Get(ctxConsultantCode).(string)
	return access.Identity{Role: role, UserID: uid, ConsultantCode: code}
}

// PredicateFrom returns the predicate stored by Scope, or DenyAll when
// Scope did not run.
func PredicateFrom(c echo.Context) access.Predicate {
	if p, ok := c.Get(ctxPredicate).(access.Predicate); ok {
		return p
	}
	return access.DenyAll
}

// Scope loads the caller's grants and stores the evaluated predicate.
// Admins and anonymous callers never need grants.  A manager token
// without a subject gets DenyAll.
func Scope(grants GrantLookup, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := IdentityFrom(c)
			var g access.Grants
			if (id.Role == access.Manager || id.Role == access.Consultant) && id.UserID != "" {
				var err error
				g, err = grants.GrantsFor(c.Request().Context(), id.UserID)
				if err != nil {
					log.Error("load grants", zap.String("user_id", id.UserID), zap.Error(err))
					return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
				}
			}
			c.Set(ctxPredicate, access.Evaluate(id, g))
			return next(c)
		}
	}
}

// userID returns the caller's subject for keying, or "anon".
func userID(c echo.Context) string {
	if v, ok := c.Get(ctxUserID).(string); ok && v != "" {
		return v
	}
	return "anon"
}
