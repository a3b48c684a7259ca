package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/agroplan/planner/internal/access"
)

// Context keys set by JWTAuth and read by Scope and the handlers.
const (
	ctxUserID         = "user_id"
	ctxRole           = "role"
	ctxConsultantCode = "consultant_code"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// signed with secret and stores its subject, role and consultant code
// claims in the request context.  Requests without a valid token are
// rejected with 401.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := parseClaims(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			setClaims(c, claims)
			return next(c)
		}
	}
}

// OptionalJWT is JWTAuth for routes that also serve anonymous callers: a
// missing or invalid token leaves the request anonymous instead of
// rejecting it.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				if claims, err := parseClaims(secret, strings.TrimPrefix(auth, "Bearer ")); err == nil {
					setClaims(c, claims)
				}
			}
			return next(c)
		}
	}
}

func parseClaims(secret, raw string) (jwt.MapClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.ErrUnauthorized
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return nil, echo.ErrUnauthorized
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, echo.ErrUnauthorized
	}
	return claims, nil
}

func setClaims(c echo.Context, claims jwt.MapClaims) {
	role := access.ParseRole(claimString(claims, "role"))
	c.Set(ctxUserID, claimString(claims, "sub"))
	c.Set(ctxRole, role)
	c.Set(ctxConsultantCode, claimString(claims, "consultant_code"))
}

func claimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
