package router

import (
	"github.com/labstack/echo/v4"

	"github.com/agroplan/planner/internal/handler"
	"github.com/agroplan/planner/internal/middleware"
)

// RegisterPrograms registers the program endpoints under /v1.  Every
// route resolves the caller's predicate; anonymous callers may list (and
// see nothing) but writes require an authenticated role.  limit guards
// the write routes.
func RegisterPrograms(e *echo.Echo, h *handler.ProgramHandler, jwtSecret string, grants middleware.GrantLookup, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.OptionalJWT(jwtSecret),
		middleware.Scope(grants, h.Log),
	)
	g.GET("/programs", h.List)
	g.GET("/programs/:id/children", h.Children, middleware.RequireRole())

	w := g.Group("", middleware.RequireRole(), limit)
	w.POST("/programs", h.Create)
	w.PUT("/programs/:id", h.Update)
	w.DELETE("/programs/:id", h.Delete)
}
