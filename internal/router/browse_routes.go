package router

import (
	"github.com/labstack/echo/v4"

	"github.com/agroplan/planner/internal/handler"
	"github.com/agroplan/planner/internal/middleware"
)

// RegisterBrowse registers the read-only listings.  Producers, farms and
// plots are filtered by the caller's predicate.  Seasons and periods are
// the same for every caller, so only they go through cache.
func RegisterBrowse(e *echo.Echo, h *handler.BrowseHandler, jwtSecret string, grants middleware.GrantLookup, cache echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.OptionalJWT(jwtSecret),
		middleware.Scope(grants, h.Log),
	)
	g.GET("/producers", h.ListProducers)
	g.GET("/farms", h.ListFarms)
	g.GET("/plots", h.ListPlots)

	e.GET("/v1/seasons", h.ListSeasons, cache)
	e.GET("/v1/periods", h.ListPeriods, cache)
}
