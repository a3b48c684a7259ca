package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4"

	"github.com/agroplan/planner/internal/handler"
)

// RegisterRoutes registers the unauthenticated health endpoints.  The
// /healthz/db probe pings the database pool.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health)
	e.GET("/healthz/db", handler.HealthDB(db))
}
