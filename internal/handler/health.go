package handler

import (
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/agroplan/planner/internal/database"
)

// Health is a liveness endpoint.  It returns plain "ok".
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// HealthDB returns a readiness endpoint that pings db.
func HealthDB(db *sql.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := database.Ping(c.Request().Context(), db); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "down", "error": err.Error()})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "up"})
	}
}
