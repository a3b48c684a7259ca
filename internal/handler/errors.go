package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/agroplan/planner/internal/repository"
	"github.com/agroplan/planner/internal/service"
)

// respondError maps service and repository errors to HTTP responses.
// Anything unrecognised is logged and reported as a 500 without detail.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	var (
		validation *service.ValidationError
		conflict   *service.AllocationConflictError
		blocked    *service.DeletionBlockedError
		denial     *service.PolicyDenialError
	)
	switch {
	case errors.As(err, &validation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": validation.Error(), "field": validation.Field})
	case errors.As(err, &conflict):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":      "plot already allocated this season/period",
			"plots":      conflict.PlotIDs(),
			"plot_names": conflict.PlotNames(),
		})
	case errors.As(err, &blocked):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "existing downstream treatment applications",
			"plots": blocked.PlotNames,
			"count": blocked.Count,
		})
	case errors.As(err, &denial), errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, service.ErrProgramNotFound), errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	log.Error("request failed", zap.String("route", c.Path()), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// optionalQuery returns the trimmed query parameter, or nil when empty.
func optionalQuery(c echo.Context, key string) *string {
	v := c.QueryParam(key)
	if v == "" {
		return nil
	}
	return &v
}
