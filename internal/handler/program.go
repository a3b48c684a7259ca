package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/agroplan/planner/internal/middleware"
	"github.com/agroplan/planner/internal/model"
	"github.com/agroplan/planner/internal/repository"
	"github.com/agroplan/planner/internal/service"
)

// ProgramHandler serves the program endpoints.
type ProgramHandler struct {
	Programs *service.ProgramService
	Query    *repository.ProgramQuery
	Log      *zap.Logger
}

// NewProgramHandler panics if a dependency is nil.
func NewProgramHandler(programs *service.ProgramService, query *repository.ProgramQuery, log *zap.Logger) *ProgramHandler {
	if programs == nil || query == nil {
		panic("nil dependency passed to NewProgramHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ProgramHandler{Programs: programs, Query: query, Log: log}
}

// Create handles POST /v1/programs.
func (h *ProgramHandler) Create(c echo.Context) error {
	var in service.ProgramInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	id, err := h.Programs.Create(ctx, middleware.IdentityFrom(c), middleware.PredicateFrom(c), in)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// Update handles PUT /v1/programs/:id.  A body carrying only reviewed
// toggles the flag; anything else rewrites the program.
func (h *ProgramHandler) Update(c echo.Context) error {
	var in service.ProgramInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Programs.Update(ctx, middleware.IdentityFrom(c), middleware.PredicateFrom(c), c.Param("id"), in); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// Delete handles DELETE /v1/programs/:id.
func (h *ProgramHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Programs.Delete(ctx, middleware.IdentityFrom(c), middleware.PredicateFrom(c), c.Param("id")); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// List handles GET /v1/programs?season_id=&producer_code=&farm_code=.
func (h *ProgramHandler) List(c echo.Context) error {
	f := repository.ProgramFilter{
		SeasonID:     c.QueryParam("season_id"),
		ProducerCode: c.QueryParam("producer_code"),
		FarmCode:     c.QueryParam("farm_code"),
	}
	items, err := h.Query.List(c.Request().Context(), f, middleware.PredicateFrom(c))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if items == nil {
		items = []model.ProgramSummary{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// Children handles GET /v1/programs/:id/children.
func (h *ProgramHandler) Children(c echo.Context) error {
	out, err := h.Programs.Children(c.Request().Context(), middleware.PredicateFrom(c), c.Param("id"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}
