package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/agroplan/planner/internal/middleware"
	"github.com/agroplan/planner/internal/model"
	"github.com/agroplan/planner/internal/repository"
)

// BrowseHandler serves the read-only listings a client needs to build a
// program: producers, farms and plots filtered by the caller's predicate,
// plus the season and period reference data.
type BrowseHandler struct {
	Producers *repository.ProducerRepo
	Plots     *repository.PlotRepo
	Reference *repository.ReferenceRepo
	Log       *zap.Logger
}

// NewBrowseHandler panics if a repository is nil.
func NewBrowseHandler(producers *repository.ProducerRepo, plots *repository.PlotRepo, ref *repository.ReferenceRepo, log *zap.Logger) *BrowseHandler {
	if producers == nil || plots == nil || ref == nil {
		panic("nil repository passed to NewBrowseHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BrowseHandler{Producers: producers, Plots: plots, Reference: ref, Log: log}
}

// ListProducers handles GET /v1/producers.
func (h *BrowseHandler) ListProducers(c echo.Context) error {
	items, err := h.Producers.ListProducers(c.Request().Context(), middleware.PredicateFrom(c))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if items == nil {
		items = []model.Producer{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// ListFarms handles GET /v1/farms?producer_code=.
func (h *BrowseHandler) ListFarms(c echo.Context) error {
	items, err := h.Producers.ListFarms(c.Request().Context(), c.QueryParam("producer_code"), middleware.PredicateFrom(c))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if items == nil {
		items = []model.Farm{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// ListPlots handles GET /v1/plots?farm_id=&season_id=&period_id=.
func (h *BrowseHandler) ListPlots(c echo.Context) error {
	f := repository.PlotFilter{
		FarmID:   c.QueryParam("farm_id"),
		SeasonID: optionalQuery(c, "season_id"),
		PeriodID: optionalQuery(c, "period_id"),
	}
	items, err := h.Plots.ListAvailability(c.Request().Context(), f, middleware.PredicateFrom(c))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if items == nil {
		items = []model.PlotAvailability{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// ListSeasons handles GET /v1/seasons.
func (h *BrowseHandler) ListSeasons(c echo.Context) error {
	items, err := h.Reference.Seasons(c.Request().Context())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if items == nil {
		items = []model.Season{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// ListPeriods handles GET /v1/periods?active=true.
func (h *BrowseHandler) ListPeriods(c echo.Context) error {
	items, err := h.Reference.Periods(c.Request().Context(), c.QueryParam("active") == "true")
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if items == nil {
		items = []model.Period{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}
