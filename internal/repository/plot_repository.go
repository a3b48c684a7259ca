package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/agroplan/planner/internal/access"
	"github.com/agroplan/planner/internal/model"
)

// PlotFilter holds the filters of a plot listing.  When SeasonID is set
// only plots eligible for that season are returned.
type PlotFilter struct {
	FarmID   string
	SeasonID *string
	PeriodID *string
}

// PlotRepo lists plots together with their allocation state.
type PlotRepo struct {
	db *sql.DB
}

// NewPlotRepo returns a new PlotRepo bound to the provided database.
func NewPlotRepo(db *sql.DB) *PlotRepo { return &PlotRepo{db: db} }

// ListAvailability returns plots matching f that pred allows, ordered by
// name, annotated with:
//
//	has_allocation                     any allocation at all
//	has_allocation_this_season         an allocation for f.SeasonID
//	has_allocation_this_season_period  an allocation for f.SeasonID and f.PeriodID
//
// The last two are false when their season (and period) filter is absent.
func (r *PlotRepo) ListAvailability(ctx context.Context, f PlotFilter, pred access.Predicate) ([]model.PlotAvailability, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT t.id, t.farm_id, t.name, t.area_ha, t.all_seasons,
                           EXISTS (SELECT 1 FROM program_plots a WHERE a.plot_id = t.id)`)
	if f.SeasonID != nil {
		sb.WriteString(`, EXISTS (SELECT 1 FROM program_plots a WHERE a.plot_id = t.id AND a.season_id = ?)`)
		args = append(args, *f.SeasonID)
	} else {
		sb.WriteString(", 0")
	}
	if f.SeasonID != nil && f.PeriodID != nil {
		sb.WriteString(`, EXISTS (SELECT 1 FROM program_plots a WHERE a.plot_id = t.id AND a.season_id = ? AND a.period_id = ?)`)
		args = append(args, *f.SeasonID, *f.PeriodID)
	} else {
		sb.WriteString(", 0")
	}
	sb.WriteString(`
                    FROM plots t
                    JOIN farms f ON f.id = t.farm_id
                    LEFT JOIN producers pr ON pr.code = f.producer_code
                    WHERE 1 = 1`)
	if f.FarmID != "" {
		sb.WriteString(" AND t.farm_id = ?")
		args = append(args, f.FarmID)
	}
	if f.SeasonID != nil {
		sb.WriteString(` AND (t.all_seasons <> 0 OR EXISTS (SELECT 1 FROM plot_seasons ps WHERE ps.plot_id = t.id AND ps.season_id = ?))`)
		args = append(args, *f.SeasonID)
	}
	clause, scopeArgs := scopeClause(pred, scopeColumns{
		Producer:    "f.producer_code",
		Farm:        "f.id",
		Consultants: []string{"f.consultant_code", "pr.consultant_code"},
	})
	sb.WriteString(clause)
	args = append(args, scopeArgs...)
	sb.WriteString(" ORDER BY t.name, t.id")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	out := []model.PlotAvailability{}
	index := map[string]int{}
	for rows.Next() {
		var p model.PlotAvailability
		if err := rows.Scan(&p.ID, &p.FarmID, &p.Name, &p.AreaHa, &p.AllSeasons,
			&p.HasAllocation, &p.HasAllocationThisSeason, &p.HasAllocationThisSeasonPeriod); err != nil {
			rows.Close()
			return nil, err
		}
		p.AllowedSeasons = []string{}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(out))
	for _, p := range out {
		ids = append(ids, p.ID)
	}
	srows, err := r.db.QueryContext(ctx,
		`SELECT plot_id, season_id FROM plot_seasons WHERE plot_id IN (`+placeholders(len(ids))+`) ORDER BY plot_id, season_id`,
		appendStrings(nil, ids)...)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var plotID, seasonID string
		if err := srows.Scan(&plotID, &seasonID); err != nil {
			return nil, err
		}
		if i, ok := index[plotID]; ok {
			out[i].AllowedSeasons = append(out[i].AllowedSeasons, seasonID)
		}
	}
	return out, srows.Err()
}

// PlotEligibility is what a write needs to know about a requested plot.
type PlotEligibility struct {
	ID       string
	FarmID   string
	Eligible bool // all_seasons, or whitelisted for the requested season
}

// EligibilityTx loads the plots among plotIDs that exist, keyed by id,
// with their eligibility for seasonID.  Missing ids are absent from the map.
func (r *PlotRepo) EligibilityTx(ctx context.Context, tx *sql.Tx, plotIDs []string, seasonID string) (map[string]PlotEligibility, error) {
	out := make(map[string]PlotEligibility, len(plotIDs))
	if len(plotIDs) == 0 {
		return out, nil
	}
	args := appendStrings([]any{seasonID}, plotIDs)
	rows, err := tx.QueryContext(ctx,
		`SELECT t.id, t.farm_id,
                        (t.all_seasons <> 0 OR EXISTS (SELECT 1 FROM plot_seasons ps WHERE ps.plot_id = t.id AND ps.season_id = ?))
                   FROM plots t
                  WHERE t.id IN (`+placeholders(len(plotIDs))+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p PlotEligibility
		if err := rows.Scan(&p.ID, &p.FarmID, &p.Eligible); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}
