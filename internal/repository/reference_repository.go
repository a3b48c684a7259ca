package repository

import (
	"context"
	"database/sql"

	"github.com/agroplan/planner/internal/model"
)

// ReferenceRepo reads the immutable season and period reference tables.
type ReferenceRepo struct {
	db *sql.DB
}

// NewReferenceRepo returns a new ReferenceRepo bound to the provided database.
func NewReferenceRepo(db *sql.DB) *ReferenceRepo { return &ReferenceRepo{db: db} }

// Seasons returns every season, most recent name first.
func (r *ReferenceRepo) Seasons(ctx context.Context) ([]model.Season, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, starts_on, ends_on FROM seasons ORDER BY name DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Season{}
	for rows.Next() {
		var (
			s            model.Season
			starts, ends sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.Name, &starts, &ends); err != nil {
			return nil, err
		}
		s.StartsOn = timePtr(starts)
		s.EndsOn = timePtr(ends)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Periods returns the periods ordered by name.  With activeOnly set,
// inactive periods are skipped.
func (r *ReferenceRepo) Periods(ctx context.Context, activeOnly bool) ([]model.Period, error) {
	query := `SELECT id, name, active FROM periods`
	if activeOnly {
		query += ` WHERE active <> 0`
	}
	rows, err := r.db.QueryContext(ctx, query+` ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Period{}
	for rows.Next() {
		var p model.Period
		if err := rows.Scan(&p.ID, &p.Name, &p.Active); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
