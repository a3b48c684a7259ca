package repository

import (
	"context"
	"database/sql"

	"github.com/agroplan/planner/internal/access"
)

// GrantRepo reads the explicit grant tables: user_producers, user_farms
// and manager_consultants.
type GrantRepo struct {
	db *sql.DB
}

// NewGrantRepo returns a new GrantRepo bound to the provided database.
func NewGrantRepo(db *sql.DB) *GrantRepo { return &GrantRepo{db: db} }

// GrantsFor loads every grant recorded for userID.  An empty user id has
// no grants.
func (r *GrantRepo) GrantsFor(ctx context.Context, userID string) (access.Grants, error) {
	var g access.Grants
	if userID == "" {
		return g, nil
	}
	var err error
	if g.ProducerCodes, err = r.column(ctx, `SELECT producer_code FROM user_producers WHERE user_id = ? ORDER BY producer_code`, userID); err != nil {
		return access.Grants{}, err
	}
	if g.FarmIDs, err = r.column(ctx, `SELECT farm_id FROM user_farms WHERE user_id = ? ORDER BY farm_id`, userID); err != nil {
		return access.Grants{}, err
	}
	if g.ManagedConsultantCodes, err = r.column(ctx, `SELECT consultant_code FROM manager_consultants WHERE manager_id = ? ORDER BY consultant_code`, userID); err != nil {
		return access.Grants{}, err
	}
	return g, nil
}

func (r *GrantRepo) column(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
