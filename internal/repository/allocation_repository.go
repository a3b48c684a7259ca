package repository

import (
	"context"
	"database/sql"

	"github.com/agroplan/planner/internal/model"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ConflictQuery describes a candidate allocation.  PeriodID nil means the
// undefined (legacy) period, which only ever matches other undefined-period
// rows.  ExcludeProgramID is the program being updated, or empty on create.
type ConflictQuery struct {
	SeasonID         string
	PeriodID         *string
	FarmCode         string
	PlotIDs          []string
	ExcludeProgramID string
}

// PlotRef identifies a plot together with its display name.
type PlotRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AllocationRepo provides data access to the program_plots table, the
// resource guarded by the (plot_id, season_id, period_id) unique index.
type AllocationRepo struct {
	db *sql.DB
}

// NewAllocationRepo returns a new AllocationRepo bound to the provided database.
func NewAllocationRepo(db *sql.DB) *AllocationRepo { return &AllocationRepo{db: db} }

// FindConflictsTx returns the distinct plots among q.PlotIDs that another
// program already holds for q.SeasonID on q.FarmCode with an identical
// period, ordered by plot name.  It runs inside the caller's transaction so
// that the check and the subsequent insert share one unit of work.
func (r *AllocationRepo) FindConflictsTx(ctx context.Context, tx *sql.Tx, q ConflictQuery) ([]PlotRef, error) {
	return findConflicts(ctx, tx, q)
}

// FindConflicts is FindConflictsTx outside of a transaction.
func (r *AllocationRepo) FindConflicts(ctx context.Context, q ConflictQuery) ([]PlotRef, error) {
	return findConflicts(ctx, r.db, q)
}

func findConflicts(ctx context.Context, qr queryer, q ConflictQuery) ([]PlotRef, error) {
	if len(q.PlotIDs) == 0 || q.SeasonID == "" {
		return []PlotRef{}, nil
	}
	query := `SELECT DISTINCT a.plot_id, COALESCE(t.name, a.plot_id) AS plot_name
              FROM program_plots a
              LEFT JOIN plots t ON t.id = a.plot_id
              WHERE a.season_id = ?
                AND a.farm_code = ?
                AND a.program_id <> ?
                AND (a.period_id = ? OR (a.period_id IS NULL AND ? IS NULL))
                AND a.plot_id IN (` + placeholders(len(q.PlotIDs)) + `)
              ORDER BY plot_name, a.plot_id`
	period := nullString(q.PeriodID)
	args := []any{q.SeasonID, q.FarmCode, q.ExcludeProgramID, period, period}
	args = appendStrings(args, q.PlotIDs)

	rows, err := qr.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []PlotRef{}
	for rows.Next() {
		var p PlotRef
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InsertTx inserts allocations one row at a time within the provided
// transaction so that a uniqueness violation names the exact plot.  A
// violation is returned as *DuplicateAllocationError.
func (r *AllocationRepo) InsertTx(ctx context.Context, tx *sql.Tx, allocs []model.Allocation) error {
	const q = `INSERT INTO program_plots (id, program_id, plot_id, season_id, period_id, farm_code)
               VALUES (?, ?, ?, ?, ?, ?)`
	for _, a := range allocs {
		_, err := tx.ExecContext(ctx, q, a.ID, a.ProgramID, a.PlotID, a.SeasonID, nullString(a.PeriodID), a.FarmCode)
		if err != nil {
			if isDuplicateKey(err) {
				return &DuplicateAllocationError{PlotID: a.PlotID, SeasonID: a.SeasonID, PeriodID: a.PeriodID, Err: err}
			}
			return err
		}
	}
	return nil
}

// DeleteByProgramTx removes every allocation of a program.
func (r *AllocationRepo) DeleteByProgramTx(ctx context.Context, tx *sql.Tx, programID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM program_plots WHERE program_id = ?`, programID)
	return err
}

// ListByProgram returns the allocations of a program ordered by plot id.
func (r *AllocationRepo) ListByProgram(ctx context.Context, programID string) ([]model.Allocation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, program_id, plot_id, season_id, period_id, farm_code
         FROM program_plots WHERE program_id = ? ORDER BY plot_id`, programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Allocation{}
	for rows.Next() {
		var (
			a      model.Allocation
			period sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.ProgramID, &a.PlotID, &a.SeasonID, &period, &a.FarmCode); err != nil {
			return nil, err
		}
		a.PeriodID = stringPtr(period)
		out = append(out, a)
	}
	return out, rows.Err()
}

// PlotNamesTx resolves display names for the given plot ids.  Unknown ids
// map to themselves.
func (r *AllocationRepo) PlotNamesTx(ctx context.Context, tx *sql.Tx, plotIDs []string) ([]PlotRef, error) {
	if len(plotIDs) == 0 {
		return []PlotRef{}, nil
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT id, name FROM plots WHERE id IN (`+placeholders(len(plotIDs))+`)`,
		appendStrings(nil, plotIDs)...)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(plotIDs))
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return nil, err
		}
		names[id] = name
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	out := make([]PlotRef, 0, len(plotIDs))
	for _, id := range plotIDs {
		name, ok := names[id]
		if !ok {
			name = id
		}
		out = append(out, PlotRef{ID: id, Name: name})
	}
	return out, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
