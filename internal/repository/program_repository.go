package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/agroplan/planner/internal/model"
)

// ProgramRepo provides data access to the programs table, the header row
// of the program aggregate.
type ProgramRepo struct {
	db *sql.DB
}

// NewProgramRepo returns a new ProgramRepo bound to the provided database.
func NewProgramRepo(db *sql.DB) *ProgramRepo { return &ProgramRepo{db: db} }

// DB exposes the underlying pool so that callers can open transactions
// spanning several repositories.
func (r *ProgramRepo) DB() *sql.DB { return r.db }

const programColumns = `id, user_id, producer_code, farm_code, consultant_code, area_ha,
                        season_id, period_id, type, reviewed, created_at, updated_at`

// InsertTx inserts a new program header within the provided transaction.
// CreatedAt and UpdatedAt are set here when zero.
func (r *ProgramRepo) InsertTx(ctx context.Context, tx *sql.Tx, p *model.Program) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO programs (`+programColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, nullString(p.UserID), p.ProducerCode, p.FarmCode, nullString(p.ConsultantCode), p.AreaHa,
		nullString(p.SeasonID), nullString(p.PeriodID), string(p.Type), p.Reviewed, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// UpdateHeaderTx overwrites every mutable column of an existing program.
// The caller is expected to have checked existence inside the same
// transaction with GetByIDTx.
func (r *ProgramRepo) UpdateHeaderTx(ctx context.Context, tx *sql.Tx, p *model.Program) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := tx.ExecContext(ctx,
		`UPDATE programs
         SET user_id = ?, producer_code = ?, farm_code = ?, consultant_code = ?, area_ha = ?,
             season_id = ?, period_id = ?, type = ?, reviewed = ?, updated_at = ?
         WHERE id = ?`,
		nullString(p.UserID), p.ProducerCode, p.FarmCode, nullString(p.ConsultantCode), p.AreaHa,
		nullString(p.SeasonID), nullString(p.PeriodID), string(p.Type), p.Reviewed, p.UpdatedAt, p.ID,
	)
	return err
}

// SetReviewed toggles the reviewed flag without touching anything else.
// It returns ErrNotFound when the program does not exist.
func (r *ProgramRepo) SetReviewed(ctx context.Context, id string, reviewed bool, userID *string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE programs SET reviewed = ?, user_id = COALESCE(?, user_id), updated_at = ? WHERE id = ?`,
		reviewed, nullString(userID), time.Now().UTC(), id,
	)
	return err
}

// GetByID returns a program header or ErrNotFound.
func (r *ProgramRepo) GetByID(ctx context.Context, id string) (*model.Program, error) {
	return getProgram(ctx, r.db, id)
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *ProgramRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.Program, error) {
	return getProgram(ctx, tx, id)
}

func getProgram(ctx context.Context, qr queryer, id string) (*model.Program, error) {
	row := qr.QueryRowContext(ctx, `SELECT `+programColumns+` FROM programs WHERE id = ?`, id)
	p, err := scanProgram(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgram(s rowScanner, extra ...any) (*model.Program, error) {
	var (
		p                                  model.Program
		userID, consultant, season, period sql.NullString
		typ                                string
	)
	dest := []any{&p.ID, &userID, &p.ProducerCode, &p.FarmCode, &consultant, &p.AreaHa,
		&season, &period, &typ, &p.Reviewed, &p.CreatedAt, &p.UpdatedAt}
	dest = append(dest, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	p.UserID = stringPtr(userID)
	p.ConsultantCode = stringPtr(consultant)
	p.SeasonID = stringPtr(season)
	p.PeriodID = stringPtr(period)
	p.Type = model.ProgramType(typ)
	return &p, nil
}

// DeleteTx removes the program header.  Child rows must already have been
// removed by the caller in the same transaction.
func (r *ProgramRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM programs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
