package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/agroplan/planner/internal/access"
	"github.com/agroplan/planner/internal/model"
)

// ProducerRepo provides read access to producers and their farms.
type ProducerRepo struct {
	db *sql.DB
}

// NewProducerRepo returns a new ProducerRepo bound to the provided database.
func NewProducerRepo(db *sql.DB) *ProducerRepo { return &ProducerRepo{db: db} }

// ListProducers returns the producers pred allows, ordered by name.  A
// producer is visible through its own code or consultant, or through any
// of its farms.
func (r *ProducerRepo) ListProducers(ctx context.Context, pred access.Predicate) ([]model.Producer, error) {
	query := `SELECT DISTINCT pr.code, pr.name, pr.consultant_code
              FROM producers pr
              LEFT JOIN farms f ON f.producer_code = pr.code
              WHERE 1 = 1`
	clause, args := scopeClause(pred, scopeColumns{
		Producer:    "pr.code",
		Farm:        "f.id",
		Consultants: []string{"pr.consultant_code", "f.consultant_code"},
	})
	rows, err := r.db.QueryContext(ctx, query+clause+" ORDER BY pr.name, pr.code", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Producer{}
	for rows.Next() {
		var (
			p          model.Producer
			consultant sql.NullString
		)
		if err := rows.Scan(&p.Code, &p.Name, &consultant); err != nil {
			return nil, err
		}
		p.ConsultantCode = stringPtr(consultant)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListFarms returns the farms pred allows, optionally restricted to one
// producer, ordered by name.
func (r *ProducerRepo) ListFarms(ctx context.Context, producerCode string, pred access.Predicate) ([]model.Farm, error) {
	query := `SELECT f.id, f.producer_code, f.farm_code, f.name, f.consultant_code, COALESCE(pr.name, '')
              FROM farms f
              LEFT JOIN producers pr ON pr.code = f.producer_code
              WHERE 1 = 1`
	args := []any{}
	if producerCode != "" {
		query += " AND f.producer_code = ?"
		args = append(args, producerCode)
	}
	clause, scopeArgs := scopeClause(pred, scopeColumns{
		Producer:    "f.producer_code",
		Farm:        "f.id",
		Consultants: []string{"f.consultant_code", "pr.consultant_code"},
	})
	args = append(args, scopeArgs...)
	rows, err := r.db.QueryContext(ctx, query+clause+" ORDER BY f.name, f.id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Farm{}
	for rows.Next() {
		f, err := scanFarm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// FarmByCode returns the farm identified by (producerCode, farmCode) with
// its producer's consultant code, or ErrNotFound.
func (r *ProducerRepo) FarmByCode(ctx context.Context, producerCode, farmCode string) (*model.Farm, *string, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT f.id, f.producer_code, f.farm_code, f.name, f.consultant_code, COALESCE(pr.name, ''), pr.consultant_code
         FROM farms f
         LEFT JOIN producers pr ON pr.code = f.producer_code
         WHERE f.producer_code = ? AND f.farm_code = ?`, producerCode, farmCode)
	var producerConsultant sql.NullString
	f, err := scanFarm(row, &producerConsultant)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return f, stringPtr(producerConsultant), nil
}

func scanFarm(s rowScanner, extra ...any) (*model.Farm, error) {
	var (
		f          model.Farm
		consultant sql.NullString
	)
	dest := append([]any{&f.ID, &f.ProducerCode, &f.FarmCode, &f.Name, &consultant, &f.ProducerName}, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	f.ConsultantCode = stringPtr(consultant)
	return &f, nil
}
