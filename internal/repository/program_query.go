package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/agroplan/planner/internal/access"
	"github.com/agroplan/planner/internal/model"
)

// ProgramFilter holds the caller-supplied filters of a program listing.
// Empty fields are ignored.
type ProgramFilter struct {
	SeasonID     string
	ProducerCode string
	FarmCode     string
}

// ProgramQuery lists programs as denormalized rows joined with their farm,
// producer and season.
type ProgramQuery struct {
	db *sql.DB
}

// NewProgramQuery returns a new ProgramQuery bound to the provided database.
func NewProgramQuery(db *sql.DB) *ProgramQuery { return &ProgramQuery{db: db} }

// List returns the programs matching f that pred allows, newest first.  A
// program is visible through its producer, its farm, or the consultant code
// recorded on the program, its farm or its producer.
func (q *ProgramQuery) List(ctx context.Context, f ProgramFilter, pred access.Predicate) ([]model.ProgramSummary, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT p.id, p.user_id, p.producer_code, p.farm_code, p.consultant_code, p.area_ha,
                           p.season_id, p.period_id, p.type, p.reviewed, p.created_at, p.updated_at,
                           COALESCE(pr.name, ''), COALESCE(f.name, ''), s.name,
                           (SELECT COUNT(*) FROM program_plots a WHERE a.program_id = p.id)
                    FROM programs p
                    LEFT JOIN farms f ON f.producer_code = p.producer_code AND f.farm_code = p.farm_code
                    LEFT JOIN producers pr ON pr.code = p.producer_code
                    LEFT JOIN seasons s ON s.id = p.season_id
                    WHERE 1 = 1`)
	args := []any{}
	if f.SeasonID != "" {
		sb.WriteString(" AND p.season_id = ?")
		args = append(args, f.SeasonID)
	}
	if f.ProducerCode != "" {
		sb.WriteString(" AND p.producer_code = ?")
		args = append(args, f.ProducerCode)
	}
	if f.FarmCode != "" {
		sb.WriteString(" AND p.farm_code = ?")
		args = append(args, f.FarmCode)
	}
	clause, scopeArgs := scopeClause(pred, scopeColumns{
		Producer:    "p.producer_code",
		Farm:        "f.id",
		Consultants: []string{"p.consultant_code", "f.consultant_code", "pr.consultant_code"},
	})
	sb.WriteString(clause)
	args = append(args, scopeArgs...)
	sb.WriteString(" ORDER BY p.created_at DESC, p.id")

	rows, err := q.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ProgramSummary{}
	for rows.Next() {
		var (
			s          model.ProgramSummary
			seasonName sql.NullString
		)
		p, err := scanProgram(rows, &s.ProducerName, &s.FarmName, &seasonName, &s.PlotCount)
		if err != nil {
			return nil, err
		}
		s.Program = *p
		s.SeasonName = stringPtr(seasonName)
		out = append(out, s)
	}
	return out, rows.Err()
}
