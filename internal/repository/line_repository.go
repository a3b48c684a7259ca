package repository

import (
	"context"
	"database/sql"

	"github.com/agroplan/planner/internal/model"
)

// LineRepo provides data access to the cultivar and fertilization lines of
// a program, including the treatment ids and on-farm defensive sub-lines
// attached to cultivar lines.
type LineRepo struct {
	db *sql.DB
}

// NewLineRepo returns a new LineRepo bound to the provided database.
func NewLineRepo(db *sql.DB) *LineRepo { return &LineRepo{db: db} }

// DeleteByProgramTx removes every cultivar line, its sub-lines and every
// fertilization line of a program.  Sub-lines are deleted first so the
// statement order is valid with or without foreign-key enforcement.
func (r *LineRepo) DeleteByProgramTx(ctx context.Context, tx *sql.Tx, programID string) error {
	stmts := []string{
		`DELETE FROM program_cultivar_treatments WHERE cultivar_line_id IN (SELECT id FROM program_cultivars WHERE program_id = ?)`,
		`DELETE FROM program_cultivar_defensives WHERE cultivar_line_id IN (SELECT id FROM program_cultivars WHERE program_id = ?)`,
		`DELETE FROM program_cultivars WHERE program_id = ?`,
		`DELETE FROM program_fertilizations WHERE program_id = ?`,
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q, programID); err != nil {
			return err
		}
	}
	return nil
}

// InsertCultivarsTx inserts cultivar lines with their treatment ids and
// defensive sub-lines.  Every line, and every defensive, must carry its id.
func (r *LineRepo) InsertCultivarsTx(ctx context.Context, tx *sql.Tx, lines []model.CultivarLine) error {
	for _, l := range lines {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO program_cultivars (id, program_id, cultivar, cultivar_code, coverage_pct, packaging_type,
                 treatment_type, treatment_id, planting_date, population, own_seed, rnc_reference, seeds_per_bag, period_id)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.ProgramID, l.Cultivar, nullString(l.CultivarCode), l.CoveragePct, nullString(l.PackagingType),
			l.TreatmentType, nullString(l.TreatmentID), nullTime(l.PlantingDate), l.Population, l.OwnSeed,
			nullString(l.RNCReference), l.SeedsPerBag, nullString(l.PeriodID),
		)
		if err != nil {
			return err
		}
		for i, tid := range l.TreatmentIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO program_cultivar_treatments (cultivar_line_id, treatment_id, position) VALUES (?, ?, ?)`,
				l.ID, tid, i,
			); err != nil {
				return err
			}
		}
		for _, d := range l.Defensives {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO program_cultivar_defensives (id, cultivar_line_id, class, application, defensive, dose, coverage, total, saved_product)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				d.ID, l.ID, nullString(d.Class), nullString(d.Application), d.Defensive,
				nullFloat(d.Dose), nullFloat(d.Coverage), nullFloat(d.Total), d.SavedProduct,
			); err != nil {
				return err
			}
		}
	}
	return nil
}

// InsertFertilizationsTx inserts fertilization lines.
func (r *LineRepo) InsertFertilizationsTx(ctx context.Context, tx *sql.Tx, lines []model.FertilizationLine) error {
	for _, l := range lines {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO program_fertilizations (id, program_id, formulation, fertilizer_code, dose, coverage_pct,
                 application_date, packaging, no_fertilization_reason_id, saved_fertilizer, billable, saved_pct)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.ProgramID, l.Formulation, nullString(l.FertilizerCode), nullFloat(l.Dose), nullFloat(l.CoveragePct),
			nullTime(l.ApplicationDate), nullString(l.Packaging), nullString(l.NoFertilizationReasonID),
			l.SavedFertilizer, l.Billable, l.SavedPct,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// CultivarsByProgram returns the cultivar lines of a program with their
// treatment ids (in submission order) and defensive sub-lines.
func (r *LineRepo) CultivarsByProgram(ctx context.Context, programID string) ([]model.CultivarLine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, program_id, cultivar, cultivar_code, coverage_pct, packaging_type, treatment_type, treatment_id,
                planting_date, population, own_seed, rnc_reference, seeds_per_bag, period_id
         FROM program_cultivars WHERE program_id = ? ORDER BY cultivar, id`, programID)
	if err != nil {
		return nil, err
	}
	lines := []model.CultivarLine{}
	index := map[string]int{}
	for rows.Next() {
		var (
			l                                       model.CultivarLine
			code, packaging, treatment, rnc, period sql.NullString
			planting                                sql.NullTime
		)
		if err := rows.Scan(&l.ID, &l.ProgramID, &l.Cultivar, &code, &l.CoveragePct, &packaging, &l.TreatmentType,
			&treatment, &planting, &l.Population, &l.OwnSeed, &rnc, &l.SeedsPerBag, &period); err != nil {
			rows.Close()
			return nil, err
		}
		l.CultivarCode = stringPtr(code)
		l.PackagingType = stringPtr(packaging)
		l.TreatmentID = stringPtr(treatment)
		l.RNCReference = stringPtr(rnc)
		l.PeriodID = stringPtr(period)
		l.PlantingDate = timePtr(planting)
		l.TreatmentIDs = []string{}
		l.Defensives = []model.OnFarmDefensive{}
		index[l.ID] = len(lines)
		lines = append(lines, l)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return lines, nil
	}

	trows, err := r.db.QueryContext(ctx,
		`SELECT t.cultivar_line_id, t.treatment_id
         FROM program_cultivar_treatments t
         JOIN program_cultivars c ON c.id = t.cultivar_line_id
         WHERE c.program_id = ? ORDER BY t.cultivar_line_id, t.position`, programID)
	if err != nil {
		return nil, err
	}
	for trows.Next() {
		var lineID, tid string
		if err := trows.Scan(&lineID, &tid); err != nil {
			trows.Close()
			return nil, err
		}
		if i, ok := index[lineID]; ok {
			lines[i].TreatmentIDs = append(lines[i].TreatmentIDs, tid)
		}
	}
	if err := trows.Close(); err != nil {
		return nil, err
	}

	drows, err := r.db.QueryContext(ctx,
		`SELECT d.id, d.cultivar_line_id, d.class, d.application, d.defensive, d.dose, d.coverage, d.total, d.saved_product
         FROM program_cultivar_defensives d
         JOIN program_cultivars c ON c.id = d.cultivar_line_id
         WHERE c.program_id = ? ORDER BY d.cultivar_line_id, d.defensive, d.id`, programID)
	if err != nil {
		return nil, err
	}
	defer drows.Close()
	for drows.Next() {
		var (
			d                   model.OnFarmDefensive
			class, application  sql.NullString
			dose, coverage, tot sql.NullFloat64
		)
		if err := drows.Scan(&d.ID, &d.CultivarLineID, &class, &application, &d.Defensive,
			&dose, &coverage, &tot, &d.SavedProduct); err != nil {
			return nil, err
		}
		d.Class = stringPtr(class)
		d.Application = stringPtr(application)
		d.Dose = floatPtr(dose)
		d.Coverage = floatPtr(coverage)
		d.Total = floatPtr(tot)
		if i, ok := index[d.CultivarLineID]; ok {
			lines[i].Defensives = append(lines[i].Defensives, d)
		}
	}
	return lines, drows.Err()
}

// FertilizationsByProgram returns the fertilization lines of a program.
func (r *LineRepo) FertilizationsByProgram(ctx context.Context, programID string) ([]model.FertilizationLine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, program_id, formulation, fertilizer_code, dose, coverage_pct, application_date, packaging,
                no_fertilization_reason_id, saved_fertilizer, billable, saved_pct
         FROM program_fertilizations WHERE program_id = ? ORDER BY formulation, id`, programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.FertilizationLine{}
	for rows.Next() {
		var (
			l                       model.FertilizationLine
			code, packaging, reason sql.NullString
			dose, coverage          sql.NullFloat64
			applied                 sql.NullTime
		)
		if err := rows.Scan(&l.ID, &l.ProgramID, &l.Formulation, &code, &dose, &coverage, &applied, &packaging,
			&reason, &l.SavedFertilizer, &l.Billable, &l.SavedPct); err != nil {
			return nil, err
		}
		l.FertilizerCode = stringPtr(code)
		l.Packaging = stringPtr(packaging)
		l.NoFertilizationReasonID = stringPtr(reason)
		l.Dose = floatPtr(dose)
		l.CoveragePct = floatPtr(coverage)
		l.ApplicationDate = timePtr(applied)
		out = append(out, l)
	}
	return out, rows.Err()
}
