package repository

import (
	"context"
	"database/sql"
)

// TreatmentRepo reads downstream defensive-treatment applications.  A
// program whose producer, farm and season already have applications must
// not be deleted.
type TreatmentRepo struct {
	db *sql.DB
}

// NewTreatmentRepo returns a new TreatmentRepo bound to the provided database.
func NewTreatmentRepo(db *sql.DB) *TreatmentRepo { return &TreatmentRepo{db: db} }

// ApplicationsTx returns the number of applications recorded for
// (producerCode, farmCode, seasonID) and the distinct names of the plots
// they reference, ordered by name.
func (r *TreatmentRepo) ApplicationsTx(ctx context.Context, tx *sql.Tx, producerCode, farmCode, seasonID string) (int, []string, error) {
	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM treatment_applications WHERE producer_code = ? AND farm_code = ? AND season_id = ?`,
		producerCode, farmCode, seasonID,
	).Scan(&count); err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, []string{}, nil
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT DISTINCT COALESCE(t.name, ta.plot_id) AS plot_name
         FROM treatment_applications ta
         LEFT JOIN plots t ON t.id = ta.plot_id
         WHERE ta.producer_code = ? AND ta.farm_code = ? AND ta.season_id = ? AND ta.plot_id IS NOT NULL
         ORDER BY plot_name`,
		producerCode, farmCode, seasonID)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()
	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return 0, nil, err
		}
		names = append(names, n)
	}
	return count, names, rows.Err()
}
