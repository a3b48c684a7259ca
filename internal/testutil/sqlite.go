// Package testutil opens throwaway databases for package tests and seeds
// the reference rows the planner reads.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/agroplan/planner/internal/database"
)

// OpenDB returns a migrated SQLite database living in t.TempDir().  The
// pool is limited to one connection, so code under test must route every
// statement of a transaction through the *sql.Tx it opened.
func OpenDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "planner.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

// Exec runs a statement and fails the test on error.
func Exec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	_, err := db.ExecContext(context.Background(), query, args...)
	require.NoError(t, err)
}

// SeedProducer inserts a producer.
func SeedProducer(t *testing.T, db *sql.DB, code, name, consultant string) {
	t.Helper()
	Exec(t, db, `INSERT INTO producers (code, name, consultant_code) VALUES (?, ?, ?)`, code, name, nullable(consultant))
}

// SeedFarm inserts a farm owned by producerCode.
func SeedFarm(t *testing.T, db *sql.DB, id, producerCode, farmCode, name, consultant string) {
	t.Helper()
	Exec(t, db, `INSERT INTO farms (id, producer_code, farm_code, name, consultant_code) VALUES (?, ?, ?, ?, ?)`,
		id, producerCode, farmCode, name, nullable(consultant))
}

// SeedPlot inserts a plot and, when allSeasons is false, whitelists it for
// the given seasons.
func SeedPlot(t *testing.T, db *sql.DB, id, farmID, name string, areaHa float64, allSeasons bool, seasons ...string) {
	t.Helper()
	Exec(t, db, `INSERT INTO plots (id, farm_id, name, area_ha, all_seasons) VALUES (?, ?, ?, ?, ?)`,
		id, farmID, name, areaHa, allSeasons)
	for _, s := range seasons {
		Exec(t, db, `INSERT INTO plot_seasons (plot_id, season_id) VALUES (?, ?)`, id, s)
	}
}

// SeedSeason inserts a season without a date range.
func SeedSeason(t *testing.T, db *sql.DB, id, name string) {
	t.Helper()
	Exec(t, db, `INSERT INTO seasons (id, name) VALUES (?, ?)`, id, name)
}

// SeedPeriod inserts an active period.
func SeedPeriod(t *testing.T, db *sql.DB, id, name string) {
	t.Helper()
	Exec(t, db, `INSERT INTO periods (id, name, active) VALUES (?, ?, ?)`, id, name, true)
}

// SeedTreatmentApplication records a downstream defensive-treatment
// application for a producer, farm and season.
func SeedTreatmentApplication(t *testing.T, db *sql.DB, id, producerCode, farmCode, seasonID, plotID string) {
	t.Helper()
	Exec(t, db, `INSERT INTO treatment_applications (id, producer_code, farm_code, season_id, plot_id, applied_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, producerCode, farmCode, seasonID, nullable(plotID), time.Now().UTC())
}

// Fixture is the default data set: producer P1 with farm F1 (code "01"),
// four plots, two seasons and two periods.
type Fixture struct {
	ProducerCode string
	FarmID       string
	FarmCode     string
	Plots        []string
	Seasons      []string
	Periods      []string
}

// SeedFixture loads the default data set into db.  Plot T4 is only
// eligible for season S2; the others are eligible for every season.
func SeedFixture(t *testing.T, db *sql.DB) Fixture {
	t.Helper()
	SeedProducer(t, db, "P1", "Producer One", "C1")
	SeedFarm(t, db, "F1", "P1", "01", "Santa Rita", "C2")
	SeedSeason(t, db, "S1", "2025/2026")
	SeedSeason(t, db, "S2", "2026/2027")
	SeedPeriod(t, db, "E1", "early")
	SeedPeriod(t, db, "E2", "late")
	SeedPlot(t, db, "T1", "F1", "Talhao 01", 40, true)
	SeedPlot(t, db, "T2", "F1", "Talhao 02", 35.5, true)
	SeedPlot(t, db, "T3", "F1", "Talhao 03", 20, true)
	SeedPlot(t, db, "T4", "F1", "Talhao 04", 12, false, "S2")
	return Fixture{
		ProducerCode: "P1",
		FarmID:       "F1",
		FarmCode:     "01",
		Plots:        []string{"T1", "T2", "T3", "T4"},
		Seasons:      []string{"S1", "S2"},
		Periods:      []string{"E1", "E2"},
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// AssertCount fails the test unless query, a single COUNT(*), returns want.
func AssertCount(t *testing.T, db *sql.DB, want int, query string, args ...any) {
	t.Helper()
	var got int
	require.NoError(t, db.QueryRowContext(context.Background(), query, args...).Scan(&got))
	require.Equal(t, want, got, query)
}
