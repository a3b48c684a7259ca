package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agroplan/planner/internal/access"
	"github.com/agroplan/planner/internal/model"
	"github.com/agroplan/planner/internal/testutil"
)

func TestProgramQueryListAppliesPredicate(t *testing.T) {
	db := testutil.OpenDB(t)
	testutil.SeedFixture(t, db)
	testutil.SeedProducer(t, db, "P2", "Producer Two", "C9")
	testutil.SeedFarm(t, db, "F2", "P2", "07", "Boa Vista", "")
	seedProgram(t, db, "PG1", "S1", strp("E1"), "T1", "T2")

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, NewProgramRepo(db).InsertTx(ctx, tx, &model.Program{
		ID: "PG2", ProducerCode: "P2", FarmCode: "07", AreaHa: 5, SeasonID: strp("S1"), Type: model.ProgramTypePreview,
	}))
	require.NoError(t, tx.Commit())

	q := NewProgramQuery(db)

	all, err := q.List(ctx, ProgramFilter{SeasonID: "S1"}, access.AllowEverything)
	require.NoError(t, err)
	require.Len(t, all, 2)

	// consultant C2 is assigned to farm F1 only
	own, err := q.List(ctx, ProgramFilter{}, access.Predicate{ConsultantCodes: []string{"C2"}})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "PG1", own[0].ID)
	assert.Equal(t, "Producer One", own[0].ProducerName)
	assert.Equal(t, "Santa Rita", own[0].FarmName)
	require.NotNil(t, own[0].SeasonName)
	assert.Equal(t, "2025/2026", *own[0].SeasonName)
	assert.Equal(t, 2, own[0].PlotCount)

	// producer grant
	granted, err := q.List(ctx, ProgramFilter{}, access.Predicate{ProducerCodes: []string{"P2"}})
	require.NoError(t, err)
	require.Len(t, granted, 1)
	assert.Equal(t, model.ProgramTypePreview, granted[0].Type)

	none, err := q.List(ctx, ProgramFilter{}, access.DenyAll)
	require.NoError(t, err)
	assert.Empty(t, none)

	filtered, err := q.List(ctx, ProgramFilter{ProducerCode: "P1", FarmCode: "01"}, access.AllowEverything)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
}

func TestPlotAvailabilityAnnotations(t *testing.T) {
	db := testutil.OpenDB(t)
	testutil.SeedFixture(t, db)
	seedProgram(t, db, "PG1", "S1", strp("E1"), "T1")
	seedProgram(t, db, "PG2", "S2", strp("E2"), "T2")
	repo := NewPlotRepo(db)
	ctx := context.Background()

	plots, err := repo.ListAvailability(ctx, PlotFilter{FarmID: "F1", SeasonID: strp("S1"), PeriodID: strp("E1")}, access.AllowEverything)
	require.NoError(t, err)
	// T4 is whitelisted for S2 only
	require.Len(t, plots, 3)
	byID := map[string]model.PlotAvailability{}
	for _, p := range plots {
		byID[p.ID] = p
	}
	assert.True(t, byID["T1"].HasAllocation)
	assert.True(t, byID["T1"].HasAllocationThisSeason)
	assert.True(t, byID["T1"].HasAllocationThisSeasonPeriod)
	assert.True(t, byID["T2"].HasAllocation)
	assert.False(t, byID["T2"].HasAllocationThisSeason)
	assert.False(t, byID["T3"].HasAllocation)

	plots, err = repo.ListAvailability(ctx, PlotFilter{FarmID: "F1", SeasonID: strp("S1"), PeriodID: strp("E2")}, access.AllowEverything)
	require.NoError(t, err)
	for _, p := range plots {
		if p.ID == "T1" {
			assert.True(t, p.HasAllocationThisSeason)
			assert.False(t, p.HasAllocationThisSeasonPeriod)
		}
	}

	plots, err = repo.ListAvailability(ctx, PlotFilter{FarmID: "F1"}, access.AllowEverything)
	require.NoError(t, err)
	require.Len(t, plots, 4)
	last := plots[3]
	assert.Equal(t, "T4", last.ID)
	assert.Equal(t, []string{"S2"}, last.AllowedSeasons)
	assert.False(t, last.HasAllocationThisSeason)

	denied, err := repo.ListAvailability(ctx, PlotFilter{FarmID: "F1"}, access.Predicate{ConsultantCodes: []string{"C7"}})
	require.NoError(t, err)
	assert.Empty(t, denied)

	viaProducer, err := repo.ListAvailability(ctx, PlotFilter{}, access.Predicate{ConsultantCodes: []string{"C1"}})
	require.NoError(t, err)
	assert.Len(t, viaProducer, 4)
}

func TestProducerRepoScopes(t *testing.T) {
	db := testutil.OpenDB(t)
	testutil.SeedFixture(t, db)
	testutil.SeedProducer(t, db, "P2", "Producer Two", "")
	testutil.SeedFarm(t, db, "F2", "P2", "01", "Boa Vista", "C5")
	testutil.SeedFarm(t, db, "F3", "P2", "02", "Agua Limpa", "")
	repo := NewProducerRepo(db)
	ctx := context.Background()

	producers, err := repo.ListProducers(ctx, access.AllowEverything)
	require.NoError(t, err)
	assert.Len(t, producers, 2)

	// consultant of farm F2 sees producer P2 through that farm
	producers, err = repo.ListProducers(ctx, access.Predicate{ConsultantCodes: []string{"C5"}})
	require.NoError(t, err)
	require.Len(t, producers, 1)
	assert.Equal(t, "P2", producers[0].Code)
	assert.Nil(t, producers[0].ConsultantCode)

	farms, err := repo.ListFarms(ctx, "P2", access.Predicate{ConsultantCodes: []string{"C5"}})
	require.NoError(t, err)
	require.Len(t, farms, 1)
	assert.Equal(t, "F2", farms[0].ID)
	assert.Equal(t, "Producer Two", farms[0].ProducerName)

	farms, err = repo.ListFarms(ctx, "", access.Predicate{FarmIDs: []string{"F3"}})
	require.NoError(t, err)
	require.Len(t, farms, 1)
	assert.Equal(t, "Agua Limpa", farms[0].Name)

	farm, producerConsultant, err := repo.FarmByCode(ctx, "P1", "01")
	require.NoError(t, err)
	assert.Equal(t, "F1", farm.ID)
	require.NotNil(t, farm.ConsultantCode)
	assert.Equal(t, "C2", *farm.ConsultantCode)
	require.NotNil(t, producerConsultant)
	assert.Equal(t, "C1", *producerConsultant)

	_, _, err = repo.FarmByCode(ctx, "P1", "99")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGrantRepo(t *testing.T) {
	db := testutil.OpenDB(t)
	testutil.Exec(t, db, `INSERT INTO user_producers (user_id, producer_code) VALUES ('u1', 'P2'), ('u1', 'P1')`)
	testutil.Exec(t, db, `INSERT INTO user_farms (user_id, farm_id) VALUES ('u1', 'F9')`)
	testutil.Exec(t, db, `INSERT INTO manager_consultants (manager_id, consultant_code) VALUES ('u1', 'C3'), ('u2', 'C4')`)
	repo := NewGrantRepo(db)

	g, err := repo.GrantsFor(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2"}, g.ProducerCodes)
	assert.Equal(t, []string{"F9"}, g.FarmIDs)
	assert.Equal(t, []string{"C3"}, g.ManagedConsultantCodes)

	g, err = repo.GrantsFor(context.Background(), "nobody")
	require.NoError(t, err)
	assert.True(t, g.Empty())
}

func TestCatalogRepoLookup(t *testing.T) {
	db := testutil.OpenDB(t)
	testutil.Exec(t, db, `INSERT INTO cultivars (code, name) VALUES ('CV-10', 'brs 284')`)
	testutil.Exec(t, db, `INSERT INTO fertilizers (code, name) VALUES ('FT-02', '02-20-20')`)
	repo := NewCatalogRepo(db)
	ctx := context.Background()

	code, ok, err := repo.CultivarCode(ctx, " BRS 284 ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "CV-10", code)

	_, ok, err = repo.CultivarCode(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	code, ok, err = repo.FertilizerCode(ctx, "02-20-20")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "FT-02", code)
}

func TestTreatmentRepoApplications(t *testing.T) {
	db := testutil.OpenDB(t)
	testutil.SeedFixture(t, db)
	testutil.SeedTreatmentApplication(t, db, "TA1", "P1", "01", "S1", "T2")
	testutil.SeedTreatmentApplication(t, db, "TA2", "P1", "01", "S1", "T2")
	testutil.SeedTreatmentApplication(t, db, "TA3", "P1", "01", "S1", "")
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()
	repo := NewTreatmentRepo(db)

	count, names, err := repo.ApplicationsTx(ctx, tx, "P1", "01", "S1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, []string{"Talhao 02"}, names)

	count, names, err = repo.ApplicationsTx(ctx, tx, "P1", "01", "S2")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, names)
}

func TestReferenceRepo(t *testing.T) {
	db := testutil.OpenDB(t)
	testutil.SeedFixture(t, db)
	testutil.Exec(t, db, `INSERT INTO periods (id, name, active) VALUES ('E9', 'retired', ?)`, false)
	repo := NewReferenceRepo(db)
	ctx := context.Background()

	seasons, err := repo.Seasons(ctx)
	require.NoError(t, err)
	require.Len(t, seasons, 2)
	assert.Equal(t, "S2", seasons[0].ID)

	periods, err := repo.Periods(ctx, true)
	require.NoError(t, err)
	assert.Len(t, periods, 2)

	periods, err = repo.Periods(ctx, false)
	require.NoError(t, err)
	assert.Len(t, periods, 3)
}

func TestLineRepoRoundTrip(t *testing.T) {
	db := testutil.OpenDB(t)
	testutil.SeedFixture(t, db)
	seedProgram(t, db, "PG1", "S1", strp("E1"), "T1")
	repo := NewLineRepo(db)
	ctx := context.Background()

	planted := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	dose := 2.5
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, repo.InsertCultivarsTx(ctx, tx, []model.CultivarLine{{
		ID: "CL1", ProgramID: "PG1", Cultivar: "BRS 284", CoveragePct: 100,
		TreatmentType: model.TreatmentOnFarm, TreatmentID: strp("TR2"), TreatmentIDs: []string{"TR2", "TR1"},
		PlantingDate: &planted, Population: 280000,
		Defensives: []model.OnFarmDefensive{{ID: "D1", Defensive: "Fungicide X", Dose: &dose}},
	}}))
	require.NoError(t, repo.InsertFertilizationsTx(ctx, tx, []model.FertilizationLine{{
		ID: "FL1", ProgramID: "PG1", Formulation: "02-20-20", Dose: &dose, Billable: true,
	}}))
	require.NoError(t, tx.Commit())

	cultivars, err := repo.CultivarsByProgram(ctx, "PG1")
	require.NoError(t, err)
	require.Len(t, cultivars, 1)
	assert.Equal(t, []string{"TR2", "TR1"}, cultivars[0].TreatmentIDs)
	require.Len(t, cultivars[0].Defensives, 1)
	assert.Equal(t, 2.5, *cultivars[0].Defensives[0].Dose)
	require.NotNil(t, cultivars[0].PlantingDate)
	assert.True(t, planted.Equal(*cultivars[0].PlantingDate))

	ferts, err := repo.FertilizationsByProgram(ctx, "PG1")
	require.NoError(t, err)
	require.Len(t, ferts, 1)
	assert.True(t, ferts[0].Billable)
	assert.Nil(t, ferts[0].CoveragePct)

	tx, err = db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, repo.DeleteByProgramTx(ctx, tx, "PG1"))
	require.NoError(t, tx.Commit())

	cultivars, err = repo.CultivarsByProgram(ctx, "PG1")
	require.NoError(t, err)
	assert.Empty(t, cultivars)
	testutil.AssertCount(t, db, 0, `SELECT COUNT(*) FROM program_cultivar_treatments`)
	testutil.AssertCount(t, db, 0, `SELECT COUNT(*) FROM program_cultivar_defensives`)
}
