package model

import "time"

// ProgramType tags a program either as an ordinary planting program or
// as a preview that only carries defensive treatments.
type ProgramType string

const (
	ProgramTypeStandard ProgramType = "PROGRAMACAO"
	ProgramTypePreview  ProgramType = "PREVIA"
)

// Valid reports whether t is one of the known program types.
func (t ProgramType) Valid() bool {
	return t == ProgramTypeStandard || t == ProgramTypePreview
}

// Seed treatment choices for a cultivar line.  Only on-farm treatment
// carries defensive sub-lines.
const (
	TreatmentNone       = "NÃO"
	TreatmentOnFarm     = "NA FAZENDA"
	TreatmentIndustrial = "INDUSTRIAL"
)

// Program is the aggregate root ("programação"): one commitment of plots,
// cultivars and fertilization for a producer, farm and season.
//
// Fields:
//  ID             – primary key (uuid).
//  UserID         – user that last wrote the program (nullable).
//  ProducerCode   – producer the program belongs to.
//  FarmCode       – farm code within the producer.
//  ConsultantCode – consultant responsible, taken from the caller or the farm.
//  AreaHa         – total committed area in hectares.
//  SeasonID       – harvest cycle (nullable on legacy rows).
//  PeriodID       – operating period (nullable on legacy rows).
//  Type           – PROGRAMACAO or PREVIA.
//  Reviewed       – reviewed flag toggled independently of the children.
type Program struct {
	ID             string      `json:"id"`              // programs.id
	UserID         *string     `json:"user_id"`         // programs.user_id
	ProducerCode   string      `json:"producer_code"`   // programs.producer_code
	FarmCode       string      `json:"farm_code"`       // programs.farm_code
	ConsultantCode *string     `json:"consultant_code"` // programs.consultant_code
	AreaHa         float64     `json:"area"`            // programs.area_ha
	SeasonID       *string     `json:"season_id"`       // programs.season_id
	PeriodID       *string     `json:"period_id"`       // programs.period_id
	Type           ProgramType `json:"type"`            // programs.type
	Reviewed       bool        `json:"reviewed"`        // programs.reviewed
	CreatedAt      time.Time   `json:"created_at"`      // programs.created_at
	UpdatedAt      time.Time   `json:"updated_at"`      // programs.updated_at
}

// ProgramSummary is the denormalized row returned by program listings.
type ProgramSummary struct {
	Program
	ProducerName string  `json:"producer_name"`
	FarmName     string  `json:"farm_name"`
	SeasonName   *string `json:"season_name"`
	PlotCount    int     `json:"plot_count"`
}

// Allocation commits one plot to a program for a season and period.  It
// is the contended resource: at most one row may exist per plot, season
// and defined period.
type Allocation struct {
	ID        string  `json:"id"`         // program_plots.id
	ProgramID string  `json:"program_id"` // program_plots.program_id
	PlotID    string  `json:"plot_id"`    // program_plots.plot_id
	SeasonID  string  `json:"season_id"`  // program_plots.season_id
	PeriodID  *string `json:"period_id"`  // program_plots.period_id (NULL on legacy rows)
	FarmCode  string  `json:"farm_code"`  // program_plots.farm_code
}

// CultivarLine is a planting instruction attached to a program.
type CultivarLine struct {
	ID            string            `json:"id"`
	ProgramID     string            `json:"program_id"`
	Cultivar      string            `json:"cultivar"`
	CultivarCode  *string           `json:"cultivar_code"`
	CoveragePct   float64           `json:"coverage_pct"`
	PackagingType *string           `json:"packaging_type"`
	TreatmentType string            `json:"treatment_type"`
	TreatmentID   *string           `json:"treatment_id"`
	TreatmentIDs  []string          `json:"treatment_ids"`
	PlantingDate  *time.Time        `json:"planting_date"`
	Population    float64           `json:"population"`
	OwnSeed       bool              `json:"own_seed"`
	RNCReference  *string           `json:"rnc_reference"`
	SeedsPerBag   float64           `json:"seeds_per_bag"`
	PeriodID      *string           `json:"period_id"`
	Defensives    []OnFarmDefensive `json:"defensives"`
}

// OnFarmDefensive is a defensive product applied to seed on the farm.  It
// only exists under cultivar lines whose treatment type is NA FAZENDA.
type OnFarmDefensive struct {
	ID             string   `json:"id"`
	CultivarLineID string   `json:"cultivar_line_id"`
	Class          *string  `json:"class"`
	Application    *string  `json:"application"`
	Defensive      string   `json:"defensive"`
	Dose           *float64 `json:"dose"`
	Coverage       *float64 `json:"coverage"`
	Total          *float64 `json:"total"`
	SavedProduct   bool     `json:"saved_product"`
}

// FertilizationLine is a fertilization instruction attached to a program.
type FertilizationLine struct {
	ID                      string     `json:"id"`
	ProgramID               string     `json:"program_id"`
	Formulation             string     `json:"formulation"`
	FertilizerCode          *string    `json:"fertilizer_code"`
	Dose                    *float64   `json:"dose"`
	CoveragePct             *float64   `json:"coverage_pct"`
	ApplicationDate         *time.Time `json:"application_date"`
	Packaging               *string    `json:"packaging"`
	NoFertilizationReasonID *string    `json:"no_fertilization_reason_id"`
	SavedFertilizer         bool       `json:"saved_fertilizer"`
	Billable                bool       `json:"billable"`
	SavedPct                float64    `json:"saved_pct"`
}

// ProgramChildren groups every child row of a program.
type ProgramChildren struct {
	Allocations    []Allocation        `json:"allocations"`
	Cultivars      []CultivarLine      `json:"cultivars"`
	Fertilizations []FertilizationLine `json:"fertilizations"`
}
