package service

import (
	"strings"
	"time"

	"github.com/agroplan/planner/internal/model"
)

// ProgramInput is the write payload of a program.  Pointer and slice
// fields distinguish "absent" from "zero" so that a body carrying only
// the reviewed flag can be told apart from a full rewrite.
type ProgramInput struct {
	ProducerCode   string               `json:"producer_code"`
	FarmCode       string               `json:"farm_code"`
	Area           *float64             `json:"area"`
	SeasonID       *string              `json:"season_id"`
	PeriodID       *string              `json:"period_id"`
	Type           model.ProgramType    `json:"type"`
	Reviewed       *bool                `json:"reviewed"`
	PlotIDs        []string             `json:"plots"`
	Cultivars      []CultivarInput      `json:"cultivars"`
	Fertilizations []FertilizationInput `json:"fertilizations"`
}

// ReviewedOnly reports whether the payload carries the reviewed flag and
// none of the core fields, which selects the partial-update mode.
func (in ProgramInput) ReviewedOnly() bool {
	return in.Reviewed != nil &&
		in.ProducerCode == "" && in.FarmCode == "" && in.Area == nil &&
		in.SeasonID == nil && in.PeriodID == nil && in.Type == "" &&
		in.PlotIDs == nil && in.Cultivars == nil && in.Fertilizations == nil
}

// CultivarInput is one planting instruction of a ProgramInput.
type CultivarInput struct {
	Cultivar      string           `json:"cultivar"`
	CoveragePct   float64          `json:"coverage_pct"`
	PackagingType *string          `json:"packaging_type"`
	TreatmentType string           `json:"treatment_type"`
	TreatmentIDs  []string         `json:"treatment_ids"`
	PlantingDate  *string          `json:"planting_date"`
	Population    float64          `json:"population"`
	OwnSeed       bool             `json:"own_seed"`
	RNCReference  *string          `json:"rnc_reference"`
	SeedsPerBag   float64          `json:"seeds_per_bag"`
	PeriodID      *string          `json:"period_id"`
	Defensives    []DefensiveInput `json:"defensives"`
}

// DefensiveInput is an on-farm seed treatment product.
type DefensiveInput struct {
	Class        *string  `json:"class"`
	Application  *string  `json:"application"`
	Defensive    string   `json:"defensive"`
	Dose         *float64 `json:"dose"`
	Coverage     *float64 `json:"coverage"`
	Total        *float64 `json:"total"`
	SavedProduct bool     `json:"saved_product"`
}

// FertilizationInput is one fertilization instruction of a ProgramInput.
// Billable defaults to true when absent.
type FertilizationInput struct {
	Formulation             string   `json:"formulation"`
	Dose                    *float64 `json:"dose"`
	CoveragePct             *float64 `json:"coverage_pct"`
	ApplicationDate         *string  `json:"application_date"`
	Packaging               *string  `json:"packaging"`
	NoFertilizationReasonID *string  `json:"no_fertilization_reason_id"`
	SavedFertilizer         bool     `json:"saved_fertilizer"`
	Billable                *bool    `json:"billable"`
	SavedPct                float64  `json:"saved_pct"`
}

// validate checks the required fields and normalizes the payload in place.
func (in *ProgramInput) validate() error {
	in.ProducerCode = strings.TrimSpace(in.ProducerCode)
	in.FarmCode = strings.TrimSpace(in.FarmCode)
	if in.ProducerCode == "" {
		return &ValidationError{Field: "producer_code", Message: "is required"}
	}
	if in.FarmCode == "" {
		return &ValidationError{Field: "farm_code", Message: "is required"}
	}
	if in.Area == nil {
		return &ValidationError{Field: "area", Message: "is required"}
	}
	if *in.Area <= 0 {
		return &ValidationError{Field: "area", Message: "must be greater than zero"}
	}
	in.SeasonID = blankToNil(in.SeasonID)
	in.PeriodID = blankToNil(in.PeriodID)
	if in.Type == "" {
		in.Type = model.ProgramTypeStandard
	}
	if !in.Type.Valid() {
		return &ValidationError{Field: "type", Message: "must be PROGRAMACAO or PREVIA"}
	}
	in.PlotIDs = dedupe(in.PlotIDs)
	if len(in.PlotIDs) > 0 && in.SeasonID == nil {
		return &ValidationError{Field: "season_id", Message: "is required when plots are given"}
	}
	for i := range in.Cultivars {
		c := &in.Cultivars[i]
		c.Cultivar = strings.TrimSpace(c.Cultivar)
		if c.Cultivar == "" {
			return &ValidationError{Field: "cultivars.cultivar", Message: "is required"}
		}
		if c.TreatmentType == "" {
			c.TreatmentType = model.TreatmentNone
		}
		switch c.TreatmentType {
		case model.TreatmentNone, model.TreatmentOnFarm, model.TreatmentIndustrial:
		default:
			return &ValidationError{Field: "cultivars.treatment_type", Message: "must be NÃO, NA FAZENDA or INDUSTRIAL"}
		}
		if _, err := parseDate(c.PlantingDate); err != nil {
			return &ValidationError{Field: "cultivars.planting_date", Message: "must be a date (YYYY-MM-DD)"}
		}
		for _, d := range c.Defensives {
			if c.TreatmentType == model.TreatmentOnFarm && strings.TrimSpace(d.Defensive) == "" {
				return &ValidationError{Field: "cultivars.defensives.defensive", Message: "is required"}
			}
		}
	}
	for i := range in.Fertilizations {
		f := &in.Fertilizations[i]
		f.Formulation = strings.TrimSpace(f.Formulation)
		f.NoFertilizationReasonID = blankToNil(f.NoFertilizationReasonID)
		if f.Formulation == "" && f.NoFertilizationReasonID == nil {
			return &ValidationError{Field: "fertilizations.formulation", Message: "is required without a no-fertilization reason"}
		}
		if _, err := parseDate(f.ApplicationDate); err != nil {
			return &ValidationError{Field: "fertilizations.application_date", Message: "must be a date (YYYY-MM-DD)"}
		}
	}
	return nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339.  nil and "" parse to nil.
func parseDate(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, v); err != nil {
			return nil, err
		}
	}
	t = t.UTC()
	return &t, nil
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func dedupe(in []string) []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
