package model

// Plot represents a land parcel ("talhão") in the `plots` table.  A plot
// belongs to one farm.  When AllSeasons is false the plot is only
// eligible for the seasons listed in `plot_seasons`.
//
// Fields:
//  ID         – primary key identifier.
//  FarmID     – owning farm (farms.id).
//  Name       – display name, used in conflict messages.
//  AreaHa     – area in hectares.
//  AllSeasons – eligible for every season when true.
type Plot struct {
	ID         string  `json:"id"`          // plots.id
	FarmID     string  `json:"farm_id"`     // plots.farm_id
	Name       string  `json:"name"`        // plots.name
	AreaHa     float64 `json:"area_ha"`     // plots.area_ha
	AllSeasons bool    `json:"all_seasons"` // plots.all_seasons
}

// PlotAvailability is a plot annotated with its allocation state for the
// season and period requested by the caller.
type PlotAvailability struct {
	Plot
	AllowedSeasons                []string `json:"allowed_seasons"`
	HasAllocation                 bool     `json:"has_allocation"`
	HasAllocationThisSeason       bool     `json:"has_allocation_this_season"`
	HasAllocationThisSeasonPeriod bool     `json:"has_allocation_this_season_period"`
}
