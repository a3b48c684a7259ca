package model

import "time"

// Season is a harvest cycle ("safra").  Seasons are immutable reference
// data.
type Season struct {
	ID       string     `json:"id"`        // seasons.id
	Name     string     `json:"name"`      // seasons.name
	StartsOn *time.Time `json:"starts_on"` // seasons.starts_on (nullable)
	EndsOn   *time.Time `json:"ends_on"`   // seasons.ends_on (nullable)
}

// Period is an operating window within a season ("época"), e.g. early or
// late planting.  Allocation rows written before periods existed carry no
// period at all.
type Period struct {
	ID     string `json:"id"`     // periods.id
	Name   string `json:"name"`   // periods.name
	Active bool   `json:"active"` // periods.active
}
