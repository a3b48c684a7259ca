// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the audit-log consumer of program events.
package queue

// Program event actions.
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionReviewed = "reviewed"
	ActionDeleted  = "deleted"
)

// ProgramChangedEvent is published after a program write commits.  It
// carries enough information for downstream consumers to audit or notify
// without querying the primary database.
type ProgramChangedEvent struct {
	ProgramID    string   `json:"program_id"`
	Action       string   `json:"action"`
	ProducerCode string   `json:"producer_code"`
	FarmCode     string   `json:"farm_code"`
	SeasonID     *string  `json:"season_id"`
	PeriodID     *string  `json:"period_id"`
	PlotIDs      []string `json:"plots"`
	Reviewed     bool     `json:"reviewed"`
	UserID       string   `json:"user_id"`
	OccurredAt   string   `json:"occurred_at"`
}
