package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agroplan/planner/internal/repository"
)

// ErrProgramNotFound is returned when the program being read, updated or
// deleted does not exist.
var ErrProgramNotFound = errors.New("program not found")

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AllocationConflictError reports the plots that are already committed to
// another program for the same season and period.  It is produced both by
// the in-transaction pre-check and by the uniqueness guard on insert.
type AllocationConflictError struct {
	Plots []repository.PlotRef
}

func (e *AllocationConflictError) Error() string {
	return "plot already allocated this season/period: " + strings.Join(e.PlotNames(), ", ")
}

// PlotIDs returns the conflicting plot ids in order.
func (e *AllocationConflictError) PlotIDs() []string {
	out := make([]string, 0, len(e.Plots))
	for _, p := range e.Plots {
		out = append(out, p.ID)
	}
	return out
}

// PlotNames returns the conflicting plot names in order.
func (e *AllocationConflictError) PlotNames() []string {
	out := make([]string, 0, len(e.Plots))
	for _, p := range e.Plots {
		out = append(out, p.Name)
	}
	return out
}

// DeletionBlockedError reports that downstream treatment applications
// depend on the program's producer, farm and season.
type DeletionBlockedError struct {
	PlotNames []string
	Count     int
}

func (e *DeletionBlockedError) Error() string {
	return fmt.Sprintf("existing downstream treatment applications: %d", e.Count)
}

// PolicyDenialError reports a write outside the caller's access predicate.
type PolicyDenialError struct {
	ProducerCode string
	FarmCode     string
}

func (e *PolicyDenialError) Error() string {
	return fmt.Sprintf("access denied to producer %s farm %s", e.ProducerCode, e.FarmCode)
}
