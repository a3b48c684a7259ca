// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// program service and the handlers to distinguish between different
// failure scenarios. For example, ErrNotFound indicates that the row being
// read or replaced does not exist, while ErrConflict signals that a write
// collided with the allocation uniqueness guard.
package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation on a
// resource outside its access predicate. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as inserting an allocation for a plot that is
// already committed for the same season and period.
var ErrConflict = errors.New("conflict")

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// DuplicateAllocationError reports the allocation rejected by the
// uniqueness guard over (plot_id, season_id, period_id).  It matches
// ErrConflict under errors.Is.
type DuplicateAllocationError struct {
	PlotID   string
	SeasonID string
	PeriodID *string
	Err      error
}

func (e *DuplicateAllocationError) Error() string {
	return fmt.Sprintf("plot %s already allocated for season %s: %v", e.PlotID, e.SeasonID, e.Err)
}

func (e *DuplicateAllocationError) Is(target error) bool { return target == ErrConflict }

func (e *DuplicateAllocationError) Unwrap() error { return e.Err }

// isDuplicateKey reports whether err is a unique-constraint violation from
// MySQL (error 1062) or SQLite.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return true
	}
	// modernc.org/sqlite in tests
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
