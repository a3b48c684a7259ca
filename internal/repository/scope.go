package repository

import (
	"strings"

	"github.com/agroplan/planner/internal/access"
)

// scopeColumns names the columns an access predicate is applied to in a
// given query.  Consultants lists every consultant_code column that may
// grant visibility (the row's own, its farm's, its producer's).
type scopeColumns struct {
	Producer    string
	Farm        string
	Consultants []string
}

// scopeClause translates p into a parameterized SQL fragment starting with
// " AND ".  Column names come from the caller, never from input; values
// are always bound.  AllowAll yields an empty fragment and a denying
// predicate yields a clause that matches nothing.
func scopeClause(p access.Predicate, cols scopeColumns) (string, []any) {
	if p.AllowAll {
		return "", nil
	}
	if p.Denies() {
		return " AND 1 = 0", nil
	}
	var (
		ors  []string
		args []any
	)
	if len(p.ProducerCodes) > 0 && cols.Producer != "" {
		ors = append(ors, cols.Producer+" IN ("+placeholders(len(p.ProducerCodes))+")")
		args = appendStrings(args, p.ProducerCodes)
	}
	if len(p.FarmIDs) > 0 && cols.Farm != "" {
		ors = append(ors, cols.Farm+" IN ("+placeholders(len(p.FarmIDs))+")")
		args = appendStrings(args, p.FarmIDs)
	}
	if len(p.ConsultantCodes) > 0 {
		for _, col := range cols.Consultants {
			ors = append(ors, col+" IN ("+placeholders(len(p.ConsultantCodes))+")")
			args = appendStrings(args, p.ConsultantCodes)
		}
	}
	if len(ors) == 0 {
		return " AND 1 = 0", nil
	}
	return " AND (" + strings.Join(ors, " OR ") + ")", args
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func appendStrings(args []any, vals []string) []any {
	for _, v := range vals {
		args = append(args, v)
	}
	return args
}
