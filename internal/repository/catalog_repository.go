package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// CatalogRepo resolves item codes for cultivar and fertilizer names from
// the cultivars and fertilizers catalog tables.
type CatalogRepo struct {
	db *sql.DB
}

// NewCatalogRepo returns a new CatalogRepo bound to the provided database.
func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{db: db} }

// CultivarCode returns the catalog code of a cultivar name, matched
// case-insensitively.  ok is false when the name is not in the catalog.
func (r *CatalogRepo) CultivarCode(ctx context.Context, name string) (string, bool, error) {
	return r.lookup(ctx, `SELECT code FROM cultivars WHERE LOWER(name) = ? ORDER BY code LIMIT 1`, name)
}

// FertilizerCode returns the catalog code of a fertilizer formulation.
func (r *CatalogRepo) FertilizerCode(ctx context.Context, formulation string) (string, bool, error) {
	return r.lookup(ctx, `SELECT code FROM fertilizers WHERE LOWER(name) = ? ORDER BY code LIMIT 1`, formulation)
}

func (r *CatalogRepo) lookup(ctx context.Context, query, name string) (string, bool, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", false, nil
	}
	var code string
	err := r.db.QueryRowContext(ctx, query, name).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return code, true, nil
}
