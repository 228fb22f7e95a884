package repository

import (
	"context"
	"database/sql"

	"fleetsync/internal/models"
)

// UnitRepository persists Wialon units.
type UnitRepository struct {
	db *sql.DB
}

// NewUnitRepository returns repository.
func NewUnitRepository(db *sql.DB) *UnitRepository {
	return &UnitRepository{db: db}
}

// Upsert inserts the unit or refreshes its name. Units are never deleted here.
func (r *UnitRepository) Upsert(ctx context.Context, unit models.Unit) error {
	const query = `
		INSERT INTO units (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`
	_, err := r.db.ExecContext(ctx, query, unit.ID, unit.Name)
	return err
}
