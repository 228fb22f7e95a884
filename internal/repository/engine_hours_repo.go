package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fleetsync/internal/models"
)

const defaultQueryWindow = 30 * 24 * time.Hour

// EngineHoursRepository persists computed engine-hours intervals.
type EngineHoursRepository struct {
	db *sql.DB
}

// NewEngineHoursRepository returns repository.
func NewEngineHoursRepository(db *sql.DB) *EngineHoursRepository {
	return &EngineHoursRepository{db: db}
}

// UpsertBatch stores records idempotently: a conflicting (unit_id, time_begin)
// updates the trailing fields in place instead of duplicating the interval.
func (r *EngineHoursRepository) UpsertBatch(ctx context.Context, records []models.EngineHoursRecord) error {
	if len(records) == 0 {
		return nil
	}

	const query = `
		INSERT INTO unit_engine_hours
			(unit_id, time_begin, time_end, duration_seconds,
			 movement_utilization_percent, utilization_percent,
			 fuel_level_begin, fuel_level_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (unit_id, time_begin) DO UPDATE SET
			time_end = EXCLUDED.time_end,
			duration_seconds = EXCLUDED.duration_seconds,
			movement_utilization_percent = EXCLUDED.movement_utilization_percent,
			utilization_percent = EXCLUDED.utilization_percent,
			fuel_level_begin = EXCLUDED.fuel_level_begin,
			fuel_level_end = EXCLUDED.fuel_level_end
	`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, query,
			rec.UnitID,
			rec.TimeBegin,
			rec.TimeEnd,
			rec.DurationSeconds,
			rec.MovementUtilizationPercent,
			rec.UtilizationPercent,
			rec.FuelLevelBegin,
			rec.FuelLevelEnd,
		); err != nil {
			return fmt.Errorf("upsert engine hours for unit %d: %w", rec.UnitID, err)
		}
	}
	return tx.Commit()
}

// Query returns stored intervals, newest first, joined with the unit name.
// A zero from defaults to the last 30 days; zero unitID and to disable those
// filters.
func (r *EngineHoursRepository) Query(ctx context.Context, unitID int64, from, to time.Time) ([]models.EngineHoursRecord, error) {
	if from.IsZero() {
		from = time.Now().UTC().Add(-defaultQueryWindow)
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT r.id, r.unit_id, u.name, r.time_begin, r.time_end,
		       r.duration_seconds, r.movement_utilization_percent,
		       r.utilization_percent, r.fuel_level_begin, r.fuel_level_end
		FROM unit_engine_hours r
		JOIN units u ON u.id = r.unit_id
		WHERE r.time_begin >= $1`)
	args := []any{from}

	if unitID != 0 {
		args = append(args, unitID)
		fmt.Fprintf(&sb, " AND r.unit_id = $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		fmt.Fprintf(&sb, " AND r.time_end <= $%d", len(args))
	}
	sb.WriteString(" ORDER BY r.time_begin DESC")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.EngineHoursRecord
	for rows.Next() {
		var rec models.EngineHoursRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.UnitID,
			&rec.UnitName,
			&rec.TimeBegin,
			&rec.TimeEnd,
			&rec.DurationSeconds,
			&rec.MovementUtilizationPercent,
			&rec.UtilizationPercent,
			&rec.FuelLevelBegin,
			&rec.FuelLevelEnd,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
