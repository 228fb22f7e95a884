package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"fleetsync/internal/models"
)

// DailyReportRepository persists raw daily report snapshots.
type DailyReportRepository struct {
	db *sql.DB
}

// NewDailyReportRepository returns repository.
func NewDailyReportRepository(db *sql.DB) *DailyReportRepository {
	return &DailyReportRepository{db: db}
}

// Upsert stores one snapshot; a conflicting (unit_id, date, report_name)
// overwrites the payload in place and advances synced_at.
func (r *DailyReportRepository) Upsert(ctx context.Context, report *models.DailyReport) error {
	const query = `
		INSERT INTO wialon_daily_reports
			(unit_id, unit_name, date, report_name, stats, tables, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (unit_id, date, report_name) DO UPDATE SET
			unit_name = EXCLUDED.unit_name,
			stats = EXCLUDED.stats,
			tables = EXCLUDED.tables,
			synced_at = EXCLUDED.synced_at
	`
	_, err := r.db.ExecContext(ctx, query,
		report.UnitID,
		report.UnitName,
		report.Date,
		report.ReportName,
		report.Stats,
		report.Tables,
		report.SyncedAt,
	)
	return err
}

// QueryDay returns all snapshots for one calendar date, optionally filtered
// to a unit.
func (r *DailyReportRepository) QueryDay(ctx context.Context, date string, unitID int64) ([]models.DailyReport, error) {
	query := `
		SELECT id, unit_id, unit_name, to_char(date, 'YYYY-MM-DD'), report_name, stats, tables, synced_at
		FROM wialon_daily_reports
		WHERE date = $1`
	args := []any{date}

	if unitID != 0 {
		args = append(args, unitID)
		query += fmt.Sprintf(" AND unit_id = $%d", len(args))
	}
	query += " ORDER BY report_name"

	return r.query(ctx, query, args...)
}

// QueryRange returns snapshots newest first, with optional unit and date
// bounds ("YYYY-MM-DD").
func (r *DailyReportRepository) QueryRange(ctx context.Context, unitID int64, from, to string) ([]models.DailyReport, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, unit_id, unit_name, to_char(date, 'YYYY-MM-DD'), report_name, stats, tables, synced_at
		FROM wialon_daily_reports
		WHERE 1=1`)
	var args []any

	if unitID != 0 {
		args = append(args, unitID)
		fmt.Fprintf(&sb, " AND unit_id = $%d", len(args))
	}
	if from != "" {
		args = append(args, from)
		fmt.Fprintf(&sb, " AND date >= $%d", len(args))
	}
	if to != "" {
		args = append(args, to)
		fmt.Fprintf(&sb, " AND date <= $%d", len(args))
	}
	sb.WriteString(" ORDER BY date DESC")

	return r.query(ctx, sb.String(), args...)
}

func (r *DailyReportRepository) query(ctx context.Context, query string, args ...any) ([]models.DailyReport, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []models.DailyReport
	for rows.Next() {
		var rep models.DailyReport
		if err := rows.Scan(
			&rep.ID,
			&rep.UnitID,
			&rep.UnitName,
			&rep.Date,
			&rep.ReportName,
			&rep.Stats,
			&rep.Tables,
			&rep.SyncedAt,
		); err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}
