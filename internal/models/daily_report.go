package models

import (
	"encoding/json"
	"time"
)

// DailyReport is the raw stats+tables payload for one unit/date/report,
// stored verbatim for later querying. Unique per (unit_id, date, report_name);
// a re-sync overwrites the payload and advances SyncedAt.
type DailyReport struct {
	ID         int64           `db:"id" json:"id"`
	UnitID     int64           `db:"unit_id" json:"unitId"`
	UnitName   string          `db:"unit_name" json:"unitName"`
	Date       string          `db:"date" json:"date"` // YYYY-MM-DD
	ReportName string          `db:"report_name" json:"reportName"`
	Stats      json.RawMessage `db:"stats" json:"stats"`
	Tables     json.RawMessage `db:"tables" json:"tables"`
	SyncedAt   time.Time       `db:"synced_at" json:"syncedAt"`
}
