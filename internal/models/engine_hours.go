package models

import "time"

// EngineHoursRecord is one computed activity interval for a unit.
// Unique per (unit_id, time_begin); repeated syncs of an overlapping window
// update the trailing fields in place.
type EngineHoursRecord struct {
	ID                         int64     `db:"id" json:"id"`
	UnitID                     int64     `db:"unit_id" json:"unit_id"`
	UnitName                   string    `db:"unit_name" json:"unit_name,omitempty"`
	TimeBegin                  time.Time `db:"time_begin" json:"time_begin"`
	TimeEnd                    time.Time `db:"time_end" json:"time_end"`
	DurationSeconds            int64     `db:"duration_seconds" json:"duration_seconds"`
	MovementUtilizationPercent float64   `db:"movement_utilization_percent" json:"movement_utilization_percent"`
	UtilizationPercent         float64   `db:"utilization_percent" json:"utilization_percent"`
	FuelLevelBegin             float64   `db:"fuel_level_begin" json:"fuel_level_begin"`
	FuelLevelEnd               float64   `db:"fuel_level_end" json:"fuel_level_end"`
}
