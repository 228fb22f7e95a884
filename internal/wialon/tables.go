package wialon

// TableKind is a closed classification of report tables by their provider
// internal name. Persistence decisions key off the kind, never off template
// identity: a single template can emit several table kinds.
type TableKind int

const (
	TableGeneric TableKind = iota
	TableEngineHours
)

// engineHoursTables holds the provider table names whose rows map onto
// engine-hours records.
var engineHoursTables = map[string]struct{}{
	"unit_engine_hours":       {},
	"unit_group_engine_hours": {},
}

// ClassifyTable maps a provider table name to its kind. Unknown names are
// generic and pass through normalization unpersisted.
func ClassifyTable(name string) TableKind {
	if _, ok := engineHoursTables[name]; ok {
		return TableEngineHours
	}
	return TableGeneric
}
