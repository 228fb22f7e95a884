package models

import (
	"encoding/json"
	"time"
)

// ReportTemplate describes a provider-side report definition bound to a resource.
type ReportTemplate struct {
	TemplateID   int64  `json:"templateId"`
	TemplateName string `json:"templateName"`
	TemplateType string `json:"templateType"`
	ResourceID   int64  `json:"resourceId"`
	ResourceName string `json:"resourceName"`
}

// ReportConfig is a resolved (resource, template) pair for one of the target
// report names. Discovered once per process and cached.
type ReportConfig struct {
	Name         string `json:"name"`
	ResourceID   int64  `json:"resourceId"`
	TemplateID   int64  `json:"templateId"`
	TemplateType string `json:"templateType"`
}

// DateRange bounds a report execution window.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ReportTable is one normalized table from a report result.
type ReportTable struct {
	TableName        string           `json:"tableName"`
	TotalRows        int              `json:"totalRows"`
	SourceTemplateID int64            `json:"sourceTemplateId,omitempty"`
	Data             []map[string]any `json:"data"`
}

// ReportResult is the outcome of one report execution. Provider-side failures
// are carried in Error so batch callers never abort on a single unit.
type ReportResult struct {
	Unit      string            `json:"unit,omitempty"`
	Report    string            `json:"report,omitempty"`
	DateRange *DateRange        `json:"dateRange,omitempty"`
	Stats     []json.RawMessage `json:"stats,omitempty"`
	Tables    []ReportTable     `json:"tables,omitempty"`
	Message   string            `json:"message,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// OK reports whether the execution produced usable data.
func (r ReportResult) OK() bool {
	return r.Error == "" && r.Message == ""
}
