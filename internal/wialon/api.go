package wialon

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"fleetsync/internal/models"
)

const (
	svcSearchItems   = "core/search_items"
	svcCleanupResult = "report/cleanup_result"
	svcExecReport    = "report/exec_report"
	svcResultRows    = "report/get_result_rows"

	// search_items flags: 1 returns base item properties, 8193 additionally
	// returns the resource report templates.
	flagsBase      = 1
	flagsTemplates = 8193

	// get_result_rows detail level that includes cell objects.
	rowDetailLevel = 1
)

// API exposes the typed subset of Wialon RPC calls this service uses.
// All calls go through the shared Session and its bounded expiry retry.
type API struct {
	session *Session
	logger  *zap.Logger
}

// NewAPI returns the typed provider API.
func NewAPI(session *Session, logger *zap.Logger) *API {
	return &API{session: session, logger: logger}
}

type searchSpec struct {
	ItemsType     string `json:"itemsType"`
	PropName      string `json:"propName"`
	PropValueMask string `json:"propValueMask"`
	SortType      string `json:"sortType"`
}

type searchItemsParams struct {
	Spec  searchSpec `json:"spec"`
	Force int        `json:"force"`
	Flags int        `json:"flags"`
	From  int        `json:"from"`
	To    int        `json:"to"`
}

type searchItemsResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	ID   int64                    `json:"id"`
	Name string                   `json:"nm"`
	Rep  map[string]templateEntry `json:"rep"`
}

type templateEntry struct {
	ID   int64  `json:"id"`
	Name string `json:"n"`
	Type string `json:"ct"`
}

func searchParams(itemsType string, flags int) searchItemsParams {
	return searchItemsParams{
		Spec: searchSpec{
			ItemsType:     itemsType,
			PropName:      "sys_name",
			PropValueMask: "*",
			SortType:      "sys_name",
		},
		Force: 1,
		Flags: flags,
		From:  0,
		To:    0,
	}
}

// Units lists all tracked units visible to the session.
func (a *API) Units(ctx context.Context) ([]models.Unit, error) {
	raw, err := a.session.Call(ctx, svcSearchItems, searchParams("avl_unit", flagsBase))
	if err != nil {
		return nil, fmt.Errorf("search units: %w", err)
	}

	var out searchItemsResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("search units: decode response: %w", err)
	}

	units := make([]models.Unit, 0, len(out.Items))
	for _, item := range out.Items {
		units = append(units, models.Unit{ID: item.ID, Name: item.Name})
	}
	return units, nil
}

// Templates lists every report template across all resources.
func (a *API) Templates(ctx context.Context) ([]models.ReportTemplate, error) {
	items, err := a.searchResources(ctx)
	if err != nil {
		return nil, err
	}

	var templates []models.ReportTemplate
	for _, res := range items {
		for _, tpl := range res.Rep {
			templates = append(templates, models.ReportTemplate{
				TemplateID:   tpl.ID,
				TemplateName: tpl.Name,
				TemplateType: tpl.Type,
				ResourceID:   res.ID,
				ResourceName: res.Name,
			})
		}
	}
	return templates, nil
}

// ReportConfigs resolves (resource, template) pairs for the given target
// report names by scanning all resources.
func (a *API) ReportConfigs(ctx context.Context, names []string) ([]models.ReportConfig, error) {
	items, err := a.searchResources(ctx)
	if err != nil {
		return nil, err
	}

	target := make(map[string]struct{}, len(names))
	for _, n := range names {
		target[n] = struct{}{}
	}

	var configs []models.ReportConfig
	for _, res := range items {
		for _, tpl := range res.Rep {
			if _, ok := target[tpl.Name]; !ok {
				continue
			}
			configs = append(configs, models.ReportConfig{
				Name:         tpl.Name,
				ResourceID:   res.ID,
				TemplateID:   tpl.ID,
				TemplateType: tpl.Type,
			})
		}
	}
	return configs, nil
}

func (a *API) searchResources(ctx context.Context) ([]searchItem, error) {
	raw, err := a.session.Call(ctx, svcSearchItems, searchParams("avl_resource", flagsTemplates))
	if err != nil {
		return nil, fmt.Errorf("search resources: %w", err)
	}

	var out searchItemsResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("search resources: decode response: %w", err)
	}
	return out.Items, nil
}

// CleanupResult clears the server-side result buffer for the session.
// The protocol requires it before every exec_report.
func (a *API) CleanupResult(ctx context.Context) error {
	if _, err := a.session.Call(ctx, svcCleanupResult, map[string]any{}); err != nil {
		return fmt.Errorf("cleanup result: %w", err)
	}
	return nil
}

// ExecReportParams identifies one report execution.
type ExecReportParams struct {
	ResourceID int64
	TemplateID int64
	ObjectID   int64
	From       int64
	To         int64
}

type execInterval struct {
	From  int64 `json:"from"`
	To    int64 `json:"to"`
	Flags int   `json:"flags"`
}

type execReportRequest struct {
	ReportResourceID  int64        `json:"reportResourceId"`
	ReportTemplateID  int64        `json:"reportTemplateId"`
	ReportObjectID    int64        `json:"reportObjectId"`
	ReportObjectSecID int64        `json:"reportObjectSecId"`
	Interval          execInterval `json:"interval"`
}

// TableInfo describes one table of an executed report.
type TableInfo struct {
	Name       string   `json:"name"`
	Label      string   `json:"label"`
	Rows       int      `json:"rows"`
	Index      *int     `json:"index,omitempty"`
	Header     []string `json:"header"`
	HeaderType []string `json:"header_type"`
}

// ReportData is the parsed result of exec_report.
type ReportData struct {
	Stats  []json.RawMessage
	Tables []TableInfo
}

type execReportResponse struct {
	ReportResult *struct {
		Stats  []json.RawMessage `json:"stats"`
		Tables []TableInfo       `json:"tables"`
	} `json:"reportResult"`
}

// ExecReport submits a report execution for one unit and window.
func (a *API) ExecReport(ctx context.Context, params ExecReportParams) (*ReportData, error) {
	req := execReportRequest{
		ReportResourceID:  params.ResourceID,
		ReportTemplateID:  params.TemplateID,
		ReportObjectID:    params.ObjectID,
		ReportObjectSecID: 0,
		Interval:          execInterval{From: params.From, To: params.To, Flags: 0},
	}

	a.logger.Debug("executing report",
		zap.Int64("resource_id", params.ResourceID),
		zap.Int64("template_id", params.TemplateID),
		zap.Int64("object_id", params.ObjectID))

	raw, err := a.session.Call(ctx, svcExecReport, req)
	if err != nil {
		return nil, fmt.Errorf("exec report: %w", err)
	}

	var out execReportResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("exec report: decode response: %w", err)
	}
	if out.ReportResult == nil {
		return &ReportData{}, nil
	}
	return &ReportData{Stats: out.ReportResult.Stats, Tables: out.ReportResult.Tables}, nil
}

// Row is one raw report row; cells are scalars or {t: text} objects.
type Row struct {
	C []json.RawMessage `json:"c"`
}

type resultRowsRequest struct {
	TableIndex int `json:"tableIndex"`
	IndexFrom  int `json:"indexFrom"`
	IndexTo    int `json:"indexTo"`
	Level      int `json:"level"`
}

// ResultRows fetches rows of one result table at cell detail level.
func (a *API) ResultRows(ctx context.Context, tableIndex, indexFrom, indexTo int) ([]Row, error) {
	req := resultRowsRequest{
		TableIndex: tableIndex,
		IndexFrom:  indexFrom,
		IndexTo:    indexTo,
		Level:      rowDetailLevel,
	}

	raw, err := a.session.Call(ctx, svcResultRows, req)
	if err != nil {
		return nil, fmt.Errorf("get result rows: %w", err)
	}

	var rows []Row
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("get result rows: decode response: %w", err)
	}
	return rows, nil
}

// CellValue unwraps a raw report cell to its scalar value; object cells
// resolve to their display text.
func CellValue(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		return m["t"]
	}
	return v
}
