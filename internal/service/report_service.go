package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"fleetsync/internal/models"
	"fleetsync/internal/wialon"
)

// Report names resolved into sync configurations.
var targetReportNames = []string{"Motion", "Machine Activity"}

const defaultReportWindow = 30 * 24 * time.Hour

// ErrTemplateRequired is returned for single report execution without a
// template id.
var ErrTemplateRequired = errors.New("template id is required for single report execution")

// ProviderAPI is the subset of the Wialon API the orchestrator drives.
type ProviderAPI interface {
	Units(ctx context.Context) ([]models.Unit, error)
	Templates(ctx context.Context) ([]models.ReportTemplate, error)
	ReportConfigs(ctx context.Context, names []string) ([]models.ReportConfig, error)
	CleanupResult(ctx context.Context) error
	ExecReport(ctx context.Context, params wialon.ExecReportParams) (*wialon.ReportData, error)
	ResultRows(ctx context.Context, tableIndex, indexFrom, indexTo int) ([]wialon.Row, error)
}

// UnitStore persists unit identity.
type UnitStore interface {
	Upsert(ctx context.Context, unit models.Unit) error
}

// EngineHoursStore persists computed engine-hours intervals.
type EngineHoursStore interface {
	UpsertBatch(ctx context.Context, records []models.EngineHoursRecord) error
	Query(ctx context.Context, unitID int64, from, to time.Time) ([]models.EngineHoursRecord, error)
}

// ReportService executes Wialon reports and shapes their tabular output.
type ReportService struct {
	api         ProviderAPI
	units       UnitStore
	engineHours EngineHoursStore
	logger      *zap.Logger

	configMu      sync.Mutex
	cachedConfigs []models.ReportConfig
}

// NewReportService returns service instance.
func NewReportService(api ProviderAPI, units UnitStore, engineHours EngineHoursStore, logger *zap.Logger) *ReportService {
	return &ReportService{
		api:         api,
		units:       units,
		engineHours: engineHours,
		logger:      logger,
	}
}

// ExecuteReportInput is the caller-facing report request.
type ExecuteReportInput struct {
	ResourceID  int64   `json:"resourceId"`
	TemplateID  int64   `json:"templateId"`
	TemplateIDs []int64 `json:"templateIds"`
	ObjectID    int64   `json:"objectId"`
	From        int64   `json:"from"`
	To          int64   `json:"to"`
}

// Units lists provider units.
func (s *ReportService) Units(ctx context.Context) ([]models.Unit, error) {
	return s.api.Units(ctx)
}

// Templates lists all provider report templates.
func (s *ReportService) Templates(ctx context.Context) ([]models.ReportTemplate, error) {
	return s.api.Templates(ctx)
}

// ReportConfigs resolves the target report configurations, memoized for the
// process lifetime.
func (s *ReportService) ReportConfigs(ctx context.Context) ([]models.ReportConfig, error) {
	s.configMu.Lock()
	defer s.configMu.Unlock()

	if len(s.cachedConfigs) > 0 {
		return s.cachedConfigs, nil
	}

	configs, err := s.api.ReportConfigs(ctx, targetReportNames)
	if err != nil {
		return nil, err
	}
	s.cachedConfigs = configs
	return configs, nil
}

// InvalidateConfigCache drops the memoized report configurations.
func (s *ReportService) InvalidateConfigCache() {
	s.configMu.Lock()
	s.cachedConfigs = nil
	s.configMu.Unlock()
}

// StoredEngineHours returns persisted intervals, defaulting to the last 30 days.
func (s *ReportService) StoredEngineHours(ctx context.Context, unitID int64, from, to time.Time) ([]models.EngineHoursRecord, error) {
	return s.engineHours.Query(ctx, unitID, from, to)
}

// ExecuteReport runs a single template against one unit. Defaults: to = now,
// from = to - 30 days.
func (s *ReportService) ExecuteReport(ctx context.Context, input ExecuteReportInput) (models.ReportResult, error) {
	if input.TemplateID == 0 {
		return models.ReportResult{}, ErrTemplateRequired
	}

	from, to := resolveWindow(input.From, input.To)
	s.logger.Info("manual report execution",
		zap.Int64("object_id", input.ObjectID),
		zap.Int64("template_id", input.TemplateID),
		zap.Time("from", from),
		zap.Time("to", to))

	return s.ProcessUnitReport(ctx,
		models.Unit{ID: input.ObjectID, Name: "Manual Run"},
		models.ReportConfig{
			Name:         "Manual",
			ResourceID:   input.ResourceID,
			TemplateID:   input.TemplateID,
			TemplateType: "avl_unit",
		},
		from, to, false), nil
}

// ExecuteBatchReports runs several templates sequentially against the shared
// session and merges their output. Failed templates are skipped; surviving
// tables are tagged with their source template id.
func (s *ReportService) ExecuteBatchReports(ctx context.Context, input ExecuteReportInput) models.ReportResult {
	templates := input.TemplateIDs
	if len(templates) == 0 && input.TemplateID != 0 {
		templates = []int64{input.TemplateID}
	}
	if len(templates) == 0 {
		return models.ReportResult{Message: "no template ids provided"}
	}

	from, to := resolveWindow(input.From, input.To)
	s.logger.Info("merged report execution",
		zap.Int64("object_id", input.ObjectID),
		zap.Int64s("template_ids", templates))

	merged := models.ReportResult{
		Unit:      "Unknown",
		Report:    "Merged Report",
		DateRange: &models.DateRange{From: from, To: to},
	}

	for _, templateID := range templates {
		result := s.ProcessUnitReport(ctx,
			models.Unit{ID: input.ObjectID, Name: "Merge Run"},
			models.ReportConfig{
				Name:         fmt.Sprintf("Template %d", templateID),
				ResourceID:   input.ResourceID,
				TemplateID:   templateID,
				TemplateType: "avl_unit",
			},
			from, to, false)

		if !result.OK() {
			continue
		}
		if result.Unit != "" {
			merged.Unit = result.Unit
		}
		merged.Stats = append(merged.Stats, result.Stats...)
		for _, table := range result.Tables {
			table.SourceTemplateID = templateID
			merged.Tables = append(merged.Tables, table)
		}
	}
	return merged
}

// FetchRawReportData executes one report without persistence; the history
// backfill stores the raw result itself.
func (s *ReportService) FetchRawReportData(ctx context.Context, unit models.Unit, templateID, resourceID int64, from, to time.Time) models.ReportResult {
	return s.ProcessUnitReport(ctx, unit,
		models.ReportConfig{
			Name:         "History Sync",
			ResourceID:   resourceID,
			TemplateID:   templateID,
			TemplateType: "avl_unit",
		},
		from, to, false)
}

// ProcessUnitReport runs the full report pipeline for one unit/template pair:
// cleanup, exec, stats extraction, per-table row fetch, normalization and
// conditional engine-hours persistence. Failures are captured in the result
// so batch callers never abort on a single unit.
func (s *ReportService) ProcessUnitReport(ctx context.Context, unit models.Unit, cfg models.ReportConfig, from, to time.Time, persist bool) models.ReportResult {
	if cfg.TemplateType != "" && cfg.TemplateType != "avl_unit" {
		return models.ReportResult{
			Message: fmt.Sprintf("skipped: template type mismatch (%s)", cfg.TemplateType),
		}
	}

	result, err := s.runReport(ctx, unit, cfg, from, to, persist)
	if err != nil {
		s.logger.Error("report processing failed",
			zap.String("unit", unit.Name),
			zap.String("report", cfg.Name),
			zap.Error(err))
		return models.ReportResult{Error: err.Error()}
	}
	return *result
}

func (s *ReportService) runReport(ctx context.Context, unit models.Unit, cfg models.ReportConfig, from, to time.Time, persist bool) (*models.ReportResult, error) {
	if err := s.api.CleanupResult(ctx); err != nil {
		return nil, err
	}

	data, err := s.api.ExecReport(ctx, wialon.ExecReportParams{
		ResourceID: cfg.ResourceID,
		TemplateID: cfg.TemplateID,
		ObjectID:   unit.ID,
		From:       from.Unix(),
		To:         to.Unix(),
	})
	if err != nil {
		return nil, err
	}

	result := &models.ReportResult{
		Unit:      unit.Name,
		Report:    cfg.Name,
		DateRange: &models.DateRange{From: from, To: to},
		Stats:     data.Stats,
	}

	if len(data.Tables) == 0 {
		result.Message = "no tables found"
		return result, nil
	}

	for i, table := range data.Tables {
		if table.Rows <= 0 {
			continue
		}

		tableIndex := i
		if table.Index != nil {
			tableIndex = *table.Index
		}

		rows, err := s.api.ResultRows(ctx, tableIndex, 0, table.Rows-1)
		if err != nil {
			s.logger.Warn("failed to fetch result rows, skipping table",
				zap.String("table", table.Label),
				zap.Error(err))
			continue
		}

		if persist && wialon.ClassifyTable(table.Name) == wialon.TableEngineHours {
			if err := s.persistEngineHours(ctx, unit, table, rows); err != nil {
				s.logger.Error("failed to persist engine hours",
					zap.String("unit", unit.Name),
					zap.Error(err))
			}
		}

		result.Tables = append(result.Tables, models.ReportTable{
			TableName: table.Label,
			TotalRows: table.Rows,
			Data:      normalizeRows(table, rows),
		})
	}
	return result, nil
}

// normalizeRows maps each row's cell array to a mapping keyed by the table's
// declared column names, with col_<i> for unnamed columns.
func normalizeRows(table wialon.TableInfo, rows []wialon.Row) []map[string]any {
	keys := table.HeaderType
	if len(keys) == 0 {
		keys = table.Header
	}

	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		mapped := make(map[string]any, len(row.C))
		for i, cell := range row.C {
			key := fmt.Sprintf("col_%d", i)
			if i < len(keys) && keys[i] != "" {
				key = keys[i]
			}
			mapped[key] = wialon.CellValue(cell)
		}
		out = append(out, mapped)
	}
	return out
}

// persistEngineHours parses engine-hours rows via the declared column layout
// and upserts them keyed on (unit_id, time_begin). The unit itself is
// refreshed first so the foreign key always resolves.
func (s *ReportService) persistEngineHours(ctx context.Context, unit models.Unit, table wialon.TableInfo, rows []wialon.Row) error {
	colIndex := func(name string) int {
		for i, col := range table.HeaderType {
			if col == name {
				return i
			}
		}
		return -1
	}

	begin := colIndex("time_begin")
	if begin < 0 {
		return nil
	}
	end := colIndex("time_end")
	duration := colIndex("duration")
	moveUtil := colIndex("movement_utilization")
	util := colIndex("utilization")
	fuelBegin := colIndex("fuel_level_begin")
	fuelEnd := colIndex("fuel_level_end")

	if err := s.units.Upsert(ctx, unit); err != nil {
		return fmt.Errorf("upsert unit: %w", err)
	}

	cell := func(row wialon.Row, i int) any {
		if i < 0 || i >= len(row.C) {
			return nil
		}
		return wialon.CellValue(row.C[i])
	}

	records := make([]models.EngineHoursRecord, 0, len(rows))
	for _, row := range rows {
		if cell(row, begin) == nil {
			continue
		}
		records = append(records, models.EngineHoursRecord{
			UnitID:                     unit.ID,
			TimeBegin:                  wialon.ParseReportDate(cell(row, begin)),
			TimeEnd:                    wialon.ParseReportDate(cell(row, end)),
			DurationSeconds:            wialon.ParseDurationSeconds(cell(row, duration)),
			MovementUtilizationPercent: wialon.ParseCleanNumber(cell(row, moveUtil)),
			UtilizationPercent:         wialon.ParseCleanNumber(cell(row, util)),
			FuelLevelBegin:             wialon.ParseCleanNumber(cell(row, fuelBegin)),
			FuelLevelEnd:               wialon.ParseCleanNumber(cell(row, fuelEnd)),
		})
	}

	if len(records) == 0 {
		return nil
	}
	return s.engineHours.UpsertBatch(ctx, records)
}

func resolveWindow(from, to int64) (time.Time, time.Time) {
	toTime := time.Now().UTC()
	if to != 0 {
		toTime = time.Unix(to, 0).UTC()
	}
	fromTime := toTime.Add(-defaultReportWindow)
	if from != 0 {
		fromTime = time.Unix(from, 0).UTC()
	}
	return fromTime, toTime
}
