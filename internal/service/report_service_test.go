package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"fleetsync/internal/models"
	"fleetsync/internal/wialon"
)

type fakeProvider struct {
	mu sync.Mutex

	units     []models.Unit
	templates []models.ReportTemplate
	configs   []models.ReportConfig

	reportsByTemplate map[int64]*wialon.ReportData
	execErrByTemplate map[int64]error
	rowsByTable       map[int][]wialon.Row
	rowsErrByTable    map[int]error

	cleanupCalls int
	execCalls    int
	rowsCalls    int
	configCalls  int
	lastExec     wialon.ExecReportParams
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		reportsByTemplate: make(map[int64]*wialon.ReportData),
		execErrByTemplate: make(map[int64]error),
		rowsByTable:       make(map[int][]wialon.Row),
		rowsErrByTable:    make(map[int]error),
	}
}

func (f *fakeProvider) Units(ctx context.Context) ([]models.Unit, error) {
	return f.units, nil
}

func (f *fakeProvider) Templates(ctx context.Context) ([]models.ReportTemplate, error) {
	return f.templates, nil
}

func (f *fakeProvider) ReportConfigs(ctx context.Context, names []string) ([]models.ReportConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configCalls++
	return f.configs, nil
}

func (f *fakeProvider) CleanupResult(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanupCalls++
	return nil
}

func (f *fakeProvider) ExecReport(ctx context.Context, params wialon.ExecReportParams) (*wialon.ReportData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execCalls++
	f.lastExec = params
	if err, ok := f.execErrByTemplate[params.TemplateID]; ok {
		return nil, err
	}
	if data, ok := f.reportsByTemplate[params.TemplateID]; ok {
		return data, nil
	}
	return &wialon.ReportData{}, nil
}

func (f *fakeProvider) ResultRows(ctx context.Context, tableIndex, indexFrom, indexTo int) ([]wialon.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rowsCalls++
	if err, ok := f.rowsErrByTable[tableIndex]; ok {
		return nil, err
	}
	return f.rowsByTable[tableIndex], nil
}

type fakeUnitStore struct {
	mu    sync.Mutex
	units map[int64]models.Unit
}

func newFakeUnitStore() *fakeUnitStore {
	return &fakeUnitStore{units: make(map[int64]models.Unit)}
}

func (s *fakeUnitStore) Upsert(ctx context.Context, unit models.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units[unit.ID] = unit
	return nil
}

// fakeEngineHoursStore emulates the repository's upsert contract:
// one row per (unit_id, time_begin), latest write wins.
type fakeEngineHoursStore struct {
	mu   sync.Mutex
	rows map[string]models.EngineHoursRecord
}

func newFakeEngineHoursStore() *fakeEngineHoursStore {
	return &fakeEngineHoursStore{rows: make(map[string]models.EngineHoursRecord)}
}

func (s *fakeEngineHoursStore) UpsertBatch(ctx context.Context, records []models.EngineHoursRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		key := fmt.Sprintf("%d|%d", rec.UnitID, rec.TimeBegin.Unix())
		s.rows[key] = rec
	}
	return nil
}

func (s *fakeEngineHoursStore) Query(ctx context.Context, unitID int64, from, to time.Time) ([]models.EngineHoursRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.EngineHoursRecord
	for _, rec := range s.rows {
		out = append(out, rec)
	}
	return out, nil
}

func cellJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal cell: %v", err)
	}
	return raw
}

func newTestReportService(provider *fakeProvider) (*ReportService, *fakeUnitStore, *fakeEngineHoursStore) {
	units := newFakeUnitStore()
	engineHours := newFakeEngineHoursStore()
	return NewReportService(provider, units, engineHours, zap.NewNop()), units, engineHours
}

func TestProcessUnitReportFiltersEmptyTables(t *testing.T) {
	provider := newFakeProvider()
	provider.reportsByTemplate[5] = &wialon.ReportData{
		Tables: []wialon.TableInfo{
			{Name: "unit_stats", Label: "Stats", Rows: 0},
			{Name: "unit_trips", Label: "Trips", Rows: 5, HeaderType: []string{"time_begin", "time_end"}},
			{Name: "unit_stops", Label: "Stops", Rows: 0},
		},
	}
	provider.rowsByTable[1] = []wialon.Row{
		{C: []json.RawMessage{cellJSON(t, "21.11.2023 10:00:00"), cellJSON(t, "21.11.2023 11:00:00")}},
	}
	svc, _, _ := newTestReportService(provider)

	from := time.Now().Add(-time.Hour)
	result := svc.ProcessUnitReport(context.Background(),
		models.Unit{ID: 1, Name: "Truck"},
		models.ReportConfig{Name: "Motion", ResourceID: 2, TemplateID: 5, TemplateType: "avl_unit"},
		from, time.Now(), false)

	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	if len(result.Tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(result.Tables))
	}
	if result.Tables[0].TableName != "Trips" {
		t.Fatalf("expected Trips table, got %s", result.Tables[0].TableName)
	}
	if provider.rowsCalls != 1 {
		t.Fatalf("expected one row fetch, got %d", provider.rowsCalls)
	}
	if provider.cleanupCalls != 1 {
		t.Fatalf("expected cleanup before exec, got %d", provider.cleanupCalls)
	}
}

func TestProcessUnitReportNormalizesRowKeys(t *testing.T) {
	provider := newFakeProvider()
	provider.reportsByTemplate[5] = &wialon.ReportData{
		Tables: []wialon.TableInfo{
			{Name: "unit_trips", Label: "Trips", Rows: 1, HeaderType: []string{"time_begin"}},
		},
	}
	provider.rowsByTable[0] = []wialon.Row{
		{C: []json.RawMessage{
			cellJSON(t, map[string]any{"t": "21.11.2023 10:00:00"}),
			cellJSON(t, "extra"),
		}},
	}
	svc, _, _ := newTestReportService(provider)

	result := svc.ProcessUnitReport(context.Background(),
		models.Unit{ID: 1, Name: "Truck"},
		models.ReportConfig{TemplateID: 5, TemplateType: "avl_unit"},
		time.Now().Add(-time.Hour), time.Now(), false)

	if len(result.Tables) != 1 || len(result.Tables[0].Data) != 1 {
		t.Fatalf("unexpected result shape: %+v", result.Tables)
	}
	row := result.Tables[0].Data[0]
	if row["time_begin"] != "21.11.2023 10:00:00" {
		t.Fatalf("object cell not unwrapped: %v", row["time_begin"])
	}
	if row["col_1"] != "extra" {
		t.Fatalf("unnamed column should fall back to col_1, got %v", row["col_1"])
	}
}

func TestProcessUnitReportSkipsFailedTables(t *testing.T) {
	provider := newFakeProvider()
	provider.reportsByTemplate[5] = &wialon.ReportData{
		Tables: []wialon.TableInfo{
			{Name: "unit_trips", Label: "Trips", Rows: 2},
			{Name: "unit_stops", Label: "Stops", Rows: 3},
		},
	}
	provider.rowsErrByTable[0] = errors.New("row fetch failed")
	provider.rowsByTable[1] = []wialon.Row{{C: []json.RawMessage{cellJSON(t, "x")}}}
	svc, _, _ := newTestReportService(provider)

	result := svc.ProcessUnitReport(context.Background(),
		models.Unit{ID: 1, Name: "Truck"},
		models.ReportConfig{TemplateID: 5, TemplateType: "avl_unit"},
		time.Now().Add(-time.Hour), time.Now(), false)

	if result.Error != "" {
		t.Fatalf("sibling table failure must not fail the report: %s", result.Error)
	}
	if len(result.Tables) != 1 || result.Tables[0].TableName != "Stops" {
		t.Fatalf("expected only the surviving table, got %+v", result.Tables)
	}
}

func TestProcessUnitReportExecErrorIsCaptured(t *testing.T) {
	provider := newFakeProvider()
	provider.execErrByTemplate[5] = errors.New("exec report: wialon: api error 5")
	svc, _, _ := newTestReportService(provider)

	result := svc.ProcessUnitReport(context.Background(),
		models.Unit{ID: 1, Name: "Truck"},
		models.ReportConfig{TemplateID: 5, TemplateType: "avl_unit"},
		time.Now().Add(-time.Hour), time.Now(), false)

	if result.Error == "" {
		t.Fatal("expected captured error")
	}
}

func TestProcessUnitReportSkipsTemplateTypeMismatch(t *testing.T) {
	provider := newFakeProvider()
	svc, _, _ := newTestReportService(provider)

	result := svc.ProcessUnitReport(context.Background(),
		models.Unit{ID: 1, Name: "Truck"},
		models.ReportConfig{TemplateID: 5, TemplateType: "avl_resource"},
		time.Now().Add(-time.Hour), time.Now(), false)

	if result.Message == "" {
		t.Fatal("expected skip message for non-unit template")
	}
	if provider.execCalls != 0 {
		t.Fatalf("mismatched template must not execute, got %d calls", provider.execCalls)
	}
}

func engineHoursReport(t *testing.T) *wialon.ReportData {
	t.Helper()
	return &wialon.ReportData{
		Tables: []wialon.TableInfo{{
			Name:  "unit_engine_hours",
			Label: "Engine Hours",
			Rows:  1,
			HeaderType: []string{
				"time_begin", "time_end", "duration",
				"movement_utilization", "utilization",
				"fuel_level_begin", "fuel_level_end",
			},
		}},
	}
}

func engineHoursRows(t *testing.T, fuelEnd string) []wialon.Row {
	t.Helper()
	return []wialon.Row{{C: []json.RawMessage{
		cellJSON(t, "21.11.2023 10:00:00"),
		cellJSON(t, "21.11.2023 12:00:00"),
		cellJSON(t, "1 days 02:03:04"),
		cellJSON(t, "55 %"),
		cellJSON(t, "70 %"),
		cellJSON(t, "80.5 l"),
		cellJSON(t, fuelEnd),
	}}}
}

func TestEngineHoursPersistenceIsIdempotent(t *testing.T) {
	provider := newFakeProvider()
	provider.reportsByTemplate[5] = engineHoursReport(t)
	provider.rowsByTable[0] = engineHoursRows(t, "60.0 l")
	svc, unitStore, engineStore := newTestReportService(provider)

	unit := models.Unit{ID: 42, Name: "Harvester"}
	cfg := models.ReportConfig{Name: "Machine Activity", TemplateID: 5, TemplateType: "avl_unit"}
	from, to := time.Now().Add(-time.Hour), time.Now()

	result := svc.ProcessUnitReport(context.Background(), unit, cfg, from, to, true)
	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}

	// Re-fetch the same window with a changed trailing value.
	provider.rowsByTable[0] = engineHoursRows(t, "42.5 l")
	result = svc.ProcessUnitReport(context.Background(), unit, cfg, from, to, true)
	if result.Error != "" {
		t.Fatalf("unexpected error on re-run: %s", result.Error)
	}

	engineStore.mu.Lock()
	defer engineStore.mu.Unlock()
	if len(engineStore.rows) != 1 {
		t.Fatalf("expected one stored interval, got %d", len(engineStore.rows))
	}
	for _, rec := range engineStore.rows {
		if rec.FuelLevelEnd != 42.5 {
			t.Fatalf("expected latest fuel value 42.5, got %v", rec.FuelLevelEnd)
		}
		if rec.DurationSeconds != 93784 {
			t.Fatalf("expected duration 93784, got %d", rec.DurationSeconds)
		}
		if rec.FuelLevelBegin != 80.5 {
			t.Fatalf("expected fuel begin 80.5, got %v", rec.FuelLevelBegin)
		}
	}

	unitStore.mu.Lock()
	defer unitStore.mu.Unlock()
	if _, ok := unitStore.units[42]; !ok {
		t.Fatal("unit must be upserted before its engine hours")
	}
}

func TestEngineHoursNotPersistedWithoutPersistFlag(t *testing.T) {
	provider := newFakeProvider()
	provider.reportsByTemplate[5] = engineHoursReport(t)
	provider.rowsByTable[0] = engineHoursRows(t, "60 l")
	svc, _, engineStore := newTestReportService(provider)

	svc.ProcessUnitReport(context.Background(),
		models.Unit{ID: 42, Name: "Harvester"},
		models.ReportConfig{TemplateID: 5, TemplateType: "avl_unit"},
		time.Now().Add(-time.Hour), time.Now(), false)

	engineStore.mu.Lock()
	defer engineStore.mu.Unlock()
	if len(engineStore.rows) != 0 {
		t.Fatalf("persist=false must not store rows, got %d", len(engineStore.rows))
	}
}

func TestExecuteBatchReportsMergesSurvivors(t *testing.T) {
	provider := newFakeProvider()
	provider.execErrByTemplate[7] = errors.New("exec report: wialon: api error 5")
	provider.reportsByTemplate[8] = &wialon.ReportData{
		Stats: []json.RawMessage{cellJSON(t, []any{"Fuel consumed", "10 l"})},
		Tables: []wialon.TableInfo{
			{Name: "unit_trips", Label: "Trips", Rows: 2},
		},
	}
	provider.rowsByTable[0] = []wialon.Row{
		{C: []json.RawMessage{cellJSON(t, "a")}},
		{C: []json.RawMessage{cellJSON(t, "b")}},
	}
	svc, _, _ := newTestReportService(provider)

	merged := svc.ExecuteBatchReports(context.Background(), ExecuteReportInput{
		ResourceID:  2,
		TemplateIDs: []int64{7, 8},
		ObjectID:    1,
	})

	if merged.Error != "" {
		t.Fatalf("batch must survive one failed template: %s", merged.Error)
	}
	if len(merged.Tables) != 1 {
		t.Fatalf("expected only the successful template's table, got %d", len(merged.Tables))
	}
	if merged.Tables[0].SourceTemplateID != 8 {
		t.Fatalf("table must be tagged with source template, got %d", merged.Tables[0].SourceTemplateID)
	}
	if len(merged.Stats) != 1 {
		t.Fatalf("expected merged stats from the surviving template, got %d", len(merged.Stats))
	}
	if merged.Report != "Merged Report" {
		t.Fatalf("unexpected report label: %s", merged.Report)
	}
}

func TestExecuteBatchReportsWithoutTemplates(t *testing.T) {
	svc, _, _ := newTestReportService(newFakeProvider())

	result := svc.ExecuteBatchReports(context.Background(), ExecuteReportInput{ResourceID: 2, ObjectID: 1})
	if result.Message == "" {
		t.Fatal("expected no-templates sentinel message")
	}
}

func TestExecuteReportRequiresTemplate(t *testing.T) {
	svc, _, _ := newTestReportService(newFakeProvider())

	if _, err := svc.ExecuteReport(context.Background(), ExecuteReportInput{ResourceID: 2, ObjectID: 1}); !errors.Is(err, ErrTemplateRequired) {
		t.Fatalf("expected ErrTemplateRequired, got %v", err)
	}
}

func TestExecuteReportDefaultsWindowTo30Days(t *testing.T) {
	provider := newFakeProvider()
	svc, _, _ := newTestReportService(provider)

	if _, err := svc.ExecuteReport(context.Background(), ExecuteReportInput{ResourceID: 2, TemplateID: 5, ObjectID: 1}); err != nil {
		t.Fatalf("ExecuteReport returned error: %v", err)
	}

	window := provider.lastExec.To - provider.lastExec.From
	if window != int64(30*24*60*60) {
		t.Fatalf("expected 30-day default window, got %d seconds", window)
	}
}

func TestReportConfigsAreCached(t *testing.T) {
	provider := newFakeProvider()
	provider.configs = []models.ReportConfig{{Name: "Motion", ResourceID: 2, TemplateID: 5}}
	svc, _, _ := newTestReportService(provider)

	for i := 0; i < 3; i++ {
		if _, err := svc.ReportConfigs(context.Background()); err != nil {
			t.Fatalf("ReportConfigs returned error: %v", err)
		}
	}
	if provider.configCalls != 1 {
		t.Fatalf("expected a single discovery scan, got %d", provider.configCalls)
	}

	svc.InvalidateConfigCache()
	if _, err := svc.ReportConfigs(context.Background()); err != nil {
		t.Fatalf("ReportConfigs returned error: %v", err)
	}
	if provider.configCalls != 2 {
		t.Fatalf("expected rescan after invalidation, got %d", provider.configCalls)
	}
}
