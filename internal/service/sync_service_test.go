package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"fleetsync/internal/models"
	"fleetsync/internal/redisstore"
)

func newTestSyncService(provider *fakeProvider) (*SyncService, *RunGuard, *fakeEngineHoursStore) {
	reports, _, engineStore := newTestReportService(provider)
	guard := NewRunGuard()
	svc := NewSyncService(reports, guard, redisstore.NewStatusStore(nil), time.Minute, zap.NewNop())
	return svc, guard, engineStore
}

func TestRunOncePersistsEveryUnitConfigPair(t *testing.T) {
	provider := newFakeProvider()
	provider.units = []models.Unit{{ID: 1, Name: "Truck"}, {ID: 2, Name: "Harvester"}}
	provider.configs = []models.ReportConfig{
		{Name: "Motion", ResourceID: 2, TemplateID: 5, TemplateType: "avl_unit"},
		{Name: "Machine Activity", ResourceID: 2, TemplateID: 6, TemplateType: "avl_unit"},
	}
	svc, _, _ := newTestSyncService(provider)

	if !svc.RunOnce(context.Background()) {
		t.Fatal("RunOnce should run when the guard is free")
	}
	if provider.execCalls != 4 {
		t.Fatalf("expected 2 units x 2 configs executions, got %d", provider.execCalls)
	}
}

func TestRunOnceDeclinesWhileActive(t *testing.T) {
	provider := newFakeProvider()
	provider.units = []models.Unit{{ID: 1, Name: "Truck"}}
	provider.configs = []models.ReportConfig{{Name: "Motion", TemplateID: 5, TemplateType: "avl_unit"}}
	svc, guard, _ := newTestSyncService(provider)

	if !guard.TryAcquire() {
		t.Fatal("guard should be free initially")
	}
	defer guard.Release()

	if svc.RunOnce(context.Background()) {
		t.Fatal("overlapping trigger must be a no-op")
	}
	if provider.execCalls != 0 {
		t.Fatalf("declined run must not touch the provider, got %d calls", provider.execCalls)
	}
}

func TestRunOnceReleasesGuardAfterFailure(t *testing.T) {
	provider := newFakeProvider()
	provider.units = []models.Unit{{ID: 1, Name: "Truck"}}
	provider.configs = []models.ReportConfig{{Name: "Motion", TemplateID: 5, TemplateType: "avl_unit"}}
	provider.execErrByTemplate[5] = context.DeadlineExceeded
	svc, guard, _ := newTestSyncService(provider)

	if !svc.RunOnce(context.Background()) {
		t.Fatal("run with per-unit failures still counts as a run")
	}
	if !guard.TryAcquire() {
		t.Fatal("guard must be released after the run")
	}
	guard.Release()
}

func TestRunOncePersistsEngineHours(t *testing.T) {
	provider := newFakeProvider()
	provider.units = []models.Unit{{ID: 42, Name: "Harvester"}}
	provider.configs = []models.ReportConfig{{Name: "Machine Activity", ResourceID: 2, TemplateID: 5, TemplateType: "avl_unit"}}
	provider.reportsByTemplate[5] = engineHoursReport(t)
	provider.rowsByTable[0] = engineHoursRows(t, "60 l")
	svc, _, engineStore := newTestSyncService(provider)

	svc.RunOnce(context.Background())

	engineStore.mu.Lock()
	defer engineStore.mu.Unlock()
	if len(engineStore.rows) != 1 {
		t.Fatalf("rolling sync must persist engine hours, got %d rows", len(engineStore.rows))
	}
}
