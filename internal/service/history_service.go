package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"fleetsync/internal/models"
	"fleetsync/internal/redisstore"
)

const backfillDays = 90

// DailyReportStore persists raw daily snapshots.
type DailyReportStore interface {
	Upsert(ctx context.Context, report *models.DailyReport) error
	QueryDay(ctx context.Context, date string, unitID int64) ([]models.DailyReport, error)
	QueryRange(ctx context.Context, unitID int64, from, to string) ([]models.DailyReport, error)
}

// HistoryService runs the 90-day historical backfill and serves the stored
// snapshots. The backfill is fire-and-forget: the trigger returns as soon as
// the background run is started.
type HistoryService struct {
	reports *ReportService
	store   DailyReportStore
	guard   *RunGuard
	status  *redisstore.StatusStore
	logger  *zap.Logger

	days int
	now  func() time.Time
}

// NewHistoryService returns service instance.
func NewHistoryService(reports *ReportService, store DailyReportStore, guard *RunGuard, status *redisstore.StatusStore, logger *zap.Logger) *HistoryService {
	return &HistoryService{
		reports: reports,
		store:   store,
		guard:   guard,
		status:  status,
		logger:  logger,
		days:    backfillDays,
		now:     time.Now,
	}
}

// TriggerBackfill starts the backfill in the background. Returns false when
// another sync run already holds the guard. The run outlives the triggering
// request, so it carries its own context.
func (s *HistoryService) TriggerBackfill() bool {
	if !s.guard.TryAcquire() {
		s.logger.Info("backfill declined, another sync run is active")
		return false
	}

	go func() {
		defer s.guard.Release()
		s.run(context.Background())
	}()
	return true
}

func (s *HistoryService) run(ctx context.Context) {
	started := s.now().UTC()
	s.logger.Info("starting history backfill", zap.Int("days", s.days))
	s.recordStatus(ctx, redisstore.RunStatus{
		Job:       redisstore.JobHistoryBackfill,
		State:     redisstore.StateRunning,
		StartedAt: started,
	})

	units, err := s.reports.Units(ctx)
	if err != nil {
		s.failRun(ctx, started, err)
		return
	}
	templates, err := s.targetTemplates(ctx)
	if err != nil {
		s.failRun(ctx, started, err)
		return
	}

	var processed, failed int
	today := started

	// Most recent day first; each day is fetched with a strict
	// 00:00:00-23:59:59 window.
	for d := 0; d < s.days; d++ {
		day := today.AddDate(0, 0, -d)
		dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		dayEnd := dayStart.Add(24*time.Hour - time.Second)
		dateString := dayStart.Format("2006-01-02")

		for _, unit := range units {
			for _, tpl := range templates {
				if s.fetchAndSaveDay(ctx, unit, tpl, dayStart, dayEnd, dateString) {
					processed++
				} else {
					failed++
				}
			}
		}
	}

	s.logger.Info("history backfill completed",
		zap.Int("processed", processed),
		zap.Int("failed", failed))
	s.recordStatus(ctx, redisstore.RunStatus{
		Job:        redisstore.JobHistoryBackfill,
		State:      redisstore.StateCompleted,
		StartedAt:  started,
		FinishedAt: s.now().UTC(),
		Processed:  processed,
		Failed:     failed,
	})
}

// fetchAndSaveDay fetches one (unit, template, day) report and upserts a
// snapshot when it carries any stats or tables. Failures are logged and
// skipped so the remaining iterations proceed.
func (s *HistoryService) fetchAndSaveDay(ctx context.Context, unit models.Unit, tpl models.ReportTemplate, from, to time.Time, dateString string) bool {
	data := s.reports.FetchRawReportData(ctx, unit, tpl.TemplateID, tpl.ResourceID, from, to)
	if data.Error != "" {
		s.logger.Warn("backfill fetch failed",
			zap.String("unit", unit.Name),
			zap.String("date", dateString),
			zap.String("error", data.Error))
		return false
	}
	if len(data.Stats) == 0 && len(data.Tables) == 0 {
		return true
	}

	stats, err := json.Marshal(data.Stats)
	if err != nil {
		stats = []byte("[]")
	}
	tables, err := json.Marshal(data.Tables)
	if err != nil {
		tables = []byte("[]")
	}

	report := &models.DailyReport{
		UnitID:     unit.ID,
		UnitName:   unit.Name,
		Date:       dateString,
		ReportName: tpl.TemplateName,
		Stats:      stats,
		Tables:     tables,
		SyncedAt:   s.now().UTC(),
	}
	if err := s.store.Upsert(ctx, report); err != nil {
		s.logger.Error("backfill save failed",
			zap.String("unit", unit.Name),
			zap.String("date", dateString),
			zap.Error(err))
		return false
	}
	return true
}

func (s *HistoryService) targetTemplates(ctx context.Context) ([]models.ReportTemplate, error) {
	templates, err := s.reports.Templates(ctx)
	if err != nil {
		return nil, err
	}

	target := make(map[string]struct{}, len(targetReportNames))
	for _, n := range targetReportNames {
		target[n] = struct{}{}
	}

	var filtered []models.ReportTemplate
	for _, tpl := range templates {
		if _, ok := target[tpl.TemplateName]; ok {
			filtered = append(filtered, tpl)
		}
	}
	return filtered, nil
}

func (s *HistoryService) failRun(ctx context.Context, started time.Time, err error) {
	s.logger.Error("history backfill failed", zap.Error(err))
	s.recordStatus(ctx, redisstore.RunStatus{
		Job:        redisstore.JobHistoryBackfill,
		State:      redisstore.StateFailed,
		StartedAt:  started,
		FinishedAt: s.now().UTC(),
		LastError:  err.Error(),
	})
}

func (s *HistoryService) recordStatus(ctx context.Context, status redisstore.RunStatus) {
	if err := s.status.Save(ctx, status); err != nil {
		s.logger.Warn("failed to record backfill status", zap.Error(err))
	}
}

// DayData returns snapshots for one calendar date, optionally per unit.
func (s *HistoryService) DayData(ctx context.Context, date string, unitID int64) ([]models.DailyReport, error) {
	return s.store.QueryDay(ctx, date, unitID)
}

// HistoryRange returns snapshots with optional unit and date bounds.
func (s *HistoryService) HistoryRange(ctx context.Context, unitID int64, from, to string) ([]models.DailyReport, error) {
	return s.store.QueryRange(ctx, unitID, from, to)
}
