package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"fleetsync/internal/redisstore"
)

// SyncService drives the rolling 30-day sync: every interval it re-executes
// the target reports for every unit and persists the engine-hours output.
type SyncService struct {
	reports  *ReportService
	guard    *RunGuard
	status   *redisstore.StatusStore
	interval time.Duration
	logger   *zap.Logger
}

// NewSyncService returns service instance.
func NewSyncService(reports *ReportService, guard *RunGuard, status *redisstore.StatusStore, interval time.Duration, logger *zap.Logger) *SyncService {
	return &SyncService{
		reports:  reports,
		guard:    guard,
		status:   status,
		interval: interval,
		logger:   logger,
	}
}

// Start runs the sync loop until the context is cancelled.
func (s *SyncService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one rolling sync pass. Returns false when another run
// holds the guard; overlapping triggers decline instead of queuing.
func (s *SyncService) RunOnce(ctx context.Context) bool {
	if !s.guard.TryAcquire() {
		s.logger.Info("sync already running, skipping trigger")
		return false
	}
	defer s.guard.Release()

	started := time.Now().UTC()
	s.logger.Info("starting wialon sync")
	s.recordStatus(ctx, redisstore.RunStatus{
		Job:       redisstore.JobRollingSync,
		State:     redisstore.StateRunning,
		StartedAt: started,
	})

	processed, failed, err := s.run(ctx)

	status := redisstore.RunStatus{
		Job:        redisstore.JobRollingSync,
		State:      redisstore.StateCompleted,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Processed:  processed,
		Failed:     failed,
	}
	if err != nil {
		s.logger.Error("sync failed", zap.Error(err))
		status.State = redisstore.StateFailed
		status.LastError = err.Error()
	} else {
		s.logger.Info("sync completed",
			zap.Int("processed", processed),
			zap.Int("failed", failed))
	}
	s.recordStatus(ctx, status)
	return true
}

func (s *SyncService) run(ctx context.Context) (processed, failed int, err error) {
	configs, err := s.reports.ReportConfigs(ctx)
	if err != nil {
		return 0, 0, err
	}
	units, err := s.reports.Units(ctx)
	if err != nil {
		return 0, 0, err
	}

	to := time.Now().UTC()
	from := to.Add(-defaultReportWindow)

	// Strictly sequential: the provider's per-session result buffer cannot
	// survive concurrent exec_report/get_result_rows calls.
	for _, unit := range units {
		for _, cfg := range configs {
			result := s.reports.ProcessUnitReport(ctx, unit, cfg, from, to, true)
			if result.Error != "" {
				failed++
				continue
			}
			processed++
		}
	}
	return processed, failed, nil
}

func (s *SyncService) recordStatus(ctx context.Context, status redisstore.RunStatus) {
	if err := s.status.Save(ctx, status); err != nil {
		s.logger.Warn("failed to record sync status", zap.Error(err))
	}
}
