package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"fleetsync/internal/redisstore"
)

// SyncStatusHandler reports the last recorded state of both sync jobs.
type SyncStatusHandler struct {
	store  *redisstore.StatusStore
	logger *zap.Logger
}

// NewSyncStatusHandler returns handler.
func NewSyncStatusHandler(store *redisstore.StatusStore, logger *zap.Logger) *SyncStatusHandler {
	return &SyncStatusHandler{store: store, logger: logger}
}

// ServeHTTP handles GET /api/sync/status.
func (h *SyncStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := make(map[string]*redisstore.RunStatus, 2)
	for _, job := range []string{redisstore.JobRollingSync, redisstore.JobHistoryBackfill} {
		status, err := h.store.Get(r.Context(), job)
		if err != nil {
			h.logger.Warn("failed to read sync status", zap.String("job", job), zap.Error(err))
		}
		response[job] = status
	}
	writeJSON(w, http.StatusOK, response)
}
