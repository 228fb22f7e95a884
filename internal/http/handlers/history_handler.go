package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"fleetsync/internal/service"
)

// HistorySyncHandler triggers the 90-day backfill.
type HistorySyncHandler struct {
	service *service.HistoryService
	logger  *zap.Logger
}

// NewHistorySyncHandler returns handler.
func NewHistorySyncHandler(service *service.HistoryService, logger *zap.Logger) *HistorySyncHandler {
	return &HistorySyncHandler{service: service, logger: logger}
}

// ServeHTTP handles POST /api/history/sync. The response only acknowledges
// the start; the run completes in the background.
func (h *HistorySyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.service.TriggerBackfill() {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "a sync run is already active"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "history sync started in background"})
}

// HistoryDayHandler serves stored snapshots for one calendar date.
type HistoryDayHandler struct {
	service *service.HistoryService
	logger  *zap.Logger
}

// NewHistoryDayHandler returns handler.
func NewHistoryDayHandler(service *service.HistoryService, logger *zap.Logger) *HistoryDayHandler {
	return &HistoryDayHandler{service: service, logger: logger}
}

// ServeHTTP handles GET /api/history/day?date=YYYY-MM-DD&unitId.
func (h *HistoryDayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	unitID, err := queryInt64(r, "unitId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid unitId")
		return
	}

	reports, err := h.service.DayData(r.Context(), date, unitID)
	if err != nil {
		h.logger.Error("failed to query day snapshots", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to query day snapshots")
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// HistoryRangeHandler serves stored snapshots over a date range.
type HistoryRangeHandler struct {
	service *service.HistoryService
	logger  *zap.Logger
}

// NewHistoryRangeHandler returns handler.
func NewHistoryRangeHandler(service *service.HistoryService, logger *zap.Logger) *HistoryRangeHandler {
	return &HistoryRangeHandler{service: service, logger: logger}
}

// ServeHTTP handles GET /api/history/range?unitId&from&to.
func (h *HistoryRangeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	unitID, err := queryInt64(r, "unitId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid unitId")
		return
	}
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	for _, raw := range []string{from, to} {
		if raw == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
	}

	reports, err := h.service.HistoryRange(r.Context(), unitID, from, to)
	if err != nil {
		h.logger.Error("failed to query snapshot range", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to query snapshot range")
		return
	}
	writeJSON(w, http.StatusOK, reports)
}
