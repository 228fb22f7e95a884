package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"fleetsync/internal/service"
)

const dateLayout = "2006-01-02"

// EngineHoursHandler serves stored engine-hours intervals.
type EngineHoursHandler struct {
	service *service.ReportService
	logger  *zap.Logger
}

// NewEngineHoursHandler returns handler.
func NewEngineHoursHandler(service *service.ReportService, logger *zap.Logger) *EngineHoursHandler {
	return &EngineHoursHandler{service: service, logger: logger}
}

// ServeHTTP handles GET /api/wialon/engine-hours?unitId&from&to.
// Missing from defaults to the last 30 days.
func (h *EngineHoursHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	unitID, err := queryInt64(r, "unitId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid unitId")
		return
	}

	var from, to time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse(dateLayout, raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date, expected YYYY-MM-DD")
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse(dateLayout, raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date, expected YYYY-MM-DD")
			return
		}
	}

	records, err := h.service.StoredEngineHours(r.Context(), unitID, from, to)
	if err != nil {
		h.logger.Error("failed to query engine hours", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to query engine hours")
		return
	}
	writeJSON(w, http.StatusOK, records)
}
