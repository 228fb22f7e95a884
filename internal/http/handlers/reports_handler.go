package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"fleetsync/internal/service"
)

// ExecuteReportHandler runs a single-template report on demand.
type ExecuteReportHandler struct {
	service *service.ReportService
	logger  *zap.Logger
}

// NewExecuteReportHandler returns handler.
func NewExecuteReportHandler(service *service.ReportService, logger *zap.Logger) *ExecuteReportHandler {
	return &ExecuteReportHandler{service: service, logger: logger}
}

// ServeHTTP handles POST /api/wialon/reports/execute. Provider-side failures
// come back inline in the result body, not as HTTP errors.
func (h *ExecuteReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var input service.ExecuteReportInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if input.ResourceID == 0 || input.ObjectID == 0 {
		writeError(w, http.StatusBadRequest, "resourceId and objectId are required")
		return
	}

	result, err := h.service.ExecuteReport(r.Context(), input)
	if err != nil {
		if errors.Is(err, service.ErrTemplateRequired) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("report execution failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "report execution failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// BatchReportsHandler runs several templates merged into one response.
type BatchReportsHandler struct {
	service *service.ReportService
	logger  *zap.Logger
}

// NewBatchReportsHandler returns handler.
func NewBatchReportsHandler(service *service.ReportService, logger *zap.Logger) *BatchReportsHandler {
	return &BatchReportsHandler{service: service, logger: logger}
}

// ServeHTTP handles POST /api/wialon/reports/batch.
func (h *BatchReportsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var input service.ExecuteReportInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if input.ResourceID == 0 || input.ObjectID == 0 {
		writeError(w, http.StatusBadRequest, "resourceId and objectId are required")
		return
	}

	writeJSON(w, http.StatusOK, h.service.ExecuteBatchReports(r.Context(), input))
}
