package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"fleetsync/internal/service"
)

// UnitsHandler lists provider units.
type UnitsHandler struct {
	service *service.ReportService
	logger  *zap.Logger
}

// NewUnitsHandler returns handler.
func NewUnitsHandler(service *service.ReportService, logger *zap.Logger) *UnitsHandler {
	return &UnitsHandler{service: service, logger: logger}
}

// ServeHTTP handles GET /api/wialon/units.
func (h *UnitsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	units, err := h.service.Units(r.Context())
	if err != nil {
		h.logger.Error("failed to list units", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to list units")
		return
	}
	writeJSON(w, http.StatusOK, units)
}
