package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"fleetsync/internal/service"
)

// TemplatesHandler lists all provider report templates.
type TemplatesHandler struct {
	service *service.ReportService
	logger  *zap.Logger
}

// NewTemplatesHandler returns handler.
func NewTemplatesHandler(service *service.ReportService, logger *zap.Logger) *TemplatesHandler {
	return &TemplatesHandler{service: service, logger: logger}
}

// ServeHTTP handles GET /api/wialon/templates.
func (h *TemplatesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	templates, err := h.service.Templates(r.Context())
	if err != nil {
		h.logger.Error("failed to list report templates", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to list report templates")
		return
	}
	writeJSON(w, http.StatusOK, templates)
}
