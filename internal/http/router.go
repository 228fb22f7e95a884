package httpserver

import "net/http"

// Routes defines HTTP endpoints.
type Routes struct {
	Units         http.Handler
	Templates     http.Handler
	ExecuteReport http.Handler
	BatchReports  http.Handler
	EngineHours   http.Handler
	HistorySync   http.Handler
	HistoryDay    http.Handler
	HistoryRange  http.Handler
	SyncStatus    http.Handler
	Health        http.Handler
}

// NewRouter sets up HTTP routing. The auth middleware wraps every /api route
// when provided; health stays open for liveness probes.
func NewRouter(routes Routes, auth func(http.Handler) http.Handler) http.Handler {
	protect := func(h http.Handler) http.Handler {
		if auth == nil {
			return h
		}
		return auth(h)
	}

	mux := http.NewServeMux()
	if routes.Units != nil {
		mux.Handle("/api/wialon/units", method(http.MethodGet, protect(routes.Units)))
	}
	if routes.Templates != nil {
		mux.Handle("/api/wialon/templates", method(http.MethodGet, protect(routes.Templates)))
	}
	if routes.ExecuteReport != nil {
		mux.Handle("/api/wialon/reports/execute", method(http.MethodPost, protect(routes.ExecuteReport)))
	}
	if routes.BatchReports != nil {
		mux.Handle("/api/wialon/reports/batch", method(http.MethodPost, protect(routes.BatchReports)))
	}
	if routes.EngineHours != nil {
		mux.Handle("/api/wialon/engine-hours", method(http.MethodGet, protect(routes.EngineHours)))
	}
	if routes.HistorySync != nil {
		mux.Handle("/api/history/sync", method(http.MethodPost, protect(routes.HistorySync)))
	}
	if routes.HistoryDay != nil {
		mux.Handle("/api/history/day", method(http.MethodGet, protect(routes.HistoryDay)))
	}
	if routes.HistoryRange != nil {
		mux.Handle("/api/history/range", method(http.MethodGet, protect(routes.HistoryRange)))
	}
	if routes.SyncStatus != nil {
		mux.Handle("/api/sync/status", method(http.MethodGet, protect(routes.SyncStatus)))
	}
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	return mux
}

func method(expected string, handler http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	}
}
