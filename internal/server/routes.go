package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.app.StatusHandler.HealthHandler)
	mux.HandleFunc("GET /api/fetch/{ticker}", s.app.FinancialsHandler.FetchHandler)
	mux.HandleFunc("GET /api/usage", s.app.FinancialsHandler.UsageHandler)
	mux.HandleFunc("DELETE /api/cache/{ticker}", s.app.FinancialsHandler.InvalidateHandler)
	mux.HandleFunc("POST /api/valuation", s.app.ValuationHandler.ValuationHandler)

	return mux
}
