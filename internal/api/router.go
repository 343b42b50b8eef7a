package api

import (
	"net/http"

	"go.uber.org/zap"
)

// NewRouter creates a new http.ServeMux and registers the API handlers.
func NewRouter(svc Service, minInterval int, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	h := NewHandlers(svc, minInterval, logger)

	mux.HandleFunc("POST /v1/sites", h.AddSite)
	mux.HandleFunc("DELETE /v1/sites", h.RemoveSite)
	mux.HandleFunc("GET /v1/sites", h.ListSites)
	mux.HandleFunc("GET /v1/sites/status", h.SiteStatus)
	mux.HandleFunc("GET /v1/report", h.Report)
	mux.HandleFunc("GET /healthz", h.Healthz)

	return mux
}
