package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"sitewatch/internal/models"
	"sitewatch/internal/storage"
)

// Service is the slice of the monitor the API needs. *monitor.Monitor
// satisfies it.
type Service interface {
	AddSite(ctx context.Context, url string, interval int) (*models.Site, models.Observation, error)
	RemoveSite(ctx context.Context, url string) error
	SiteStatus(ctx context.Context, url string) (*models.Site, error)
	ListSites(ctx context.Context) ([]models.Site, error)
	Report(ctx context.Context) (*models.Report, error)
}

// Handlers holds dependencies for the API handlers.
type Handlers struct {
	svc         Service
	minInterval int // minutes, policy floor for add requests
	logger      *zap.Logger
}

// NewHandlers creates a new Handlers struct.
func NewHandlers(svc Service, minInterval int, logger *zap.Logger) *Handlers {
	return &Handlers{svc: svc, minInterval: minInterval, logger: logger}
}

// AddSite registers a URL for monitoring. Intervals below the policy floor
// are clamped here, at the caller-facing boundary; an omitted interval lets
// the core apply its default.
func (h *Handlers) AddSite(w http.ResponseWriter, r *http.Request) {
	var reqBody struct {
		URL      string `json:"url"`
		Interval int    `json:"interval"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	interval := reqBody.Interval
	if interval != 0 && interval < h.minInterval {
		interval = h.minInterval
	}

	site, obs, err := h.svc.AddSite(r.Context(), reqBody.URL, interval)
	if err != nil {
		h.logger.Error("add site failed", zap.String("url", reqBody.URL), zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := struct {
		Site        *models.Site       `json:"site"`
		Observation models.Observation `json:"initial_observation"`
	}{Site: site, Observation: obs}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// RemoveSite stops monitoring the URL given in the query string.
func (h *Handlers) RemoveSite(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		http.Error(w, "url query parameter is required", http.StatusBadRequest)
		return
	}
	if err := h.svc.RemoveSite(r.Context(), url); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "site not found", http.StatusNotFound)
			return
		}
		h.logger.Error("remove site failed", zap.String("url", url), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSites returns all monitored sites.
func (h *Handlers) ListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.svc.ListSites(r.Context())
	if err != nil {
		h.logger.Error("list sites failed", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	resp := struct {
		Items []models.Site `json:"items"`
	}{Items: sites}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// SiteStatus returns the stored baseline for the URL in the query string.
func (h *Handlers) SiteStatus(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		http.Error(w, "url query parameter is required", http.StatusBadRequest)
		return
	}
	site, err := h.svc.SiteStatus(r.Context(), url)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "site not found", http.StatusNotFound)
			return
		}
		h.logger.Error("site status failed", zap.String("url", url), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(site)
}

// Report returns a summary of the last day of checks.
func (h *Handlers) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Report(r.Context())
	if err != nil {
		h.logger.Error("report failed", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// Healthz is a simple health check endpoint.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
