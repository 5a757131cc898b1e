package http

import (
	"net/http"

	"github.com/andygrunwald/adminis-scraper/internal/models"
	"github.com/andygrunwald/adminis-scraper/internal/scraper"
	"github.com/andygrunwald/adminis-scraper/internal/sensor"
)

// SnapshotHandler serves the last successful snapshot of an account on /snapshot.
// Without an account parameter the snapshots of all accounts are returned.
type SnapshotHandler struct {
	scraper *scraper.Scraper
}

// NewSnapshotHandler creates a new SnapshotHandler.
func NewSnapshotHandler(s *scraper.Scraper) *SnapshotHandler {
	return &SnapshotHandler{scraper: s}
}

// ServeHTTP implements the http.Handler interface.
func (h *SnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	serveLastSnapshot(w, r, h.scraper, func(s *models.Snapshot) any { return s })
}

// SensorsHandler serves the sensor readings of the last successful snapshot on /sensors.
type SensorsHandler struct {
	scraper *scraper.Scraper
}

// NewSensorsHandler creates a new SensorsHandler.
func NewSensorsHandler(s *scraper.Scraper) *SensorsHandler {
	return &SensorsHandler{scraper: s}
}

// ServeHTTP implements the http.Handler interface.
func (h *SensorsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	serveLastSnapshot(w, r, h.scraper, func(s *models.Snapshot) any { return sensor.Build(s) })
}

func serveLastSnapshot(w http.ResponseWriter, r *http.Request, s *scraper.Scraper, project func(*models.Snapshot) any) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	account := r.URL.Query().Get("account")
	if account == "" {
		all := make(map[string]any)
		for _, name := range s.GetAccounts() {
			if snapshot := s.LastSnapshot(name); snapshot != nil {
				all[name] = project(snapshot)
			}
		}
		writeJSON(w, http.StatusOK, all)
		return
	}

	if s.GetMetrics(account) == nil {
		writeError(w, http.StatusNotFound, "unknown account")
		return
	}

	snapshot := s.LastSnapshot(account)
	if snapshot == nil {
		writeError(w, http.StatusServiceUnavailable, "no successful poll yet")
		return
	}

	writeJSON(w, http.StatusOK, project(snapshot))
}
