package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/andygrunwald/adminis-scraper/internal/models"
	"github.com/andygrunwald/adminis-scraper/internal/scraper"
)

// ScheduleReporter exposes the state of the polling scheduler.
type ScheduleReporter interface {
	IsRunning() bool
	NextPollAt() time.Time
	LastPollAt() *time.Time
}

// PaymentCounter reports the state of the payment database.
type PaymentCounter interface {
	Ping() error
	GetTotalPaymentsCount(ctx context.Context) (int64, error)
}

// StatusHandler handles the /status endpoint.
type StatusHandler struct {
	scraper   *scraper.Scraper
	scheduler ScheduleReporter
	db        PaymentCounter
	metrics   *Metrics
	startTime time.Time
}

// NewStatusHandler creates a new StatusHandler. sched, db and metrics may be nil.
func NewStatusHandler(s *scraper.Scraper, sched ScheduleReporter, db PaymentCounter, metrics *Metrics) *StatusHandler {
	return &StatusHandler{
		scraper:   s,
		scheduler: sched,
		db:        db,
		metrics:   metrics,
		startTime: time.Now(),
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response := models.StatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Accounts:      make(map[string]models.AccountStatus),
	}

	if h.scheduler != nil {
		response.SchedulerRunning = h.scheduler.IsRunning()
		response.LastScheduledPollAt = h.scheduler.LastPollAt()
		nextPoll := h.scheduler.NextPollAt()
		if !nextPoll.IsZero() {
			response.NextPollAt = &nextPoll
		}
	}

	for _, name := range h.scraper.GetAccounts() {
		metrics := h.scraper.GetMetrics(name)
		if metrics == nil {
			continue
		}

		snapshot := metrics.GetSnapshot()
		status := models.AccountStatus{
			LastPollAt:         snapshot.LastPollAt,
			LastPollSuccess:    snapshot.LastPollSuccess,
			LastResponseTimeMs: snapshot.LastResponseTime.Milliseconds(),
			LastError:          snapshot.LastError,
			TotalPolls:         snapshot.TotalPolls,
			TotalErrors:        snapshot.TotalErrors,
		}
		if snapshot.LastSnapshot != nil {
			status.LocationCount = snapshot.LastSnapshot.Summary.LocationCount
		}
		if snapshot.LastPollAt != nil && !snapshot.LastPollSuccess {
			response.Status = "degraded"
		}

		response.Accounts[name] = status
	}

	response.Database = h.getDatabaseStatus(ctx)

	writeJSON(w, http.StatusOK, response)
}

func (h *StatusHandler) getDatabaseStatus(ctx context.Context) models.DatabaseStatus {
	status := models.DatabaseStatus{}

	if h.db == nil {
		return status
	}
	status.Enabled = true

	if err := h.db.Ping(); err != nil {
		return status
	}
	status.Connected = true

	count, err := h.db.GetTotalPaymentsCount(ctx)
	if err == nil {
		status.TotalPaymentsStored = count
		if h.metrics != nil {
			h.metrics.RecordPaymentsStored(float64(count))
		}
	}

	return status
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
