// Package scraper provides orchestration for polling Adminis Locuințe accounts.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/andygrunwald/adminis-scraper/internal/models"
)

// ErrUnknownAccount is returned when polling an account that was never registered.
var ErrUnknownAccount = errors.New("unknown account")

// PaymentStore persists payment records.
type PaymentStore interface {
	ExistsPayment(ctx context.Context, account string, rec models.PaymentRecord) (bool, error)
	InsertPayment(ctx context.Context, account string, rec models.PaymentRecord, storeRawResponse bool) error
}

// MetricsRecorder receives poll results, e.g. to export them to Prometheus.
type MetricsRecorder interface {
	RecordPoll(account, status string, duration float64)
	RecordSnapshot(account string, snapshot *models.Snapshot)
	RecordFetchFailure(account string, resource models.Resource)
}

// Metrics holds polling metrics for an account.
type Metrics struct {
	mu               sync.RWMutex
	TotalPolls       int64
	TotalErrors      int64
	LastPollAt       *time.Time
	LastPollSuccess  bool
	LastResponseTime time.Duration
	LastError        *string
	// LastSnapshot is the last successful poll result. It is kept when later polls fail.
	LastSnapshot *models.Snapshot
}

// GetSnapshot returns a thread-safe snapshot of the metrics.
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MetricsSnapshot{
		TotalPolls:       m.TotalPolls,
		TotalErrors:      m.TotalErrors,
		LastPollAt:       m.LastPollAt,
		LastPollSuccess:  m.LastPollSuccess,
		LastResponseTime: m.LastResponseTime,
		LastError:        m.LastError,
		LastSnapshot:     m.LastSnapshot,
	}
}

// MetricsSnapshot is a thread-safe copy of Metrics data.
type MetricsSnapshot struct {
	TotalPolls       int64
	TotalErrors      int64
	LastPollAt       *time.Time
	LastPollSuccess  bool
	LastResponseTime time.Duration
	LastError        *string
	LastSnapshot     *models.Snapshot
}

type account struct {
	aggregator *Aggregator
	metrics    *Metrics
	// pollMu serializes polls of the same account.
	pollMu sync.Mutex
}

// Scraper holds one Aggregator per configured account and keeps the last known results.
type Scraper struct {
	accounts         map[string]*account
	order            []string
	store            PaymentStore
	storeRawResponse bool
	recorder         MetricsRecorder
	logger           zerolog.Logger
	mu               sync.RWMutex
}

// New creates a new Scraper.
func New(logger zerolog.Logger) *Scraper {
	return &Scraper{
		accounts: make(map[string]*account),
		logger:   logger.With().Str("component", "scraper").Logger(),
	}
}

// SetPaymentStore enables persisting payment records after each poll.
func (s *Scraper) SetPaymentStore(store PaymentStore, storeRawResponse bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = store
	s.storeRawResponse = storeRawResponse
}

// SetPrometheusMetrics wires a metrics recorder.
func (s *Scraper) SetPrometheusMetrics(recorder MetricsRecorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder = recorder
}

// RegisterAccount registers an account under the given name.
func (s *Scraper) RegisterAccount(name string, aggregator *Aggregator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[name]; !ok {
		s.order = append(s.order, name)
	}
	s.accounts[name] = &account{aggregator: aggregator, metrics: &Metrics{}}
}

// GetAccounts returns the registered account names in registration order.
func (s *Scraper) GetAccounts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// GetAggregator returns the aggregator of an account.
func (s *Scraper) GetAggregator(name string) (*Aggregator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[name]
	if !ok {
		return nil, false
	}
	return acc.aggregator, true
}

// GetMetrics returns the metrics for an account.
func (s *Scraper) GetMetrics(name string) *Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[name]
	if !ok {
		return nil
	}
	return acc.metrics
}

// LastSnapshot returns the last successful snapshot of an account, or nil.
func (s *Scraper) LastSnapshot(name string) *models.Snapshot {
	metrics := s.GetMetrics(name)
	if metrics == nil {
		return nil
	}
	return metrics.GetSnapshot().LastSnapshot
}

// PollAll polls every registered account. Failures of single accounts are
// logged and returned joined; they do not stop the other accounts.
func (s *Scraper) PollAll(ctx context.Context) error {
	var errs []error
	for _, name := range s.GetAccounts() {
		if _, err := s.PollAccount(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("account %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// PollAccount polls a single account.
func (s *Scraper) PollAccount(ctx context.Context, name string) (*models.Snapshot, error) {
	s.mu.RLock()
	acc, ok := s.accounts[name]
	recorder := s.recorder
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, name)
	}

	acc.pollMu.Lock()
	defer acc.pollMu.Unlock()

	s.logger.Info().Str("account", name).Msg("polling account")

	start := time.Now()
	metrics := acc.metrics
	metrics.mu.Lock()
	metrics.TotalPolls++
	metrics.mu.Unlock()

	snapshot, err := acc.aggregator.Poll(ctx)
	duration := time.Since(start)

	now := time.Now()
	metrics.mu.Lock()
	metrics.LastPollAt = &now
	metrics.LastResponseTime = duration
	if err != nil {
		metrics.TotalErrors++
		metrics.LastPollSuccess = false
		errStr := err.Error()
		metrics.LastError = &errStr
	} else {
		metrics.LastPollSuccess = true
		metrics.LastError = nil
		metrics.LastSnapshot = snapshot
	}
	metrics.mu.Unlock()

	if err != nil {
		if recorder != nil {
			recorder.RecordPoll(name, "error", duration.Seconds())
		}
		s.logger.Error().
			Err(err).
			Str("account", name).
			Dur("duration", duration).
			Msg("failed to poll account")
		return nil, err
	}

	if recorder != nil {
		recorder.RecordPoll(name, "success", duration.Seconds())
		recorder.RecordSnapshot(name, snapshot)
		for _, id := range snapshot.LocationIDs {
			for resource := range snapshot.Locations[id].Errors {
				recorder.RecordFetchFailure(name, resource)
			}
		}
	}

	s.logger.Info().
		Str("account", name).
		Int("locations", snapshot.Summary.LocationCount).
		Dur("duration", duration).
		Msg("polled account")

	var records []models.PaymentRecord
	for _, id := range snapshot.LocationIDs {
		if history := snapshot.Locations[id].PaymentHistory; history != nil {
			records = append(records, history.Results...)
		}
	}
	if _, _, err := s.StorePayments(ctx, name, records); err != nil {
		s.logger.Error().Err(err).Str("account", name).Msg("failed to store payments")
	}

	return snapshot, nil
}

// StorePayments persists records that are not stored yet.
// Without a configured store it does nothing.
func (s *Scraper) StorePayments(ctx context.Context, name string, records []models.PaymentRecord) (inserted, skipped int, err error) {
	s.mu.RLock()
	store := s.store
	storeRaw := s.storeRawResponse
	s.mu.RUnlock()

	if store == nil {
		return 0, 0, nil
	}

	var errs []error
	for _, rec := range records {
		exists, err := store.ExistsPayment(ctx, name, rec)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("account", name).
				Str("location", rec.LocationID).
				Str("date", rec.Date).
				Msg("failed to check existence")
			errs = append(errs, err)
			continue
		}

		if exists {
			skipped++
			continue
		}

		if err := store.InsertPayment(ctx, name, rec, storeRaw); err != nil {
			s.logger.Error().
				Err(err).
				Str("account", name).
				Str("location", rec.LocationID).
				Str("date", rec.Date).
				Msg("failed to insert payment")
			errs = append(errs, err)
			continue
		}
		inserted++
	}

	s.logger.Debug().
		Str("account", name).
		Int("inserted", inserted).
		Int("skipped", skipped).
		Msg("stored payments")

	return inserted, skipped, errors.Join(errs...)
}
