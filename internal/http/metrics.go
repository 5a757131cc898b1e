// Package http provides the metrics, status and read-only data endpoints of the Adminis scraper.
package http

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/andygrunwald/adminis-scraper/internal/models"
	"github.com/andygrunwald/adminis-scraper/internal/scraper"
	"github.com/andygrunwald/adminis-scraper/internal/sensor"
)

// Metrics holds all Prometheus metrics for the scraper.
type Metrics struct {
	// Poll metrics
	PollsTotal        *prometheus.CounterVec
	PollDuration      *prometheus.HistogramVec
	LastPollTimestamp *prometheus.GaugeVec
	FetchFailures     *prometheus.CounterVec

	// Snapshot values
	Locations   *prometheus.GaugeVec
	SensorValue *prometheus.GaugeVec

	// Database metrics
	DBOperationsTotal *prometheus.CounterVec
	PaymentsStored    prometheus.Gauge
}

var _ scraper.MetricsRecorder = (*Metrics)(nil)

// NewMetrics creates Prometheus metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PollsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adminis_polls_total",
				Help: "Total number of account polls by account and status",
			},
			[]string{"account", "status"},
		),
		PollDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adminis_poll_duration_seconds",
				Help:    "Account poll duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"account"},
		),
		LastPollTimestamp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "adminis_last_poll_timestamp",
				Help: "Timestamp of the last successful poll",
			},
			[]string{"account"},
		),
		FetchFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adminis_fetch_failures_total",
				Help: "Total number of failed per-location fetches by account and resource",
			},
			[]string{"account", "resource"},
		),
		Locations: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "adminis_locations",
				Help: "Number of discovered locations",
			},
			[]string{"account"},
		),
		SensorValue: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "adminis_sensor_value",
				Help: "Numeric sensor values of the last successful poll",
			},
			[]string{"account", "sensor", "unit"},
		),
		DBOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adminis_db_operations_total",
				Help: "Total number of database operations by type and status",
			},
			[]string{"operation", "status"},
		),
		PaymentsStored: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "adminis_payments_stored_total",
				Help: "Total number of payment records stored in the database",
			},
		),
	}
}

// RecordPoll records the outcome of an account poll.
func (m *Metrics) RecordPoll(account, status string, duration float64) {
	m.PollsTotal.WithLabelValues(account, status).Inc()
	m.PollDuration.WithLabelValues(account).Observe(duration)
}

// RecordSnapshot exports the numeric sensor values of a snapshot.
// Sensors without a value are removed so stale values do not linger.
func (m *Metrics) RecordSnapshot(account string, snapshot *models.Snapshot) {
	if snapshot == nil {
		return
	}

	m.LastPollTimestamp.WithLabelValues(account).Set(float64(snapshot.FetchedAt.Unix()))
	m.Locations.WithLabelValues(account).Set(float64(snapshot.Summary.LocationCount))

	m.SensorValue.DeletePartialMatch(prometheus.Labels{"account": account})
	for _, r := range sensor.Build(snapshot) {
		v, ok := numeric(r.Value)
		if !ok {
			continue
		}
		m.SensorValue.WithLabelValues(account, r.Key, r.Unit).Set(v)
	}
}

// RecordFetchFailure counts a failed per-location fetch.
func (m *Metrics) RecordFetchFailure(account string, resource models.Resource) {
	m.FetchFailures.WithLabelValues(account, string(resource)).Inc()
}

// RecordDBOperation records a database operation metric.
func (m *Metrics) RecordDBOperation(operation, status string) {
	m.DBOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordPaymentsStored records the total number of stored payment records.
func (m *Metrics) RecordPaymentsStored(count float64) {
	m.PaymentsStored.Set(count)
}

// InstrumentStore wraps a payment store so that every operation is counted.
func (m *Metrics) InstrumentStore(store scraper.PaymentStore) scraper.PaymentStore {
	return &instrumentedStore{store: store, metrics: m}
}

type instrumentedStore struct {
	store   scraper.PaymentStore
	metrics *Metrics
}

func (s *instrumentedStore) ExistsPayment(ctx context.Context, account string, rec models.PaymentRecord) (bool, error) {
	exists, err := s.store.ExistsPayment(ctx, account, rec)
	s.metrics.RecordDBOperation("exists", statusLabel(err))
	return exists, err
}

func (s *instrumentedStore) InsertPayment(ctx context.Context, account string, rec models.PaymentRecord, storeRawResponse bool) error {
	err := s.store.InsertPayment(ctx, account, rec, storeRawResponse)
	s.metrics.RecordDBOperation("insert", statusLabel(err))
	return err
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
