package scraper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/andygrunwald/adminis-scraper/internal/api"
	"github.com/andygrunwald/adminis-scraper/internal/models"
)

// ErrAuthenticationFailed is returned when no session could be established.
// Nothing fetched without a session can be trusted, so the whole poll fails.
var ErrAuthenticationFailed = errors.New("authentication failed")

// Aggregator polls all locations of one account and assembles a Snapshot.
// It is the only caller of its Portal and runs one poll at a time.
type Aggregator struct {
	portal    api.Portal
	logger    zerolog.Logger
	locations []models.Location
}

// NewAggregator creates a new Aggregator.
func NewAggregator(portal api.Portal, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		portal: portal,
		logger: logger.With().Str("component", "aggregator").Logger(),
	}
}

// Poll authenticates if needed, discovers locations once and fetches every
// resource of every location. A failing resource leaves its field nil and
// never aborts the location or the batch.
func (a *Aggregator) Poll(ctx context.Context) (*models.Snapshot, error) {
	if err := a.ensureSession(ctx); err != nil {
		return nil, err
	}
	a.ensureLocations(ctx)

	snapshot := models.NewSnapshot()
	snapshot.FetchedAt = time.Now()

	if len(a.locations) == 0 {
		a.logger.Warn().Msg("no locations found")
		return snapshot, nil
	}

	var (
		totalPending   float64
		lastPayment    *models.PaymentRecord
		sessionExpired bool
	)

	for _, loc := range a.locations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info := loc
		ls := &models.LocationSnapshot{Info: &info}

		pending, err := a.portal.FetchPendingPayments(ctx, loc.ID)
		if err != nil {
			a.logger.Error().Err(err).Str("location", loc.ID).Msg("failed to fetch pending payments")
			recordFailure(ls, models.ResourcePendingPayments, err)
			sessionExpired = sessionExpired || errors.Is(err, api.ErrSessionExpired)
		} else {
			ls.PendingPayments = pending
			totalPending += pendingAmount(pending)
		}

		history, err := a.portal.FetchPaymentHistory(ctx, loc.ID)
		if err != nil {
			a.logger.Error().Err(err).Str("location", loc.ID).Msg("failed to fetch payment history")
			recordFailure(ls, models.ResourcePaymentHistory, err)
			sessionExpired = sessionExpired || errors.Is(err, api.ErrSessionExpired)
		} else {
			for i := range history.Results {
				history.Results[i].LocationID = loc.ID
			}
			ls.PaymentHistory = history
			if latest, ok := history.Latest(); ok && lastPayment == nil {
				lastPayment = &latest
			}
		}

		counters, err := a.portal.FetchCounters(ctx, loc.ID)
		switch {
		case errors.Is(err, api.ErrMalformedBody):
			a.logger.Debug().Err(err).Str("location", loc.ID).Msg("counters returned invalid data")
			recordFailure(ls, models.ResourceCounters, err)
		case err != nil:
			a.logger.Debug().Err(err).Str("location", loc.ID).Msg("failed to fetch counters")
			recordFailure(ls, models.ResourceCounters, err)
			sessionExpired = sessionExpired || errors.Is(err, api.ErrSessionExpired)
		default:
			ls.Counters = counters
		}

		snapshot.Locations[loc.ID] = ls
		snapshot.LocationIDs = append(snapshot.LocationIDs, loc.ID)
	}

	snapshot.Summary = models.Summary{
		TotalPending:  totalPending,
		LocationCount: len(a.locations),
	}
	if lastPayment != nil {
		date := lastPayment.Date
		locationID := lastPayment.LocationID
		if amount, ok := lastPayment.Amount.Value(); ok {
			snapshot.Summary.LastPaymentAmount = &amount
		}
		snapshot.Summary.LastPaymentDate = &date
		snapshot.Summary.LastPaymentLocationID = &locationID
	}

	if sessionExpired {
		a.logger.Warn().Msg("session expired, logging in again on next poll")
		a.portal.Invalidate()
	}

	return snapshot, nil
}

// Locations returns the account's locations in discovery order.
func (a *Aggregator) Locations(ctx context.Context) ([]models.Location, error) {
	if err := a.ensureSession(ctx); err != nil {
		return nil, err
	}
	a.ensureLocations(ctx)

	locations := make([]models.Location, len(a.locations))
	copy(locations, a.locations)
	return locations, nil
}

// PaymentHistory returns the payment records of one location, or of all
// locations when locationID is empty, newest first. Locations whose history
// cannot be fetched are skipped.
func (a *Aggregator) PaymentHistory(ctx context.Context, locationID string) ([]models.PaymentRecord, error) {
	if err := a.ensureSession(ctx); err != nil {
		return nil, err
	}
	a.ensureLocations(ctx)

	ids := []string{locationID}
	if locationID == "" {
		ids = make([]string, 0, len(a.locations))
		for _, loc := range a.locations {
			ids = append(ids, loc.ID)
		}
	}

	var payments []models.PaymentRecord
	for _, id := range ids {
		history, err := a.portal.FetchPaymentHistory(ctx, id)
		if err != nil {
			a.logger.Error().Err(err).Str("location", id).Msg("failed to fetch payment history")
			continue
		}
		for _, rec := range history.Results {
			rec.LocationID = id
			payments = append(payments, rec)
		}
	}

	sortNewestFirst(payments)
	return payments, nil
}

// BillingInfo returns the summary of a fresh poll.
func (a *Aggregator) BillingInfo(ctx context.Context) (models.Summary, error) {
	snapshot, err := a.Poll(ctx)
	if err != nil {
		return models.Summary{}, err
	}
	return snapshot.Summary, nil
}

func (a *Aggregator) ensureSession(ctx context.Context) error {
	if a.portal.Authenticated() {
		return nil
	}

	ok, err := a.portal.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}
	if !ok {
		return ErrAuthenticationFailed
	}
	return nil
}

func (a *Aggregator) ensureLocations(ctx context.Context) {
	if len(a.locations) > 0 {
		return
	}
	a.locations = a.portal.DiscoverLocations(ctx)
}

// pendingAmount returns the amount currently owed for a location.
// The portal answers with null owner and assoc results for every account
// seen so far, so there is nothing to sum yet.
// TODO: sum results.owner and results.assoc once the portal fills them.
func pendingAmount(_ *models.PendingPayments) float64 {
	return 0
}

func recordFailure(ls *models.LocationSnapshot, resource models.Resource, err error) {
	if ls.Errors == nil {
		ls.Errors = make(map[models.Resource]string)
	}
	ls.Errors[resource] = err.Error()
}

// sortNewestFirst orders records by their DD.MM.YYYY date, newest first.
// Records with unparsable dates go last, keeping their relative order.
func sortNewestFirst(records []models.PaymentRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		di, erri := records[i].ParsedDate()
		dj, errj := records[j].ParsedDate()
		switch {
		case erri != nil:
			return false
		case errj != nil:
			return true
		default:
			return di.After(dj)
		}
	})
}
