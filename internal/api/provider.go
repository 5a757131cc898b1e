// Package api provides the interface and shared errors for the Adminis Locuințe portal client.
package api

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/andygrunwald/adminis-scraper/internal/models"
)

var (
	// ErrUnexpectedStatus is returned when an endpoint answers with a non-success HTTP status.
	ErrUnexpectedStatus = errors.New("unexpected status code")
	// ErrMalformedBody is returned when a body is not JSON or does not have the expected shape.
	ErrMalformedBody = errors.New("malformed response body")
	// ErrSessionExpired is returned when an authenticated endpoint redirects instead of answering.
	ErrSessionExpired = errors.New("session expired")
)

// Portal defines the operations of an authenticated portal client.
type Portal interface {
	// Authenticated reports whether the session holds a valid login.
	Authenticated() bool

	// Authenticate performs a fresh cookie-based login.
	Authenticate(ctx context.Context) (bool, error)

	// Invalidate drops the session so the next call has to log in again.
	Invalidate()

	// DiscoverLocations parses the dashboard and returns the locations in discovery order.
	// A failed fetch or markup without locations yields an empty slice.
	DiscoverLocations(ctx context.Context) []models.Location

	// FetchPendingPayments fetches the pending payments of a location.
	FetchPendingPayments(ctx context.Context, locationID string) (*models.PendingPayments, error)

	// FetchPaymentHistory fetches the payment history of a location.
	FetchPaymentHistory(ctx context.Context, locationID string) (*models.PaymentHistory, error)

	// FetchCounters fetches the meter readings of a location.
	FetchCounters(ctx context.Context, locationID string) (json.RawMessage, error)
}
