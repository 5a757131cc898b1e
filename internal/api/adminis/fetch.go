package adminis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andygrunwald/adminis-scraper/internal/models"
)

// FetchPendingPayments fetches the pending payments of a location.
func (c *Client) FetchPendingPayments(ctx context.Context, locationID string) (*models.PendingPayments, error) {
	var pending models.PendingPayments
	if err := c.getJSON(ctx, fmt.Sprintf(pendingPaymentsPath, locationID), &pending); err != nil {
		return nil, fmt.Errorf("fetching pending payments: %w", err)
	}
	return &pending, nil
}

// FetchPaymentHistory fetches the payment history of a location, newest record first.
func (c *Client) FetchPaymentHistory(ctx context.Context, locationID string) (*models.PaymentHistory, error) {
	var history models.PaymentHistory
	if err := c.getJSON(ctx, fmt.Sprintf(paymentsHistoryPath, locationID), &history); err != nil {
		return nil, fmt.Errorf("fetching payment history: %w", err)
	}
	return &history, nil
}

// FetchCounters fetches the meter readings of a location.
// The endpoint frequently answers with a non-JSON body; callers should treat it as best effort.
func (c *Client) FetchCounters(ctx context.Context, locationID string) (json.RawMessage, error) {
	var counters json.RawMessage
	if err := c.getJSON(ctx, fmt.Sprintf(countersPath, locationID), &counters); err != nil {
		return nil, fmt.Errorf("fetching counters: %w", err)
	}
	return counters, nil
}
