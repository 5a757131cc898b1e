// Package models provides shared data types for the Adminis Locuințe scraper.
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PaymentDateLayout is the textual date format used by the portal (DD.MM.YYYY).
const PaymentDateLayout = "02.01.2006"

// LocationType classifies a billable unit.
type LocationType string

const (
	// LocationTypeApartment is a regular apartment.
	LocationTypeApartment LocationType = "apartment"
	// LocationTypeParking is a parking spot.
	LocationTypeParking LocationType = "parking"
	// LocationTypeUnknown is used when the label carries no apartment designator.
	LocationTypeUnknown LocationType = "unknown"
)

// Location is one billable unit discovered on the dashboard.
type Location struct {
	// ID is the portal-assigned numeric identifier.
	ID string `json:"id"`
	// Name is the raw address label.
	Name string `json:"name"`
	// Apartment is the designator after ", ap. " (e.g. "12", "S4").
	Apartment string `json:"apartment,omitempty"`
	// Type is the derived classification.
	Type LocationType `json:"type"`
	// AssociationID is the owners' association covering the dashboard.
	AssociationID string `json:"association_id,omitempty"`
}

// Amount is a monetary value the portal encodes either as a JSON number or as a string.
// Strings that are not numeric (e.g. "-") decode to an invalid amount that keeps the raw text.
type Amount struct {
	value float64
	raw   string
	valid bool
}

// NewAmount returns a valid amount of f.
func NewAmount(f float64) Amount {
	return Amount{value: f, raw: strconv.FormatFloat(f, 'f', -1, 64), valid: true}
}

// UnmarshalJSON accepts numbers and strings. null, empty and non-numeric
// strings yield an invalid amount instead of an error.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*a = Amount{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
	}

	*a = Amount{raw: s}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		a.value = f
		a.valid = true
	}
	return nil
}

// MarshalJSON writes valid amounts as numbers and keeps the raw text of invalid ones.
func (a Amount) MarshalJSON() ([]byte, error) {
	switch {
	case a.valid:
		return []byte(strconv.FormatFloat(a.value, 'f', -1, 64)), nil
	case a.raw != "":
		return json.Marshal(a.raw)
	default:
		return []byte("null"), nil
	}
}

// Value returns the amount and whether the portal sent a numeric value.
func (a Amount) Value() (float64, bool) {
	return a.value, a.valid
}

// Float64 returns the amount, or 0 if it is not numeric.
func (a Amount) Float64() float64 {
	return a.value
}

// Raw returns the text the portal sent.
func (a Amount) Raw() string {
	return a.raw
}

// Equal reports whether both amounts hold the same value and raw text.
func (a Amount) Equal(b Amount) bool {
	return a == b
}

// PendingPayments is the body of the pending-payments endpoint.
type PendingPayments struct {
	Error         int            `json:"error"`
	AllowPayments bool           `json:"allowPayments"`
	Results       PendingResults `json:"results"`
}

// PendingResults holds the owner and association level pending data.
// Both are currently returned as null by the portal.
type PendingResults struct {
	Owner json.RawMessage `json:"owner"`
	Assoc json.RawMessage `json:"assoc"`
}

// PaymentDetail is one line of a payment breakdown.
type PaymentDetail struct {
	Name   string `json:"name"`
	Amount Amount `json:"amount"`
}

// PaymentRecord is one settled payment.
type PaymentRecord struct {
	Amount  Amount          `json:"amount"`
	Date    string          `json:"date"`
	Receipt string          `json:"receipt"`
	Details []PaymentDetail `json:"details"`
	// LocationID is attached during aggregation and is not part of the raw record.
	LocationID string `json:"location_id,omitempty"`
}

// UnmarshalJSON decodes a record whose receipt may be a JSON number or a string.
func (r *PaymentRecord) UnmarshalJSON(data []byte) error {
	type plain PaymentRecord
	aux := struct {
		*plain
		Receipt json.RawMessage `json:"receipt"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	receipt, err := receiptText(aux.Receipt)
	if err != nil {
		return fmt.Errorf("parsing receipt: %w", err)
	}
	r.Receipt = receipt
	return nil
}

func receiptText(raw json.RawMessage) (string, error) {
	s := strings.TrimSpace(string(raw))
	switch {
	case s == "" || s == "null":
		return "", nil
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return "", err
		}
		return str, nil
	default:
		return s, nil
	}
}

// ParsedDate parses the DD.MM.YYYY date of the record.
func (r PaymentRecord) ParsedDate() (time.Time, error) {
	return time.Parse(PaymentDateLayout, strings.TrimSpace(r.Date))
}

// Breakdown returns the payment details keyed by name.
func (r PaymentRecord) Breakdown() map[string]float64 {
	breakdown := make(map[string]float64, len(r.Details))
	for _, d := range r.Details {
		name := d.Name
		if name == "" {
			name = "Unknown"
		}
		breakdown[name] = d.Amount.Float64()
	}
	return breakdown
}

// PaymentHistory is the body of the payments-history endpoint, newest record first.
type PaymentHistory struct {
	Results []PaymentRecord `json:"results"`
}

// Latest returns the first record, if any.
func (h *PaymentHistory) Latest() (PaymentRecord, bool) {
	if h == nil || len(h.Results) == 0 {
		return PaymentRecord{}, false
	}
	return h.Results[0], true
}

// Resource names one of the per-location endpoints.
type Resource string

const (
	ResourcePendingPayments Resource = "pending_payments"
	ResourcePaymentHistory  Resource = "payment_history"
	ResourceCounters        Resource = "counters"
)

// LocationSnapshot is the fetched data of one location.
// A nil resource field means the fetch failed or returned a non-conforming body.
type LocationSnapshot struct {
	Info            *Location           `json:"info,omitempty"`
	PendingPayments *PendingPayments    `json:"pending_payments"`
	PaymentHistory  *PaymentHistory     `json:"payment_history"`
	Counters        json.RawMessage     `json:"counters"`
	Errors          map[Resource]string `json:"errors,omitempty"`
}

// Summary holds the cross-location values derived on every poll.
type Summary struct {
	TotalPending          float64  `json:"total_pending"`
	LocationCount         int      `json:"location_count"`
	LastPaymentAmount     *float64 `json:"last_payment_amount,omitempty"`
	LastPaymentDate       *string  `json:"last_payment_date,omitempty"`
	LastPaymentLocationID *string  `json:"last_payment_location_id,omitempty"`
}

// Snapshot is the complete result of one poll.
type Snapshot struct {
	Locations map[string]*LocationSnapshot `json:"locations"`
	// LocationIDs keeps the discovery order of Locations.
	LocationIDs []string  `json:"location_ids"`
	Summary     Summary   `json:"summary"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Locations:   make(map[string]*LocationSnapshot),
		LocationIDs: []string{},
	}
}

// AccountStatus holds the operational status of one polled account.
type AccountStatus struct {
	LastPollAt         *time.Time `json:"last_poll_at"`
	LastPollSuccess    bool       `json:"last_poll_success"`
	LastResponseTimeMs int64      `json:"last_response_time_ms"`
	LastError          *string    `json:"last_error"`
	TotalPolls         int64      `json:"total_polls"`
	TotalErrors        int64      `json:"total_errors"`
	LocationCount      int        `json:"location_count"`
}

// StatusResponse is the response for the /status endpoint.
type StatusResponse struct {
	Status              string                   `json:"status"`
	UptimeSeconds       int64                    `json:"uptime_seconds"`
	SchedulerRunning    bool                     `json:"scheduler_running"`
	NextPollAt          *time.Time               `json:"next_poll_at,omitempty"`
	LastScheduledPollAt *time.Time               `json:"last_scheduled_poll_at,omitempty"`
	Accounts            map[string]AccountStatus `json:"accounts"`
	Database            DatabaseStatus           `json:"database"`
}

// DatabaseStatus holds the database connection status.
type DatabaseStatus struct {
	Enabled             bool  `json:"enabled"`
	Connected           bool  `json:"connected"`
	TotalPaymentsStored int64 `json:"total_payments_stored"`
}
