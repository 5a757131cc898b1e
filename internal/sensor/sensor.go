// Package sensor projects a Snapshot onto named read-only values with display metadata.
package sensor

import (
	"strings"

	"github.com/andygrunwald/adminis-scraper/internal/models"
)

// Currency is the unit of every monetary sensor.
const Currency = "RON"

const (
	deviceClassMonetary = "monetary"
	stateClassTotal     = "total"
)

// Descriptor describes one sensor: its metadata and the projections that
// read its value and side attributes from a Snapshot.
type Descriptor struct {
	Key         string
	Name        string
	Unit        string
	Icon        string
	DeviceClass string
	StateClass  string

	// Value returns nil when the source field is unavailable.
	Value      func(*models.Snapshot) any
	Attributes func(*models.Snapshot) map[string]any
}

// Reading is a sensor evaluated against one Snapshot.
type Reading struct {
	Key         string         `json:"key"`
	Name        string         `json:"name"`
	Value       any            `json:"value"`
	Unit        string         `json:"unit,omitempty"`
	Icon        string         `json:"icon,omitempty"`
	DeviceClass string         `json:"device_class,omitempty"`
	StateClass  string         `json:"state_class,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// Read evaluates the descriptor. A nil snapshot yields a nil value.
func (d Descriptor) Read(snapshot *models.Snapshot) Reading {
	r := Reading{
		Key:         d.Key,
		Name:        d.Name,
		Unit:        d.Unit,
		Icon:        d.Icon,
		DeviceClass: d.DeviceClass,
		StateClass:  d.StateClass,
	}
	if snapshot == nil {
		return r
	}
	if d.Value != nil {
		r.Value = d.Value(snapshot)
	}
	if d.Attributes != nil {
		if attrs := d.Attributes(snapshot); len(attrs) > 0 {
			r.Attributes = attrs
		}
	}
	return r
}

// Descriptors returns the global sensors followed by three sensors per
// location of the snapshot, in discovery order.
func Descriptors(snapshot *models.Snapshot) []Descriptor {
	descriptors := []Descriptor{
		locationCount(),
		totalPending(),
		lastPaymentAmount(),
		lastPaymentDate(),
	}
	if snapshot == nil {
		return descriptors
	}

	for _, id := range snapshot.LocationIDs {
		name := DisplayName(snapshot.Locations[id])
		descriptors = append(descriptors,
			monthlyBill(id, name),
			locationPending(id, name),
			locationLastPayment(id, name),
		)
	}
	return descriptors
}

// Build evaluates all sensors against the snapshot.
func Build(snapshot *models.Snapshot) []Reading {
	descriptors := Descriptors(snapshot)
	readings := make([]Reading, 0, len(descriptors))
	for _, d := range descriptors {
		readings = append(readings, d.Read(snapshot))
	}
	return readings
}

// DisplayName returns a short label for a location: its apartment designator,
// the text after ", ap." in its name, or "Unknown".
func DisplayName(ls *models.LocationSnapshot) string {
	if ls == nil || ls.Info == nil {
		return "Unknown"
	}
	if ls.Info.Apartment != "" {
		return ls.Info.Apartment
	}
	if _, rest, found := strings.Cut(ls.Info.Name, ", ap. "); found {
		apartment, _, _ := strings.Cut(rest, ",")
		return apartment
	}
	return "Unknown"
}

func locationCount() Descriptor {
	return Descriptor{
		Key:  "location_count",
		Name: "Location Count",
		Icon: "mdi:home-group",
		Value: func(s *models.Snapshot) any {
			return s.Summary.LocationCount
		},
		Attributes: func(s *models.Snapshot) map[string]any {
			ids := make([]string, len(s.LocationIDs))
			copy(ids, s.LocationIDs)
			return map[string]any{"location_ids": ids}
		},
	}
}

func totalPending() Descriptor {
	return Descriptor{
		Key:         "total_pending",
		Name:        "Total Pending",
		Unit:        Currency,
		Icon:        "mdi:cash-multiple",
		DeviceClass: deviceClassMonetary,
		StateClass:  stateClassTotal,
		Value: func(s *models.Snapshot) any {
			return s.Summary.TotalPending
		},
		Attributes: func(s *models.Snapshot) map[string]any {
			attrs := make(map[string]any)
			for _, id := range s.LocationIDs {
				pending := pendingOf(s, id)
				if pending == nil {
					continue
				}
				status := "ok"
				if pending.Error != 0 {
					status = "error"
				}
				attrs["location_"+id+"_status"] = status
				attrs["location_"+id+"_allow_payments"] = pending.AllowPayments
			}
			return attrs
		},
	}
}

func lastPaymentAmount() Descriptor {
	return Descriptor{
		Key:         "last_payment_amount",
		Name:        "Last Payment Amount",
		Unit:        Currency,
		Icon:        "mdi:receipt",
		DeviceClass: deviceClassMonetary,
		StateClass:  stateClassTotal,
		Value: func(s *models.Snapshot) any {
			if s.Summary.LastPaymentAmount == nil {
				return nil
			}
			return *s.Summary.LastPaymentAmount
		},
		Attributes: func(s *models.Snapshot) map[string]any {
			attrs := map[string]any{
				"date":        derefString(s.Summary.LastPaymentDate),
				"location_id": derefString(s.Summary.LastPaymentLocationID),
			}
			if s.Summary.LastPaymentLocationID == nil {
				return attrs
			}
			if latest, ok := latestOf(s, *s.Summary.LastPaymentLocationID); ok && len(latest.Details) > 0 {
				attrs["breakdown"] = latest.Breakdown()
			}
			return attrs
		},
	}
}

func lastPaymentDate() Descriptor {
	return Descriptor{
		Key:  "last_payment_date",
		Name: "Last Payment Date",
		Icon: "mdi:calendar-check",
		Value: func(s *models.Snapshot) any {
			if s.Summary.LastPaymentDate == nil {
				return nil
			}
			return *s.Summary.LastPaymentDate
		},
		Attributes: func(s *models.Snapshot) map[string]any {
			var amount any
			if s.Summary.LastPaymentAmount != nil {
				amount = *s.Summary.LastPaymentAmount
			}
			return map[string]any{
				"amount":      amount,
				"location_id": derefString(s.Summary.LastPaymentLocationID),
			}
		},
	}
}

func monthlyBill(id, name string) Descriptor {
	return Descriptor{
		Key:         "monthly_bill_" + id,
		Name:        name + " Monthly Bill",
		Unit:        Currency,
		Icon:        "mdi:file-document",
		DeviceClass: deviceClassMonetary,
		StateClass:  stateClassTotal,
		Value:       latestAmount(id),
		Attributes: func(s *models.Snapshot) map[string]any {
			attrs := infoAttributes(s, id)
			if info := infoOf(s, id); info != nil {
				apartment := info.Apartment
				if apartment == "" {
					apartment = "N/A"
				}
				attrs["apartment"] = apartment
			}
			if latest, ok := latestOf(s, id); ok {
				attrs["date"] = latest.Date
				attrs["receipt"] = latest.Receipt
				if len(latest.Details) > 0 {
					attrs["breakdown"] = latest.Breakdown()
				}
			}
			return attrs
		},
	}
}

// locationPending always reports 0; the portal leaves the owner and
// association results null, so there is no amount to project yet.
func locationPending(id, name string) Descriptor {
	return Descriptor{
		Key:         "pending_" + id,
		Name:        name + " Pending",
		Unit:        Currency,
		Icon:        "mdi:cash-clock",
		DeviceClass: deviceClassMonetary,
		StateClass:  stateClassTotal,
		Value: func(*models.Snapshot) any {
			return 0.0
		},
		Attributes: func(s *models.Snapshot) map[string]any {
			attrs := infoAttributes(s, id)
			if pending := pendingOf(s, id); pending != nil {
				attrs["allow_payments"] = pending.AllowPayments
				attrs["error_code"] = pending.Error
			}
			return attrs
		},
	}
}

func locationLastPayment(id, name string) Descriptor {
	return Descriptor{
		Key:         "last_payment_" + id,
		Name:        name + " Last Payment",
		Unit:        Currency,
		Icon:        "mdi:receipt-text-check",
		DeviceClass: deviceClassMonetary,
		StateClass:  stateClassTotal,
		Value:       latestAmount(id),
		Attributes: func(s *models.Snapshot) map[string]any {
			attrs := infoAttributes(s, id)
			if latest, ok := latestOf(s, id); ok {
				attrs["date"] = latest.Date
				attrs["receipt"] = latest.Receipt
				attrs["payment_count"] = len(s.Locations[id].PaymentHistory.Results)
			}
			return attrs
		},
	}
}

func latestAmount(id string) func(*models.Snapshot) any {
	return func(s *models.Snapshot) any {
		latest, ok := latestOf(s, id)
		if !ok {
			return nil
		}
		amount, ok := latest.Amount.Value()
		if !ok {
			return nil
		}
		return amount
	}
}

func infoAttributes(s *models.Snapshot, id string) map[string]any {
	attrs := make(map[string]any)
	if info := infoOf(s, id); info != nil {
		name := info.Name
		if name == "" {
			name = "Unknown"
		}
		attrs["location_name"] = name
		attrs["location_type"] = string(info.Type)
	}
	return attrs
}

func infoOf(s *models.Snapshot, id string) *models.Location {
	if ls := s.Locations[id]; ls != nil {
		return ls.Info
	}
	return nil
}

func pendingOf(s *models.Snapshot, id string) *models.PendingPayments {
	if ls := s.Locations[id]; ls != nil {
		return ls.PendingPayments
	}
	return nil
}

func latestOf(s *models.Snapshot, id string) (models.PaymentRecord, bool) {
	if ls := s.Locations[id]; ls != nil {
		return ls.PaymentHistory.Latest()
	}
	return models.PaymentRecord{}, false
}

func derefString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
