package sensor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andygrunwald/adminis-scraper/internal/models"
)

func testSnapshot() *models.Snapshot {
	amount := 862.12
	date := "30.01.2026"
	locationID := "16835"

	s := models.NewSnapshot()
	s.LocationIDs = []string{"16835", "17012"}
	s.Locations["16835"] = &models.LocationSnapshot{
		Info:            &models.Location{ID: "16835", Name: "Str. X, ap. 12, Iasi", Apartment: "12", Type: models.LocationTypeApartment},
		PendingPayments: &models.PendingPayments{Error: 0, AllowPayments: true},
		PaymentHistory: &models.PaymentHistory{Results: []models.PaymentRecord{
			{Amount: models.NewAmount(862.12), Date: "30.01.2026", Receipt: "1001", Details: []models.PaymentDetail{
				{Name: "Fond rulment", Amount: models.NewAmount(50)},
				{Name: "Întreținere", Amount: models.NewAmount(812.12)},
			}},
			{Amount: models.NewAmount(700), Date: "28.12.2025", Receipt: "998"},
		}},
	}
	s.Locations["17012"] = &models.LocationSnapshot{
		Info:            &models.Location{ID: "17012", Name: "Str. X, PARCARI, ap. S4", Apartment: "S4", Type: models.LocationTypeParking},
		PendingPayments: &models.PendingPayments{Error: 3, AllowPayments: false},
	}
	s.Summary = models.Summary{
		LocationCount:         2,
		LastPaymentAmount:     &amount,
		LastPaymentDate:       &date,
		LastPaymentLocationID: &locationID,
	}
	return s
}

func readingsByKey(readings []Reading) map[string]Reading {
	m := make(map[string]Reading, len(readings))
	for _, r := range readings {
		m[r.Key] = r
	}
	return m
}

func TestBuild(t *testing.T) {
	readings := Build(testSnapshot())
	require.Len(t, readings, 10)

	var keys []string
	for _, r := range readings {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{
		"location_count", "total_pending", "last_payment_amount", "last_payment_date",
		"monthly_bill_16835", "pending_16835", "last_payment_16835",
		"monthly_bill_17012", "pending_17012", "last_payment_17012",
	}, keys)

	byKey := readingsByKey(readings)

	count := byKey["location_count"]
	assert.Equal(t, 2, count.Value)
	assert.Equal(t, []string{"16835", "17012"}, count.Attributes["location_ids"])

	pending := byKey["total_pending"]
	assert.Equal(t, 0.0, pending.Value)
	assert.Equal(t, Currency, pending.Unit)
	assert.Equal(t, "ok", pending.Attributes["location_16835_status"])
	assert.Equal(t, true, pending.Attributes["location_16835_allow_payments"])
	assert.Equal(t, "error", pending.Attributes["location_17012_status"])

	last := byKey["last_payment_amount"]
	assert.Equal(t, 862.12, last.Value)
	assert.Equal(t, "30.01.2026", last.Attributes["date"])
	assert.Equal(t, "16835", last.Attributes["location_id"])
	assert.Equal(t, map[string]float64{"Fond rulment": 50, "Întreținere": 812.12}, last.Attributes["breakdown"])

	lastDate := byKey["last_payment_date"]
	assert.Equal(t, "30.01.2026", lastDate.Value)
	assert.Equal(t, 862.12, lastDate.Attributes["amount"])

	bill := byKey["monthly_bill_16835"]
	assert.Equal(t, "12 Monthly Bill", bill.Name)
	assert.Equal(t, 862.12, bill.Value)
	assert.Equal(t, "1001", bill.Attributes["receipt"])
	assert.Equal(t, "12", bill.Attributes["apartment"])
	assert.Equal(t, "apartment", bill.Attributes["location_type"])

	lastLoc := byKey["last_payment_16835"]
	assert.Equal(t, 2, lastLoc.Attributes["payment_count"])

	// No history for the parking spot: values are unavailable, not zero.
	assert.Nil(t, byKey["monthly_bill_17012"].Value)
	assert.Nil(t, byKey["last_payment_17012"].Value)
	assert.Equal(t, "parking", byKey["monthly_bill_17012"].Attributes["location_type"])

	parkingPending := byKey["pending_17012"]
	assert.Equal(t, "S4 Pending", parkingPending.Name)
	assert.Equal(t, 0.0, parkingPending.Value)
	assert.Equal(t, 3, parkingPending.Attributes["error_code"])
	assert.Equal(t, false, parkingPending.Attributes["allow_payments"])
}

func TestBuildWithoutLastPayment(t *testing.T) {
	s := models.NewSnapshot()
	readings := readingsByKey(Build(s))

	require.Len(t, readings, 4)
	assert.Equal(t, 0, readings["location_count"].Value)
	assert.Nil(t, readings["last_payment_amount"].Value)
	assert.Nil(t, readings["last_payment_date"].Value)
	assert.Nil(t, readings["last_payment_amount"].Attributes["date"])
}

func TestBuildNonNumericAmount(t *testing.T) {
	s := testSnapshot()
	var rec models.PaymentRecord
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"-","date":"30.01.2026","receipt":1001}`), &rec))
	s.Locations["16835"].PaymentHistory.Results[0] = rec

	readings := readingsByKey(Build(s))
	assert.Nil(t, readings["monthly_bill_16835"].Value)
	assert.Nil(t, readings["last_payment_16835"].Value)
	assert.Equal(t, "1001", readings["monthly_bill_16835"].Attributes["receipt"])
}

func TestBuildNilSnapshot(t *testing.T) {
	readings := Build(nil)
	require.Len(t, readings, 4)
	for _, r := range readings {
		assert.Nil(t, r.Value, r.Key)
		assert.Nil(t, r.Attributes, r.Key)
	}
}

func TestDisplayName(t *testing.T) {
	testCases := []struct {
		name string
		ls   *models.LocationSnapshot
		want string
	}{
		{name: "nil location", ls: nil, want: "Unknown"},
		{name: "no info", ls: &models.LocationSnapshot{}, want: "Unknown"},
		{name: "apartment", ls: &models.LocationSnapshot{Info: &models.Location{Apartment: "12", Name: "Str. X, ap. 99"}}, want: "12"},
		{name: "derived from name", ls: &models.LocationSnapshot{Info: &models.Location{Name: "Str. X, ap. S4, Iasi"}}, want: "S4"},
		{name: "no designator", ls: &models.LocationSnapshot{Info: &models.Location{Name: "Str. X nr. 3"}}, want: "Unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DisplayName(tc.ls))
		})
	}
}
