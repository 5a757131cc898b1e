package database

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andygrunwald/adminis-scraper/internal/models"
)

func sampleRecord() models.PaymentRecord {
	return models.PaymentRecord{
		Amount:  models.NewAmount(862.12),
		Date:    "30.01.2026",
		Receipt: "1001",
		Details: []models.PaymentDetail{
			{Name: "Fond rulment", Amount: models.NewAmount(50)},
			{Name: "Întreținere", Amount: models.NewAmount(812.12)},
		},
		LocationID: "16835",
	}
}

func TestNewPaymentRow(t *testing.T) {
	row, err := newPaymentRow("home", sampleRecord(), false)
	require.NoError(t, err)

	assert.Equal(t, "home", row.account)
	assert.Equal(t, "16835", row.locationID)
	assert.Equal(t, "1001", row.receipt)
	assert.Equal(t, "30.01.2026", row.dateText)
	require.NotNil(t, row.paymentDate)
	assert.Equal(t, "2026-01-30", *row.paymentDate)
	assert.Equal(t, 862.12, row.amount)
	assert.JSONEq(t, `[{"name":"Fond rulment","amount":50},{"name":"Întreținere","amount":812.12}]`, string(row.details))
	assert.Nil(t, row.rawResponse)
}

func TestNewPaymentRowRawResponse(t *testing.T) {
	row, err := newPaymentRow("home", sampleRecord(), true)
	require.NoError(t, err)
	require.NotNil(t, row.rawResponse)

	var decoded models.PaymentRecord
	require.NoError(t, json.Unmarshal(row.rawResponse, &decoded))
	assert.Equal(t, sampleRecord(), decoded)
}

func TestNewPaymentRowUnparsableDate(t *testing.T) {
	rec := models.PaymentRecord{Amount: models.NewAmount(10), Date: "ianuarie", Receipt: "7", LocationID: "1"}

	row, err := newPaymentRow("home", rec, false)
	require.NoError(t, err)
	assert.Nil(t, row.paymentDate)
	assert.Equal(t, "ianuarie", row.dateText)
	assert.Equal(t, "[]", string(row.details))
}

// TestPostgres runs against a real server when POSTGRES_TEST_DSN is set.
func TestPostgres(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx := context.Background()
	db, err := New(dsn, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.EnsureSchema(ctx))
	_, err = db.db.ExecContext(ctx, "DELETE FROM adminis_payments WHERE account = $1", "test-account")
	require.NoError(t, err)

	rec := sampleRecord()
	exists, err := db.ExistsPayment(ctx, "test-account", rec)
	require.NoError(t, err)
	assert.False(t, exists)

	before, err := db.GetTotalPaymentsCount(ctx)
	require.NoError(t, err)

	require.NoError(t, db.InsertPayment(ctx, "test-account", rec, true))
	require.NoError(t, db.InsertPayment(ctx, "test-account", rec, false))

	exists, err = db.ExistsPayment(ctx, "test-account", rec)
	require.NoError(t, err)
	assert.True(t, exists)

	after, err := db.GetTotalPaymentsCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
	require.NoError(t, db.Ping())
}
