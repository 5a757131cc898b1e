// Package database provides PostgreSQL persistence of Adminis payment records.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/andygrunwald/adminis-scraper/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS adminis_payments (
	id           BIGSERIAL PRIMARY KEY,
	account      TEXT NOT NULL,
	location_id  TEXT NOT NULL,
	receipt      TEXT NOT NULL,
	date_text    TEXT NOT NULL,
	payment_date DATE,
	amount       NUMERIC(12, 2) NOT NULL,
	details      JSONB NOT NULL DEFAULT '[]',
	raw_response JSONB,
	fetched_at   TIMESTAMPTZ NOT NULL,
	UNIQUE (account, location_id, receipt, date_text)
)`

// DB wraps the PostgreSQL database connection and provides operations for payment records.
type DB struct {
	db     *sql.DB
	logger zerolog.Logger
}

// New creates a new database connection.
func New(dsn string, logger zerolog.Logger) (*DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{
		db:     db,
		logger: logger.With().Str("component", "database").Logger(),
	}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks if the database connection is alive.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// EnsureSchema creates the payments table if it does not exist.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// paymentRow is the column representation of a payment record.
type paymentRow struct {
	account     string
	locationID  string
	receipt     string
	dateText    string
	paymentDate *string
	amount      float64
	details     []byte
	rawResponse []byte
}

func newPaymentRow(account string, rec models.PaymentRecord, storeRawResponse bool) (paymentRow, error) {
	details := rec.Details
	if details == nil {
		details = []models.PaymentDetail{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return paymentRow{}, fmt.Errorf("encoding details: %w", err)
	}

	row := paymentRow{
		account:    account,
		locationID: rec.LocationID,
		receipt:    rec.Receipt,
		dateText:   rec.Date,
		amount:     rec.Amount.Float64(),
		details:    detailsJSON,
	}

	if t, err := rec.ParsedDate(); err == nil {
		date := t.Format(time.DateOnly)
		row.paymentDate = &date
	}

	if storeRawResponse {
		raw, err := json.Marshal(rec)
		if err != nil {
			return paymentRow{}, fmt.Errorf("encoding raw response: %w", err)
		}
		row.rawResponse = raw
	}

	return row, nil
}

// InsertPayment inserts a payment record or updates the stored one.
func (d *DB) InsertPayment(ctx context.Context, account string, rec models.PaymentRecord, storeRawResponse bool) error {
	query := `
		INSERT INTO adminis_payments (account, location_id, receipt, date_text, payment_date, amount, details, raw_response, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (account, location_id, receipt, date_text)
		DO UPDATE SET
			amount = EXCLUDED.amount,
			details = EXCLUDED.details,
			raw_response = EXCLUDED.raw_response,
			fetched_at = EXCLUDED.fetched_at
	`

	row, err := newPaymentRow(account, rec, storeRawResponse)
	if err != nil {
		return err
	}

	var rawResponse any
	if row.rawResponse != nil {
		rawResponse = string(row.rawResponse)
	}

	_, err = d.db.ExecContext(ctx, query,
		row.account,
		row.locationID,
		row.receipt,
		row.dateText,
		row.paymentDate,
		row.amount,
		string(row.details),
		rawResponse,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("inserting payment: %w", err)
	}

	d.logger.Debug().
		Str("account", account).
		Str("location", rec.LocationID).
		Str("receipt", rec.Receipt).
		Str("date", rec.Date).
		Float64("amount", row.amount).
		Msg("inserted payment record")

	return nil
}

// ExistsPayment checks if a payment record is already stored.
func (d *DB) ExistsPayment(ctx context.Context, account string, rec models.PaymentRecord) (bool, error) {
	query := `
		SELECT COUNT(*) FROM adminis_payments
		WHERE account = $1 AND location_id = $2 AND receipt = $3 AND date_text = $4
	`

	var count int
	err := d.db.QueryRowContext(ctx, query,
		account,
		rec.LocationID,
		rec.Receipt,
		rec.Date,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking existence: %w", err)
	}

	return count > 0, nil
}

// GetTotalPaymentsCount returns the total number of payment records in the database.
func (d *DB) GetTotalPaymentsCount(ctx context.Context) (int64, error) {
	var count int64
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM adminis_payments").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting payments: %w", err)
	}
	return count, nil
}
