package sqlconnect

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"checkmate/internal/models"
)

type RateRepository struct {
	db *sql.DB
}

func NewRateRepository(db *sql.DB) *RateRepository {
	return &RateRepository{db: db}
}

func (r *RateRepository) RatesForTrip(ctx context.Context, tripID int) ([]models.ExchangeRate, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, trip_id, currency, rate_date, rate_to_base, created_at FROM exchange_rates WHERE trip_id = ? ORDER BY rate_date, currency",
		tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve exchange rates: %w", err)
	}
	defer rows.Close()

	var rates []models.ExchangeRate
	for rows.Next() {
		var rate models.ExchangeRate
		if err := rows.Scan(&rate.ID, &rate.TripID, &rate.Currency, &rate.Date, &rate.RateToBase, &rate.CreatedAt); err != nil {
			return nil, fmt.Errorf("error reading exchange rates: %w", err)
		}
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}

func (r *RateRepository) UpsertRate(ctx context.Context, rate models.ExchangeRate) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO exchange_rates (trip_id, currency, rate_date, rate_to_base, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE rate_to_base = VALUES(rate_to_base)
	`, rate.TripID, rate.Currency, rate.Date.Format("2006-01-02"), rate.RateToBase,
		time.Now().UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return fmt.Errorf("failed to save exchange rate: %w", err)
	}
	return nil
}
