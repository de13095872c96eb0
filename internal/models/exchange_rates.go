package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ExchangeRate struct {
	ID         int             `json:"id,omitempty" db:"id,omitempty"`
	TripID     int             `json:"trip_id,omitempty" db:"trip_id,omitempty"`
	Currency   string          `json:"currency,omitempty" db:"currency,omitempty"`
	Date       time.Time       `json:"date" db:"rate_date"`
	RateToBase decimal.Decimal `json:"rate_to_base" db:"rate_to_base"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
