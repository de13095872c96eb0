package models

import (
	"time"

	"github.com/shopspring/decimal"
)

var ExpenseCategories = map[string]bool{
	"food":           true,
	"transportation": true,
	"accommodation":  true,
	"shopping":       true,
	"entertainment":  true,
	"ticket":         true,
	"souvenir":       true,
	"drink":          true,
	"health":         true,
	"communication":  true,
	"other":          true,
}

// ExpenseRecord is immutable once stored; edits replace the whole record.
// The first entry of ParticipantIDs absorbs the rounding residual of the split.
type ExpenseRecord struct {
	ID             int                     `json:"id,omitempty" db:"id,omitempty"`
	TripID         int                     `json:"trip_id,omitempty" db:"trip_id,omitempty"`
	PayerID        int                     `json:"payer_id,omitempty" db:"payer_id,omitempty"`
	Amount         decimal.Decimal         `json:"amount" db:"amount"`
	Currency       string                  `json:"currency,omitempty" db:"currency,omitempty"`
	Date           time.Time               `json:"date" db:"expense_date"`
	ParticipantIDs []int                   `json:"participant_ids"`
	ShareWeights   map[int]decimal.Decimal `json:"share_weights,omitempty"`
	Description    string                  `json:"description,omitempty" db:"description,omitempty"`
	Category       string                  `json:"category,omitempty" db:"category,omitempty"`
	CreatedAt      time.Time               `json:"created_at" db:"created_at"`
}
