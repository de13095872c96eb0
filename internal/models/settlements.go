package models

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type ParticipantBalance struct {
	ParticipantID int             `json:"participant_id"`
	Balance       decimal.Decimal `json:"balance"`
}

type SettlementTransaction struct {
	FromParticipantID int             `json:"from_participant_id"`
	ToParticipantID   int             `json:"to_participant_id"`
	Amount            decimal.Decimal `json:"amount"`
}

// SettlementPlan is tagged with the version of the ledger snapshot it was
// computed from.
type SettlementPlan struct {
	TripID           int                     `json:"trip_id"`
	Version          string                  `json:"version"`
	BaseCurrency     string                  `json:"base_currency"`
	Transactions     []SettlementTransaction `json:"transactions"`
	Balances         []ParticipantBalance    `json:"balances"`
	TotalExpenses    decimal.Decimal         `json:"total_expenses"`
	ParticipantCount int                     `json:"participant_count"`
	ComputedAt       time.Time               `json:"computed_at"`
}

// ReferencedParticipants lists every participant appearing on a leg of the
// plan, in ascending id order.
func (p SettlementPlan) ReferencedParticipants() []int {
	seen := map[int]bool{}
	var ids []int
	for _, tx := range p.Transactions {
		for _, id := range []int{tx.FromParticipantID, tx.ToParticipantID} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	slices.Sort(ids)
	return ids
}
