package settlement

import (
	"container/heap"

	"checkmate/internal/models"

	"github.com/shopspring/decimal"
)

type party struct {
	id        int
	remaining decimal.Decimal // always positive
}

// partyHeap is a max-heap on remaining, ties broken by ascending id.
type partyHeap []party

func (h partyHeap) Len() int { return len(h) }
func (h partyHeap) Less(i, j int) bool {
	if c := h[i].remaining.Cmp(h[j].remaining); c != 0 {
		return c > 0
	}
	return h[i].id < h[j].id
}
func (h partyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *partyHeap) Push(x any)   { *h = append(*h, x.(party)) }
func (h *partyHeap) Pop() any {
	old := *h
	n := len(old)
	p := old[n-1]
	*h = old[:n-1]
	return p
}

// Plan turns signed balances into directed payments by repeatedly matching
// the largest creditor with the largest debtor. The greedy matching is not
// guaranteed to reach the minimum number of payments (that problem is
// NP-hard) but it never needs more than n-1 and runs in O(n log n).
// Identical input always yields an identical plan.
func Plan(balances []models.ParticipantBalance, currency string) []models.SettlementTransaction {
	unit := MinorUnit(currency)

	creditors := &partyHeap{}
	debtors := &partyHeap{}
	for _, b := range balances {
		amount := Round(b.Balance, currency)
		switch {
		case amount.GreaterThanOrEqual(unit):
			*creditors = append(*creditors, party{id: b.ParticipantID, remaining: amount})
		case amount.Neg().GreaterThanOrEqual(unit):
			*debtors = append(*debtors, party{id: b.ParticipantID, remaining: amount.Neg()})
		}
	}
	heap.Init(creditors)
	heap.Init(debtors)

	var plan []models.SettlementTransaction
	for creditors.Len() > 0 && debtors.Len() > 0 {
		creditor := heap.Pop(creditors).(party)
		debtor := heap.Pop(debtors).(party)

		amount := decimal.Min(creditor.remaining, debtor.remaining)
		plan = append(plan, models.SettlementTransaction{
			FromParticipantID: debtor.id,
			ToParticipantID:   creditor.id,
			Amount:            amount,
		})

		creditor.remaining = creditor.remaining.Sub(amount)
		debtor.remaining = debtor.remaining.Sub(amount)
		if creditor.remaining.GreaterThanOrEqual(unit) {
			heap.Push(creditors, creditor)
		}
		if debtor.remaining.GreaterThanOrEqual(unit) {
			heap.Push(debtors, debtor)
		}
	}

	return plan
}
