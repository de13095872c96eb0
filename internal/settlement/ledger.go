package settlement

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"checkmate/internal/models"

	"github.com/shopspring/decimal"
)

// LedgerEntry holds one participant's base-currency totals.
type LedgerEntry struct {
	ParticipantID int             `json:"participant_id"`
	Paid          decimal.Decimal `json:"paid"`
	Consumed      decimal.Decimal `json:"consumed"`
}

// LedgerLine is one expense as it entered the ledger.
type LedgerLine struct {
	ExpenseID  int
	Category   string
	Date       time.Time
	AmountBase decimal.Decimal
}

// Ledger is the per-participant paid/consumed view of a trip. It is never
// mutated after BuildLedger returns.
type Ledger struct {
	baseCurrency string
	entries      map[int]*LedgerEntry
	total        decimal.Decimal
	lines        []LedgerLine
}

func (l *Ledger) BaseCurrency() string { return l.baseCurrency }

// Total is the sum of all converted expense amounts.
func (l *Ledger) Total() decimal.Decimal { return l.total }

func (l *Ledger) ExpenseCount() int { return len(l.lines) }

// Lines returns the converted expenses in input order.
func (l *Ledger) Lines() []LedgerLine { return slices.Clone(l.lines) }

// Entries returns copies of the ledger entries ordered by participant id.
func (l *Ledger) Entries() []LedgerEntry {
	ids := make([]int, 0, len(l.entries))
	for id := range l.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]LedgerEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, *l.entries[id])
	}
	return out
}

func (l *Ledger) entry(id int) *LedgerEntry {
	e, ok := l.entries[id]
	if !ok {
		e = &LedgerEntry{ParticipantID: id, Paid: decimal.Zero, Consumed: decimal.Zero}
		l.entries[id] = e
	}
	return e
}

// ValidateExpense checks the structural invariants of a single record.
func ValidateExpense(e models.ExpenseRecord) error {
	if e.PayerID == 0 {
		return &ExpenseError{ExpenseID: e.ID, Err: ErrInvalidPayer}
	}
	if !e.Amount.IsPositive() {
		return &ExpenseError{ExpenseID: e.ID, Err: ErrInvalidAmount}
	}
	if _, err := NormalizeCurrency(e.Currency); err != nil {
		return &ExpenseError{ExpenseID: e.ID, Err: err}
	}
	if len(e.ParticipantIDs) == 0 {
		return &ExpenseError{ExpenseID: e.ID, Err: ErrEmptyParticipantSet}
	}

	seen := make(map[int]bool, len(e.ParticipantIDs))
	for _, id := range e.ParticipantIDs {
		if seen[id] {
			return &ExpenseError{ExpenseID: e.ID, Err: ErrDuplicateParticipant}
		}
		seen[id] = true
	}

	if e.ShareWeights != nil {
		if len(e.ShareWeights) != len(e.ParticipantIDs) {
			return &ExpenseError{ExpenseID: e.ID, Err: ErrShareWeightsMismatch}
		}
		for id, w := range e.ShareWeights {
			if !seen[id] || !w.IsPositive() {
				return &ExpenseError{ExpenseID: e.ID, Err: ErrShareWeightsMismatch}
			}
		}
	}
	return nil
}

// BuildLedger converts every expense to the base currency and accumulates
// paid and consumed totals. Any invalid expense or missing rate fails the
// whole build.
func BuildLedger(baseCurrency string, expenses []models.ExpenseRecord, lookup RateLookup) (*Ledger, error) {
	base, err := NormalizeCurrency(baseCurrency)
	if err != nil {
		return nil, err
	}

	ledger := &Ledger{
		baseCurrency: base,
		entries:      map[int]*LedgerEntry{},
		total:        decimal.Zero,
	}

	for _, e := range expenses {
		if err := ValidateExpense(e); err != nil {
			return nil, err
		}

		converted, err := ToBase(e.Amount, e.Currency, e.Date, lookup)
		if err != nil {
			return nil, &ExpenseError{ExpenseID: e.ID, Err: err}
		}
		total := Round(converted, base)

		shares := SplitShares(total, e.ParticipantIDs, e.ShareWeights, base)

		ledger.entry(e.PayerID).Paid = ledger.entry(e.PayerID).Paid.Add(total)
		for i, id := range e.ParticipantIDs {
			ledger.entry(id).Consumed = ledger.entry(id).Consumed.Add(shares[i])
		}
		ledger.total = ledger.total.Add(total)
		ledger.lines = append(ledger.lines, LedgerLine{
			ExpenseID:  e.ID,
			Category:   e.Category,
			Date:       e.Date,
			AmountBase: total,
		})
	}

	return ledger, nil
}

// SplitShares divides total across participants by weight (equal when
// weights is nil). Each share is truncated to whole minor units, so the
// residual is never negative; it goes to the first participant and the
// shares sum exactly to total.
func SplitShares(total decimal.Decimal, participants []int, weights map[int]decimal.Decimal, currency string) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(participants))
	if len(participants) == 0 {
		return shares
	}

	weightOf := func(id int) decimal.Decimal {
		if weights == nil {
			return decimal.NewFromInt(1)
		}
		return weights[id]
	}

	sum := decimal.Zero
	for _, id := range participants {
		sum = sum.Add(weightOf(id))
	}

	exp := MinorUnits(currency)
	units := total.Shift(exp)

	allocated := decimal.Zero
	for i, id := range participants {
		// integer quotient, exact for any weight scale
		q, _ := units.Mul(weightOf(id)).QuoRem(sum, 0)
		shares[i] = q.Shift(-exp)
		allocated = allocated.Add(shares[i])
	}
	shares[0] = shares[0].Add(total.Sub(allocated))

	return shares
}

// dump renders the ledger for diagnostics.
func (l *Ledger) dump() string {
	var b strings.Builder
	for _, e := range l.Entries() {
		fmt.Fprintf(&b, "%d: paid=%s consumed=%s; ", e.ParticipantID, e.Paid, e.Consumed)
	}
	return b.String()
}
