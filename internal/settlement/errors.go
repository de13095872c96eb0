package settlement

import (
	"errors"
	"fmt"
)

// Input errors: the offending expense never enters the ledger.
var (
	ErrInvalidAmount        = errors.New("amount must be greater than 0")
	ErrEmptyParticipantSet  = errors.New("expense has no participants")
	ErrDuplicateParticipant = errors.New("participant listed more than once")
	ErrShareWeightsMismatch = errors.New("share weights must cover exactly the participants")
	ErrInvalidPayer         = errors.New("payer is required")
	ErrAmountTooPrecise     = errors.New("amount has too many decimal places")
	ErrWeightTooPrecise     = errors.New("share weight has too many decimal places")
)

// Data-unavailability errors fail the whole ledger build.
var (
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrRateUnavailable = errors.New("exchange rate unavailable")
)

// ErrLedgerInconsistent means balances do not sum to zero. It is an internal
// defect and halts settlement for the trip.
var ErrLedgerInconsistent = errors.New("ledger inconsistent")

// Confirmation protocol errors.
var (
	ErrUnknownParticipant  = errors.New("participant is not part of the settlement plan")
	ErrNotFullyConfirmed   = errors.New("settlement plan is not fully confirmed")
	ErrPlanInvalidated     = errors.New("settlement plan was invalidated by a newer expense")
	ErrStalePlanVersion    = errors.New("settlement plan version is stale")
	ErrNoActivePlan        = errors.New("no settlement plan has been computed")
	ErrSettlementCompleted = errors.New("settlement already completed")
	ErrSettlementNotOpen   = errors.New("settlement is not open yet")
)

// ExpenseError identifies the expense record that was rejected.
type ExpenseError struct {
	ExpenseID int
	Err       error
}

func (e *ExpenseError) Error() string {
	return fmt.Sprintf("expense %d: %v", e.ExpenseID, e.Err)
}

func (e *ExpenseError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err was caused by a malformed expense.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrEmptyParticipantSet) ||
		errors.Is(err, ErrDuplicateParticipant) ||
		errors.Is(err, ErrShareWeightsMismatch) ||
		errors.Is(err, ErrInvalidPayer) ||
		errors.Is(err, ErrAmountTooPrecise) ||
		errors.Is(err, ErrWeightTooPrecise) ||
		errors.Is(err, ErrUnknownCurrency)
}
