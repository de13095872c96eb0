package settlement

import (
	"checkmate/internal/models"
	"checkmate/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const participantsPerEpsilonUnit = 100

// Epsilon is the tolerance on the balance sum: one minor unit for every
// started block of 100 participants.
func Epsilon(currency string, participants int) decimal.Decimal {
	blocks := (participants + participantsPerEpsilonUnit - 1) / participantsPerEpsilonUnit
	if blocks < 1 {
		blocks = 1
	}
	return MinorUnit(currency).Mul(decimal.NewFromInt(int64(blocks)))
}

// ComputeBalances reduces the ledger to paid minus consumed per participant.
// A balance sum outside tolerance is reported as ErrLedgerInconsistent.
func ComputeBalances(ledger *Ledger) ([]models.ParticipantBalance, error) {
	entries := ledger.Entries()
	balances := make([]models.ParticipantBalance, 0, len(entries))

	sum := decimal.Zero
	for _, e := range entries {
		b := e.Paid.Sub(e.Consumed)
		sum = sum.Add(b)
		balances = append(balances, models.ParticipantBalance{ParticipantID: e.ParticipantID, Balance: b})
	}

	eps := Epsilon(ledger.BaseCurrency(), len(entries))
	if sum.Abs().GreaterThan(eps) {
		utils.Logger.WithFields(logrus.Fields{
			"base_currency": ledger.BaseCurrency(),
			"expenses":      ledger.ExpenseCount(),
			"balance_sum":   sum.String(),
			"epsilon":       eps.String(),
			"ledger":        ledger.dump(),
		}).Error("balance conservation violated")
		return nil, ErrLedgerInconsistent
	}

	return balances, nil
}
