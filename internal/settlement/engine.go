package settlement

import (
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"time"

	"checkmate/internal/models"

	"golang.org/x/crypto/blake2b"
)

// Input is everything a plan is derived from.
type Input struct {
	TripID       int
	BaseCurrency string
	Expenses     []models.ExpenseRecord
	Rates        RateLookup
	ComputedAt   time.Time
}

// Compute runs ledger, balance and planning for one trip. It is pure: the
// same input produces an identical plan and version.
func Compute(in Input) (*models.SettlementPlan, error) {
	ledger, err := BuildLedger(in.BaseCurrency, in.Expenses, in.Rates)
	if err != nil {
		return nil, err
	}

	balances, err := ComputeBalances(ledger)
	if err != nil {
		return nil, err
	}

	version, err := Version(ledger.BaseCurrency(), in.Expenses, in.Rates)
	if err != nil {
		return nil, err
	}

	txs := Plan(balances, ledger.BaseCurrency())
	if txs == nil {
		txs = []models.SettlementTransaction{}
	}

	return &models.SettlementPlan{
		TripID:           in.TripID,
		Version:          version,
		BaseCurrency:     ledger.BaseCurrency(),
		Transactions:     txs,
		Balances:         balances,
		TotalExpenses:    ledger.Total(),
		ParticipantCount: len(balances),
		ComputedAt:       in.ComputedAt,
	}, nil
}

// Version fingerprints the ledger snapshot: the base currency, every expense
// (order independent) and the converted amount each one settled at.
func Version(baseCurrency string, expenses []models.ExpenseRecord, rates RateLookup) (string, error) {
	sorted := slices.Clone(expenses)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}

	fmt.Fprintf(h, "base=%s\n", baseCurrency)
	for _, e := range sorted {
		converted, err := ToBase(e.Amount, e.Currency, e.Date, rates)
		if err != nil {
			return "", &ExpenseError{ExpenseID: e.ID, Err: err}
		}
		fmt.Fprintf(h, "expense=%d payer=%d amount=%s currency=%s date=%s base=%s participants=%v",
			e.ID, e.PayerID, e.Amount.String(), strings.ToUpper(e.Currency), e.Date.Format(dayLayout),
			Round(converted, baseCurrency).String(), e.ParticipantIDs)
		writeWeights(h, e)
		io.WriteString(h, "\n")
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeWeights(w io.Writer, e models.ExpenseRecord) {
	if e.ShareWeights == nil {
		return
	}
	ids := make([]int, 0, len(e.ShareWeights))
	for id := range e.ShareWeights {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		fmt.Fprintf(w, " w%d=%s", id, e.ShareWeights[id].String())
	}
}
