package settlement

import (
	"testing"
	"time"

	"checkmate/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	t.Parallel()

	computedAt := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	plan, err := Compute(Input{
		TripID:       1,
		BaseCurrency: "USD",
		Expenses: []models.ExpenseRecord{
			expense(1, 1, "90", "USD", 1, 2, 3),
			expense(2, 1, "30", "USD", 2, 3),
		},
		Rates:      NewRateTable("USD", nil),
		ComputedAt: computedAt,
	})
	require.NoError(t, err)

	// 1 paid 120 and consumed 30; 2 and 3 each consumed 45.
	assert.Equal(t, 1, plan.TripID)
	assert.Equal(t, "USD", plan.BaseCurrency)
	assert.Equal(t, 3, plan.ParticipantCount)
	assert.True(t, plan.TotalExpenses.Equal(d("120")))
	assert.Equal(t, computedAt, plan.ComputedAt)
	assert.Len(t, plan.Version, 64)

	require.Len(t, plan.Transactions, 2)
	assert.Equal(t, 2, plan.Transactions[0].FromParticipantID)
	assert.Equal(t, 1, plan.Transactions[0].ToParticipantID)
	assert.True(t, plan.Transactions[0].Amount.Equal(d("45")))
	assert.Equal(t, 3, plan.Transactions[1].FromParticipantID)
	assert.Equal(t, []int{1, 2, 3}, plan.ReferencedParticipants())
}

func TestComputeEmptyTrip(t *testing.T) {
	t.Parallel()

	plan, err := Compute(Input{TripID: 1, BaseCurrency: "EUR", Rates: NewRateTable("EUR", nil)})
	require.NoError(t, err)

	assert.NotNil(t, plan.Transactions)
	assert.Empty(t, plan.Transactions)
	assert.True(t, plan.TotalExpenses.IsZero())
	assert.NotEmpty(t, plan.Version)
}

func TestVersionIsOrderIndependent(t *testing.T) {
	t.Parallel()

	rates := NewRateTable("USD", nil)
	a := []models.ExpenseRecord{
		expense(1, 1, "10", "USD", 1, 2),
		expense(2, 2, "20", "USD", 1, 2),
	}
	b := []models.ExpenseRecord{a[1], a[0]}

	va, err := Version("USD", a, rates)
	require.NoError(t, err)
	vb, err := Version("USD", b, rates)
	require.NoError(t, err)
	assert.Equal(t, va, vb)
}

func TestVersionTracksLedgerChanges(t *testing.T) {
	t.Parallel()

	rates := NewRateTable("USD", []models.ExchangeRate{
		{Currency: "EUR", Date: day("2024-05-01"), RateToBase: d("1.10")},
	})
	base := []models.ExpenseRecord{expense(1, 1, "10", "EUR", 1, 2)}
	v0, err := Version("USD", base, rates)
	require.NoError(t, err)

	changed := []models.ExpenseRecord{expense(1, 1, "11", "EUR", 1, 2)}
	v1, err := Version("USD", changed, rates)
	require.NoError(t, err)
	assert.NotEqual(t, v0, v1)

	weighted := []models.ExpenseRecord{expense(1, 1, "10", "EUR", 1, 2)}
	weighted[0].ShareWeights = map[int]decimal.Decimal{1: d("2"), 2: d("1")}
	v2, err := Version("USD", weighted, rates)
	require.NoError(t, err)
	assert.NotEqual(t, v0, v2)

	rates.Set("EUR", day("2024-05-01"), d("1.20"))
	v3, err := Version("USD", base, rates)
	require.NoError(t, err)
	assert.NotEqual(t, v0, v3)
}

func TestComputeIsDeterministic(t *testing.T) {
	t.Parallel()

	in := Input{
		TripID:       3,
		BaseCurrency: "USD",
		Expenses: []models.ExpenseRecord{
			expense(1, 1, "33.33", "USD", 1, 2, 3),
			expense(2, 2, "14.99", "USD", 3, 1),
			expense(3, 3, "7", "USD", 2),
		},
		Rates: NewRateTable("USD", nil),
	}

	first, err := Compute(in)
	require.NoError(t, err)
	second, err := Compute(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
