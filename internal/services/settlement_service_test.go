package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"checkmate/internal/models"
	"checkmate/internal/repositories/memstore"
	"checkmate/internal/settlement"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	ready chan models.SettlementPlan
	done  chan models.SettlementPlan
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		ready: make(chan models.SettlementPlan, 10),
		done:  make(chan models.SettlementPlan, 10),
	}
}

func (n *recordingNotifier) PlanReady(_ models.Trip, plan models.SettlementPlan) { n.ready <- plan }

func (n *recordingNotifier) SettlementCompleted(_ models.Trip, plan models.SettlementPlan) {
	n.done <- plan
}

type stubProvider struct {
	mu    sync.Mutex
	rates map[string]decimal.Decimal
	calls int
}

func (p *stubProvider) RateToBase(_ context.Context, currency, base string, day time.Time) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	rate, ok := p.rates[currency+"/"+day.Format("2006-01-02")]
	if !ok {
		return decimal.Zero, errors.New("no quote")
	}
	return rate, nil
}

var (
	tripStart = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	tripEnd   = time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc      *SettlementService
	expenses *memstore.Expenses
	rates    *memstore.Rates
	notifier *recordingNotifier
	now      time.Time
}

func newFixture(t *testing.T, trigger string, opts ...SettlementServiceOption) *fixture {
	t.Helper()

	f := &fixture{
		expenses: memstore.NewExpenses(),
		rates:    memstore.NewRates(),
		notifier: newRecordingNotifier(),
		now:      time.Date(2024, 5, 12, 9, 0, 0, 0, time.UTC),
	}
	trips := memstore.NewTrips(models.Trip{
		ID:                1,
		Name:              "Lisbon",
		StartDate:         tripStart,
		EndDate:           tripEnd,
		BaseCurrency:      "USD",
		SettlementTrigger: trigger,
		Participants: []models.TripParticipant{
			{UserID: 1, Username: "alice", Email: "alice@example.com"},
			{UserID: 2, Username: "bob", Email: "bob@example.com"},
			{UserID: 3, Username: "carol", Email: "carol@example.com"},
		},
	})

	opts = append([]SettlementServiceOption{
		WithNotifier(f.notifier),
		WithClock(func() time.Time { return f.now }),
	}, opts...)
	f.svc = NewSettlementService(trips, f.expenses, f.rates,
		settlement.NewCoordinator(memstore.NewRoundStore()), opts...)
	return f
}

func (f *fixture) record(t *testing.T, payer int, amount, currency string, participants ...int) models.ExpenseRecord {
	t.Helper()
	e, err := f.svc.RecordExpense(context.Background(), 1, models.ExpenseRecord{
		PayerID:        payer,
		Amount:         decimal.RequireFromString(amount),
		Currency:       currency,
		Date:           tripStart.AddDate(0, 0, 2),
		ParticipantIDs: participants,
		Category:       "food",
	})
	require.NoError(t, err)
	return e
}

func waitFor(t *testing.T, ch <-chan models.SettlementPlan) models.SettlementPlan {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("notification not sent")
		return models.SettlementPlan{}
	}
}

func TestRecordExpenseDefaultsToAllParticipants(t *testing.T) {
	t.Parallel()
	f := newFixture(t, models.SettlementTriggerManual)

	e, err := f.svc.RecordExpense(context.Background(), 1, models.ExpenseRecord{
		PayerID:  2,
		Amount:   decimal.NewFromInt(30),
		Currency: "usd",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, e.ID)
	assert.Equal(t, "USD", e.Currency)
	assert.Equal(t, []int{1, 2, 3}, e.ParticipantIDs)
	assert.Equal(t, f.now, e.Date)

	stored, err := f.svc.ListExpenses(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, []int{1, 2, 3}, stored[0].ParticipantIDs)
}

func TestRecordExpenseRejectsInvalidInput(t *testing.T) {
	t.Parallel()
	f := newFixture(t, models.SettlementTriggerManual)
	ctx := context.Background()

	tests := []struct {
		name string
		e    models.ExpenseRecord
		want error
	}{
		{"unknown currency", models.ExpenseRecord{PayerID: 1, Amount: decimal.NewFromInt(1), Currency: "ZZZ"}, settlement.ErrUnknownCurrency},
		{"bad category", models.ExpenseRecord{PayerID: 1, Amount: decimal.NewFromInt(1), Currency: "USD", Category: "yachts"}, ErrInvalidCategory},
		{"outsider payer", models.ExpenseRecord{PayerID: 9, Amount: decimal.NewFromInt(1), Currency: "USD"}, ErrNotTripParticipant},
		{"outsider participant", models.ExpenseRecord{PayerID: 1, Amount: decimal.NewFromInt(1), Currency: "USD", ParticipantIDs: []int{1, 9}}, ErrNotTripParticipant},
		{"zero amount", models.ExpenseRecord{PayerID: 1, Currency: "USD"}, settlement.ErrInvalidAmount},
		{"weights without participants", models.ExpenseRecord{PayerID: 1, Amount: decimal.NewFromInt(1), Currency: "USD",
			ShareWeights: map[int]decimal.Decimal{}}, settlement.ErrEmptyParticipantSet},
		{"amount finer than storage", models.ExpenseRecord{PayerID: 1, Amount: decimal.RequireFromString("0.00001"), Currency: "USD"},
			settlement.ErrAmountTooPrecise},
		{"weight finer than storage", models.ExpenseRecord{PayerID: 1, Amount: decimal.NewFromInt(10), Currency: "USD",
			ParticipantIDs: []int{1, 2},
			ShareWeights:   map[int]decimal.Decimal{1: decimal.NewFromInt(1), 2: decimal.RequireFromString("0.0000001")}},
			settlement.ErrWeightTooPrecise},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RecordExpense(ctx, 1, tt.e)
			assert.ErrorIs(t, err, tt.want)
			var expErr *settlement.ExpenseError
			assert.ErrorAs(t, err, &expErr)
		})
	}

	list, err := f.svc.ListExpenses(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.svc.RecordExpense(ctx, 42, models.ExpenseRecord{PayerID: 1})
	assert.ErrorIs(t, err, models.ErrTripNotFound)
}

func TestRecordExpenseAcceptsStorablePrecision(t *testing.T) {
	t.Parallel()
	f := newFixture(t, models.SettlementTriggerManual)

	e, err := f.svc.RecordExpense(context.Background(), 1, models.ExpenseRecord{
		PayerID:        1,
		Amount:         decimal.RequireFromString("12.34500"),
		Currency:       "USD",
		ParticipantIDs: []int{1, 2},
		ShareWeights: map[int]decimal.Decimal{
			1: decimal.RequireFromString("0.000001"),
			2: decimal.RequireFromString("2.5"),
		},
	})
	require.NoError(t, err)
	assert.NotZero(t, e.ID)
	assert.True(t, settlement.IsInputError(&settlement.ExpenseError{Err: settlement.ErrWeightTooPrecise}))
}

func TestComputePlan(t *testing.T) {
	t.Parallel()
	f := newFixture(t, models.SettlementTriggerManual)
	ctx := context.Background()

	f.record(t, 1, "90", "USD", 1, 2, 3)
	f.record(t, 2, "30", "USD", 2, 3)

	res, err := f.svc.ComputePlan(ctx, 1)
	require.NoError(t, err)

	require.Len(t, res.Plan.Transactions, 2)
	assert.Equal(t, 3, res.Plan.Transactions[0].FromParticipantID)
	assert.Equal(t, 1, res.Plan.Transactions[0].ToParticipantID)
	assert.True(t, res.Plan.Transactions[0].Amount.Equal(decimal.NewFromInt(45)))
	assert.Equal(t, 2, res.Plan.Transactions[1].FromParticipantID)
	assert.True(t, res.Plan.Transactions[1].Amount.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, models.StateComputed, res.Status.State)
	assert.Equal(t, res.Plan.Version, res.Status.PlanVersion)

	require.Len(t, res.Transfers, 2)
	assert.Equal(t, Transfer{
		FromUserID: 3, FromUsername: "carol", ToUserID: 1, ToUsername: "alice", AmountBase: res.Plan.Transactions[0].Amount,
	}, res.Transfers[0])
	assert.Equal(t, "bob", res.Transfers[1].FromUsername)
	assert.Equal(t, "3 participants spent $120.00 in total; 2 transfers settle the trip: carol pays alice $45.00, bob pays alice $15.00", res.Summary)

	assert.Equal(t, res.Plan.Version, waitFor(t, f.notifier.ready).Version)

	again, err := f.svc.ComputePlan(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, res.Plan.Version, again.Plan.Version)
	assert.Empty(t, f.notifier.ready, "recomputing an unchanged ledger must not notify again")

	current, err := f.svc.CurrentPlan(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, res.Plan.Version, current.Plan.Version)
	assert.Equal(t, res.Transfers, current.Transfers)
	assert.Equal(t, res.Summary, current.Summary)
}

func TestPlanSummaryWithoutTransfers(t *testing.T) {
	t.Parallel()
	trip := models.Trip{Participants: []models.TripParticipant{{UserID: 1, Username: "alice"}}}
	plan := models.SettlementPlan{BaseCurrency: "KRW", TotalExpenses: decimal.NewFromInt(12000), ParticipantCount: 1}

	assert.Equal(t, "1 participant spent ₩12,000 in total; everyone is already even", PlanSummary(trip, plan))
}

func TestTripEndTrigger(t *testing.T) {
	t.Parallel()
	f := newFixture(t, models.SettlementTriggerTripEnd)
	ctx := context.Background()
	f.record(t, 1, "30", "USD")

	f.now = tripEnd.Add(15 * time.Hour)
	_, err := f.svc.ComputePlan(ctx, 1)
	assert.ErrorIs(t, err, settlement.ErrSettlementNotOpen)

	f.now = tripEnd.AddDate(0, 0, 1)
	res, err := f.svc.ComputePlan(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, res.Plan.Transactions, 2)
}

func TestNewExpenseInvalidatesPlan(t *testing.T) {
	t.Parallel()
	f := newFixture(t, models.SettlementTriggerManual)
	ctx := context.Background()

	f.record(t, 1, "90", "USD")
	res, err := f.svc.ComputePlan(ctx, 1)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, 1, res.Plan.Version, 1)
	require.NoError(t, err)

	e := f.record(t, 2, "12", "USD", 2, 3)

	_, err = f.svc.CurrentPlan(ctx, 1)
	assert.ErrorIs(t, err, settlement.ErrPlanInvalidated)
	_, err = f.svc.Confirm(ctx, 1, res.Plan.Version, 2)
	assert.ErrorIs(t, err, settlement.ErrPlanInvalidated)

	next, err := f.svc.ComputePlan(ctx, 1)
	require.NoError(t, err)
	assert.NotEqual(t, res.Plan.Version, next.Plan.Version)
	assert.Zero(t, next.Status.Confirmed)

	require.NoError(t, f.svc.DeleteExpense(ctx, 1, e.ID))
	status, err := f.svc.Status(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StateInvalidated, status.State)

	assert.ErrorIs(t, f.svc.DeleteExpense(ctx, 1, 999), models.ErrExpenseNotFound)
}

func TestReplaceExpense(t *testing.T) {
	t.Parallel()
	f := newFixture(t, models.SettlementTriggerManual)
	ctx := context.Background()

	e := f.record(t, 1, "90", "USD")
	e.Amount = decimal.NewFromInt(60)
	e.ParticipantIDs = []int{1, 2}

	_, err := f.svc.ReplaceExpense(ctx, 1, e)
	require.NoError(t, err)

	list, err := f.svc.ListExpenses(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Amount.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, []int{1, 2}, list[0].ParticipantIDs)
}

func TestFinalize(t *testing.T) {
	t.Parallel()
	f := newFixture(t, models.SettlementTriggerManual)
	ctx := context.Background()

	f.record(t, 1, "90", "USD")
	res, err := f.svc.ComputePlan(ctx, 1)
	require.NoError(t, err)
	version := res.Plan.Version

	_, err = f.svc.Finalize(ctx, 1, version, 1)
	assert.ErrorIs(t, err, settlement.ErrNotFullyConfirmed)

	_, err = f.svc.Finalize(ctx, 1, version, 9)
	assert.ErrorIs(t, err, ErrNotTripParticipant)

	for _, id := range []int{1, 2, 3} {
		_, err := f.svc.Confirm(ctx, 1, version, id)
		require.NoError(t, err)
	}

	status, err := f.svc.Finalize(ctx, 1, version, 2)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, status.State)
	assert.Equal(t, version, waitFor(t, f.notifier.done).Version)

	_, err = f.svc.Finalize(ctx, 1, version, 3)
	require.NoError(t, err)

	_, err = f.svc.RecordExpense(ctx, 1, models.ExpenseRecord{PayerID: 1, Amount: decimal.NewFromInt(5), Currency: "USD"})
	assert.ErrorIs(t, err, settlement.ErrSettlementCompleted)

	_, err = f.svc.ComputePlan(ctx, 1)
	assert.ErrorIs(t, err, settlement.ErrSettlementCompleted)
}

func TestComputePlanUsesRateProvider(t *testing.T) {
	t.Parallel()
	provider := &stubProvider{rates: map[string]decimal.Decimal{
		"EUR/2024-05-03": decimal.RequireFromString("1.5"),
	}}
	f := newFixture(t, models.SettlementTriggerManual, WithRateProvider(provider))
	ctx := context.Background()

	f.record(t, 1, "20", "EUR", 1, 2)
	f.record(t, 2, "10", "eur", 1, 2)

	res, err := f.svc.ComputePlan(ctx, 1)
	require.NoError(t, err)
	assert.True(t, res.Plan.TotalExpenses.Equal(decimal.NewFromInt(45)))
	assert.Equal(t, 1, provider.calls)

	stored, err := f.rates.RatesForTrip(ctx, 1)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "EUR", stored[0].Currency)

	rate, err := f.svc.LookupRate(ctx, 1, "eur", tripStart.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, 1, provider.calls)
}

func TestComputePlanFailsWithoutRate(t *testing.T) {
	t.Parallel()
	f := newFixture(t, models.SettlementTriggerManual, WithRateProvider(&stubProvider{}))
	ctx := context.Background()

	f.record(t, 1, "20", "JPY", 1, 2)

	_, err := f.svc.ComputePlan(ctx, 1)
	assert.ErrorIs(t, err, settlement.ErrRateUnavailable)

	_, err = f.svc.Status(ctx, 1)
	assert.ErrorIs(t, err, settlement.ErrNoActivePlan)
}

func TestRecordRateInvalidatesPlan(t *testing.T) {
	t.Parallel()
	f := newFixture(t, models.SettlementTriggerManual)
	ctx := context.Background()
	day := tripStart.AddDate(0, 0, 2)

	_, err := f.svc.RecordRate(ctx, models.ExchangeRate{TripID: 1, Currency: "gbp", Date: day, RateToBase: decimal.RequireFromString("1.25")})
	require.NoError(t, err)
	f.record(t, 1, "40", "GBP", 1, 2)

	first, err := f.svc.ComputePlan(ctx, 1)
	require.NoError(t, err)
	assert.True(t, first.Plan.TotalExpenses.Equal(decimal.NewFromInt(50)))

	_, err = f.svc.RecordRate(ctx, models.ExchangeRate{TripID: 1, Currency: "GBP", Date: day, RateToBase: decimal.RequireFromString("1.30")})
	require.NoError(t, err)

	_, err = f.svc.CurrentPlan(ctx, 1)
	assert.ErrorIs(t, err, settlement.ErrPlanInvalidated)

	second, err := f.svc.ComputePlan(ctx, 1)
	require.NoError(t, err)
	assert.True(t, second.Plan.TotalExpenses.Equal(decimal.NewFromInt(52)))
	assert.NotEqual(t, first.Plan.Version, second.Plan.Version)

	_, err = f.svc.RecordRate(ctx, models.ExchangeRate{TripID: 1, Currency: "GBP", Date: day})
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestConcurrentComputeSharesOnePlan(t *testing.T) {
	t.Parallel()
	f := newFixture(t, models.SettlementTriggerManual)
	ctx := context.Background()
	f.record(t, 1, "99.99", "USD")

	var wg sync.WaitGroup
	versions := make([]string, 8)
	for i := range versions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.ComputePlan(ctx, 1)
			if assert.NoError(t, err) {
				versions[i] = res.Plan.Version
			}
		}()
	}
	wg.Wait()

	for _, v := range versions {
		assert.Equal(t, versions[0], v)
	}
	waitFor(t, f.notifier.ready)
}

type gatedProvider struct {
	started chan struct{}
	release chan struct{}
	seen    chan error
}

func (p *gatedProvider) RateToBase(ctx context.Context, _, _ string, _ time.Time) (decimal.Decimal, error) {
	p.started <- struct{}{}
	select {
	case <-p.release:
		p.seen <- ctx.Err()
		return decimal.RequireFromString("1.1"), nil
	case <-ctx.Done():
		p.seen <- ctx.Err()
		return decimal.Zero, ctx.Err()
	}
}

func TestComputePlanSurvivesFirstCallerCancel(t *testing.T) {
	t.Parallel()
	provider := &gatedProvider{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
		seen:    make(chan error, 1),
	}
	f := newFixture(t, models.SettlementTriggerManual, WithRateProvider(provider))
	f.record(t, 1, "50", "EUR", 1, 2)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.svc.ComputePlan(first, 1)
		firstErr <- err
	}()
	<-provider.started

	second := make(chan *PlanResult, 1)
	go func() {
		res, err := f.svc.ComputePlan(context.Background(), 1)
		assert.NoError(t, err)
		second <- res
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(provider.release)
	assert.NoError(t, <-provider.seen)

	select {
	case res := <-second:
		require.NotNil(t, res)
		assert.Len(t, res.Plan.Transactions, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller never received the plan")
	}
}

func TestBudget(t *testing.T) {
	t.Parallel()
	f := newFixture(t, models.SettlementTriggerManual, WithBudgetStore(memstore.NewBudgets()))
	ctx := context.Background()

	_, err := f.svc.GetBudget(ctx, 1)
	assert.ErrorIs(t, err, models.ErrBudgetNotFound)

	b, err := f.svc.SetBudget(ctx, 1, decimal.NewFromInt(400))
	require.NoError(t, err)
	assert.Equal(t, "USD", b.BaseCurrency)

	got, err := f.svc.GetBudget(ctx, 1)
	require.NoError(t, err)
	assert.True(t, got.BudgetAmountBase.Equal(decimal.NewFromInt(400)))

	_, err = f.svc.SetBudget(ctx, 1, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, settlement.ErrInvalidBudget)
	_, err = f.svc.SetBudget(ctx, 1, decimal.RequireFromString("1.00001"))
	assert.ErrorIs(t, err, settlement.ErrAmountTooPrecise)
	_, err = f.svc.SetBudget(ctx, 9, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, models.ErrTripNotFound)
}

func TestBudgetSummary(t *testing.T) {
	t.Parallel()
	f := newFixture(t, models.SettlementTriggerManual, WithBudgetStore(memstore.NewBudgets()))
	ctx := context.Background()

	f.record(t, 1, "90", "USD", 1, 2, 3)
	_, err := f.svc.RecordExpense(ctx, 1, models.ExpenseRecord{
		PayerID:  2,
		Amount:   decimal.NewFromInt(30),
		Currency: "USD",
		Date:     tripStart,
		Category: "ticket",
	})
	require.NoError(t, err)
	_, err = f.svc.RecordExpense(ctx, 1, models.ExpenseRecord{
		PayerID:  3,
		Amount:   decimal.NewFromInt(80),
		Currency: "USD",
		Date:     tripStart,
	})
	require.NoError(t, err)

	_, err = f.svc.SetBudget(ctx, 1, decimal.NewFromInt(400))
	require.NoError(t, err)

	summary, err := f.svc.BudgetSummary(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TripID)
	assert.True(t, summary.TotalSpentBase.Equal(decimal.NewFromInt(200)))
	assert.True(t, summary.RemainingBase.Equal(decimal.NewFromInt(200)))
	assert.True(t, summary.FillRatio.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, summary.UncategorizedSpentBase.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, 1, summary.UncategorizedCount)
	require.Len(t, summary.Categories, 2)
	assert.Equal(t, "food", summary.Categories[0].Category)
	assert.True(t, summary.Categories[0].PercentageOfBudget.Equal(decimal.RequireFromString("22.5")))
	assert.Equal(t, "ticket", summary.Categories[1].Category)
}

func TestBudgetSummaryWithoutBudgetStore(t *testing.T) {
	t.Parallel()
	f := newFixture(t, models.SettlementTriggerManual)
	f.record(t, 1, "10", "USD", 1, 2)

	summary, err := f.svc.BudgetSummary(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, summary.BudgetAmountBase.IsZero())
	assert.True(t, summary.TotalSpentBase.Equal(decimal.NewFromInt(10)))

	_, err = f.svc.SetBudget(context.Background(), 1, decimal.NewFromInt(5))
	assert.ErrorIs(t, err, ErrBudgetsUnavailable)
}

func TestLatestRate(t *testing.T) {
	t.Parallel()
	provider := &stubProvider{rates: map[string]decimal.Decimal{
		"JPY/2024-05-12": decimal.RequireFromString("0.0064"),
	}}
	f := newFixture(t, models.SettlementTriggerManual, WithRateProvider(provider))
	ctx := context.Background()

	for _, r := range []models.ExchangeRate{
		{TripID: 1, Currency: "EUR", Date: tripStart, RateToBase: decimal.RequireFromString("1.08")},
		{TripID: 1, Currency: "EUR", Date: tripEnd, RateToBase: decimal.RequireFromString("1.09")},
		{TripID: 1, Currency: "EUR", Date: tripStart.AddDate(0, 0, 3), RateToBase: decimal.RequireFromString("1.07")},
	} {
		require.NoError(t, f.rates.UpsertRate(ctx, r))
	}

	latest, err := f.svc.LatestRate(ctx, 1, "eur")
	require.NoError(t, err)
	assert.Equal(t, tripEnd, latest.Date)
	assert.True(t, latest.RateToBase.Equal(decimal.RequireFromString("1.09")))

	base, err := f.svc.LatestRate(ctx, 1, "USD")
	require.NoError(t, err)
	assert.True(t, base.RateToBase.Equal(decimal.NewFromInt(1)))

	jpy, err := f.svc.LatestRate(ctx, 1, "JPY")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-12", jpy.Date.Format("2006-01-02"))
	assert.True(t, jpy.RateToBase.Equal(decimal.RequireFromString("0.0064")))

	_, err = f.svc.LatestRate(ctx, 1, "GBP")
	assert.ErrorIs(t, err, settlement.ErrRateUnavailable)
}

func TestListExpensesOn(t *testing.T) {
	t.Parallel()
	f := newFixture(t, models.SettlementTriggerManual)
	ctx := context.Background()

	onDay := f.record(t, 1, "10", "USD", 1, 2)
	_, err := f.svc.RecordExpense(ctx, 1, models.ExpenseRecord{PayerID: 2, Amount: decimal.NewFromInt(5), Currency: "USD", Date: tripEnd})
	require.NoError(t, err)

	list, err := f.svc.ListExpensesOn(ctx, 1, tripStart.AddDate(0, 0, 2).Add(15*time.Hour))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, onDay.ID, list[0].ID)

	list, err = f.svc.ListExpensesOn(ctx, 1, tripStart)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestIsMember(t *testing.T) {
	t.Parallel()
	f := newFixture(t, models.SettlementTriggerManual)

	ok, err := f.svc.IsMember(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.IsMember(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}
