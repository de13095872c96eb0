package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"checkmate/internal/models"
	"checkmate/internal/settlement"
	"checkmate/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNotTripParticipant = errors.New("user is not a participant of this trip")
	ErrInvalidCategory    = errors.New("invalid expense category")
	ErrInvalidRate        = errors.New("rate must be greater than 0")
	ErrBudgetsUnavailable = errors.New("budget storage is not configured")
)

// maxOpenAttempts bounds recomputation when expenses keep arriving while a
// plan is being computed.
const maxOpenAttempts = 3

// Decimal places the expense store keeps for amounts and share weights.
// Anything finer would be rounded on write and could fail validation on
// the next read.
const (
	maxAmountPlaces = 4
	maxWeightPlaces = 6
)

// computeTimeout bounds a shared plan computation, which outlives the
// request that started it.
const computeTimeout = 30 * time.Second

const dateLayout = "2006-01-02"

type TripStore interface {
	GetTrip(ctx context.Context, tripID int) (*models.Trip, error)
}

type ExpenseStore interface {
	ListByTrip(ctx context.Context, tripID int) ([]models.ExpenseRecord, error)
	Insert(ctx context.Context, e models.ExpenseRecord) (int, error)
	Replace(ctx context.Context, e models.ExpenseRecord) error
	Delete(ctx context.Context, tripID, expenseID int) error
}

type RateStore interface {
	RatesForTrip(ctx context.Context, tripID int) ([]models.ExchangeRate, error)
	UpsertRate(ctx context.Context, rate models.ExchangeRate) error
}

// RateProvider is the external FX source consulted for rates the trip has
// not recorded yet.
type RateProvider interface {
	RateToBase(ctx context.Context, currency, base string, day time.Time) (decimal.Decimal, error)
}

type BudgetStore interface {
	GetBudget(ctx context.Context, tripID int) (*models.Budget, error)
	SetBudget(ctx context.Context, b models.Budget) error
}

type Notifier interface {
	PlanReady(trip models.Trip, plan models.SettlementPlan)
	SettlementCompleted(trip models.Trip, plan models.SettlementPlan)
}

// Transfer is a plan leg with the participants' names resolved.
type Transfer struct {
	FromUserID   int             `json:"from_user_id"`
	FromUsername string          `json:"from_username"`
	ToUserID     int             `json:"to_user_id"`
	ToUsername   string          `json:"to_username"`
	AmountBase   decimal.Decimal `json:"amount_base"`
}

type PlanResult struct {
	Plan      models.SettlementPlan     `json:"plan"`
	Status    models.ConfirmationStatus `json:"status"`
	Transfers []Transfer                `json:"transfers"`
	Summary   string                    `json:"summary"`
}

type SettlementService struct {
	trips       TripStore
	expenses    ExpenseStore
	rates       RateStore
	budgets     BudgetStore
	provider    RateProvider
	notifier    Notifier
	coordinator *settlement.Coordinator
	now         func() time.Time

	group singleflight.Group
}

type SettlementServiceOption func(*SettlementService)

func WithRateProvider(p RateProvider) SettlementServiceOption {
	return func(s *SettlementService) { s.provider = p }
}

func WithBudgetStore(b BudgetStore) SettlementServiceOption {
	return func(s *SettlementService) { s.budgets = b }
}

func WithNotifier(n Notifier) SettlementServiceOption {
	return func(s *SettlementService) { s.notifier = n }
}

func WithClock(now func() time.Time) SettlementServiceOption {
	return func(s *SettlementService) { s.now = now }
}

func NewSettlementService(trips TripStore, expenses ExpenseStore, rates RateStore, coordinator *settlement.Coordinator, opts ...SettlementServiceOption) *SettlementService {
	s := &SettlementService{
		trips:       trips,
		expenses:    expenses,
		rates:       rates,
		coordinator: coordinator,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordExpense validates and stores a new expense, invalidating the trip's
// live plan. Without an explicit participant list the expense is split
// across every trip participant.
func (s *SettlementService) RecordExpense(ctx context.Context, tripID int, e models.ExpenseRecord) (models.ExpenseRecord, error) {
	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return e, err
	}

	e.TripID = tripID
	if err := s.prepareExpense(trip, &e); err != nil {
		return e, err
	}

	err = s.coordinator.RecordAndInvalidate(ctx, tripID, settlement.InvalidationEvent{Reason: "expense recorded"}, func(ctx context.Context) error {
		id, err := s.expenses.Insert(ctx, e)
		if err != nil {
			return err
		}
		e.ID = id
		return nil
	})
	return e, err
}

// ReplaceExpense swaps an expense for a new version of it.
func (s *SettlementService) ReplaceExpense(ctx context.Context, tripID int, e models.ExpenseRecord) (models.ExpenseRecord, error) {
	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return e, err
	}

	e.TripID = tripID
	if err := s.prepareExpense(trip, &e); err != nil {
		return e, err
	}

	event := settlement.InvalidationEvent{ExpenseID: e.ID, Reason: "expense replaced"}
	err = s.coordinator.RecordAndInvalidate(ctx, tripID, event, func(ctx context.Context) error {
		return s.expenses.Replace(ctx, e)
	})
	return e, err
}

func (s *SettlementService) DeleteExpense(ctx context.Context, tripID, expenseID int) error {
	event := settlement.InvalidationEvent{ExpenseID: expenseID, Reason: "expense deleted"}
	return s.coordinator.RecordAndInvalidate(ctx, tripID, event, func(ctx context.Context) error {
		return s.expenses.Delete(ctx, tripID, expenseID)
	})
}

func (s *SettlementService) ListExpenses(ctx context.Context, tripID int) ([]models.ExpenseRecord, error) {
	return s.expenses.ListByTrip(ctx, tripID)
}

// ListExpensesOn returns the trip's expenses dated on the given calendar day.
func (s *SettlementService) ListExpensesOn(ctx context.Context, tripID int, day time.Time) ([]models.ExpenseRecord, error) {
	all, err := s.expenses.ListByTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}

	want := day.Format(dateLayout)
	out := []models.ExpenseRecord{}
	for _, e := range all {
		if e.Date.Format(dateLayout) == want {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *SettlementService) prepareExpense(trip *models.Trip, e *models.ExpenseRecord) error {
	code, err := settlement.NormalizeCurrency(e.Currency)
	if err != nil {
		return &settlement.ExpenseError{ExpenseID: e.ID, Err: err}
	}
	e.Currency = code

	if exceedsPlaces(e.Amount, maxAmountPlaces) {
		return &settlement.ExpenseError{ExpenseID: e.ID, Err: fmt.Errorf("%w: at most %d allowed", settlement.ErrAmountTooPrecise, maxAmountPlaces)}
	}
	for _, w := range e.ShareWeights {
		if exceedsPlaces(w, maxWeightPlaces) {
			return &settlement.ExpenseError{ExpenseID: e.ID, Err: fmt.Errorf("%w: at most %d allowed", settlement.ErrWeightTooPrecise, maxWeightPlaces)}
		}
	}

	if e.Category != "" && !models.ExpenseCategories[e.Category] {
		return &settlement.ExpenseError{ExpenseID: e.ID, Err: ErrInvalidCategory}
	}

	if len(e.ParticipantIDs) == 0 && e.ShareWeights == nil {
		e.ParticipantIDs = trip.ParticipantIDs()
	}
	if e.Date.IsZero() {
		e.Date = s.now()
	}

	if _, ok := trip.Participant(e.PayerID); !ok {
		return &settlement.ExpenseError{ExpenseID: e.ID, Err: ErrNotTripParticipant}
	}
	for _, id := range e.ParticipantIDs {
		if _, ok := trip.Participant(id); !ok {
			return &settlement.ExpenseError{ExpenseID: e.ID, Err: ErrNotTripParticipant}
		}
	}

	return settlement.ValidateExpense(*e)
}

func exceedsPlaces(d decimal.Decimal, places int32) bool {
	return !d.Equal(d.Truncate(places))
}

// ComputePlan derives the trip's settlement plan and opens it for
// confirmation. Concurrent calls for one trip share a single computation.
func (s *SettlementService) ComputePlan(ctx context.Context, tripID int) (*PlanResult, error) {
	ch := s.group.DoChan(strconv.Itoa(tripID), func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), computeTimeout)
		defer cancel()
		return s.computePlan(shared, tripID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*PlanResult), nil
	}
}

func (s *SettlementService) computePlan(ctx context.Context, tripID int) (*PlanResult, error) {
	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if err := s.settlementOpen(trip); err != nil {
		return nil, err
	}

	log := utils.Logger.WithFields(logrus.Fields{"trip_id": tripID})

	for attempt := 1; ; attempt++ {
		epoch := s.coordinator.Epoch(tripID)

		plan, err := s.buildPlan(ctx, trip)
		if err != nil {
			if errors.Is(err, settlement.ErrLedgerInconsistent) {
				log.WithError(err).Error("settlement halted for trip pending investigation")
			}
			return nil, err
		}

		prev, err := s.coordinator.Round(ctx, tripID)
		if err != nil && !errors.Is(err, settlement.ErrNoActivePlan) {
			log.WithError(err).Warn("failed to load previous settlement round")
		}
		reopened := prev != nil && prev.PlanVersion == plan.Version && prev.State != models.StateInvalidated

		status, err := s.coordinator.Open(ctx, *plan, epoch)
		if errors.Is(err, settlement.ErrStalePlanVersion) && attempt < maxOpenAttempts {
			log.Warn("expenses changed while computing settlement plan, recomputing")
			continue
		}
		if err != nil {
			return nil, err
		}

		if !reopened && s.notifier != nil {
			go s.notifier.PlanReady(*trip, *plan)
		}
		return newPlanResult(*trip, *plan, status), nil
	}
}

func (s *SettlementService) settlementOpen(trip *models.Trip) error {
	if trip.SettlementTrigger != models.SettlementTriggerTripEnd {
		return nil
	}
	if s.now().Before(trip.EndDate.AddDate(0, 0, 1)) {
		return fmt.Errorf("%w: trip ends on %s", settlement.ErrSettlementNotOpen, trip.EndDate.Format(dateLayout))
	}
	return nil
}

func (s *SettlementService) buildPlan(ctx context.Context, trip *models.Trip) (*models.SettlementPlan, error) {
	expenses, table, err := s.ledgerInputs(ctx, trip)
	if err != nil {
		return nil, err
	}

	return settlement.Compute(settlement.Input{
		TripID:       trip.ID,
		BaseCurrency: trip.BaseCurrency,
		Expenses:     expenses,
		Rates:        table,
		ComputedAt:   s.now(),
	})
}

func (s *SettlementService) ledgerInputs(ctx context.Context, trip *models.Trip) ([]models.ExpenseRecord, *settlement.RateTable, error) {
	expenses, err := s.expenses.ListByTrip(ctx, trip.ID)
	if err != nil {
		return nil, nil, err
	}

	table, err := s.rateTable(ctx, trip, expenses)
	if err != nil {
		return nil, nil, err
	}
	return expenses, table, nil
}

// rateTable loads the trip's recorded rates and fills gaps from the
// provider. A rate neither source knows leaves the gap, so the ledger build
// fails with ErrRateUnavailable.
func (s *SettlementService) rateTable(ctx context.Context, trip *models.Trip, expenses []models.ExpenseRecord) (*settlement.RateTable, error) {
	rates, err := s.rates.RatesForTrip(ctx, trip.ID)
	if err != nil {
		return nil, err
	}
	table := settlement.NewRateTable(trip.BaseCurrency, rates)

	if s.provider == nil {
		return table, nil
	}

	for _, e := range expenses {
		if _, err := table.RateToBase(e.Currency, e.Date); err == nil {
			continue
		}
		rate, err := s.provider.RateToBase(ctx, strings.ToUpper(e.Currency), strings.ToUpper(trip.BaseCurrency), e.Date)
		if err != nil {
			utils.Logger.WithFields(logrus.Fields{
				"trip_id":  trip.ID,
				"currency": e.Currency,
				"date":     e.Date.Format(dateLayout),
			}).WithError(err).Warn("exchange rate unavailable from provider")
			continue
		}
		table.Set(e.Currency, e.Date, rate)

		err = s.rates.UpsertRate(ctx, models.ExchangeRate{
			TripID:     trip.ID,
			Currency:   strings.ToUpper(e.Currency),
			Date:       e.Date,
			RateToBase: rate,
		})
		if err != nil {
			utils.Logger.WithError(err).Warn("failed to store provider exchange rate")
		}
	}
	return table, nil
}

func (s *SettlementService) CurrentPlan(ctx context.Context, tripID int) (*PlanResult, error) {
	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	round, err := s.coordinator.Round(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if round.State == models.StateInvalidated {
		return nil, settlement.ErrPlanInvalidated
	}
	return newPlanResult(*trip, round.Plan, round.Status()), nil
}

func newPlanResult(trip models.Trip, plan models.SettlementPlan, status models.ConfirmationStatus) *PlanResult {
	name := func(id int) string {
		if p, ok := trip.Participant(id); ok {
			return p.Username
		}
		return ""
	}

	transfers := make([]Transfer, 0, len(plan.Transactions))
	for _, tx := range plan.Transactions {
		transfers = append(transfers, Transfer{
			FromUserID:   tx.FromParticipantID,
			FromUsername: name(tx.FromParticipantID),
			ToUserID:     tx.ToParticipantID,
			ToUsername:   name(tx.ToParticipantID),
			AmountBase:   tx.Amount,
		})
	}

	return &PlanResult{
		Plan:      plan,
		Status:    status,
		Transfers: transfers,
		Summary:   PlanSummary(trip, plan),
	}
}

// PlanSummary describes the plan in one line, e.g. "3 participants spent
// $120.00 in total; 2 transfers settle the trip: carol pays alice $45.00,
// bob pays alice $15.00".
func PlanSummary(trip models.Trip, plan models.SettlementPlan) string {
	total := settlement.Display(plan.TotalExpenses, plan.BaseCurrency)
	who := "participants"
	if plan.ParticipantCount == 1 {
		who = "participant"
	}
	head := fmt.Sprintf("%d %s spent %s in total", plan.ParticipantCount, who, total)

	switch len(plan.Transactions) {
	case 0:
		return head + "; everyone is already even"
	case 1:
		return head + "; 1 transfer settles the trip: " + DescribeLegs(trip, plan)[0]
	default:
		return fmt.Sprintf("%s; %d transfers settle the trip: %s",
			head, len(plan.Transactions), strings.Join(DescribeLegs(trip, plan), ", "))
	}
}

func (s *SettlementService) Status(ctx context.Context, tripID int) (models.ConfirmationStatus, error) {
	return s.coordinator.Status(ctx, tripID)
}

func (s *SettlementService) Confirm(ctx context.Context, tripID int, version string, userID int) (models.ConfirmationStatus, error) {
	return s.coordinator.Confirm(ctx, tripID, version, userID)
}

// Finalize completes the settlement on behalf of a trip participant.
func (s *SettlementService) Finalize(ctx context.Context, tripID int, version string, userID int) (models.ConfirmationStatus, error) {
	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return models.ConfirmationStatus{}, err
	}
	if _, ok := trip.Participant(userID); !ok {
		return models.ConfirmationStatus{}, ErrNotTripParticipant
	}

	before, err := s.coordinator.Status(ctx, tripID)
	if err != nil {
		return models.ConfirmationStatus{}, err
	}

	status, err := s.coordinator.Finalize(ctx, tripID, version)
	if err != nil {
		return status, err
	}

	if before.State != models.StateCompleted && s.notifier != nil {
		if round, err := s.coordinator.Round(ctx, tripID); err == nil {
			go s.notifier.SettlementCompleted(*trip, round.Plan)
		}
	}
	return status, nil
}

// LookupRate returns the rate converting currency into the trip's base
// currency on day, consulting the provider when the trip has none recorded.
func (s *SettlementService) LookupRate(ctx context.Context, tripID int, currency string, day time.Time) (decimal.Decimal, error) {
	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return decimal.Zero, err
	}
	code, err := settlement.NormalizeCurrency(currency)
	if err != nil {
		return decimal.Zero, err
	}

	table, err := s.rateTable(ctx, trip, []models.ExpenseRecord{{Currency: code, Date: day}})
	if err != nil {
		return decimal.Zero, err
	}
	return table.RateToBase(code, day)
}

// LatestRate returns the most recent rate recorded for currency on the trip.
// When none is recorded the provider is asked for today's rate, which is
// then stored like any other provider rate.
func (s *SettlementService) LatestRate(ctx context.Context, tripID int, currency string) (models.ExchangeRate, error) {
	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return models.ExchangeRate{}, err
	}
	code, err := settlement.NormalizeCurrency(currency)
	if err != nil {
		return models.ExchangeRate{}, err
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if code == strings.ToUpper(trip.BaseCurrency) {
		return models.ExchangeRate{TripID: tripID, Currency: code, Date: today, RateToBase: decimal.NewFromInt(1)}, nil
	}

	rates, err := s.rates.RatesForTrip(ctx, tripID)
	if err != nil {
		return models.ExchangeRate{}, err
	}
	var latest *models.ExchangeRate
	for i, r := range rates {
		if strings.ToUpper(r.Currency) != code {
			continue
		}
		if latest == nil || r.Date.After(latest.Date) {
			latest = &rates[i]
		}
	}
	if latest != nil {
		return *latest, nil
	}

	rate, err := s.LookupRate(ctx, tripID, code, today)
	if err != nil {
		return models.ExchangeRate{}, err
	}
	return models.ExchangeRate{TripID: tripID, Currency: code, Date: today, RateToBase: rate}, nil
}

// RecordRate stores a manually entered rate. Rates feed the plan version, so
// the live plan is invalidated.
func (s *SettlementService) RecordRate(ctx context.Context, rate models.ExchangeRate) (models.ExchangeRate, error) {
	code, err := settlement.NormalizeCurrency(rate.Currency)
	if err != nil {
		return rate, err
	}
	if !rate.RateToBase.IsPositive() {
		return rate, ErrInvalidRate
	}
	if _, err := s.trips.GetTrip(ctx, rate.TripID); err != nil {
		return rate, err
	}
	rate.Currency = code

	event := settlement.InvalidationEvent{Reason: "exchange rate recorded"}
	err = s.coordinator.RecordAndInvalidate(ctx, rate.TripID, event, func(ctx context.Context) error {
		return s.rates.UpsertRate(ctx, rate)
	})
	return rate, err
}

// IsMember reports whether userID participates in the trip.
func (s *SettlementService) IsMember(ctx context.Context, tripID, userID int) (bool, error) {
	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return false, err
	}
	_, ok := trip.Participant(userID)
	return ok, nil
}

// GetBudget returns the trip's budget.
func (s *SettlementService) GetBudget(ctx context.Context, tripID int) (models.Budget, error) {
	if s.budgets == nil {
		return models.Budget{}, ErrBudgetsUnavailable
	}
	if _, err := s.trips.GetTrip(ctx, tripID); err != nil {
		return models.Budget{}, err
	}
	b, err := s.budgets.GetBudget(ctx, tripID)
	if err != nil {
		return models.Budget{}, err
	}
	return *b, nil
}

// SetBudget stores the trip's budget in its base currency. The budget does
// not feed the settlement plan, so the live plan stays valid.
func (s *SettlementService) SetBudget(ctx context.Context, tripID int, amount decimal.Decimal) (models.Budget, error) {
	if s.budgets == nil {
		return models.Budget{}, ErrBudgetsUnavailable
	}
	if amount.IsNegative() {
		return models.Budget{}, settlement.ErrInvalidBudget
	}
	if exceedsPlaces(amount, maxAmountPlaces) {
		return models.Budget{}, fmt.Errorf("%w: at most %d allowed", settlement.ErrAmountTooPrecise, maxAmountPlaces)
	}

	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return models.Budget{}, err
	}

	now := s.now()
	b := models.Budget{
		TripID:           tripID,
		BudgetAmountBase: amount,
		BaseCurrency:     strings.ToUpper(trip.BaseCurrency),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.budgets.SetBudget(ctx, b); err != nil {
		return models.Budget{}, utils.ErrorHandler(err, "failed to store budget")
	}

	utils.Logger.WithFields(logrus.Fields{
		"trip_id": tripID,
		"budget":  amount.String(),
	}).Info("trip budget updated")
	return b, nil
}

// BudgetSummary converts every expense of the trip to its base currency and
// compares the spending, overall and per category, with the budget. A trip
// without a budget is summarized against zero.
func (s *SettlementService) BudgetSummary(ctx context.Context, tripID int) (models.BudgetSummary, error) {
	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return models.BudgetSummary{}, err
	}

	budget := decimal.Zero
	if s.budgets != nil {
		b, err := s.budgets.GetBudget(ctx, tripID)
		switch {
		case err == nil:
			budget = b.BudgetAmountBase
		case !errors.Is(err, models.ErrBudgetNotFound):
			return models.BudgetSummary{}, err
		}
	}

	expenses, table, err := s.ledgerInputs(ctx, trip)
	if err != nil {
		return models.BudgetSummary{}, err
	}
	ledger, err := settlement.BuildLedger(trip.BaseCurrency, expenses, table)
	if err != nil {
		return models.BudgetSummary{}, err
	}

	summary := settlement.SummarizeBudget(ledger, budget)
	summary.TripID = tripID
	return summary, nil
}
