package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"checkmate/internal/models"
)

// Trips is an in-memory trip directory.
type Trips struct {
	mu    sync.RWMutex
	trips map[int]models.Trip
}

func NewTrips(trips ...models.Trip) *Trips {
	t := &Trips{trips: map[int]models.Trip{}}
	for _, trip := range trips {
		t.Put(trip)
	}
	return t
}

func (t *Trips) Put(trip models.Trip) {
	t.mu.Lock()
	defer t.mu.Unlock()
	trip.Participants = slices.Clone(trip.Participants)
	t.trips[trip.ID] = trip
}

func (t *Trips) GetTrip(_ context.Context, tripID int) (*models.Trip, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	trip, ok := t.trips[tripID]
	if !ok {
		return nil, models.ErrTripNotFound
	}
	trip.Participants = slices.Clone(trip.Participants)
	return &trip, nil
}

// Expenses is an in-memory expense store assigning sequential ids.
type Expenses struct {
	mu       sync.RWMutex
	nextID   int
	expenses map[int]models.ExpenseRecord
}

func NewExpenses() *Expenses {
	return &Expenses{nextID: 1, expenses: map[int]models.ExpenseRecord{}}
}

func (s *Expenses) ListByTrip(_ context.Context, tripID int) ([]models.ExpenseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.ExpenseRecord
	for _, id := range slices.Sorted(maps.Keys(s.expenses)) {
		if e := s.expenses[id]; e.TripID == tripID {
			out = append(out, copyExpense(e))
		}
	}
	return out, nil
}

func (s *Expenses) Insert(_ context.Context, e models.ExpenseRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = s.nextID
	s.nextID++
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.expenses[e.ID] = copyExpense(e)
	return e.ID, nil
}

func (s *Expenses) Replace(_ context.Context, e models.ExpenseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.expenses[e.ID]
	if !ok || old.TripID != e.TripID {
		return models.ErrExpenseNotFound
	}
	e.CreatedAt = old.CreatedAt
	s.expenses[e.ID] = copyExpense(e)
	return nil
}

func (s *Expenses) Delete(_ context.Context, tripID, expenseID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.expenses[expenseID]
	if !ok || e.TripID != tripID {
		return models.ErrExpenseNotFound
	}
	delete(s.expenses, expenseID)
	return nil
}

func copyExpense(e models.ExpenseRecord) models.ExpenseRecord {
	e.ParticipantIDs = slices.Clone(e.ParticipantIDs)
	if e.ShareWeights != nil {
		e.ShareWeights = maps.Clone(e.ShareWeights)
	}
	return e
}

// Rates is an in-memory exchange-rate store.
type Rates struct {
	mu    sync.RWMutex
	rates []models.ExchangeRate
}

func NewRates(rates ...models.ExchangeRate) *Rates {
	return &Rates{rates: slices.Clone(rates)}
}

func (s *Rates) RatesForTrip(_ context.Context, tripID int) ([]models.ExchangeRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.ExchangeRate
	for _, r := range s.rates {
		if r.TripID == tripID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Rates) UpsertRate(_ context.Context, rate models.ExchangeRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := rate.Date.Format("2006-01-02")
	for i, r := range s.rates {
		if r.TripID == rate.TripID && r.Currency == rate.Currency && r.Date.Format("2006-01-02") == day {
			s.rates[i].RateToBase = rate.RateToBase
			return nil
		}
	}
	s.rates = append(s.rates, rate)
	return nil
}

// Budgets is an in-memory trip budget store.
type Budgets struct {
	mu      sync.RWMutex
	budgets map[int]models.Budget
}

func NewBudgets() *Budgets {
	return &Budgets{budgets: map[int]models.Budget{}}
}

func (s *Budgets) GetBudget(_ context.Context, tripID int) (*models.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.budgets[tripID]
	if !ok {
		return nil, models.ErrBudgetNotFound
	}
	return &b, nil
}

// SetBudget keeps the creation time of an existing budget.
func (s *Budgets) SetBudget(_ context.Context, b models.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.budgets[b.TripID]; ok {
		b.CreatedAt = prev.CreatedAt
	}
	s.budgets[b.TripID] = b
	return nil
}
