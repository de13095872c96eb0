// Package memstore keeps confirmation rounds in process memory. It backs
// single-instance deployments and tests.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"checkmate/internal/models"
	"checkmate/internal/settlement"
)

type RoundStore struct {
	mu     sync.RWMutex
	rounds map[int]*models.ConfirmationRound
}

func NewRoundStore() *RoundStore {
	return &RoundStore{rounds: map[int]*models.ConfirmationRound{}}
}

func (s *RoundStore) LoadRound(_ context.Context, tripID int) (*models.ConfirmationRound, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rounds[tripID]
	if !ok {
		return nil, settlement.ErrNoActivePlan
	}
	return clone(r), nil
}

func (s *RoundStore) SaveRound(_ context.Context, round models.ConfirmationRound) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rounds[round.TripID] = clone(&round)
	return nil
}

func (s *RoundStore) MarkConfirmed(_ context.Context, tripID int, version string, participantID int, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.live(tripID, version)
	if err != nil {
		return false, err
	}

	for i := range r.Records {
		if r.Records[i].ParticipantID != participantID {
			continue
		}
		if r.Records[i].Confirmed {
			return false, nil
		}
		confirmedAt := at
		r.Records[i].Confirmed = true
		r.Records[i].ConfirmedAt = &confirmedAt
		return true, nil
	}
	return false, settlement.ErrUnknownParticipant
}

func (s *RoundStore) UpdateState(_ context.Context, tripID int, version string, from []models.ConfirmationState, to models.ConfirmationState, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rounds[tripID]
	if !ok || r.PlanVersion != version || !slices.Contains(from, r.State) {
		return settlement.ErrStalePlanVersion
	}
	r.State = to
	if to == models.StateCompleted {
		completedAt := at
		r.CompletedAt = &completedAt
	}
	return nil
}

func (s *RoundStore) DiscardRound(_ context.Context, tripID int, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rounds[tripID]
	if !ok || r.PlanVersion != version {
		return nil
	}
	r.Records = nil
	r.State = models.StateInvalidated
	return nil
}

// live returns the round when version is the trip's current, confirmable plan.
func (s *RoundStore) live(tripID int, version string) (*models.ConfirmationRound, error) {
	r, ok := s.rounds[tripID]
	switch {
	case !ok:
		return nil, settlement.ErrNoActivePlan
	case r.PlanVersion != version:
		return nil, settlement.ErrStalePlanVersion
	case r.State == models.StateInvalidated:
		return nil, settlement.ErrPlanInvalidated
	}
	return r, nil
}

func clone(r *models.ConfirmationRound) *models.ConfirmationRound {
	c := *r
	c.Records = slices.Clone(r.Records)
	for i, rec := range c.Records {
		if rec.ConfirmedAt != nil {
			at := *rec.ConfirmedAt
			c.Records[i].ConfirmedAt = &at
		}
	}
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		c.CompletedAt = &at
	}
	c.Plan.Transactions = slices.Clone(r.Plan.Transactions)
	c.Plan.Balances = slices.Clone(r.Plan.Balances)
	return &c
}
