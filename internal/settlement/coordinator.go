package settlement

import (
	"context"
	"errors"
	"sync"
	"time"

	"checkmate/internal/models"
	"checkmate/pkg/utils"

	"github.com/sirupsen/logrus"
)

// RoundStore persists one confirmation round per trip. Writes that name a
// plan version must only apply while that version is the trip's round.
type RoundStore interface {
	// LoadRound returns ErrNoActivePlan when the trip has no round.
	LoadRound(ctx context.Context, tripID int) (*models.ConfirmationRound, error)
	// SaveRound replaces the trip's round and all of its records.
	SaveRound(ctx context.Context, round models.ConfirmationRound) error
	// MarkConfirmed atomically confirms a single participant of a live round.
	// It reports whether the record changed.
	MarkConfirmed(ctx context.Context, tripID int, version string, participantID int, at time.Time) (bool, error)
	// UpdateState moves the round from one of the given states to another,
	// failing with ErrStalePlanVersion when nothing matched.
	UpdateState(ctx context.Context, tripID int, version string, from []models.ConfirmationState, to models.ConfirmationState, at time.Time) error
	// DiscardRound drops every record of the version and marks it invalidated.
	DiscardRound(ctx context.Context, tripID int, version string) error
}

// InvalidationEvent describes the ledger change that made a plan stale.
type InvalidationEvent struct {
	ExpenseID int
	Reason    string
}

type tripLock struct {
	sync.Mutex
	epoch uint64
	refs  int
}

// Coordinator runs the per-trip confirmation state machine. Confirmations of
// different participants never block each other; state transitions and
// invalidations of one trip are serialized by the trip lock.
type Coordinator struct {
	store RoundStore
	now   func() time.Time

	mu    sync.Mutex
	trips map[int]*tripLock
	// gen numbers invalidations across all trips. An evicted trip lock is
	// recreated at the current gen, so an epoch read before the eviction
	// can never match it after an invalidation.
	gen uint64
}

func NewCoordinator(store RoundStore) *Coordinator {
	return &Coordinator{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		trips: map[int]*tripLock{},
	}
}

// acquire takes the trip lock, creating it on first use. Locks are dropped
// from the map once no caller holds or waits for them.
func (c *Coordinator) acquire(tripID int) *tripLock {
	c.mu.Lock()
	l, ok := c.trips[tripID]
	if !ok {
		l = &tripLock{epoch: c.gen}
		c.trips[tripID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.Lock()
	return l
}

func (c *Coordinator) release(tripID int, l *tripLock) {
	l.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(c.trips, tripID)
	}
}

func (c *Coordinator) bumpEpoch(l *tripLock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	l.epoch = c.gen
}

// Epoch changes whenever the trip is invalidated. Read it before loading
// the expenses a plan is computed from and pass it to Open.
func (c *Coordinator) Epoch(tripID int) uint64 {
	l := c.acquire(tripID)
	defer c.release(tripID, l)
	return l.epoch
}

// Open starts confirmations for a freshly computed plan. Reopening the live
// version keeps existing confirmations.
func (c *Coordinator) Open(ctx context.Context, plan models.SettlementPlan, epoch uint64) (models.ConfirmationStatus, error) {
	l := c.acquire(plan.TripID)
	defer c.release(plan.TripID, l)

	if l.epoch != epoch {
		return models.ConfirmationStatus{}, ErrStalePlanVersion
	}

	current, err := c.store.LoadRound(ctx, plan.TripID)
	if err != nil && !errors.Is(err, ErrNoActivePlan) {
		return models.ConfirmationStatus{}, err
	}
	if current != nil {
		if current.State == models.StateCompleted {
			return current.Status(), ErrSettlementCompleted
		}
		if current.PlanVersion == plan.Version && current.State != models.StateInvalidated {
			return current.Status(), nil
		}
	}

	round := models.ConfirmationRound{
		TripID:      plan.TripID,
		PlanVersion: plan.Version,
		State:       models.StateComputed,
		Plan:        plan,
		OpenedAt:    c.now(),
	}
	for _, id := range plan.ReferencedParticipants() {
		round.Records = append(round.Records, models.ConfirmationRecord{
			PlanVersion:   plan.Version,
			ParticipantID: id,
		})
	}
	if len(round.Records) == 0 {
		round.State = models.StateFullyConfirmed
	}

	if err := c.store.SaveRound(ctx, round); err != nil {
		return models.ConfirmationStatus{}, utils.ErrorHandler(err, "failed to save confirmation round")
	}

	utils.Logger.WithFields(logrus.Fields{
		"trip_id":      plan.TripID,
		"plan_version": plan.Version,
		"legs":         len(plan.Transactions),
	}).Info("settlement plan opened for confirmation")

	return round.Status(), nil
}

// Confirm records participantID's agreement to the given plan version.
// Confirming twice is a no-op.
func (c *Coordinator) Confirm(ctx context.Context, tripID int, version string, participantID int) (models.ConfirmationStatus, error) {
	changed, err := c.store.MarkConfirmed(ctx, tripID, version, participantID, c.now())
	if err != nil {
		return models.ConfirmationStatus{}, err
	}

	l := c.acquire(tripID)
	defer c.release(tripID, l)

	round, err := c.store.LoadRound(ctx, tripID)
	if err != nil {
		return models.ConfirmationStatus{}, err
	}
	if round.PlanVersion != version {
		return round.Status(), ErrStalePlanVersion
	}
	if round.State == models.StateInvalidated {
		return round.Status(), ErrPlanInvalidated
	}
	// The same version may have been invalidated and reopened since
	// MarkConfirmed ran, which discards the record.
	if rec, ok := round.Record(participantID); !ok || !rec.Confirmed {
		return round.Status(), ErrPlanInvalidated
	}

	next := round.State
	switch round.State {
	case models.StateComputed, models.StatePartiallyConfirmed:
		next = stateFor(round.Status())
	}
	if next != round.State {
		if err := c.store.UpdateState(ctx, tripID, version, []models.ConfirmationState{round.State}, next, c.now()); err != nil {
			return models.ConfirmationStatus{}, err
		}
		round.State = next
	}

	if changed {
		utils.Logger.WithFields(logrus.Fields{
			"trip_id":        tripID,
			"plan_version":   version,
			"participant_id": participantID,
			"state":          round.State,
		}).Info("settlement plan confirmed by participant")
	}

	return round.Status(), nil
}

func stateFor(status models.ConfirmationStatus) models.ConfirmationState {
	switch {
	case status.Confirmed == 0:
		return models.StateComputed
	case status.Confirmed == status.Required:
		return models.StateFullyConfirmed
	default:
		return models.StatePartiallyConfirmed
	}
}

// Finalize completes a fully confirmed plan. Finalizing a completed plan
// again succeeds without effect.
func (c *Coordinator) Finalize(ctx context.Context, tripID int, version string) (models.ConfirmationStatus, error) {
	l := c.acquire(tripID)
	defer c.release(tripID, l)

	round, err := c.store.LoadRound(ctx, tripID)
	if err != nil {
		return models.ConfirmationStatus{}, err
	}
	if round.PlanVersion != version {
		return round.Status(), ErrStalePlanVersion
	}

	switch round.State {
	case models.StateCompleted:
		return round.Status(), nil
	case models.StateInvalidated:
		return round.Status(), ErrPlanInvalidated
	case models.StateFullyConfirmed:
	default:
		return round.Status(), ErrNotFullyConfirmed
	}

	if err := c.store.UpdateState(ctx, tripID, version, []models.ConfirmationState{models.StateFullyConfirmed}, models.StateCompleted, c.now()); err != nil {
		return models.ConfirmationStatus{}, err
	}
	round.State = models.StateCompleted

	utils.Logger.WithFields(logrus.Fields{
		"trip_id":      tripID,
		"plan_version": version,
	}).Info("settlement completed")

	return round.Status(), nil
}

// Invalidate discards every confirmation of the trip's live plan. It always
// succeeds; a completed settlement is frozen and left untouched.
func (c *Coordinator) Invalidate(ctx context.Context, tripID int, event InvalidationEvent) error {
	l := c.acquire(tripID)
	defer c.release(tripID, l)

	return c.invalidateLocked(ctx, l, tripID, event)
}

// RecordAndInvalidate applies a ledger change and invalidates the live plan
// as one step with respect to Confirm, Finalize and Open. The change is
// rejected once the trip's settlement is completed.
func (c *Coordinator) RecordAndInvalidate(ctx context.Context, tripID int, event InvalidationEvent, record func(context.Context) error) error {
	l := c.acquire(tripID)
	defer c.release(tripID, l)

	round, err := c.store.LoadRound(ctx, tripID)
	if err != nil && !errors.Is(err, ErrNoActivePlan) {
		return err
	}
	if round != nil && round.State == models.StateCompleted {
		return ErrSettlementCompleted
	}

	if err := record(ctx); err != nil {
		return err
	}
	return c.invalidateLocked(ctx, l, tripID, event)
}

func (c *Coordinator) invalidateLocked(ctx context.Context, l *tripLock, tripID int, event InvalidationEvent) error {
	c.bumpEpoch(l)

	round, err := c.store.LoadRound(ctx, tripID)
	if errors.Is(err, ErrNoActivePlan) {
		return nil
	}
	if err != nil {
		return err
	}
	if round.State.Terminal() {
		return nil
	}

	if err := c.store.DiscardRound(ctx, tripID, round.PlanVersion); err != nil {
		return utils.ErrorHandler(err, "failed to discard confirmations")
	}

	utils.Logger.WithFields(logrus.Fields{
		"trip_id":      tripID,
		"plan_version": round.PlanVersion,
		"expense_id":   event.ExpenseID,
		"reason":       event.Reason,
	}).Info("settlement plan invalidated")

	return nil
}

// Status returns a consistent snapshot of the trip's confirmation round.
func (c *Coordinator) Status(ctx context.Context, tripID int) (models.ConfirmationStatus, error) {
	round, err := c.store.LoadRound(ctx, tripID)
	if err != nil {
		return models.ConfirmationStatus{}, err
	}
	return round.Status(), nil
}

// Round returns the trip's current round including its plan.
func (c *Coordinator) Round(ctx context.Context, tripID int) (*models.ConfirmationRound, error) {
	return c.store.LoadRound(ctx, tripID)
}
