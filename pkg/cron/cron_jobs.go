package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkmate/internal/repositories/sqlconnect"
	"checkmate/internal/services"
	"checkmate/internal/settlement"
	"checkmate/pkg/utils"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

type DueTripLister interface {
	TripsDueForSettlement(ctx context.Context, now time.Time) ([]int, error)
}

type PendingLister interface {
	PendingConfirmations(ctx context.Context) ([]sqlconnect.PendingConfirmation, error)
}

type PlanComputer interface {
	ComputePlan(ctx context.Context, tripID int) (*services.PlanResult, error)
}

type ReminderSender func(to, username, tripName string) error

// StartCronJob schedules the settlement jobs. A nil pending lister disables
// confirmation reminders.
func StartCronJob(trips DueTripLister, pending PendingLister, plans PlanComputer) *cron.Cron {
	c := cron.New()

	// Runs hourly: open settlement for trips that just ended
	_, err := c.AddFunc("0 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := ComputeDueSettlements(ctx, trips, plans, time.Now().UTC()); err != nil {
			utils.Logger.Errorf("Cron job failed to compute due settlements: %v", err)
		}
	})
	if err != nil {
		utils.Logger.Errorf("Failed to schedule settlement trigger job: %v", err)
	}

	if pending == nil {
		c.Start()
		utils.Logger.Info("Cron jobs started (trip-end settlement hourly, reminders disabled)")
		return c
	}

	// Runs daily at 09:00: remind participants who have not confirmed
	_, err = c.AddFunc("0 9 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
		defer cancel()
		if err := SendConfirmationReminders(ctx, pending, utils.SendConfirmationReminderEmail); err != nil {
			utils.Logger.Errorf("Cron job failed to send confirmation reminders: %v", err)
		}
	})
	if err != nil {
		utils.Logger.Errorf("Failed to schedule confirmation reminder job: %v", err)
	}

	c.Start()
	utils.Logger.Info("Cron jobs started (trip-end settlement hourly, confirmation reminders daily at 09:00)")
	return c
}

// -------------------------------------------------------------
// Compute plans for trips whose end date has passed
// -------------------------------------------------------------
func ComputeDueSettlements(ctx context.Context, trips DueTripLister, plans PlanComputer, now time.Time) error {
	ids, err := trips.TripsDueForSettlement(ctx, now)
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range ids {
		res, err := plans.ComputePlan(ctx, id)
		if err != nil {
			if errors.Is(err, settlement.ErrSettlementCompleted) || errors.Is(err, settlement.ErrSettlementNotOpen) {
				continue
			}
			errs = append(errs, fmt.Errorf("trip %d: %w", id, err))
			continue
		}
		utils.Logger.Infof("Opened settlement plan %s for trip %d with %d payments",
			res.Plan.Version, id, len(res.Plan.Transactions))
	}
	return errors.Join(errs...)
}

// -------------------------------------------------------------
// Send reminders to participants who have not confirmed
// -------------------------------------------------------------
func SendConfirmationReminders(ctx context.Context, pending PendingLister, send ReminderSender) error {
	list, err := pending.PendingConfirmations(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(10)

	for _, p := range list {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := send(p.Email, p.Username, p.TripName); err != nil {
				utils.Logger.Errorf("failed to send reminder email to %s: %v", p.Email, err)
				return nil
			}
			utils.Logger.Infof("📧 Sent confirmation reminder to %s for trip '%s'", p.Email, p.TripName)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	utils.Logger.Infof("✅ Finished sending %d confirmation reminders.", len(list))
	return nil
}
