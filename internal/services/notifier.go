package services

import (
	"fmt"

	"checkmate/internal/models"
	"checkmate/internal/settlement"
	"checkmate/pkg/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// MailNotifier emails every trip participant about settlement progress.
type MailNotifier struct {
	send func(to, username, tripName string, legs []string) error
	done func(to, username, tripName string, legs []string) error
}

func NewMailNotifier() *MailNotifier {
	return &MailNotifier{
		send: utils.SendPlanReadyEmail,
		done: utils.SendSettlementCompletedEmail,
	}
}

func (n *MailNotifier) PlanReady(trip models.Trip, plan models.SettlementPlan) {
	n.broadcast(trip, plan, n.send, "plan ready")
}

func (n *MailNotifier) SettlementCompleted(trip models.Trip, plan models.SettlementPlan) {
	n.broadcast(trip, plan, n.done, "settlement completed")
}

func (n *MailNotifier) broadcast(trip models.Trip, plan models.SettlementPlan, send func(to, username, tripName string, legs []string) error, kind string) {
	legs := DescribeLegs(trip, plan)

	var g errgroup.Group
	g.SetLimit(5)
	for _, p := range trip.Participants {
		if p.Email == "" {
			continue
		}
		g.Go(func() error {
			if err := send(p.Email, p.Username, trip.Name, legs); err != nil {
				return fmt.Errorf("failed to send %s email to %s: %w", kind, p.Email, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		utils.Logger.WithFields(logrus.Fields{
			"trip_id":      trip.ID,
			"plan_version": plan.Version,
		}).WithError(err).Error("settlement notification failed")
	}
}

// DescribeLegs renders each payment as "alice pays bob ₩45,000".
func DescribeLegs(trip models.Trip, plan models.SettlementPlan) []string {
	name := func(id int) string {
		if p, ok := trip.Participant(id); ok && p.Username != "" {
			return p.Username
		}
		return fmt.Sprintf("participant %d", id)
	}

	legs := make([]string, 0, len(plan.Transactions))
	for _, tx := range plan.Transactions {
		legs = append(legs, fmt.Sprintf("%s pays %s %s",
			name(tx.FromParticipantID), name(tx.ToParticipantID), settlement.Display(tx.Amount, plan.BaseCurrency)))
	}
	return legs
}
