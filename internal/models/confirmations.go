package models

import "time"

type ConfirmationState string

const (
	StateComputed           ConfirmationState = "computed"
	StatePartiallyConfirmed ConfirmationState = "partially_confirmed"
	StateFullyConfirmed     ConfirmationState = "fully_confirmed"
	StateCompleted          ConfirmationState = "completed"
	StateInvalidated        ConfirmationState = "invalidated"
)

// Terminal reports whether no further confirmations can change the state.
func (s ConfirmationState) Terminal() bool {
	return s == StateCompleted || s == StateInvalidated
}

type ConfirmationRecord struct {
	PlanVersion   string     `json:"plan_version" db:"plan_version"`
	ParticipantID int        `json:"participant_id" db:"participant_id"`
	Confirmed     bool       `json:"confirmed" db:"confirmed"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty" db:"confirmed_at"`
}

// ConfirmationRound is the confirmation set of one trip for one plan version.
type ConfirmationRound struct {
	TripID      int                  `json:"trip_id"`
	PlanVersion string               `json:"plan_version"`
	State       ConfirmationState    `json:"state"`
	Plan        SettlementPlan       `json:"plan"`
	Records     []ConfirmationRecord `json:"records"`
	OpenedAt    time.Time            `json:"opened_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
}

// AllConfirmed is the unanimous-agreement predicate.
func (r ConfirmationRound) AllConfirmed() bool {
	for _, rec := range r.Records {
		if !rec.Confirmed {
			return false
		}
	}
	return true
}

func (r ConfirmationRound) Record(participantID int) (ConfirmationRecord, bool) {
	for _, rec := range r.Records {
		if rec.ParticipantID == participantID {
			return rec, true
		}
	}
	return ConfirmationRecord{}, false
}

// Status derives the snapshot exposed to clients.
func (r ConfirmationRound) Status() ConfirmationStatus {
	status := ConfirmationStatus{
		TripID:       r.TripID,
		PlanVersion:  r.PlanVersion,
		State:        r.State,
		Required:     len(r.Records),
		Participants: make([]ParticipantConfirmation, 0, len(r.Records)),
	}
	for _, rec := range r.Records {
		if rec.Confirmed {
			status.Confirmed++
		}
		status.Participants = append(status.Participants, ParticipantConfirmation{
			ParticipantID: rec.ParticipantID,
			Confirmed:     rec.Confirmed,
			ConfirmedAt:   rec.ConfirmedAt,
		})
	}
	return status
}

type ParticipantConfirmation struct {
	ParticipantID int        `json:"participant_id"`
	Confirmed     bool       `json:"confirmed"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
}

type ConfirmationStatus struct {
	TripID       int                       `json:"trip_id"`
	PlanVersion  string                    `json:"plan_version"`
	State        ConfirmationState         `json:"state"`
	Confirmed    int                       `json:"confirmed"`
	Required     int                       `json:"required"`
	Participants []ParticipantConfirmation `json:"participants"`
}
