package models

import "time"

const (
	SettlementTriggerTripEnd = "tripEnd"
	SettlementTriggerManual  = "manual"
)

type Trip struct {
	ID                int               `json:"id,omitempty" db:"id,omitempty"`
	Name              string            `json:"name,omitempty" db:"name,omitempty"`
	StartDate         time.Time         `json:"start_date" db:"start_date"`
	EndDate           time.Time         `json:"end_date" db:"end_date"`
	BaseCurrency      string            `json:"base_currency,omitempty" db:"base_currency,omitempty"`
	SettlementTrigger string            `json:"settlement_trigger,omitempty" db:"settlement_trigger,omitempty"`
	Participants      []TripParticipant `json:"participants,omitempty"`
}

type TripParticipant struct {
	UserID   int    `json:"user_id,omitempty" db:"user_id,omitempty"`
	Username string `json:"username,omitempty" db:"username,omitempty"`
	Email    string `json:"email,omitempty" db:"email,omitempty"`
}

// ParticipantIDs returns the trip's participant ids in membership order.
func (t Trip) ParticipantIDs() []int {
	ids := make([]int, 0, len(t.Participants))
	for _, p := range t.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// Participant looks up a participant by user id.
func (t Trip) Participant(userID int) (TripParticipant, bool) {
	for _, p := range t.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return TripParticipant{}, false
}
