package sqlconnect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"checkmate/internal/models"
)

type TripRepository struct {
	db *sql.DB
}

func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{db: db}
}

func (r *TripRepository) GetTrip(ctx context.Context, tripID int) (*models.Trip, error) {
	var trip models.Trip
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, start_date, end_date, base_currency, settlement_trigger FROM trips WHERE id = ?", tripID).
		Scan(&trip.ID, &trip.Name, &trip.StartDate, &trip.EndDate, &trip.BaseCurrency, &trip.SettlementTrigger)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrTripNotFound
		}
		return nil, fmt.Errorf("failed to retrieve trip: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.email
		FROM trip_participants p
		JOIN users u ON p.user_id = u.id
		WHERE p.trip_id = ?
		ORDER BY p.joined_at, u.id
	`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trip participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.TripParticipant
		if err := rows.Scan(&p.UserID, &p.Username, &p.Email); err != nil {
			return nil, fmt.Errorf("error scanning trip participant: %w", err)
		}
		trip.Participants = append(trip.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading trip participants: %w", err)
	}

	return &trip, nil
}

// TripsDueForSettlement lists trips settled at trip end whose end date has
// passed and which have no live or completed settlement round.
func (r *TripRepository) TripsDueForSettlement(ctx context.Context, now time.Time) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id
		FROM trips t
		LEFT JOIN settlement_rounds s ON s.trip_id = t.id
		WHERE t.settlement_trigger = ? AND t.end_date < ?
		  AND (s.trip_id IS NULL OR s.state = ?)
	`, models.SettlementTriggerTripEnd, now.Format("2006-01-02"), string(models.StateInvalidated))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trips due for settlement: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning trip id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
