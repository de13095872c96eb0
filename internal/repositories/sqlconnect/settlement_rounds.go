package sqlconnect

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkmate/internal/models"
	"checkmate/internal/settlement"
	"checkmate/pkg/utils"
)

const timeLayout = "2006-01-02 15:04:05"

// RoundRepository is the MySQL confirmation store. Confirmations take a
// shared lock on the round row so they never block each other, while
// invalidation and state changes need the exclusive lock.
type RoundRepository struct {
	db *sql.DB
}

func NewRoundRepository(db *sql.DB) *RoundRepository {
	return &RoundRepository{db: db}
}

func (r *RoundRepository) LoadRound(ctx context.Context, tripID int) (*models.ConfirmationRound, error) {
	var (
		round       models.ConfirmationRound
		state       string
		planJSON    []byte
		completedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT trip_id, plan_version, state, plan_json, opened_at, completed_at FROM settlement_rounds WHERE trip_id = ?", tripID).
		Scan(&round.TripID, &round.PlanVersion, &state, &planJSON, &round.OpenedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, settlement.ErrNoActivePlan
		}
		return nil, fmt.Errorf("failed to retrieve settlement round: %w", err)
	}
	round.State = models.ConfirmationState(state)
	if completedAt.Valid {
		at := completedAt.Time
		round.CompletedAt = &at
	}
	if err := json.Unmarshal(planJSON, &round.Plan); err != nil {
		return nil, fmt.Errorf("failed to decode settlement plan: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT participant_id, confirmed, confirmed_at
		FROM settlement_confirmations
		WHERE trip_id = ? AND plan_version = ?
		ORDER BY participant_id
	`, tripID, round.PlanVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve confirmations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec := models.ConfirmationRecord{PlanVersion: round.PlanVersion}
		var confirmedAt sql.NullTime
		if err := rows.Scan(&rec.ParticipantID, &rec.Confirmed, &confirmedAt); err != nil {
			return nil, fmt.Errorf("error reading confirmations: %w", err)
		}
		if confirmedAt.Valid {
			at := confirmedAt.Time
			rec.ConfirmedAt = &at
		}
		round.Records = append(round.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error finalizing confirmations read: %w", err)
	}

	return &round, nil
}

func (r *RoundRepository) SaveRound(ctx context.Context, round models.ConfirmationRound) error {
	planJSON, err := json.Marshal(round.Plan)
	if err != nil {
		return fmt.Errorf("failed to encode settlement plan: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return utils.ErrorHandler(err, "failed to start transaction")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO settlement_rounds (trip_id, plan_version, state, plan_json, opened_at, completed_at)
		VALUES (?, ?, ?, ?, ?, NULL)
		ON DUPLICATE KEY UPDATE plan_version = VALUES(plan_version), state = VALUES(state),
			plan_json = VALUES(plan_json), opened_at = VALUES(opened_at), completed_at = NULL
	`, round.TripID, round.PlanVersion, string(round.State), planJSON, round.OpenedAt.UTC().Format(timeLayout))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to save settlement round: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM settlement_confirmations WHERE trip_id = ?", round.TripID); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to clear confirmations: %w", err)
	}

	if len(round.Records) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO settlement_confirmations (trip_id, plan_version, participant_id, confirmed) VALUES (?, ?, ?, FALSE)")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, rec := range round.Records {
			if _, err := stmt.ExecContext(ctx, round.TripID, round.PlanVersion, rec.ParticipantID); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to create confirmation: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return utils.ErrorHandler(err, "failed to commit transaction")
	}
	return nil
}

func (r *RoundRepository) MarkConfirmed(ctx context.Context, tripID int, version string, participantID int, at time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, utils.ErrorHandler(err, "failed to start transaction")
	}
	defer tx.Rollback()

	var currentVersion, state string
	err = tx.QueryRowContext(ctx,
		"SELECT plan_version, state FROM settlement_rounds WHERE trip_id = ? LOCK IN SHARE MODE", tripID).
		Scan(&currentVersion, &state)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, settlement.ErrNoActivePlan
		}
		return false, fmt.Errorf("failed to retrieve settlement round: %w", err)
	}
	if currentVersion != version {
		return false, settlement.ErrStalePlanVersion
	}
	if models.ConfirmationState(state) == models.StateInvalidated {
		return false, settlement.ErrPlanInvalidated
	}

	var confirmed bool
	err = tx.QueryRowContext(ctx,
		"SELECT confirmed FROM settlement_confirmations WHERE trip_id = ? AND plan_version = ? AND participant_id = ? FOR UPDATE",
		tripID, version, participantID).Scan(&confirmed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, settlement.ErrUnknownParticipant
		}
		return false, fmt.Errorf("failed to retrieve confirmation: %w", err)
	}
	if confirmed {
		return false, nil
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE settlement_confirmations SET confirmed = TRUE, confirmed_at = ? WHERE trip_id = ? AND plan_version = ? AND participant_id = ?",
		at.UTC().Format(timeLayout), tripID, version, participantID)
	if err != nil {
		return false, fmt.Errorf("failed to confirm settlement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, utils.ErrorHandler(err, "failed to commit transaction")
	}
	return true, nil
}

func (r *RoundRepository) UpdateState(ctx context.Context, tripID int, version string, from []models.ConfirmationState, to models.ConfirmationState, at time.Time) error {
	if len(from) == 0 {
		return settlement.ErrStalePlanVersion
	}

	args := []any{string(to)}
	query := "UPDATE settlement_rounds SET state = ?"
	if to == models.StateCompleted {
		query += ", completed_at = ?"
		args = append(args, at.UTC().Format(timeLayout))
	}
	query += " WHERE trip_id = ? AND plan_version = ? AND state IN (?" + strings.Repeat(", ?", len(from)-1) + ")"
	args = append(args, tripID, version)
	for _, s := range from {
		args = append(args, string(s))
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update settlement state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update settlement state: %w", err)
	}
	if n == 0 {
		return settlement.ErrStalePlanVersion
	}
	return nil
}

func (r *RoundRepository) DiscardRound(ctx context.Context, tripID int, version string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return utils.ErrorHandler(err, "failed to start transaction")
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE settlement_rounds SET state = ? WHERE trip_id = ? AND plan_version = ?",
		string(models.StateInvalidated), tripID, version)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to invalidate settlement round: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM settlement_confirmations WHERE trip_id = ? AND plan_version = ?", tripID, version)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to discard confirmations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return utils.ErrorHandler(err, "failed to commit transaction")
	}
	return nil
}

// PendingConfirmation is a participant who has not yet agreed to the live
// plan of a trip.
type PendingConfirmation struct {
	TripID        int
	TripName      string
	PlanVersion   string
	ParticipantID int
	Email         string
	Username      string
}

func (r *RoundRepository) PendingConfirmations(ctx context.Context) ([]PendingConfirmation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.trip_id, t.name, c.plan_version, c.participant_id, u.email, u.username
		FROM settlement_confirmations c
		JOIN settlement_rounds s ON s.trip_id = c.trip_id AND s.plan_version = c.plan_version
		JOIN trips t ON t.id = c.trip_id
		JOIN users u ON u.id = c.participant_id
		WHERE c.confirmed = FALSE AND s.state IN (?, ?)
		ORDER BY c.trip_id, c.participant_id
	`, string(models.StateComputed), string(models.StatePartiallyConfirmed))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending confirmations: %w", err)
	}
	defer rows.Close()

	var pending []PendingConfirmation
	for rows.Next() {
		var p PendingConfirmation
		if err := rows.Scan(&p.TripID, &p.TripName, &p.PlanVersion, &p.ParticipantID, &p.Email, &p.Username); err != nil {
			return nil, fmt.Errorf("error scanning pending confirmation: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}
