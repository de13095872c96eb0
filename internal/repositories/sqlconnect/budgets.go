package sqlconnect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"checkmate/internal/models"
)

type BudgetRepository struct {
	db *sql.DB
}

func NewBudgetRepository(db *sql.DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

func (r *BudgetRepository) GetBudget(ctx context.Context, tripID int) (*models.Budget, error) {
	var b models.Budget
	err := r.db.QueryRowContext(ctx, `
		SELECT b.trip_id, b.budget_amount_base, t.base_currency, b.created_at, b.updated_at
		FROM trip_budgets b
		JOIN trips t ON t.id = b.trip_id
		WHERE b.trip_id = ?
	`, tripID).Scan(&b.TripID, &b.BudgetAmountBase, &b.BaseCurrency, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrBudgetNotFound
		}
		return nil, fmt.Errorf("failed to retrieve budget: %w", err)
	}
	return &b, nil
}

func (r *BudgetRepository) SetBudget(ctx context.Context, b models.Budget) error {
	now := time.Now().UTC().Format("2006-01-02 15:04:05")
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trip_budgets (trip_id, budget_amount_base, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE budget_amount_base = VALUES(budget_amount_base), updated_at = VALUES(updated_at)
	`, b.TripID, b.BudgetAmountBase, now, now)
	if err != nil {
		return fmt.Errorf("failed to save budget: %w", err)
	}
	return nil
}
