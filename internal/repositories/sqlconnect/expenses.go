package sqlconnect

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"checkmate/internal/models"
	"checkmate/pkg/utils"

	"github.com/shopspring/decimal"
)

type ExpenseRepository struct {
	db *sql.DB
}

func NewExpenseRepository(db *sql.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

// ListByTrip returns the trip's expenses ordered by id, each with its
// participants in split order.
func (r *ExpenseRepository) ListByTrip(ctx context.Context, tripID int) ([]models.ExpenseRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, trip_id, payer_id, amount, currency, expense_date, description, category, created_at
		FROM expenses
		WHERE trip_id = ?
		ORDER BY id
	`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.ExpenseRecord
	index := map[int]int{}
	for rows.Next() {
		var e models.ExpenseRecord
		if err := rows.Scan(&e.ID, &e.TripID, &e.PayerID, &e.Amount, &e.Currency, &e.Date,
			&e.Description, &e.Category, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("error reading expenses: %w", err)
		}
		index[e.ID] = len(expenses)
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error finalizing expenses read: %w", err)
	}

	prows, err := r.db.QueryContext(ctx, `
		SELECT p.expense_id, p.user_id, p.weight
		FROM expense_participants p
		JOIN expenses e ON e.id = p.expense_id
		WHERE e.trip_id = ?
		ORDER BY p.expense_id, p.position
	`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve expense participants: %w", err)
	}
	defer prows.Close()

	for prows.Next() {
		var (
			expenseID, userID int
			weight            decimal.NullDecimal
		)
		if err := prows.Scan(&expenseID, &userID, &weight); err != nil {
			return nil, fmt.Errorf("error reading expense participants: %w", err)
		}
		i, ok := index[expenseID]
		if !ok {
			continue
		}
		e := &expenses[i]
		e.ParticipantIDs = append(e.ParticipantIDs, userID)
		if weight.Valid {
			if e.ShareWeights == nil {
				e.ShareWeights = map[int]decimal.Decimal{}
			}
			e.ShareWeights[userID] = weight.Decimal
		}
	}
	if err := prows.Err(); err != nil {
		return nil, fmt.Errorf("error finalizing expense participants read: %w", err)
	}

	return expenses, nil
}

func (r *ExpenseRepository) Insert(ctx context.Context, e models.ExpenseRecord) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, utils.ErrorHandler(err, "failed to start transaction")
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO expenses (trip_id, payer_id, amount, currency, expense_date, description, category, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		e.TripID, e.PayerID, e.Amount, e.Currency, e.Date.Format("2006-01-02"), e.Description, e.Category,
		time.Now().UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		tx.Rollback()
		return 0, utils.ErrorHandler(err, "failed to create expense")
	}

	id, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, utils.ErrorHandler(err, "failed to read expense id")
	}

	if err := insertParticipants(ctx, tx, int(id), e); err != nil {
		tx.Rollback()
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, utils.ErrorHandler(err, "failed to commit transaction")
	}
	return int(id), nil
}

// Replace overwrites an expense and its split. Expenses are never edited in
// place field by field.
func (r *ExpenseRepository) Replace(ctx context.Context, e models.ExpenseRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return utils.ErrorHandler(err, "failed to start transaction")
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE expenses SET payer_id = ?, amount = ?, currency = ?, expense_date = ?, description = ?, category = ? WHERE id = ? AND trip_id = ?",
		e.PayerID, e.Amount, e.Currency, e.Date.Format("2006-01-02"), e.Description, e.Category, e.ID, e.TripID)
	if err != nil {
		tx.Rollback()
		return utils.ErrorHandler(err, "failed to replace expense")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return models.ErrExpenseNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM expense_participants WHERE expense_id = ?", e.ID); err != nil {
		tx.Rollback()
		return utils.ErrorHandler(err, "failed to clear expense participants")
	}

	if err := insertParticipants(ctx, tx, e.ID, e); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return utils.ErrorHandler(err, "failed to commit transaction")
	}
	return nil
}

func (r *ExpenseRepository) Delete(ctx context.Context, tripID, expenseID int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return utils.ErrorHandler(err, "failed to start transaction")
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE id = ? AND trip_id = ?", expenseID, tripID)
	if err != nil {
		tx.Rollback()
		return utils.ErrorHandler(err, "failed to delete expense")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return models.ErrExpenseNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM expense_participants WHERE expense_id = ?", expenseID); err != nil {
		tx.Rollback()
		return utils.ErrorHandler(err, "failed to delete expense participants")
	}

	if err := tx.Commit(); err != nil {
		return utils.ErrorHandler(err, "failed to commit transaction")
	}
	return nil
}

func insertParticipants(ctx context.Context, tx *sql.Tx, expenseID int, e models.ExpenseRecord) error {
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO expense_participants (expense_id, user_id, position, weight) VALUES (?, ?, ?, ?)")
	if err != nil {
		return utils.ErrorHandler(err, "failed to prepare statement")
	}
	defer stmt.Close()

	for i, userID := range e.ParticipantIDs {
		var weight decimal.NullDecimal
		if w, ok := e.ShareWeights[userID]; ok {
			weight = decimal.NewNullDecimal(w)
		}
		if _, err := stmt.ExecContext(ctx, expenseID, userID, i, weight); err != nil {
			return utils.ErrorHandler(err, "failed to split expense")
		}
	}
	return nil
}
