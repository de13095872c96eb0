package models

import "errors"

var (
	ErrTripNotFound    = errors.New("trip not found")
	ErrExpenseNotFound = errors.New("expense not found")
	ErrBudgetNotFound  = errors.New("budget not set for this trip")
)
