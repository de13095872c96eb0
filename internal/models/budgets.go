package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Budget is the spending target of a trip, in its base currency.
type Budget struct {
	TripID           int             `json:"trip_id" db:"trip_id"`
	BudgetAmountBase decimal.Decimal `json:"budget_amount_base" db:"budget_amount_base"`
	BaseCurrency     string          `json:"base_currency" db:"base_currency"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

type BudgetCategoryItem struct {
	Category           string          `json:"category"`
	SpentAmountBase    decimal.Decimal `json:"spent_amount_base"`
	ExpenseCount       int             `json:"expense_count"`
	PercentageOfTotal  decimal.Decimal `json:"percentage_of_total"`
	PercentageOfBudget decimal.Decimal `json:"percentage_of_budget"`
}

// BudgetSummary compares what a trip spent with its budget. Expenses
// without a category are reported apart from Categories.
type BudgetSummary struct {
	TripID                 int                  `json:"trip_id"`
	BudgetAmountBase       decimal.Decimal      `json:"budget_amount_base"`
	TotalSpentBase         decimal.Decimal      `json:"total_spent_base"`
	RemainingBase          decimal.Decimal      `json:"remaining_base"`
	FillRatio              decimal.Decimal      `json:"fill_ratio"`
	BaseCurrency           string               `json:"base_currency"`
	Categories             []BudgetCategoryItem `json:"categories"`
	UncategorizedSpentBase decimal.Decimal      `json:"uncategorized_spent_base"`
	UncategorizedCount     int                  `json:"uncategorized_count"`
}
