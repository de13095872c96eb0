package settlement

import (
	"errors"
	"sort"

	"checkmate/internal/models"

	"github.com/shopspring/decimal"
)

var ErrInvalidBudget = errors.New("budget must not be negative")

var hundred = decimal.NewFromInt(100)

// SummarizeBudget breaks the ledger's spending down by category and
// compares it with budget. A zero budget means none was set: ratios against
// it are reported as zero.
func SummarizeBudget(ledger *Ledger, budget decimal.Decimal) models.BudgetSummary {
	base := ledger.BaseCurrency()
	summary := models.BudgetSummary{
		BudgetAmountBase:       budget,
		TotalSpentBase:         ledger.Total(),
		RemainingBase:          budget.Sub(ledger.Total()),
		FillRatio:              ratio(ledger.Total(), budget).Round(4),
		BaseCurrency:           base,
		Categories:             []models.BudgetCategoryItem{},
		UncategorizedSpentBase: decimal.Zero,
	}

	byCategory := map[string]*models.BudgetCategoryItem{}
	for _, line := range ledger.Lines() {
		if line.Category == "" {
			summary.UncategorizedSpentBase = summary.UncategorizedSpentBase.Add(line.AmountBase)
			summary.UncategorizedCount++
			continue
		}
		item, ok := byCategory[line.Category]
		if !ok {
			item = &models.BudgetCategoryItem{Category: line.Category, SpentAmountBase: decimal.Zero}
			byCategory[line.Category] = item
		}
		item.SpentAmountBase = item.SpentAmountBase.Add(line.AmountBase)
		item.ExpenseCount++
	}

	for _, item := range byCategory {
		item.PercentageOfTotal = ratio(item.SpentAmountBase, ledger.Total()).Mul(hundred).Round(2)
		item.PercentageOfBudget = ratio(item.SpentAmountBase, budget).Mul(hundred).Round(2)
		summary.Categories = append(summary.Categories, *item)
	}
	sort.Slice(summary.Categories, func(i, j int) bool {
		a, b := summary.Categories[i], summary.Categories[j]
		if c := a.SpentAmountBase.Cmp(b.SpentAmountBase); c != 0 {
			return c > 0
		}
		return a.Category < b.Category
	})

	return summary
}

func ratio(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole)
}
