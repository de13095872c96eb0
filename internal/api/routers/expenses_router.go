package routers

import (
	"net/http"

	"checkmate/internal/api/handlers/expenses"
)

func expensesRouter(svc expenses.Service) *http.ServeMux {
	mux := http.NewServeMux()
	h := expenses.NewHandler(svc)

	mux.HandleFunc("POST /trips/{id}/expenses", h.CreateExpense)
	mux.HandleFunc("GET /trips/{id}/expenses", h.ListExpenses)

	mux.HandleFunc("PUT /trips/{id}/expenses/{expense_id}", h.ReplaceExpense)
	mux.HandleFunc("DELETE /trips/{id}/expenses/{expense_id}", h.DeleteExpense)

	return mux
}
