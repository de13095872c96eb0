package routers

import (
	"net/http"

	"checkmate/internal/api/handlers/budgets"
)

func budgetRouter(svc budgets.Service) *http.ServeMux {
	mux := http.NewServeMux()
	h := budgets.NewHandler(svc)

	mux.HandleFunc("GET /budget/{trip_id}", h.GetBudget)
	mux.HandleFunc("POST /budget/{trip_id}", h.SetBudget)
	mux.HandleFunc("GET /budget/{trip_id}/summary", h.GetSummary)

	return mux
}
