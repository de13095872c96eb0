package routers

import (
	"net/http"

	"checkmate/internal/services"
)

func MainRouter(svc *services.SettlementService) *http.ServeMux {

	mux := http.NewServeMux()

	eRouter := expensesRouter(svc)
	mux.Handle("/trips/", eRouter)

	sRouter := settlementRouter(svc)
	mux.Handle("/settlement/", sRouter)

	bRouter := budgetRouter(svc)
	mux.Handle("/budget/", bRouter)

	fRouter := fxRatesRouter(svc)
	mux.Handle("/fx-rates", fRouter)
	mux.Handle("/fx-rates/", fRouter)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}
