package routers

import (
	"net/http"

	"checkmate/internal/api/handlers/settlements"
)

func settlementRouter(svc settlements.Service) *http.ServeMux {
	mux := http.NewServeMux()
	h := settlements.NewHandler(svc)

	mux.HandleFunc("POST /settlement/{trip_id}/compute", h.ComputePlan)

	mux.HandleFunc("GET /settlement/{trip_id}/plan", h.GetPlan)

	mux.HandleFunc("GET /settlement/{trip_id}/status", h.GetStatus)

	mux.HandleFunc("POST /settlement/{trip_id}/confirm", h.Confirm)

	mux.HandleFunc("POST /settlement/{trip_id}/finalize", h.Finalize)

	return mux
}
