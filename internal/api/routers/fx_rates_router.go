package routers

import (
	"net/http"

	"checkmate/internal/api/handlers/fxrates"
)

func fxRatesRouter(svc fxrates.Service) *http.ServeMux {
	mux := http.NewServeMux()
	h := fxrates.NewHandler(svc)

	mux.HandleFunc("GET /fx-rates/latest", h.GetLatest)
	mux.HandleFunc("GET /fx-rates/{date}", h.GetRate)
	mux.HandleFunc("POST /fx-rates", h.RecordRate)

	return mux
}
