package fxrates

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"checkmate/internal/api/handlers"
	"checkmate/internal/models"
	"checkmate/pkg/utils"

	"github.com/shopspring/decimal"
)

type Service interface {
	IsMember(ctx context.Context, tripID, userID int) (bool, error)
	LookupRate(ctx context.Context, tripID int, currency string, day time.Time) (decimal.Decimal, error)
	LatestRate(ctx context.Context, tripID int, currency string) (models.ExchangeRate, error)
	RecordRate(ctx context.Context, rate models.ExchangeRate) (models.ExchangeRate, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) checkMember(ctx context.Context, w http.ResponseWriter, r *http.Request, tripID int) bool {
	userID, ok := handlers.UserID(r)
	if !ok {
		utils.WriteError(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	member, err := h.svc.IsMember(ctx, tripID, userID)
	if err != nil {
		handlers.WriteServiceError(w, r, err)
		return false
	}
	if !member {
		utils.WriteError(w, "you are not a participant of this trip", http.StatusForbidden)
		return false
	}
	return true
}

// GetRate serves GET /fx-rates/{date}?currency=EUR&trip_id=1.
func (h *Handler) GetRate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.WriteError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	day, err := handlers.ParseDate(r.PathValue("date"))
	if err != nil || day.IsZero() {
		utils.WriteError(w, "date must be formatted as YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	currency := r.URL.Query().Get("currency")
	if currency == "" {
		utils.WriteError(w, "currency is required", http.StatusBadRequest)
		return
	}
	tripID, err := strconv.Atoi(r.URL.Query().Get("trip_id"))
	if err != nil || tripID <= 0 {
		utils.WriteError(w, "invalid trip_id", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*handlers.RequestTimeout)
	defer cancel()

	if !h.checkMember(ctx, w, r, tripID) {
		return
	}

	rate, err := h.svc.LookupRate(ctx, tripID, currency, day)
	if err != nil {
		handlers.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data": map[string]any{
			"trip_id":      tripID,
			"currency":     currency,
			"date":         day.Format(handlers.DateLayout),
			"rate_to_base": rate,
		},
	})
}

// GetLatest serves GET /fx-rates/latest?currency=EUR&trip_id=1.
func (h *Handler) GetLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.WriteError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	currency := r.URL.Query().Get("currency")
	if currency == "" {
		utils.WriteError(w, "currency is required", http.StatusBadRequest)
		return
	}
	tripID, err := strconv.Atoi(r.URL.Query().Get("trip_id"))
	if err != nil || tripID <= 0 {
		utils.WriteError(w, "invalid trip_id", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*handlers.RequestTimeout)
	defer cancel()

	if !h.checkMember(ctx, w, r, tripID) {
		return
	}

	rate, err := h.svc.LatestRate(ctx, tripID, currency)
	if err != nil {
		handlers.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data": map[string]any{
			"trip_id":      tripID,
			"currency":     rate.Currency,
			"date":         rate.Date.Format(handlers.DateLayout),
			"rate_to_base": rate.RateToBase,
		},
	})
}

func (h *Handler) RecordRate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.WriteError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		TripID     int             `json:"trip_id"`
		Currency   string          `json:"currency"`
		Date       string          `json:"date"`
		RateToBase decimal.Decimal `json:"rate_to_base"`
	}
	if err := handlers.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	day, err := handlers.ParseDate(req.Date)
	if err != nil || day.IsZero() {
		utils.WriteError(w, "date must be formatted as YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if req.TripID <= 0 {
		utils.WriteError(w, "invalid trip_id", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlers.RequestTimeout)
	defer cancel()

	if !h.checkMember(ctx, w, r, req.TripID) {
		return
	}

	rate, err := h.svc.RecordRate(ctx, models.ExchangeRate{
		TripID:     req.TripID,
		Currency:   req.Currency,
		Date:       day,
		RateToBase: req.RateToBase,
	})
	if err != nil {
		handlers.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, map[string]any{
		"status":  "success",
		"message": "exchange rate recorded",
		"data":    rate,
	})
}
