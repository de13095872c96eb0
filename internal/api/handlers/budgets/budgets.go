package budgets

import (
	"context"
	"net/http"

	"checkmate/internal/api/handlers"
	"checkmate/internal/models"
	"checkmate/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Service interface {
	IsMember(ctx context.Context, tripID, userID int) (bool, error)
	GetBudget(ctx context.Context, tripID int) (models.Budget, error)
	SetBudget(ctx context.Context, tripID int, amount decimal.Decimal) (models.Budget, error)
	BudgetSummary(ctx context.Context, tripID int) (models.BudgetSummary, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) authorize(ctx context.Context, w http.ResponseWriter, r *http.Request) (tripID, userID int, ok bool) {
	userID, ok = handlers.UserID(r)
	if !ok {
		utils.WriteError(w, "unauthorized", http.StatusUnauthorized)
		return 0, 0, false
	}

	tripID, err := handlers.PathInt(r, "trip_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return 0, 0, false
	}

	member, err := h.svc.IsMember(ctx, tripID, userID)
	if err != nil {
		handlers.WriteServiceError(w, r, err)
		return 0, 0, false
	}
	if !member {
		utils.WriteError(w, "you are not a participant of this trip", http.StatusForbidden)
		return 0, 0, false
	}
	return tripID, userID, true
}

func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.WriteError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlers.RequestTimeout)
	defer cancel()

	tripID, _, ok := h.authorize(ctx, w, r)
	if !ok {
		return
	}

	budget, err := h.svc.GetBudget(ctx, tripID)
	if err != nil {
		handlers.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   budget,
	})
}

// SetBudget creates or replaces the trip's budget, given in the trip's base
// currency.
func (h *Handler) SetBudget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.WriteError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlers.RequestTimeout)
	defer cancel()

	tripID, userID, ok := h.authorize(ctx, w, r)
	if !ok {
		return
	}

	var req struct {
		BudgetAmountBase *decimal.Decimal `json:"budget_amount_base"`
	}
	if err := handlers.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.BudgetAmountBase == nil {
		utils.WriteError(w, "budget_amount_base is required", http.StatusBadRequest)
		return
	}

	budget, err := h.svc.SetBudget(ctx, tripID, *req.BudgetAmountBase)
	if err != nil {
		handlers.WriteServiceError(w, r, err)
		return
	}

	utils.RequestLogger(ctx).WithFields(logrus.Fields{
		"trip_id": tripID,
		"user_id": userID,
	}).Info("budget set")

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "budget saved",
		"data":    budget,
	})
}

// GetSummary converts every expense to the base currency, so it may consult
// the FX provider.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.WriteError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*handlers.RequestTimeout)
	defer cancel()

	tripID, _, ok := h.authorize(ctx, w, r)
	if !ok {
		return
	}

	summary, err := h.svc.BudgetSummary(ctx, tripID)
	if err != nil {
		handlers.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   summary,
	})
}
