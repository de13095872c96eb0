package expenses

import (
	"context"
	"net/http"
	"time"

	"checkmate/internal/api/handlers"
	"checkmate/internal/models"
	"checkmate/pkg/utils"

	"github.com/shopspring/decimal"
)

type Service interface {
	IsMember(ctx context.Context, tripID, userID int) (bool, error)
	RecordExpense(ctx context.Context, tripID int, e models.ExpenseRecord) (models.ExpenseRecord, error)
	ReplaceExpense(ctx context.Context, tripID int, e models.ExpenseRecord) (models.ExpenseRecord, error)
	DeleteExpense(ctx context.Context, tripID, expenseID int) error
	ListExpenses(ctx context.Context, tripID int) ([]models.ExpenseRecord, error)
	ListExpensesOn(ctx context.Context, tripID int, day time.Time) ([]models.ExpenseRecord, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

type expenseRequest struct {
	PayerID        int                     `json:"payer_id"`
	Amount         decimal.Decimal         `json:"amount"`
	Currency       string                  `json:"currency"`
	Date           string                  `json:"date"`
	ParticipantIDs []int                   `json:"participant_ids"`
	ShareWeights   map[int]decimal.Decimal `json:"share_weights"`
	Description    string                  `json:"description"`
	Category       string                  `json:"category"`
}

// record builds an expense from the request. The payer defaults to the caller.
func (req expenseRequest) record(userID int) (models.ExpenseRecord, error) {
	date, err := handlers.ParseDate(req.Date)
	if err != nil {
		return models.ExpenseRecord{}, err
	}
	payer := req.PayerID
	if payer == 0 {
		payer = userID
	}
	return models.ExpenseRecord{
		PayerID:        payer,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Date:           date,
		ParticipantIDs: req.ParticipantIDs,
		ShareWeights:   req.ShareWeights,
		Description:    req.Description,
		Category:       req.Category,
	}, nil
}

// authorize resolves the trip id and checks the caller belongs to the trip.
// It writes the error response itself and reports whether to continue.
func (h *Handler) authorize(ctx context.Context, w http.ResponseWriter, r *http.Request) (tripID, userID int, ok bool) {
	userID, ok = handlers.UserID(r)
	if !ok {
		utils.WriteError(w, "unauthorized", http.StatusUnauthorized)
		return 0, 0, false
	}

	tripID, err := handlers.PathInt(r, "id")
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

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
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

	var req expenseRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	expense, err := req.record(userID)
	if err != nil {
		utils.WriteError(w, "date must be formatted as YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	saved, err := h.svc.RecordExpense(ctx, tripID, expense)
	if err != nil {
		handlers.WriteServiceError(w, r, err)
		return
	}

	utils.RequestLogger(ctx).Infof("expense %d recorded for trip %d by user %d", saved.ID, tripID, userID)
	utils.WriteJSON(w, http.StatusCreated, map[string]any{
		"status":  "success",
		"message": "expense recorded",
		"data":    saved,
	})
}

func (h *Handler) ReplaceExpense(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		utils.WriteError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlers.RequestTimeout)
	defer cancel()

	tripID, userID, ok := h.authorize(ctx, w, r)
	if !ok {
		return
	}
	expenseID, err := handlers.PathInt(r, "expense_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req expenseRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	expense, err := req.record(userID)
	if err != nil {
		utils.WriteError(w, "date must be formatted as YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	expense.ID = expenseID

	saved, err := h.svc.ReplaceExpense(ctx, tripID, expense)
	if err != nil {
		handlers.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "expense replaced",
		"data":    saved,
	})
}

func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		utils.WriteError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlers.RequestTimeout)
	defer cancel()

	tripID, _, ok := h.authorize(ctx, w, r)
	if !ok {
		return
	}
	expenseID, err := handlers.PathInt(r, "expense_id")
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.svc.DeleteExpense(ctx, tripID, expenseID); err != nil {
		handlers.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "expense deleted",
	})
}

// ListExpenses serves GET /trips/{id}/expenses, optionally narrowed
// to one day with ?date=YYYY-MM-DD.
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.WriteError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	day, err := handlers.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		utils.WriteError(w, "date must be formatted as YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlers.RequestTimeout)
	defer cancel()

	tripID, _, ok := h.authorize(ctx, w, r)
	if !ok {
		return
	}

	var list []models.ExpenseRecord
	if day.IsZero() {
		list, err = h.svc.ListExpenses(ctx, tripID)
	} else {
		list, err = h.svc.ListExpensesOn(ctx, tripID, day)
	}
	if err != nil {
		handlers.WriteServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []models.ExpenseRecord{}
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"count":  len(list),
		"data":   list,
	})
}
