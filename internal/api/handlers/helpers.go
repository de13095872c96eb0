package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"checkmate/internal/models"
	"checkmate/internal/services"
	"checkmate/internal/settlement"
	"checkmate/pkg/utils"

	"github.com/sirupsen/logrus"
)

const (
	DateLayout     = "2006-01-02"
	RequestTimeout = 10 * time.Second
)

// UserID returns the authenticated participant id set by the JWT middleware.
func UserID(r *http.Request) (int, bool) {
	idFloat, ok := r.Context().Value(utils.ContextKey("userId")).(float64)
	if !ok {
		return 0, false
	}
	return int(idFloat), true
}

// PathInt parses a positive integer path parameter.
func PathInt(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(r.PathValue(name))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// DecodeJSON decodes a request body, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// ParseDate accepts an empty string as the zero time.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(DateLayout, value, time.UTC)
}

// WriteServiceError maps domain errors onto HTTP statuses. Anything
// unrecognised is logged and reported as a generic failure.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var expenseErr *settlement.ExpenseError

	switch {
	case errors.Is(err, settlement.ErrRateUnavailable):
		utils.WriteError(w, err.Error(), http.StatusUnprocessableEntity)

	case errors.As(err, &expenseErr),
		settlement.IsInputError(err),
		errors.Is(err, services.ErrInvalidCategory),
		errors.Is(err, services.ErrInvalidRate),
		errors.Is(err, settlement.ErrInvalidBudget):
		utils.WriteError(w, err.Error(), http.StatusBadRequest)

	case errors.Is(err, services.ErrNotTripParticipant),
		errors.Is(err, settlement.ErrUnknownParticipant):
		utils.WriteError(w, err.Error(), http.StatusForbidden)

	case errors.Is(err, settlement.ErrSettlementNotOpen),
		errors.Is(err, settlement.ErrNotFullyConfirmed),
		errors.Is(err, settlement.ErrStalePlanVersion),
		errors.Is(err, settlement.ErrPlanInvalidated),
		errors.Is(err, settlement.ErrSettlementCompleted):
		utils.WriteError(w, err.Error(), http.StatusConflict)

	case errors.Is(err, settlement.ErrNoActivePlan),
		errors.Is(err, models.ErrTripNotFound),
		errors.Is(err, models.ErrExpenseNotFound),
		errors.Is(err, models.ErrBudgetNotFound):
		utils.WriteError(w, err.Error(), http.StatusNotFound)

	case errors.Is(err, settlement.ErrLedgerInconsistent):
		utils.RequestLogger(r.Context()).WithError(err).Error("settlement ledger inconsistent")
		utils.WriteError(w, "settlement is temporarily unavailable for this trip", http.StatusInternalServerError)

	default:
		utils.RequestLogger(r.Context()).WithFields(logrus.Fields{
			"path": r.URL.Path,
		}).WithError(err).Error("request failed")
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
	}
}
