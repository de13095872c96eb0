package settlements

import (
	"context"
	"net/http"
	"strings"

	"checkmate/internal/api/handlers"
	"checkmate/internal/models"
	"checkmate/internal/services"
	"checkmate/pkg/utils"

	"github.com/sirupsen/logrus"
)

type Service interface {
	IsMember(ctx context.Context, tripID, userID int) (bool, error)
	ComputePlan(ctx context.Context, tripID int) (*services.PlanResult, error)
	CurrentPlan(ctx context.Context, tripID int) (*services.PlanResult, error)
	Status(ctx context.Context, tripID int) (models.ConfirmationStatus, error)
	Confirm(ctx context.Context, tripID int, version string, userID int) (models.ConfirmationStatus, error)
	Finalize(ctx context.Context, tripID int, version string, userID int) (models.ConfirmationStatus, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

type versionRequest struct {
	PlanVersion string `json:"plan_version"`
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

func decodeVersion(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req versionRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return "", false
	}
	version := strings.TrimSpace(req.PlanVersion)
	if version == "" {
		utils.WriteError(w, "plan_version is required", http.StatusBadRequest)
		return "", false
	}
	return version, true
}

func (h *Handler) ComputePlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.WriteError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Plan computation may consult the FX provider.
	ctx, cancel := context.WithTimeout(r.Context(), 3*handlers.RequestTimeout)
	defer cancel()

	tripID, _, ok := h.authorize(ctx, w, r)
	if !ok {
		return
	}

	res, err := h.svc.ComputePlan(ctx, tripID)
	if err != nil {
		handlers.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   res,
	})
}

func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
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

	res, err := h.svc.CurrentPlan(ctx, tripID)
	if err != nil {
		handlers.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   res,
	})
}

// GetStatus is polled by clients waiting on other participants.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
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

	status, err := h.svc.Status(ctx, tripID)
	if err != nil {
		handlers.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   status,
	})
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
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
	version, ok := decodeVersion(w, r)
	if !ok {
		return
	}

	status, err := h.svc.Confirm(ctx, tripID, version, userID)
	if err != nil {
		handlers.WriteServiceError(w, r, err)
		return
	}

	utils.RequestLogger(ctx).WithFields(logrus.Fields{
		"trip_id":        tripID,
		"plan_version":   version,
		"participant_id": userID,
	}).Info("settlement plan confirmed")

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "settlement plan confirmed",
		"data":    status,
	})
}

func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
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
	version, ok := decodeVersion(w, r)
	if !ok {
		return
	}

	status, err := h.svc.Finalize(ctx, tripID, version, userID)
	if err != nil {
		handlers.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "settlement completed",
		"data":    status,
	})
}
