package fastag

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/parkpro/service-core-go/pkg/utilities"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.Balance(r.Context(), r.PathValue("user_id"))
	switch {
	case err == nil:
		utilities.WriteJSON(w, http.StatusOK, f)
	case errors.Is(err, ErrNotFound):
		utilities.WriteDetail(w, http.StatusNotFound, "Fastag not found")
	default:
		h.internal(w, "get fastag", err)
	}
}

// RechargeRequest is the recharge payload.
type RechargeRequest struct {
	UserID string  `json:"user_id"`
	Amount float64 `json:"amount"`
}

func (h *Handler) Recharge(w http.ResponseWriter, r *http.Request) {
	var req RechargeRequest
	if err := utilities.DecodeJSON(w, r, &req); err != nil {
		utilities.WriteDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	tx, err := h.svc.Recharge(r.Context(), req.UserID, req.Amount)
	switch {
	case err == nil:
		h.logger.Infow("fastag recharged", "user_id", req.UserID, "transaction_id", tx.ID)
		utilities.WriteJSON(w, http.StatusOK, tx)
	case errors.Is(err, ErrInvalidInput):
		utilities.WriteDetail(w, http.StatusBadRequest, err.Error())
	default:
		h.internal(w, "recharge fastag", err)
	}
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Transactions(r.Context(), r.PathValue("user_id"))
	if err != nil {
		h.internal(w, "list transactions", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, out)
}

// LinkVehicleRequest is the link-vehicle payload.
type LinkVehicleRequest struct {
	UserID  string `json:"user_id"`
	Vehicle string `json:"vehicle"`
}

func (h *Handler) LinkVehicle(w http.ResponseWriter, r *http.Request) {
	var req LinkVehicleRequest
	if err := utilities.DecodeJSON(w, r, &req); err != nil {
		utilities.WriteDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	err := h.svc.LinkVehicle(r.Context(), req.UserID, req.Vehicle)
	switch {
	case err == nil:
		utilities.WriteMessage(w, "Vehicle linked successfully")
	case errors.Is(err, ErrInvalidInput):
		utilities.WriteDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		utilities.WriteDetail(w, http.StatusNotFound, "Fastag not found")
	default:
		h.internal(w, "link vehicle", err)
	}
}

// Deactivate reads user_id from the query string or form body.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	userID := r.FormValue("user_id")
	if userID == "" {
		utilities.WriteDetail(w, http.StatusUnprocessableEntity, "user_id is required")
		return
	}
	err := h.svc.Deactivate(r.Context(), userID)
	switch {
	case err == nil:
		utilities.WriteMessage(w, "Fastag deactivated successfully")
	case errors.Is(err, ErrNotFound):
		utilities.WriteDetail(w, http.StatusNotFound, "Fastag not found")
	default:
		h.internal(w, "deactivate fastag", err)
	}
}

func (h *Handler) internal(w http.ResponseWriter, op string, err error) {
	h.logger.Errorw("request failed", "operation", op, "err", err)
	utilities.WriteDetail(w, http.StatusInternalServerError, "Internal server error")
}
