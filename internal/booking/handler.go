package booking

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

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ListByUser(r.Context(), r.PathValue("user_id"))
	if err != nil {
		h.internal(w, "list bookings", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, out)
}

// CreateRequest is the booking payload.
type CreateRequest struct {
	UserID        string  `json:"user_id"`
	ParkingSpotID string  `json:"parking_spot_id"`
	Vehicle       string  `json:"vehicle"`
	Date          string  `json:"date"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	SpotNumber    string  `json:"spot_number"`
	Price         float64 `json:"price"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := utilities.DecodeJSON(w, r, &req); err != nil {
		utilities.WriteDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := h.svc.Create(r.Context(), CreateInput(req))
	switch {
	case err == nil:
		utilities.WriteJSON(w, http.StatusCreated, b)
	case errors.Is(err, ErrInvalidInput):
		utilities.WriteDetail(w, http.StatusBadRequest, err.Error())
	default:
		h.internal(w, "create booking", err)
	}
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("booking_id")
	if !utilities.ValidID(id) {
		utilities.WriteDetail(w, http.StatusBadRequest, "Invalid booking ID format")
		return
	}
	b, err := h.svc.Cancel(r.Context(), id)
	switch {
	case err == nil:
		utilities.WriteJSON(w, http.StatusOK, b)
	case errors.Is(err, ErrNotFound):
		utilities.WriteDetail(w, http.StatusNotFound, "Booking not found")
	default:
		h.internal(w, "cancel booking", err)
	}
}

func (h *Handler) ListSlotBookings(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("user_id")
	if !utilities.ValidID(id) {
		utilities.WriteDetail(w, http.StatusBadRequest, "Invalid user_id format")
		return
	}
	out, err := h.svc.ListSlotBookings(r.Context(), id)
	if err != nil {
		h.internal(w, "list slot bookings", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) internal(w http.ResponseWriter, op string, err error) {
	h.logger.Errorw("request failed", "operation", op, "err", err)
	utilities.WriteDetail(w, http.StatusInternalServerError, "Internal server error")
}
