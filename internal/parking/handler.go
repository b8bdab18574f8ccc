package parking

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/parkpro/service-core-go/internal/parking/entity"
	"github.com/ovaphlow/parkpro/service-core-go/pkg/utilities"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) ListSpots(w http.ResponseWriter, r *http.Request) {
	spots, err := h.svc.ListSpots(r.Context())
	if err != nil {
		h.internal(w, "list parking spots", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, spots)
}

// CreateSpotRequest is the parking spot payload.
type CreateSpotRequest struct {
	Name           string  `json:"name"`
	Address        string  `json:"address"`
	PricePerHour   float64 `json:"price_per_hour"`
	TotalSpots     int     `json:"total_spots"`
	AvailableSpots int     `json:"available_spots"`
}

func (h *Handler) CreateSpot(w http.ResponseWriter, r *http.Request) {
	var req CreateSpotRequest
	if err := utilities.DecodeJSON(w, r, &req); err != nil {
		utilities.WriteDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := h.svc.CreateSpot(r.Context(), entity.Station{
		Name:           req.Name,
		Address:        req.Address,
		PricePerHour:   req.PricePerHour,
		TotalSpots:     req.TotalSpots,
		AvailableSpots: req.AvailableSpots,
	})
	switch {
	case err == nil:
		utilities.WriteJSON(w, http.StatusCreated, st)
	case errors.Is(err, ErrInvalidInput):
		utilities.WriteDetail(w, http.StatusBadRequest, err.Error())
	default:
		h.internal(w, "create parking spot", err)
	}
}

func (h *Handler) GetStation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("station_id")
	if !utilities.ValidID(id) {
		utilities.WriteDetail(w, http.StatusBadRequest, "Invalid station ID format")
		return
	}
	st, err := h.svc.GetStation(r.Context(), id)
	switch {
	case err == nil:
		utilities.WriteJSON(w, http.StatusOK, st)
	case errors.Is(err, ErrNotFound):
		utilities.WriteDetail(w, http.StatusNotFound, "Station not found")
	default:
		h.internal(w, "get station", err)
	}
}

func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("station_id")
	if !utilities.ValidID(id) {
		utilities.WriteDetail(w, http.StatusBadRequest, "Invalid station ID format")
		return
	}
	slots, err := h.svc.ListSlots(r.Context(), id)
	if err != nil {
		h.internal(w, "list slots", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, slots)
}

func (h *Handler) internal(w http.ResponseWriter, op string, err error) {
	h.logger.Errorw("request failed", "operation", op, "err", err)
	utilities.WriteDetail(w, http.StatusInternalServerError, "Internal server error")
}
