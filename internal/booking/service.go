package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"

	"github.com/ovaphlow/parkpro/service-core-go/internal/booking/entity"
)

var (
	ErrNotFound     = errors.New("booking not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Store is implemented by *repo.BookingRepo.
type Store interface {
	ListByUser(ctx context.Context, userID string) ([]entity.Booking, error)
	Create(ctx context.Context, b *entity.Booking) error
	SetStatus(ctx context.Context, id, status string) (*entity.Booking, error)
	ListSlotBookingsByUser(ctx context.Context, userID string) ([]entity.SlotBooking, error)
}

type IDGenerator interface {
	NewID() string
}

// Service stores bookings as given; availability and pricing are not checked.
type Service struct {
	store Store
	ids   IDGenerator
}

func NewService(store Store, ids IDGenerator) *Service {
	return &Service{store: store, ids: ids}
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]entity.Booking, error) {
	out, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, oops.Code("BOOKING_LIST_FAILED").With("user_id", userID).Wrap(err)
	}
	return out, nil
}

// CreateInput is a new booking.
type CreateInput struct {
	UserID        string
	ParkingSpotID string
	Vehicle       string
	Date          string
	StartTime     string
	EndTime       string
	SpotNumber    string
	Price         float64
}

// Create stores the booking as confirmed.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Booking, error) {
	required := []struct{ name, value string }{
		{"user_id", in.UserID},
		{"parking_spot_id", in.ParkingSpotID},
		{"vehicle", in.Vehicle},
		{"date", in.Date},
		{"start_time", in.StartTime},
		{"end_time", in.EndTime},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return nil, fmt.Errorf("%w: %s is required", ErrInvalidInput, f.name)
		}
	}
	if in.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	b := &entity.Booking{
		ID:            s.ids.NewID(),
		UserID:        in.UserID,
		ParkingSpotID: in.ParkingSpotID,
		Vehicle:       in.Vehicle,
		Date:          in.Date,
		StartTime:     in.StartTime,
		EndTime:       in.EndTime,
		Price:         in.Price,
		Status:        entity.StatusConfirmed,
		SpotNumber:    in.SpotNumber,
	}
	if err := s.store.Create(ctx, b); err != nil {
		return nil, oops.Code("BOOKING_CREATE_FAILED").With("user_id", in.UserID).Wrap(err)
	}
	return b, nil
}

// Cancel marks the booking cancelled. Cancelling twice returns the same booking.
func (s *Service) Cancel(ctx context.Context, id string) (*entity.Booking, error) {
	b, err := s.store.SetStatus(ctx, id, entity.StatusCancelled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, oops.Code("BOOKING_CANCEL_FAILED").With("booking_id", id).Wrap(err)
	}
	return b, nil
}

func (s *Service) ListSlotBookings(ctx context.Context, userID string) ([]entity.SlotBooking, error) {
	out, err := s.store.ListSlotBookingsByUser(ctx, userID)
	if err != nil {
		return nil, oops.Code("SLOTBOOKING_LIST_FAILED").With("user_id", userID).Wrap(err)
	}
	return out, nil
}
