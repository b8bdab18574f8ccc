package parking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"

	"github.com/ovaphlow/parkpro/service-core-go/internal/parking/entity"
)

var (
	ErrNotFound     = errors.New("station not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Store is implemented by *repo.ParkingRepo.
type Store interface {
	ListStations(ctx context.Context) ([]entity.Station, error)
	GetStation(ctx context.Context, id string) (*entity.Station, error)
	CreateStation(ctx context.Context, s *entity.Station) error
	ListSlots(ctx context.Context, stationID string) ([]entity.Slot, error)
}

type IDGenerator interface {
	NewID() string
}

type Service struct {
	store Store
	ids   IDGenerator
}

func NewService(store Store, ids IDGenerator) *Service {
	return &Service{store: store, ids: ids}
}

func (s *Service) ListSpots(ctx context.Context) ([]entity.Station, error) {
	out, err := s.store.ListStations(ctx)
	if err != nil {
		return nil, oops.Code("PARKING_LIST_FAILED").Wrap(err)
	}
	return out, nil
}

func (s *Service) GetStation(ctx context.Context, id string) (*entity.Station, error) {
	st, err := s.store.GetStation(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, oops.Code("PARKING_GET_FAILED").With("station_id", id).Wrap(err)
	}
	return st, nil
}

// CreateSpot stores a new station. Only the shape of the input is checked.
func (s *Service) CreateSpot(ctx context.Context, st entity.Station) (*entity.Station, error) {
	st.Name = strings.TrimSpace(st.Name)
	switch {
	case st.Name == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	case st.PricePerHour < 0, st.TotalSpots < 0, st.AvailableSpots < 0:
		return nil, fmt.Errorf("%w: price and spot counts must not be negative", ErrInvalidInput)
	}
	st.ID = s.ids.NewID()
	if err := s.store.CreateStation(ctx, &st); err != nil {
		return nil, oops.Code("PARKING_CREATE_FAILED").Wrap(err)
	}
	return &st, nil
}

func (s *Service) ListSlots(ctx context.Context, stationID string) ([]entity.Slot, error) {
	out, err := s.store.ListSlots(ctx, stationID)
	if err != nil {
		return nil, oops.Code("PARKING_SLOTS_FAILED").With("station_id", stationID).Wrap(err)
	}
	return out, nil
}
