package fastag

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/lib/pq"
	"github.com/samber/oops"

	"github.com/ovaphlow/parkpro/service-core-go/internal/fastag/entity"
)

var (
	ErrNotFound     = errors.New("fastag not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Store is implemented by *repo.FastagRepo.
type Store interface {
	GetByUser(ctx context.Context, userID string) (*entity.Fastag, error)
	Recharge(ctx context.Context, newFastagID string, tx *entity.Transaction) error
	ListTransactions(ctx context.Context, userID string) ([]entity.Transaction, error)
	LinkVehicle(ctx context.Context, userID, vehicle string) error
	Delete(ctx context.Context, userID string) error
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

func (s *Service) Balance(ctx context.Context, userID string) (*entity.Fastag, error) {
	f, err := s.store.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, oops.Code("FASTAG_GET_FAILED").With("user_id", userID).Wrap(err)
	}
	if f.LinkedVehicles == nil {
		f.LinkedVehicles = pq.StringArray{}
	}
	return f, nil
}

// Recharge credits amount, creating the fastag on first recharge, and returns
// the recorded transaction.
func (s *Service) Recharge(ctx context.Context, userID string, amount float64) (*entity.Transaction, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	tx := &entity.Transaction{
		ID:          s.ids.NewID(),
		UserID:      userID,
		Type:        entity.TypeRecharge,
		Amount:      amount,
		Description: "Fastag recharge",
	}
	if err := s.store.Recharge(ctx, s.ids.NewID(), tx); err != nil {
		return nil, oops.Code("FASTAG_RECHARGE_FAILED").With("user_id", userID).Wrap(err)
	}
	return tx, nil
}

func (s *Service) Transactions(ctx context.Context, userID string) ([]entity.Transaction, error) {
	out, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, oops.Code("FASTAG_TRANSACTIONS_FAILED").With("user_id", userID).Wrap(err)
	}
	return out, nil
}

// LinkVehicle is idempotent: linking a vehicle twice keeps one entry.
func (s *Service) LinkVehicle(ctx context.Context, userID, vehicle string) error {
	vehicle = strings.TrimSpace(vehicle)
	if userID == "" || vehicle == "" {
		return fmt.Errorf("%w: user_id and vehicle are required", ErrInvalidInput)
	}
	if err := s.store.LinkVehicle(ctx, userID, vehicle); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return oops.Code("FASTAG_LINK_FAILED").With("user_id", userID).Wrap(err)
	}
	return nil
}

func (s *Service) Deactivate(ctx context.Context, userID string) error {
	if err := s.store.Delete(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return oops.Code("FASTAG_DEACTIVATE_FAILED").With("user_id", userID).Wrap(err)
	}
	return nil
}
