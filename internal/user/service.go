package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/ovaphlow/parkpro/service-core-go/internal/notify"
	"github.com/ovaphlow/parkpro/service-core-go/internal/user/entity"
	"github.com/ovaphlow/parkpro/service-core-go/internal/verification"
	"github.com/ovaphlow/parkpro/service-core-go/pkg/database"
)

var (
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrNotFound             = errors.New("user not found")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired verification code")
	ErrInvalidPassword      = errors.New("invalid password")
	ErrEmailTaken           = errors.New("email already registered")
	ErrInvalidInput         = errors.New("invalid input")
)

// UserStore is the persistence the service needs. *repo.UserRepo satisfies it.
type UserStore interface {
	Create(ctx context.Context, u *entity.User) error
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByID(ctx context.Context, id string) (*entity.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	UpdateProfile(ctx context.Context, id string, p entity.ProfileUpdate) error
}

// CodeRegistry issues and checks recovery codes.
type CodeRegistry interface {
	Issue(email string) (verification.Code, error)
	Claim(email, code string) (verification.Claim, bool)
	Redeem(c verification.Claim)
	Release(c verification.Claim) bool
}

// Notifier queues outgoing messages without waiting for delivery.
type Notifier interface {
	Enqueue(msg notify.Message) bool
}

// IDGenerator mints user ids.
type IDGenerator interface {
	NewID() string
}

// UserService orchestrates authentication, recovery and profile flows.
type UserService struct {
	store    UserStore
	hasher   PasswordHasher
	codes    CodeRegistry
	notifier Notifier
	ids      IDGenerator
	logger   *zap.SugaredLogger

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(store UserStore, hasher PasswordHasher, codes CodeRegistry, notifier Notifier, ids IDGenerator, logger *zap.SugaredLogger) *UserService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &UserService{
		store:    store,
		hasher:   hasher,
		codes:    codes,
		notifier: notifier,
		ids:      ids,
		logger:   logger,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// burn verifies pw against a real hash at the configured cost, so a login
// for an unknown email spends as long in bcrypt as one with a wrong password.
func (s *UserService) burn(pw string) {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("parkpro-dummy-password")
		if err != nil {
			s.logger.Warnw("failed to prepare dummy hash", "err", err)
			return
		}
		s.dummyHash = h
	})
	if s.dummyHash != "" {
		s.hasher.Verify(s.dummyHash, pw)
	}
}

// Login authenticates by email and password. Unknown email, a user without a
// password and a wrong password all return ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, email, password string) (*entity.User, error) {
	email = normalizeEmail(email)
	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.burn(password)
			return nil, ErrInvalidCredentials
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "get user by email").Wrap(err)
	}
	if !u.HasPassword() {
		s.burn(password)
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(*u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(*u.PasswordHash) {
		if h, err := s.hasher.Hash(password); err == nil {
			if err := s.store.UpdatePassword(ctx, u.ID, h); err != nil {
				s.logger.Warnw("password rehash failed", "user_id", u.ID, "err", err)
			}
		}
	}
	return u.Public(), nil
}

// ChangePassword replaces the password of the caller after checking the
// current one.
func (s *UserService) ChangePassword(ctx context.Context, callerEmail, current, next string) error {
	u, err := s.store.GetByEmail(ctx, normalizeEmail(callerEmail))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "get user by email").Wrap(err)
	}
	if !u.HasPassword() || !s.hasher.Verify(*u.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	if err := s.setPassword(ctx, u, next); err != nil {
		return err
	}
	s.logger.Infow("password changed", "user_id", u.ID)
	return nil
}

// RequestRecovery issues a code for an existing user and queues it for
// delivery. Delivery problems never fail the call.
func (s *UserService) RequestRecovery(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return oops.Code("AUTH_RECOVERY_FAILED").With("operation", "get user by email").Wrap(err)
	}
	c, err := s.codes.Issue(email)
	if err != nil {
		return oops.Code("AUTH_RECOVERY_FAILED").With("operation", "issue code").Wrap(err)
	}
	queued := s.notifier.Enqueue(notify.Message{
		To:      u.Email,
		Subject: "Your Verification Code",
		Body:    fmt.Sprintf("Your verification code is: %s. It will expire at %s.", c.Code, c.ExpiresAt.UTC().Format("15:04 MST")),
	})
	s.logger.Infow("verification code issued", "user_id", u.ID, "expires_at", c.ExpiresAt, "queued", queued)
	return nil
}

// CompleteRecovery sets a new password using a code from RequestRecovery.
// The code is held while the password is replaced, so concurrent attempts
// with the same code get ErrInvalidOrExpiredCode. It goes back into play if
// the user cannot be found or the update fails.
func (s *UserService) CompleteRecovery(ctx context.Context, email, code, next string) (err error) {
	email = normalizeEmail(email)
	claim, ok := s.codes.Claim(email, code)
	if !ok {
		return ErrInvalidOrExpiredCode
	}
	defer func() {
		if err != nil {
			s.codes.Release(claim)
		}
	}()

	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return oops.Code("AUTH_RECOVERY_FAILED").With("operation", "get user by email").Wrap(err)
	}
	if err := s.setPassword(ctx, u, next); err != nil {
		return err
	}
	// a code issued while this one was held stays pending
	s.codes.Redeem(claim)
	s.logger.Infow("password reset with verification code", "user_id", u.ID)
	return nil
}

func (s *UserService) setPassword(ctx context.Context, u *entity.User, pw string) error {
	h, err := s.hasher.Hash(pw)
	if err != nil {
		if errors.Is(err, ErrInvalidPassword) {
			return ErrInvalidPassword
		}
		return oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}
	if err := s.store.UpdatePassword(ctx, u.ID, h); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return oops.Code("AUTH_UPDATE_PASSWORD_FAILED").With("user_id", u.ID).Wrap(err)
	}
	// sent even when a newer recovery code is still pending
	s.notifier.Enqueue(notify.Message{
		To:      u.Email,
		Subject: "Your password was changed",
		Body:    "The password for your ParkPro account was just changed. If this was not you, reset it now using the verification code flow.",
	})
	return nil
}

// CreateInput is a registration request.
type CreateInput struct {
	Name         string
	Email        string
	Phone        *string
	ProfileImage *string
	Password     string
}

// Create registers a user. Password is optional.
func (s *UserService) Create(ctx context.Context, in CreateInput) (*entity.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	u := &entity.User{
		ID:           s.ids.NewID(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Phone:        in.Phone,
		ProfileImage: in.ProfileImage,
	}
	if in.Password != "" {
		h, err := s.hasher.Hash(in.Password)
		if err != nil {
			if errors.Is(err, ErrInvalidPassword) {
				return nil, ErrInvalidPassword
			}
			return nil, oops.Code("USER_CREATE_FAILED").Wrap(err)
		}
		u.PasswordHash = &h
	}
	if err := s.store.Create(ctx, u); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, oops.Code("USER_CREATE_FAILED").With("operation", "insert user").Wrap(err)
	}
	return u.Public(), nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*entity.User, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, oops.Code("USER_GET_FAILED").With("user_id", id).Wrap(err)
	}
	return u.Public(), nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	u, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, oops.Code("USER_GET_FAILED").With("operation", "get user by email").Wrap(err)
	}
	return u.Public(), nil
}

// UpdateProfile updates the profile of the user with email.
func (s *UserService) UpdateProfile(ctx context.Context, email string, p entity.ProfileUpdate) error {
	u, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return oops.Code("USER_UPDATE_FAILED").With("operation", "get user by email").Wrap(err)
	}
	if err := s.store.UpdateProfile(ctx, u.ID, p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return oops.Code("USER_UPDATE_FAILED").With("user_id", u.ID).Wrap(err)
	}
	return nil
}
