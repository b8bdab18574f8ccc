package user

import (
	"errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and verifies passwords. Kept abstract so the
// algorithm can change without touching the service.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
	NeedsRehash(hash string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct {
	Cost   int
	logger *zap.SugaredLogger
}

// NewBcryptHasher returns a hasher using cost, or bcrypt.DefaultCost when cost
// is out of range.
func NewBcryptHasher(cost int, logger *zap.SugaredLogger) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &BcryptHasher{Cost: cost, logger: logger}
}

func (b *BcryptHasher) Hash(pw string) (string, error) {
	if pw == "" {
		return "", ErrInvalidPassword
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), b.Cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrInvalidPassword
		}
		return "", err
	}
	return string(h), nil
}

// Verify never errors: a malformed stored hash is a mismatch.
func (b *BcryptHasher) Verify(hash, pw string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw))
	if err == nil {
		return true
	}
	if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		b.logger.Warnw("stored password hash is unreadable", "err", err)
	}
	return false
}

func (b *BcryptHasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false
	}
	return cost < b.Cost
}
