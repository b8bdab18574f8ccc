package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/parkpro/service-core-go/internal/user/entity"
	"github.com/ovaphlow/parkpro/service-core-go/pkg/database"
)

// UserRepo provides data access for the users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users table if not exists (idempotent).
// email is CITEXT so the unique index and lookups are case-insensitive.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE EXTENSION IF NOT EXISTS citext;
CREATE TABLE IF NOT EXISTS users (
  id VARCHAR(32) PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  email CITEXT NOT NULL UNIQUE,
  phone TEXT,
  profile_image TEXT,
  password_hash TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const selectUser = `SELECT id, name, email, phone, profile_image, password_hash, created_at, updated_at FROM users`

// Create inserts a new user. CreatedAt/UpdatedAt are filled from the row.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	const q = `INSERT INTO users (id, name, email, phone, profile_image, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`
	return r.db.QueryRowxContext(ctx, q, u.ID, u.Name, u.Email, u.Phone, u.ProfileImage, u.PasswordHash).
		Scan(&u.CreatedAt, &u.UpdatedAt)
}

// GetByEmail returns the user whose email matches case-insensitively, or sql.ErrNoRows.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	var u entity.User
	if err := r.db.GetContext(ctx, &u, selectUser+` WHERE email = $1`, email); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID fetches a user by id, or sql.ErrNoRows.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	var u entity.User
	if err := r.db.GetContext(ctx, &u, selectUser+` WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdatePassword replaces the stored hash in a single-row update.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	const q = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	return database.ExpectOne(r.db.ExecContext(ctx, q, id, hash))
}

// UpdateProfile sets name and, when non-nil, phone and profile image.
func (r *UserRepo) UpdateProfile(ctx context.Context, id string, p entity.ProfileUpdate) error {
	const q = `UPDATE users SET name = $2,
		phone = COALESCE($3, phone),
		profile_image = COALESCE($4, profile_image),
		updated_at = NOW()
	WHERE id = $1`
	return database.ExpectOne(r.db.ExecContext(ctx, q, id, p.Name, p.Phone, p.ProfileImage))
}
