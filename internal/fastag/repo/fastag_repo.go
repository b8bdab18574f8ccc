package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/parkpro/service-core-go/internal/fastag/entity"
	"github.com/ovaphlow/parkpro/service-core-go/pkg/database"
)

// FastagRepo provides data access for fastags and their transactions.
type FastagRepo struct {
	db *sqlx.DB
}

func NewFastagRepo(db *sqlx.DB) *FastagRepo { return &FastagRepo{db: db} }

// EnsureTable creates the fastags and transactions tables if not exists (idempotent).
func (r *FastagRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS fastags (
  id VARCHAR(32) PRIMARY KEY,
  user_id VARCHAR(32) NOT NULL UNIQUE,
  balance NUMERIC(12,2) NOT NULL DEFAULT 0,
  linked_vehicles TEXT[] NOT NULL DEFAULT '{}',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS transactions (
  id VARCHAR(32) PRIMARY KEY,
  user_id VARCHAR(32) NOT NULL,
  type TEXT NOT NULL,
  amount NUMERIC(12,2) NOT NULL,
  date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  description TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions(user_id, date DESC);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// GetByUser returns the user's fastag, or sql.ErrNoRows.
func (r *FastagRepo) GetByUser(ctx context.Context, userID string) (*entity.Fastag, error) {
	const q = `SELECT id, user_id, balance, linked_vehicles, created_at, updated_at FROM fastags WHERE user_id = $1`
	var f entity.Fastag
	if err := r.db.GetContext(ctx, &f, q, userID); err != nil {
		return nil, err
	}
	return &f, nil
}

// Recharge adds tx.Amount to the user's balance, creating the fastag with id
// newFastagID when missing, and records tx. Both writes commit together.
func (r *FastagRepo) Recharge(ctx context.Context, newFastagID string, tx *entity.Transaction) error {
	dbtx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin recharge: %w", err)
	}
	defer dbtx.Rollback()

	const upsert = `INSERT INTO fastags (id, user_id, balance) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET balance = fastags.balance + EXCLUDED.balance, updated_at = NOW()`
	if _, err := dbtx.ExecContext(ctx, upsert, newFastagID, tx.UserID, tx.Amount); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}

	const insert = `INSERT INTO transactions (id, user_id, type, amount, description)
		VALUES ($1, $2, $3, $4, $5) RETURNING date`
	if err := dbtx.QueryRowxContext(ctx, insert, tx.ID, tx.UserID, tx.Type, tx.Amount, tx.Description).Scan(&tx.Date); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return dbtx.Commit()
}

// ListTransactions returns the user's transactions, newest first.
func (r *FastagRepo) ListTransactions(ctx context.Context, userID string) ([]entity.Transaction, error) {
	const q = `SELECT id, user_id, type, amount, date, description FROM transactions WHERE user_id = $1 ORDER BY date DESC, id DESC`
	out := []entity.Transaction{}
	if err := r.db.SelectContext(ctx, &out, q, userID); err != nil {
		return nil, err
	}
	return out, nil
}

// LinkVehicle appends vehicle unless already linked. sql.ErrNoRows when the
// user has no fastag.
func (r *FastagRepo) LinkVehicle(ctx context.Context, userID, vehicle string) error {
	const q = `UPDATE fastags SET
		linked_vehicles = CASE WHEN $2::text = ANY(linked_vehicles) THEN linked_vehicles ELSE array_append(linked_vehicles, $2::text) END,
		updated_at = NOW()
	WHERE user_id = $1`
	return database.ExpectOne(r.db.ExecContext(ctx, q, userID, vehicle))
}

// Delete removes the user's fastag, or returns sql.ErrNoRows.
func (r *FastagRepo) Delete(ctx context.Context, userID string) error {
	return database.ExpectOne(r.db.ExecContext(ctx, `DELETE FROM fastags WHERE user_id = $1`, userID))
}
