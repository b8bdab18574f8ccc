package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/parkpro/service-core-go/internal/booking/entity"
)

// BookingRepo provides data access for bookings and slot bookings.
type BookingRepo struct {
	db *sqlx.DB
}

func NewBookingRepo(db *sqlx.DB) *BookingRepo { return &BookingRepo{db: db} }

// EnsureTable creates the bookings and slotbookings tables if not exists (idempotent).
func (r *BookingRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS bookings (
  id VARCHAR(32) PRIMARY KEY,
  user_id VARCHAR(32) NOT NULL,
  parking_spot_id VARCHAR(32) NOT NULL,
  vehicle TEXT NOT NULL,
  date TEXT NOT NULL,
  start_time TEXT NOT NULL,
  end_time TEXT NOT NULL,
  price NUMERIC(10,2) NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'confirmed',
  spot_number TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_bookings_user_id ON bookings(user_id);
CREATE TABLE IF NOT EXISTS slotbookings (
  id VARCHAR(32) PRIMARY KEY,
  slot_id VARCHAR(32),
  user_id VARCHAR(32),
  vehicle_id VARCHAR(32),
  station_id VARCHAR(32),
  booking_start_time TIMESTAMPTZ,
  booking_end_time TIMESTAMPTZ,
  amount_paid NUMERIC(10,2),
  payment_method TEXT,
  payment_status TEXT,
  status TEXT,
  reservation_expires_at TIMESTAMPTZ,
  cancel_reason TEXT,
  created_at TIMESTAMPTZ DEFAULT NOW(),
  updated_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_slotbookings_user_id ON slotbookings(user_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const selectBooking = `SELECT id, user_id, parking_spot_id, vehicle, date, start_time, end_time, price, status, spot_number, created_at FROM bookings`

func (r *BookingRepo) ListByUser(ctx context.Context, userID string) ([]entity.Booking, error) {
	out := []entity.Booking{}
	if err := r.db.SelectContext(ctx, &out, selectBooking+` WHERE user_id = $1 ORDER BY created_at DESC`, userID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *BookingRepo) Create(ctx context.Context, b *entity.Booking) error {
	const q = `INSERT INTO bookings (id, user_id, parking_spot_id, vehicle, date, start_time, end_time, price, status, spot_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING created_at`
	return r.db.QueryRowxContext(ctx, q,
		b.ID, b.UserID, b.ParkingSpotID, b.Vehicle, b.Date, b.StartTime, b.EndTime, b.Price, b.Status, b.SpotNumber,
	).Scan(&b.CreatedAt)
}

// SetStatus updates the status and returns the booking, or sql.ErrNoRows.
func (r *BookingRepo) SetStatus(ctx context.Context, id, status string) (*entity.Booking, error) {
	const q = `UPDATE bookings SET status = $2 WHERE id = $1
		RETURNING id, user_id, parking_spot_id, vehicle, date, start_time, end_time, price, status, spot_number, created_at`
	var b entity.Booking
	if err := r.db.GetContext(ctx, &b, q, id, status); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepo) ListSlotBookingsByUser(ctx context.Context, userID string) ([]entity.SlotBooking, error) {
	const q = `SELECT id, slot_id, user_id, vehicle_id, station_id, booking_start_time, booking_end_time,
		amount_paid, payment_method, payment_status, status, reservation_expires_at, cancel_reason, created_at, updated_at
		FROM slotbookings WHERE user_id = $1 ORDER BY created_at DESC`
	out := []entity.SlotBooking{}
	if err := r.db.SelectContext(ctx, &out, q, userID); err != nil {
		return nil, err
	}
	return out, nil
}
