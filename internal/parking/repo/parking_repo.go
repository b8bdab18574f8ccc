package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/parkpro/service-core-go/internal/parking/entity"
)

// ParkingRepo reads and writes stations and their slots.
type ParkingRepo struct {
	db *sqlx.DB
}

func NewParkingRepo(db *sqlx.DB) *ParkingRepo { return &ParkingRepo{db: db} }

// EnsureTable creates the stations and slots tables if not exists (idempotent).
func (r *ParkingRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS stations (
  id VARCHAR(32) PRIMARY KEY,
  name TEXT NOT NULL,
  address TEXT NOT NULL DEFAULT '',
  price_per_hour NUMERIC(10,2) NOT NULL DEFAULT 0,
  total_spots INTEGER NOT NULL DEFAULT 0,
  available_spots INTEGER NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS slots (
  id VARCHAR(32) PRIMARY KEY,
  station_id VARCHAR(32) NOT NULL REFERENCES stations(id) ON DELETE CASCADE,
  slot_number TEXT NOT NULL,
  slot_type TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'available',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_slots_station_id ON slots(station_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const selectStation = `SELECT id, name, address, price_per_hour, total_spots, available_spots, created_at FROM stations`

func (r *ParkingRepo) ListStations(ctx context.Context) ([]entity.Station, error) {
	out := []entity.Station{}
	if err := r.db.SelectContext(ctx, &out, selectStation+` ORDER BY name, id`); err != nil {
		return nil, err
	}
	return out, nil
}

// GetStation returns the station or sql.ErrNoRows.
func (r *ParkingRepo) GetStation(ctx context.Context, id string) (*entity.Station, error) {
	var s entity.Station
	if err := r.db.GetContext(ctx, &s, selectStation+` WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ParkingRepo) CreateStation(ctx context.Context, s *entity.Station) error {
	const q = `INSERT INTO stations (id, name, address, price_per_hour, total_spots, available_spots)
		VALUES (:id, :name, :address, :price_per_hour, :total_spots, :available_spots) RETURNING created_at`
	stmt, err := r.db.PrepareNamedContext(ctx, q)
	if err != nil {
		return err
	}
	defer stmt.Close()
	return stmt.QueryRowxContext(ctx, s).Scan(&s.CreatedAt)
}

func (r *ParkingRepo) ListSlots(ctx context.Context, stationID string) ([]entity.Slot, error) {
	const q = `SELECT id, station_id, slot_number, slot_type, status, created_at
		FROM slots WHERE station_id = $1 ORDER BY slot_number, id`
	out := []entity.Slot{}
	if err := r.db.SelectContext(ctx, &out, q, stationID); err != nil {
		return nil, err
	}
	return out, nil
}
