package entity

import "time"

// Station is a parking location. The parking-spot listing reads the same rows.
type Station struct {
	ID             string    `db:"id" json:"_id"`
	Name           string    `db:"name" json:"name"`
	Address        string    `db:"address" json:"address"`
	PricePerHour   float64   `db:"price_per_hour" json:"price_per_hour"`
	TotalSpots     int       `db:"total_spots" json:"total_spots"`
	AvailableSpots int       `db:"available_spots" json:"available_spots"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Slot is a single bookable space at a station.
type Slot struct {
	ID         string    `db:"id" json:"_id"`
	StationID  string    `db:"station_id" json:"stationId"`
	SlotNumber string    `db:"slot_number" json:"slotNumber"`
	Type       string    `db:"slot_type" json:"type"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
