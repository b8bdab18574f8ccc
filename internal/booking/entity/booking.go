package entity

import "time"

// Booking statuses.
const (
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Booking is a reservation of a parking spot. Date and times are stored as
// the client sent them ("2025-08-25", "14:00").
type Booking struct {
	ID            string    `db:"id" json:"_id"`
	UserID        string    `db:"user_id" json:"user_id"`
	ParkingSpotID string    `db:"parking_spot_id" json:"parking_spot_id"`
	Vehicle       string    `db:"vehicle" json:"vehicle"`
	Date          string    `db:"date" json:"date"`
	StartTime     string    `db:"start_time" json:"start_time"`
	EndTime       string    `db:"end_time" json:"end_time"`
	Price         float64   `db:"price" json:"price"`
	Status        string    `db:"status" json:"status"`
	SpotNumber    string    `db:"spot_number" json:"spot_number"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// SlotBooking is a reservation of a station slot made by the mobile app.
type SlotBooking struct {
	ID                   string     `db:"id" json:"_id"`
	SlotID               *string    `db:"slot_id" json:"slotId"`
	UserID               *string    `db:"user_id" json:"userId"`
	VehicleID            *string    `db:"vehicle_id" json:"vehicleId"`
	StationID            *string    `db:"station_id" json:"stationId"`
	BookingStartTime     *time.Time `db:"booking_start_time" json:"bookingStartTime"`
	BookingEndTime       *time.Time `db:"booking_end_time" json:"bookingEndTime"`
	AmountPaid           *float64   `db:"amount_paid" json:"amountPaid"`
	PaymentMethod        *string    `db:"payment_method" json:"paymentMethod"`
	PaymentStatus        *string    `db:"payment_status" json:"paymentStatus"`
	Status               *string    `db:"status" json:"status"`
	ReservationExpiresAt *time.Time `db:"reservation_expires_at" json:"reservationExpiresAt"`
	CancelReason         *string    `db:"cancel_reason" json:"cancelReason"`
	CreatedAt            *time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt            *time.Time `db:"updated_at" json:"updatedAt"`
}
