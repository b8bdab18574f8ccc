package entity

import (
	"time"

	"github.com/lib/pq"
)

// Transaction types.
const (
	TypeRecharge = "recharge"
	TypePayment  = "payment"
)

// Fastag is the prepaid toll tag of a user. One per user.
type Fastag struct {
	ID             string         `db:"id" json:"_id"`
	UserID         string         `db:"user_id" json:"user_id"`
	Balance        float64        `db:"balance" json:"balance"`
	LinkedVehicles pq.StringArray `db:"linked_vehicles" json:"linked_vehicles"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Transaction is a balance movement on a fastag.
type Transaction struct {
	ID          string    `db:"id" json:"_id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Type        string    `db:"type" json:"type"`
	Amount      float64   `db:"amount" json:"amount"`
	Date        time.Time `db:"date" json:"date"`
	Description string    `db:"description" json:"description"`
}
