package entity

import "time"

// User is an account document in the `users` table. PasswordHash never leaves
// the service layer: it is excluded from JSON and cleared by Public.
type User struct {
	ID           string    `db:"id" json:"_id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	ProfileImage *string   `db:"profile_image" json:"profileImage,omitempty"`
	PasswordHash *string   `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// HasPassword reports whether a password hash is stored.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// Public returns a copy safe to hand to callers.
func (u *User) Public() *User {
	out := *u
	out.PasswordHash = nil
	return &out
}

// ProfileUpdate carries the mutable profile fields. Nil pointers leave the
// stored value untouched.
type ProfileUpdate struct {
	Name         string
	Phone        *string
	ProfileImage *string
}
