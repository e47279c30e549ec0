package model

import "time"

// Reservation maps a normalized username to the uid that holds it.
// Reservations are never mutated; a rename creates a new one.
type Reservation struct {
	Username  string    `json:"username"`
	UID       string    `json:"uid"`
	CreatedAt time.Time `json:"createdAt"`
}
