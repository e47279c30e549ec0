package model

import "time"

// Credential backs the local email/password identity provider.
type Credential struct {
	Email        string
	UID          string
	PasswordHash string
	CreatedAt    time.Time
}
