// Package repository declares the storage contracts for the three logical
// collections (usernames, users, users/{uid}/links) plus local credentials.
//
// WHY INTERFACES?
// The service layer only ever sees these interfaces. The sqlite backend
// serves a single binary with an embedded file; the postgres backend serves
// a shared server. Tests in the service package use in-memory fakes. None of
// the callers change when the backend does.
//
// ERROR CONTRACT:
// Backends live in the sqlite and postgres subpackages. Both translate driver
// errors into apperror kinds:
//
//	no row              → apperror.ErrNotFound
//	username PK taken   → apperror.ErrConflict
//	profile/email taken → apperror.ErrAlreadyExists
//	anything else       → wrapped, untyped (service reports Unavailable)
//
// SHARED COLUMN LISTS:
// columns.go keeps the profile and link column order in one place, so both
// backends scan and insert the same way and a new contact channel is one
// line in model.DefaultContactOrder.
package repository

import (
	"context"

	"github.com/sakif/linkbio/internal/model"
)

// UsernameRepository is the username registry. Reserve must be a single
// conditional create so that concurrent callers cannot both win.
type UsernameRepository interface {
	// Reserve inserts the mapping if the username is free and returns
	// apperror.ErrConflict if any uid already holds it.
	Reserve(ctx context.Context, r *model.Reservation) error
	Lookup(ctx context.Context, username string) (*model.Reservation, error)
	// Release deletes the reservation only if uid holds it.
	Release(ctx context.Context, username, uid string) error
	ListByUID(ctx context.Context, uid string) ([]model.Reservation, error)
}

// ProfileRepository stores one Profile per uid.
type ProfileRepository interface {
	// Create returns apperror.ErrAlreadyExists if uid already has a profile.
	Create(ctx context.Context, p *model.Profile) error
	Get(ctx context.Context, uid string) (*model.Profile, error)
	// Update merges the non-nil fields of u. Unknown contact channels are ignored.
	Update(ctx context.Context, uid string, u model.ProfileUpdate) error
	SetUsername(ctx context.Context, uid, username string) error
}

// LinkRepository stores the per-uid link collection. Every method is scoped
// by uid; an id owned by another uid behaves as missing.
type LinkRepository interface {
	Create(ctx context.Context, l *model.Link) error
	// List returns links ordered by COALESCE(order, 0), then id.
	List(ctx context.Context, uid string) ([]model.Link, error)
	Get(ctx context.Context, uid, id string) (*model.Link, error)
	Update(ctx context.Context, uid, id string, u model.LinkUpdate) error
	Delete(ctx context.Context, uid, id string) error
	IncrementClicks(ctx context.Context, uid, id string) error
}

// CredentialRepository stores local email/password logins.
type CredentialRepository interface {
	// Create returns apperror.ErrAlreadyExists if the email is registered.
	Create(ctx context.Context, c *model.Credential) error
	GetByEmail(ctx context.Context, email string) (*model.Credential, error)
}

// Store bundles the repositories of one backend.
type Store struct {
	Usernames   UsernameRepository
	Profiles    ProfileRepository
	Links       LinkRepository
	Credentials CredentialRepository
}
