// Package service holds the identity and directory core:
//
//	Registry        username → uid, globally unique
//	ProfileService  one profile per uid
//	LinkService     per-uid ordered link collection
//	Resolver        username → profile + links for display
//	AccountService  registration and sign-in, tying the four together
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes JSON
//	Service (business layer) → validates, enforces uniqueness and limits
//	Repository (data layer)  → reads/writes sqlite or postgres
//
// Services validate input and speak apperror kinds. A handler never sees a
// driver error: storeError turns anything untyped into Unavailable.
//
// THE DEPENDENCY CHAIN:
//
//	server.New creates: Store → Registry, ProfileService, LinkService
//	                         → Resolver, AccountService → handlers
//	At runtime:         Handler → Service → Repository → database
//
// DEPENDENCY INJECTION:
// Every service takes repository interfaces, never *sqlite.DB or
// *postgres.DB. Tests pass the in-memory fakes from fakes_test.go, and the
// server picks the backend from config without touching this package.
//
// THE ORDERING RULE:
// A username is reserved BEFORE its profile is written. If the profile
// write fails, the uid keeps an orphaned reservation, which the next
// sign-in for that uid picks up again (see AccountService.ensureProfile).
// The reverse order could leave a profile nobody can reach by name.
package service

import (
	"context"

	"github.com/sakif/linkbio/internal/apperror"
)

// storeError passes typed errors through and reports anything else (driver
// failures, timeouts, cancellation) as UpstreamUnavailable, so callers always
// get a kind they can act on.
func storeError(op string, err error) error {
	if err == nil || apperror.Is(err) {
		return err
	}
	return apperror.Unavailable(op, err)
}

// detach keeps ctx's values but not its cancellation, for cleanup that must
// run after the caller has given up.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
