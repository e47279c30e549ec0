package service

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/model"
)

// ResolutionState is where a username lookup ended.
type ResolutionState int

const (
	// StateNotFound: no reservation for the username.
	StateNotFound ResolutionState = iota
	// StateProfileMissing: the username is reserved but its uid has no
	// profile. Shown publicly as not found; logged as an integrity anomaly.
	StateProfileMissing
	// StateResolved: profile and links were read.
	StateResolved
)

func (s ResolutionState) String() string {
	switch s {
	case StateNotFound:
		return "not_found"
	case StateProfileMissing:
		return "profile_missing"
	case StateResolved:
		return "resolved"
	}
	return "unknown"
}

// Resolution is a renderable profile with its links.
type Resolution struct {
	State    ResolutionState
	Username string
	UID      string
	Profile  *model.Profile
	Contacts []model.ContactEntry
	Links    []model.Link
	// Partial is set when the profile was read but the links were not; Links
	// is then empty rather than the call failing.
	Partial bool
}

// Resolver is the only path from a username to a renderable profile.
type Resolver struct {
	registry *Registry
	profiles *ProfileService
	links    *LinkService
	logger   *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(registry *Registry, profiles *ProfileService, links *LinkService, logger *slog.Logger) *Resolver {
	return &Resolver{registry: registry, profiles: profiles, links: links, logger: logger}
}

// Lookup runs the full state machine for username and reports the state it
// ended in. Errors are returned only for store failures.
func (r *Resolver) Lookup(ctx context.Context, username string) (*Resolution, error) {
	name := NormalizeUsername(username)
	uid, err := r.registry.Resolve(ctx, name)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return &Resolution{State: StateNotFound, Username: name}, nil
		}
		return nil, err
	}

	res, err := r.read(ctx, uid)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			r.logger.Warn("username resolves to a uid without a profile",
				slog.String("username", name), slog.String("uid", uid))
			return &Resolution{State: StateProfileMissing, Username: name, UID: uid}, nil
		}
		return nil, err
	}
	res.Username = name
	return res, nil
}

// ResolvePublic returns the profile and links behind username. Both a
// registry miss and a missing profile are NotFound to the caller.
func (r *Resolver) ResolvePublic(ctx context.Context, username string) (*Resolution, error) {
	res, err := r.Lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	if res.State != StateResolved {
		return nil, apperror.NotFound("profile", res.Username)
	}
	return res, nil
}

// ResolvePrivate returns the owner's own profile and links by uid. It never
// consults the registry.
func (r *Resolver) ResolvePrivate(ctx context.Context, uid string) (*Resolution, error) {
	res, err := r.read(ctx, uid)
	if err != nil {
		return nil, err
	}
	res.Username = res.Profile.Username
	return res, nil
}

// read fetches profile and links concurrently. A profile failure fails the
// read; a links failure only marks the result Partial.
func (r *Resolver) read(ctx context.Context, uid string) (*Resolution, error) {
	var (
		profile  *model.Profile
		links    []model.Link
		linksErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := r.profiles.Get(gctx, uid)
		if err != nil {
			return err
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		links, linksErr = r.links.List(gctx, uid)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Resolution{
		State:    StateResolved,
		UID:      uid,
		Profile:  profile,
		Contacts: profile.DisplayContacts(),
		Links:    links,
	}
	if linksErr != nil {
		r.logger.Warn("links unavailable, serving partial profile",
			slog.String("uid", uid), slog.String("error", linksErr.Error()))
		res.Links = []model.Link{}
		res.Partial = true
	}
	return res, nil
}
