package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/repository"
)

// Username rules: [a-z0-9_], length counted after trim and lowercase.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
	// DefaultMaxUsernameProbes caps the suffix search for derived usernames.
	DefaultMaxUsernameProbes = 1000
)

// NormalizeUsername trims and lowercases raw. It does not validate.
func NormalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidateUsername checks an already normalized username against
// [a-z0-9_]{3,30}.
func ValidateUsername(name string) error {
	if len(name) < MinUsernameLength || len(name) > MaxUsernameLength {
		return apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d to %d characters", MinUsernameLength, MaxUsernameLength))
	}
	for _, r := range name {
		if !isUsernameRune(r) {
			return apperror.ValidationFailed("username",
				"username may only contain lowercase letters, digits and underscores")
		}
	}
	return nil
}

func isUsernameRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
}

// Registry is the username registry. Uniqueness comes from the store's
// conditional create; the registry adds normalization, validation and the
// same-uid idempotency rule.
type Registry struct {
	repo   repository.UsernameRepository
	logger *slog.Logger
}

// NewRegistry creates a Registry.
func NewRegistry(repo repository.UsernameRepository, logger *slog.Logger) *Registry {
	return &Registry{repo: repo, logger: logger}
}

// normalize returns the normalized, validated form of raw.
func (r *Registry) normalize(raw string) (string, error) {
	name := NormalizeUsername(raw)
	if err := ValidateUsername(name); err != nil {
		return "", err
	}
	return name, nil
}

// IsAvailable reports whether nobody holds raw. The answer is advisory: call
// it immediately before Reserve, which alone decides.
func (r *Registry) IsAvailable(ctx context.Context, raw string) (bool, error) {
	name, err := r.normalize(raw)
	if err != nil {
		return false, err
	}
	_, err = r.repo.Lookup(ctx, name)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, apperror.ErrNotFound):
		return true, nil
	default:
		return false, storeError("checking username", err)
	}
}

// Reserve maps raw to uid if nobody else holds it. Reserving a name uid
// already holds returns the existing reservation, so a registration that
// crashed after this step can simply be retried.
func (r *Registry) Reserve(ctx context.Context, raw, uid string) (*model.Reservation, error) {
	name, err := r.normalize(raw)
	if err != nil {
		return nil, err
	}
	if uid == "" {
		return nil, apperror.ValidationFailed("uid", "uid is required")
	}
	return r.reserve(ctx, name, uid)
}

func (r *Registry) reserve(ctx context.Context, name, uid string) (*model.Reservation, error) {
	res := &model.Reservation{Username: name, UID: uid}
	err := r.repo.Reserve(ctx, res)
	if err == nil {
		r.logger.Info("username reserved", slog.String("username", name), slog.String("uid", uid))
		return res, nil
	}
	if !errors.Is(err, apperror.ErrConflict) {
		return nil, storeError("reserving username", err)
	}

	holder, lookupErr := r.repo.Lookup(ctx, name)
	if lookupErr == nil && holder.UID == uid {
		return holder, nil
	}
	return nil, apperror.Conflict("username", name)
}

// Resolve returns the uid holding raw.
func (r *Registry) Resolve(ctx context.Context, raw string) (string, error) {
	name := NormalizeUsername(raw)
	if name == "" {
		return "", apperror.NotFound("username", raw)
	}
	res, err := r.repo.Lookup(ctx, name)
	if err != nil {
		return "", storeError("resolving username", err)
	}
	return res.UID, nil
}

// Release frees raw if uid holds it.
func (r *Registry) Release(ctx context.Context, raw, uid string) error {
	name := NormalizeUsername(raw)
	if err := r.repo.Release(ctx, name, uid); err != nil {
		return storeError("releasing username", err)
	}
	r.logger.Info("username released", slog.String("username", name), slog.String("uid", uid))
	return nil
}

// Held lists the reservations uid holds, oldest first.
func (r *Registry) Held(ctx context.Context, uid string) ([]model.Reservation, error) {
	res, err := r.repo.ListByUID(ctx, uid)
	if err != nil {
		return nil, storeError("listing usernames", err)
	}
	return res, nil
}

// ReserveDerived reserves base, or base1, base2, ... until one is free, trying
// at most maxProbes names. base must already be a valid username.
func (r *Registry) ReserveDerived(ctx context.Context, base, uid string, maxProbes int) (*model.Reservation, error) {
	if err := ValidateUsername(base); err != nil {
		return nil, err
	}
	if maxProbes <= 0 {
		maxProbes = DefaultMaxUsernameProbes
	}

	for i := 0; i < maxProbes; i++ {
		if err := ctx.Err(); err != nil {
			return nil, storeError("reserving username", err)
		}
		name := probeName(base, i)
		res, err := r.reserve(ctx, name, uid)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
	}

	r.logger.Warn("username probe limit reached",
		slog.String("base", base), slog.Int("probes", maxProbes))
	return nil, apperror.Conflict("username", base)
}

// probeName appends the suffix i (none for 0), trimming base so the result
// stays within MaxUsernameLength.
func probeName(base string, i int) string {
	if i == 0 {
		return base
	}
	suffix := strconv.Itoa(i)
	if len(base)+len(suffix) > MaxUsernameLength {
		base = base[:MaxUsernameLength-len(suffix)]
	}
	return base + suffix
}
