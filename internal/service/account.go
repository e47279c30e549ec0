package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/auth"
	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/repository"
)

const (
	MinPasswordLength = 8
	maxEmailLength    = 254
)

// AccountService creates accounts and signs people in. It is the one place
// that touches both the registry and the profile store, and it always
// reserves the username before creating the profile: a crash in between
// leaves a reservation the same uid can reclaim, never an unreachable profile.
type AccountService struct {
	registry    *Registry
	profiles    *ProfileService
	credentials repository.CredentialRepository
	passwords   *auth.PasswordService
	tokens      *auth.TokenService
	maxProbes   int
	logger      *slog.Logger
}

// NewAccountService creates an AccountService. maxProbes bounds the suffix
// search for usernames derived from provider hints.
func NewAccountService(
	registry *Registry,
	profiles *ProfileService,
	credentials repository.CredentialRepository,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	maxProbes int,
	logger *slog.Logger,
) *AccountService {
	if maxProbes <= 0 {
		maxProbes = DefaultMaxUsernameProbes
	}
	return &AccountService{
		registry:    registry,
		profiles:    profiles,
		credentials: credentials,
		passwords:   passwords,
		tokens:      tokens,
		maxProbes:   maxProbes,
		logger:      logger,
	}
}

// AccountResult bundles the profile with a fresh session token.
type AccountResult struct {
	Profile *model.Profile
	Token   string
	Created bool // true when this call created the profile
}

// CreateAccount reserves username for uid and then creates its profile from
// seed. Retrying after a partial failure is safe: the reservation is
// idempotent for the same uid, and a second profile is AlreadyExists.
func (s *AccountService) CreateAccount(ctx context.Context, uid, username string, seed model.Profile) (*model.Profile, error) {
	res, err := s.registry.Reserve(ctx, username, uid)
	if err != nil {
		return nil, err
	}
	seed.UID = uid
	seed.Username = res.Username
	if err := s.profiles.Create(ctx, &seed); err != nil {
		return nil, err
	}
	return &seed, nil
}

// RegisterInput is a local email/password sign-up.
type RegisterInput struct {
	Email    string
	Password string
	Username string
}

// Register creates a local account: reservation, then credential, then
// profile. A taken email releases the fresh reservation again.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*AccountResult, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	// Fail fast on a taken name before paying for bcrypt. Reserve below is
	// still the authority.
	available, err := s.registry.IsAvailable(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, apperror.Conflict("username", NormalizeUsername(in.Username))
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	uid := xid.New().String()
	res, err := s.registry.Reserve(ctx, in.Username, uid)
	if err != nil {
		return nil, err
	}

	cred := &model.Credential{Email: email, UID: uid, PasswordHash: hash}
	if err := s.credentials.Create(ctx, cred); err != nil {
		if relErr := s.registry.Release(detach(ctx), res.Username, uid); relErr != nil {
			s.logger.Warn("failed to release username after failed registration",
				slog.String("username", res.Username), slog.String("error", relErr.Error()))
		}
		return nil, storeError("creating credential", err)
	}

	p := &model.Profile{UID: uid, Username: res.Username, Provider: auth.ProviderPassword}
	if err := s.profiles.Create(ctx, p); err != nil {
		s.logger.Error("registration left a reservation without a profile",
			slog.String("uid", uid), slog.String("username", res.Username))
		return nil, err
	}

	s.logger.Info("account registered", slog.String("uid", uid), slog.String("username", res.Username))
	return s.result(p, true)
}

// Login checks a local email/password and returns a session.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AccountResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	cred, err := s.credentials.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("invalid email or password")
		}
		return nil, storeError("reading credential", err)
	}
	if err := s.passwords.Verify(cred.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return nil, apperror.Unauthorized("invalid email or password")
		}
		return nil, storeError("checking password", err)
	}

	p, created, err := s.ensureProfile(ctx, &auth.Identity{UID: cred.UID, Provider: auth.ProviderPassword, Email: email})
	if err != nil {
		return nil, err
	}
	return s.result(p, created)
}

// SignInWithCode completes an OAuth callback: it exchanges code with the
// provider and signs the resulting identity in.
func (s *AccountService) SignInWithCode(ctx context.Context, provider auth.IdentityProvider, code string) (*AccountResult, error) {
	if code == "" {
		return nil, apperror.ValidationFailed("code", "authorization code is required")
	}
	id, err := provider.Exchange(ctx, code)
	if err != nil {
		if errors.Is(err, auth.ErrProviderRejected) {
			return nil, apperror.Unauthorized("sign-in was rejected by " + provider.Name())
		}
		return nil, apperror.Unavailable("signing in with "+provider.Name(), err)
	}
	return s.SignIn(ctx, id)
}

// SignIn returns the profile for an externally authenticated identity,
// creating it on first sign-in with a username derived from the identity's
// hints and seeded with its display name, photo and provider.
func (s *AccountService) SignIn(ctx context.Context, id *auth.Identity) (*AccountResult, error) {
	if id == nil || id.UID == "" {
		return nil, apperror.ValidationFailed("uid", "identity has no uid")
	}
	p, created, err := s.ensureProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info("account created via provider",
			slog.String("uid", id.UID), slog.String("provider", id.Provider), slog.String("username", p.Username))
	}
	return s.result(p, created)
}

// ensureProfile returns uid's profile, creating it if missing. A uid that
// already holds reservations (from an interrupted registration) gets its
// newest one back instead of a fresh derived name.
func (s *AccountService) ensureProfile(ctx context.Context, id *auth.Identity) (*model.Profile, bool, error) {
	p, err := s.profiles.Get(ctx, id.UID)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, err
	}

	held, err := s.registry.Held(ctx, id.UID)
	if err != nil {
		return nil, false, err
	}
	var username string
	if len(held) > 0 {
		username = held[len(held)-1].Username
		s.logger.Warn("recovering profile for orphaned reservation",
			slog.String("uid", id.UID), slog.String("username", username))
	} else {
		base := DeriveUsername(id.UsernameHint, id.DisplayName, id.Email)
		res, err := s.registry.ReserveDerived(ctx, base, id.UID, s.maxProbes)
		if err != nil {
			return nil, false, err
		}
		username = res.Username
	}

	p = &model.Profile{
		UID:         id.UID,
		Username:    username,
		DisplayName: id.DisplayName,
		Photo:       id.PhotoURL,
		Provider:    id.Provider,
	}
	if err := s.profiles.Create(ctx, p); err != nil {
		// A concurrent sign-in for the same uid won the race.
		if errors.Is(err, apperror.ErrAlreadyExists) {
			existing, getErr := s.profiles.Get(ctx, id.UID)
			return existing, false, getErr
		}
		return nil, false, err
	}
	return p, true, nil
}

// ChangeUsername moves uid to a new username: reserve the new name, point the
// profile at it, then release the old one. The old name becomes available
// to others immediately.
func (s *AccountService) ChangeUsername(ctx context.Context, uid, raw string) (*model.Profile, error) {
	p, err := s.profiles.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	name := NormalizeUsername(raw)
	if err := ValidateUsername(name); err != nil {
		return nil, err
	}
	if name == p.Username {
		return p, nil
	}

	if _, err := s.registry.Reserve(ctx, name, uid); err != nil {
		return nil, err
	}
	if err := s.profiles.SetUsername(ctx, uid, name); err != nil {
		if relErr := s.registry.Release(detach(ctx), name, uid); relErr != nil {
			s.logger.Warn("failed to roll back username reservation",
				slog.String("username", name), slog.String("error", relErr.Error()))
		}
		return nil, err
	}

	if old := p.Username; old != "" {
		if err := s.registry.Release(detach(ctx), old, uid); err != nil && !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("old username left reserved",
				slog.String("username", old), slog.String("uid", uid), slog.String("error", err.Error()))
		}
	}
	s.logger.Info("username changed", slog.String("uid", uid), slog.String("from", p.Username), slog.String("to", name))

	p.Username = name
	return p, nil
}

func (s *AccountService) result(p *model.Profile, created bool) (*AccountResult, error) {
	token, err := s.tokens.Generate(p.UID)
	if err != nil {
		return nil, fmt.Errorf("service/account: generating token for %s: %w", p.UID, err)
	}
	return &AccountResult{Profile: p, Token: token, Created: created}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperror.ValidationFailed("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || len(email) > maxEmailLength {
		return "", apperror.ValidationFailed("email", "email is not valid")
	}
	return email, nil
}

func validatePassword(pw string) error {
	if len(pw) < MinPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(pw) > auth.MaxPasswordBytes {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}
	return nil
}
