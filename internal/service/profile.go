package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/repository"
)

const (
	MaxDisplayNameLength = 100
	MaxBioLength         = 500
	MaxLocationLength    = 100
	MaxContactLength     = 200
	MaxContactsOrderLen  = 32
	// Photos may be inline data URIs, hence the generous cap.
	MaxPhotoLength = 1 << 20
)

// ProfileService owns the per-uid profile record. It never touches the
// username registry.
type ProfileService struct {
	repo   repository.ProfileRepository
	logger *slog.Logger
}

// NewProfileService creates a ProfileService.
func NewProfileService(repo repository.ProfileRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{repo: repo, logger: logger}
}

// Create writes the first profile for p.UID. A second call for the same uid
// fails with AlreadyExists.
func (s *ProfileService) Create(ctx context.Context, p *model.Profile) error {
	if p.UID == "" {
		return apperror.ValidationFailed("uid", "uid is required")
	}
	p.DisplayName = clip(strings.TrimSpace(p.DisplayName), MaxDisplayNameLength)
	if len(p.Photo) > MaxPhotoLength {
		p.Photo = ""
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if !apperror.Is(err) {
			s.logger.Error("failed to create profile", slog.String("uid", p.UID), slog.String("error", err.Error()))
		}
		return storeError("creating profile", err)
	}
	s.logger.Info("profile created", slog.String("uid", p.UID), slog.String("username", p.Username))
	return nil
}

// Get returns the profile for uid.
func (s *ProfileService) Get(ctx context.Context, uid string) (*model.Profile, error) {
	if uid == "" {
		return nil, apperror.ValidationFailed("uid", "uid is required")
	}
	p, err := s.repo.Get(ctx, uid)
	if err != nil {
		return nil, storeError("reading profile", err)
	}
	return p, nil
}

// Update merges u into uid's profile and returns the result. Fields u leaves
// nil are untouched; concurrent updates are last-write-wins per field.
func (s *ProfileService) Update(ctx context.Context, uid string, u model.ProfileUpdate) (*model.Profile, error) {
	if err := validateProfileUpdate(&u); err != nil {
		return nil, err
	}
	if u.IsEmpty() {
		return s.Get(ctx, uid)
	}

	if err := s.repo.Update(ctx, uid, u); err != nil {
		if !apperror.Is(err) {
			s.logger.Error("failed to update profile", slog.String("uid", uid), slog.String("error", err.Error()))
		}
		return nil, storeError("updating profile", err)
	}
	s.logger.Info("profile updated", slog.String("uid", uid))
	return s.Get(ctx, uid)
}

// SetUsername points the profile at its new active username.
func (s *ProfileService) SetUsername(ctx context.Context, uid, username string) error {
	if err := s.repo.SetUsername(ctx, uid, username); err != nil {
		return storeError("updating profile username", err)
	}
	return nil
}

// validateProfileUpdate trims text fields and enforces length limits and the
// contact channel allow-list. contactsOrder is only length-checked: unknown
// names are kept and ignored on display.
func validateProfileUpdate(u *model.ProfileUpdate) error {
	checks := []struct {
		field string
		value *string
		max   int
	}{
		{"displayName", u.DisplayName, MaxDisplayNameLength},
		{"bio", u.Bio, MaxBioLength},
		{"location", u.Location, MaxLocationLength},
	}
	for _, c := range checks {
		if c.value == nil {
			continue
		}
		*c.value = strings.TrimSpace(*c.value)
		if utf8.RuneCountInString(*c.value) > c.max {
			return apperror.ValidationFailed(c.field,
				fmt.Sprintf("%s must be %d characters or less", c.field, c.max))
		}
	}
	if u.Photo != nil && len(*u.Photo) > MaxPhotoLength {
		return apperror.ValidationFailed("photo", "photo is too large")
	}

	if u.Contacts != nil {
		contacts := make(map[model.Channel]string, len(u.Contacts))
		for raw, v := range u.Contacts {
			ch, ok := model.ParseChannel(string(raw))
			if !ok {
				return apperror.ValidationFailed("contacts", fmt.Sprintf("unknown contact channel %q", raw))
			}
			v = strings.TrimSpace(v)
			if utf8.RuneCountInString(v) > MaxContactLength {
				return apperror.ValidationFailed("contacts."+string(ch),
					fmt.Sprintf("contact must be %d characters or less", MaxContactLength))
			}
			contacts[ch] = v
		}
		u.Contacts = contacts
	}

	if len(u.ContactsOrder) > MaxContactsOrderLen {
		return apperror.ValidationFailed("contactsOrder",
			fmt.Sprintf("contactsOrder may list at most %d channels", MaxContactsOrderLen))
	}
	return nil
}

func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
