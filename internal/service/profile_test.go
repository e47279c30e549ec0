package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/model"
)

func TestProfileService_CreateTwice(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, e.profile.Create(ctx, &model.Profile{UID: "u1", Username: "alex"}))
	err := e.profile.Create(ctx, &model.Profile{UID: "u1", Username: "alex"})
	assert.ErrorIs(t, err, apperror.ErrAlreadyExists)
}

func TestProfileService_UpdatePartial(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.profile.Create(ctx, &model.Profile{UID: "u1", Username: "alex", DisplayName: "Alex", Bio: "hi"}))

	got, err := e.profile.Update(ctx, "u1", model.ProfileUpdate{
		Location: strPtr("  Dhaka  "),
		Contacts: map[model.Channel]string{"GitHub": " alexdev "},
	})
	require.NoError(t, err)
	assert.Equal(t, "Alex", got.DisplayName)
	assert.Equal(t, "hi", got.Bio)
	assert.Equal(t, "Dhaka", got.Location)
	assert.Equal(t, "alexdev", got.Contacts.GitHub)
}

func TestProfileService_UpdateValidation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.profile.Create(ctx, &model.Profile{UID: "u1"}))

	tests := []struct {
		name  string
		u     model.ProfileUpdate
		field string
	}{
		{"unknown channel", model.ProfileUpdate{Contacts: map[model.Channel]string{"myspace": "tom"}}, "contacts"},
		{"long bio", model.ProfileUpdate{Bio: strPtr(strings.Repeat("b", MaxBioLength+1))}, "bio"},
		{"long display name", model.ProfileUpdate{DisplayName: strPtr(strings.Repeat("n", MaxDisplayNameLength+1))}, "displayName"},
		{"long order", model.ProfileUpdate{ContactsOrder: make([]string, MaxContactsOrderLen+1)}, "contactsOrder"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.profile.Update(ctx, "u1", tt.u)
			require.ErrorIs(t, err, apperror.ErrValidation)
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestProfileService_ContactsOrderKeptVerbatim(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.profile.Create(ctx, &model.Profile{UID: "u1"}))

	got, err := e.profile.Update(ctx, "u1", model.ProfileUpdate{ContactsOrder: []string{"myspace", "email"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"myspace", "email"}, got.ContactsOrder)
}

func TestProfileService_UpdateMissing(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.profile.Update(context.Background(), "nobody", model.ProfileUpdate{Bio: strPtr("x")})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
