package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/linkbio/internal/auth"
	"github.com/sakif/linkbio/internal/handler"
	"github.com/sakif/linkbio/internal/repository/sqlite"
	"github.com/sakif/linkbio/internal/service"
)

type fakeProvider struct{}

func (fakeProvider) Name() string { return "fake" }

func (fakeProvider) AuthURL(state string) string {
	return "https://idp.example.com/authorize?state=" + state
}

func (fakeProvider) Exchange(_ context.Context, code string) (*auth.Identity, error) {
	if code != "good-code" {
		return nil, auth.ErrProviderRejected
	}
	return &auth.Identity{UID: "fake:1", Provider: "fake", DisplayName: "Kim Lee", UsernameHint: "kim"}, nil
}

type harness struct {
	router http.Handler
	tokens *auth.TokenService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := db.Store()

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)

	registry := service.NewRegistry(store.Usernames, logger)
	profiles := service.NewProfileService(store.Profiles, logger)
	links := service.NewLinkService(store.Links, nil, logger)
	resolver := service.NewResolver(registry, profiles, links, logger)
	accounts := service.NewAccountService(registry, profiles, store.Credentials,
		auth.NewPasswordServiceWithCost(bcrypt.MinCost), tokens, 10, logger)

	directory := handler.NewDirectoryHandler(resolver, registry, links, logger)
	owner := handler.NewOwnerHandler(resolver, profiles, links, accounts, logger)
	authH := handler.NewAuthHandler(accounts, auth.NewProviders(fakeProvider{}), tokens, false, logger)

	r := chi.NewRouter()
	r.Get("/u/{username}/links/{id}", directory.HandleClick)
	r.With(auth.OptionalAuth(tokens)).Get("/api/u/{username}", directory.HandleResolve)
	r.Get("/api/usernames/{username}", directory.HandleAvailability)
	r.Route("/api/me", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Get("/", owner.HandleMe)
		r.Patch("/profile", owner.HandleUpdateProfile)
		r.Put("/username", owner.HandleChangeUsername)
		r.Get("/links", owner.HandleListLinks)
		r.Post("/links", owner.HandleCreateLink)
		r.Post("/links/batch", owner.HandleBatch)
		r.Patch("/links/{id}", owner.HandleUpdateLink)
		r.Delete("/links/{id}", owner.HandleDeleteLink)
	})
	r.Post("/auth/register", authH.HandleRegister)
	r.Post("/auth/login", authH.HandleLogin)
	r.Post("/auth/logout", authH.HandleLogout)
	r.Get("/auth/{provider}/login", authH.HandleProviderLogin)
	r.Get("/auth/{provider}/callback", authH.HandleProviderCallback)

	return &harness{router: r, tokens: tokens}
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst))
}

// register creates an account and returns its session token.
func (h *harness) register(t *testing.T, email, username string) string {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": email, "password": "correct-horse", "username": username,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body struct {
		Token string `json:"token"`
	}
	decode(t, rec, &body)
	return body.Token
}

func TestAuthHandler_RegisterAndLogin(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "alex@example.com", "password": "correct-horse", "username": "Alex",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	var body struct {
		Profile struct {
			Username string `json:"username"`
		} `json:"profile"`
		Created bool `json:"created"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "alex", body.Profile.Username)
	assert.True(t, body.Created)

	rec = h.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "other@example.com", "password": "correct-horse", "username": "alex",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	var errBody handler.ErrorResponse
	decode(t, rec, &errBody)
	assert.Equal(t, "username_taken", errBody.Error)

	rec = h.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alex@example.com", "password": "correct-horse",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alex@example.com", "password": "wrong-horse",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOwnerHandler_RequiresAuth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOwnerHandler_LinkLifecycle(t *testing.T) {
	h := newHarness(t)
	token := h.register(t, "alex@example.com", "alex")

	rec := h.do(t, http.MethodPost, "/api/me/links", token, map[string]string{
		"title": "Portfolio", "url": "example.com", "icon": "globe",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID   string `json:"id"`
		URL  string `json:"url"`
		Href string `json:"href"`
	}
	decode(t, rec, &created)
	assert.Equal(t, "example.com", created.URL)
	assert.Equal(t, "https://example.com", created.Href)

	rec = h.do(t, http.MethodPost, "/api/me/links", token, map[string]string{"title": "", "url": "x.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPatch, "/api/me/links/"+created.ID, token, map[string]string{"title": "Work"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPatch, "/api/me/links/missing", token, map[string]string{"title": "Work"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/me/links/batch", token, map[string]any{
		"entries": []map[string]any{
			{"id": created.ID, "order": 5},
			{"id": "missing", "delete": true},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var batch struct {
		Results []service.BatchResult `json:"results"`
	}
	decode(t, rec, &batch)
	require.Len(t, batch.Results, 2)
	assert.Equal(t, service.BatchUpdated, batch.Results[0].Status)
	assert.Equal(t, service.BatchNotFound, batch.Results[1].Status)

	rec = h.do(t, http.MethodDelete, "/api/me/links/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodDelete, "/api/me/links/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/me/links", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestOwnerHandler_LinksAreScopedToCaller(t *testing.T) {
	h := newHarness(t)
	alex := h.register(t, "alex@example.com", "alex")
	sam := h.register(t, "sam@example.com", "sam")

	rec := h.do(t, http.MethodPost, "/api/me/links", alex, map[string]string{"title": "Mine", "url": "alex.dev"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var l struct {
		ID string `json:"id"`
	}
	decode(t, rec, &l)

	rec = h.do(t, http.MethodPatch, "/api/me/links/"+l.ID, sam, map[string]string{"title": "Stolen"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodDelete, "/api/me/links/"+l.ID, sam, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/me/links", alex, nil)
	assert.Contains(t, rec.Body.String(), l.ID)
}

func TestOwnerHandler_UpdateProfile(t *testing.T) {
	h := newHarness(t)
	token := h.register(t, "alex@example.com", "alex")

	rec := h.do(t, http.MethodPatch, "/api/me/profile", token, map[string]any{
		"bio":           "Gopher",
		"contacts":      map[string]string{"email": "alex@example.com"},
		"contactsOrder": []string{"github", "email"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPatch, "/api/me/profile", token, map[string]any{
		"contacts": map[string]string{"myspace": "tom"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var errBody handler.ErrorResponse
	decode(t, rec, &errBody)
	assert.Equal(t, "contacts", errBody.Field)

	rec = h.do(t, http.MethodGet, "/api/u/alex", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Profile struct {
			Bio string `json:"bio"`
			UID string `json:"uid"`
		} `json:"profile"`
		Contacts []struct {
			Channel string `json:"channel"`
			Value   string `json:"value"`
		} `json:"contacts"`
		Owner bool `json:"owner"`
	}
	decode(t, rec, &page)
	assert.Equal(t, "Gopher", page.Profile.Bio)
	assert.Empty(t, page.Profile.UID, "public view must not expose the uid")
	require.Len(t, page.Contacts, 1)
	assert.Equal(t, "email", page.Contacts[0].Channel)
	assert.False(t, page.Owner)

	rec = h.do(t, http.MethodGet, "/api/u/alex", token, nil)
	decode(t, rec, &page)
	assert.True(t, page.Owner)
}

func TestOwnerHandler_ChangeUsername(t *testing.T) {
	h := newHarness(t)
	token := h.register(t, "alex@example.com", "alex")
	h.register(t, "sam@example.com", "sam")

	rec := h.do(t, http.MethodPut, "/api/me/username", token, map[string]string{"username": "sam"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodPut, "/api/me/username", token, map[string]string{"username": "alex_dev"})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/u/alex_dev", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/u/alex", "", nil).Code)
}

func TestDirectoryHandler_ResolveAndClick(t *testing.T) {
	h := newHarness(t)
	token := h.register(t, "alex@example.com", "alex")

	rec := h.do(t, http.MethodGet, "/api/u/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/u/alex", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"links":[]`)

	rec = h.do(t, http.MethodPost, "/api/me/links", token, map[string]string{"title": "Portfolio", "url": "example.com"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var l struct {
		ID string `json:"id"`
	}
	decode(t, rec, &l)

	rec = h.do(t, http.MethodGet, "/u/alex/links/"+l.ID, "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com", rec.Header().Get("Location"))

	rec = h.do(t, http.MethodGet, "/u/alex/links/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/me/links", token, nil)
	var links []struct {
		Clicks int64 `json:"clicks"`
	}
	decode(t, rec, &links)
	require.Len(t, links, 1)
	assert.Equal(t, int64(1), links[0].Clicks)
}

func TestDirectoryHandler_PublicLinksHideOwnerFields(t *testing.T) {
	h := newHarness(t)
	token := h.register(t, "alex@example.com", "alex")

	rec := h.do(t, http.MethodPost, "/api/me/links", token, map[string]string{"title": "Portfolio", "url": "example.com"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/u/alex", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Links []map[string]any `json:"links"`
	}
	decode(t, rec, &page)
	require.Len(t, page.Links, 1)

	l := page.Links[0]
	assert.Equal(t, "Portfolio", l["title"])
	assert.Equal(t, "https://example.com", l["href"])
	assert.NotEmpty(t, l["id"])
	for _, key := range []string{"clicks", "order", "createdAt", "updatedAt", "url"} {
		assert.NotContains(t, l, key)
	}
}

func TestDirectoryHandler_Availability(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alex@example.com", "alex")

	tests := []struct {
		path      string
		status    int
		available bool
	}{
		{"/api/usernames/ALEX", http.StatusOK, false},
		{"/api/usernames/newbie", http.StatusOK, true},
		{"/api/usernames/ab", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		rec := h.do(t, http.MethodGet, tt.path, "", nil)
		require.Equal(t, tt.status, rec.Code, tt.path)
		if tt.status != http.StatusOK {
			continue
		}
		var body struct {
			Available bool `json:"available"`
		}
		decode(t, rec, &body)
		assert.Equal(t, tt.available, body.Available, tt.path)
	}
}

func TestAuthHandler_ProviderFlow(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/auth/unknown/login", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/auth/fake/login", "", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	var stateCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Value == state {
			stateCookie = c
		}
	}
	require.NotNil(t, stateCookie)

	callback := func(query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/auth/fake/callback?"+query, nil)
		req.AddCookie(stateCookie)
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusBadRequest, callback("state=forged&code=good-code").Code)
	assert.Equal(t, http.StatusUnauthorized, callback("state="+state+"&code=bad-code").Code)
	assert.Equal(t, http.StatusSeeOther, callback("state="+state+"&error=access_denied").Code)

	rec = callback("state=" + state + "&code=good-code")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	var session string
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			session = c.Value
		}
	}
	require.NotEmpty(t, session)

	rec = h.do(t, http.MethodGet, "/api/me", session, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"kim"`)
	assert.Contains(t, rec.Body.String(), `"displayName":"Kim Lee"`)
}

func TestAuthHandler_Logout(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/auth/logout", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].MaxAge < 0)
}
