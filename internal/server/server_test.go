package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/linkbio/internal/config"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Database.Path = ":memory:"
	cfg.Auth.JWTSecret = "server-test-secret-0123456789"
	cfg.RateLimit.RPS = 0
	return cfg
}

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(s.close)
	return s
}

func serve(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, rd))
	return rec
}

func TestServer_Healthz(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := serve(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_RoutesMounted(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, http.MethodPost, "/auth/register",
		`{"email":"alex@example.com","password":"correct-horse","username":"alex"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Set-Cookie"))

	rec = serve(s, http.MethodGet, "/api/u/alex", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, http.MethodGet, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// No identity providers are configured.
	rec = serve(s, http.MethodGet, "/auth/github/login", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ProvidersFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.GitHub = config.OAuthConfig{ClientID: "gh-id", ClientSecret: "gh-secret", CallbackURL: "http://localhost/auth/github/callback"}
	s := newTestServer(t, cfg)

	rec := serve(s, http.MethodGet, "/auth/github/login", "")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "github.com")

	rec = serve(s, http.MethodGet, "/auth/google/login", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_AuthDisabledWithoutSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = ""
	s := newTestServer(t, cfg)

	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/api/u/alex", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodPost, "/auth/register", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/api/me", "").Code)
}

func TestServer_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.RPS = 1
	cfg.RateLimit.Burst = 2
	s := newTestServer(t, cfg)

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = serve(s, http.MethodGet, "/healthz", "").Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, _, err := OpenStore(context.Background(), config.DatabaseConfig{Driver: "mongo"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
