package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// SessionCookie carries the session token. It is HttpOnly, so page scripts
// never see it.
const SessionCookie = "linkbio_session"

// contextKey is unexported so no other package can read or shadow the uid.
type contextKey string

const uidKey contextKey = "uid"

// RequireAuth rejects requests without a valid session with 401 and stores
// the uid in the context of those that have one.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, err := extractUID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUID(r.Context(), uid)))
		})
	}
}

// OptionalAuth attaches the uid when a valid session is present and lets
// anonymous requests through untouched.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if uid, err := extractUID(r, tokens); err == nil {
				r = r.WithContext(WithUID(r.Context(), uid))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUID returns a copy of ctx carrying uid.
func WithUID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, uidKey, uid)
}

// UIDFromContext returns the authenticated uid, if any.
func UIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(uidKey).(string)
	return uid, ok && uid != ""
}

// extractUID reads the session cookie, falling back to an
// "Authorization: Bearer" header for non-browser clients.
func extractUID(r *http.Request, tokens *TokenService) (string, error) {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return tokens.Validate(c.Value)
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return tokens.Validate(strings.TrimPrefix(h, "Bearer "))
	}
	return "", errors.New("auth: no session")
}
