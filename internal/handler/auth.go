package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/auth"
	"github.com/sakif/linkbio/internal/service"
)

const oauthStateCookie = "linkbio_oauth_state"

// AuthHandler runs sign-up, sign-in and sign-out.
//
// THE OAUTH FLOW:
//  1. GET /auth/{provider}/login sets a random state cookie and redirects
//     to the provider with the same state.
//  2. The provider redirects back to /auth/{provider}/callback with a code.
//  3. The callback checks the state against the cookie (CSRF), clears it,
//     and hands the code to AccountService.SignInWithCode.
//  4. A first sign-in derives a username and creates the profile.
//  5. The session token goes into an HttpOnly cookie; the browser lands on /.
//
// Local accounts skip steps 1 to 3: register and login return the token in
// the body as well, for clients that send a Bearer header instead.
//
//   - HandleRegister / HandleLogin  local email and password
//   - HandleProviderLogin           redirect to an OAuth provider
//   - HandleProviderCallback        finish the OAuth flow, issue a session
//   - HandleLogout                  clear the session cookie
type AuthHandler struct {
	accounts  *service.AccountService
	providers auth.Providers
	tokens    *auth.TokenService
	secure    bool // set the Secure flag on cookies
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler. secure should be true when the site
// is served over HTTPS.
func NewAuthHandler(
	accounts *service.AccountService,
	providers auth.Providers,
	tokens *auth.TokenService,
	secure bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		accounts:  accounts,
		providers: providers,
		tokens:    tokens,
		secure:    secure,
		logger:    logger,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates a local account and signs it in.
//
// HTTP: POST /auth/register
// REQUEST BODY: {"email": "...", "password": "...", "username": "alex"}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.accounts.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.startSession(w, res, http.StatusCreated)
}

// HandleLogin signs in with a local email and password.
//
// HTTP: POST /auth/login
// REQUEST BODY: {"email": "...", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.startSession(w, res, http.StatusOK)
}

// HandleProviderLogin redirects the browser to the provider's consent page.
// A random state is kept in a short-lived cookie and checked on callback.
//
// HTTP: GET /auth/{provider}/login
func (h *AuthHandler) HandleProviderLogin(w http.ResponseWriter, r *http.Request) {
	p, ok := h.providers.Get(chi.URLParam(r, "provider"))
	if !ok {
		writeError(w, r, apperror.NotFound("identity provider", chi.URLParam(r, "provider")))
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, p.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleProviderCallback completes the OAuth flow: check state, exchange the
// code, sign the identity in and redirect home with a session cookie.
//
// HTTP: GET /auth/{provider}/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleProviderCallback(w http.ResponseWriter, r *http.Request) {
	p, ok := h.providers.Get(chi.URLParam(r, "provider"))
	if !ok {
		writeError(w, r, apperror.NotFound("identity provider", chi.URLParam(r, "provider")))
		return
	}

	q := r.URL.Query()
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || q.Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch", slog.String("provider", p.Name()))
		writeError(w, r, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}
	// Single use.
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/auth/", MaxAge: -1})

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("provider", p.Name()), slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	res, err := h.accounts.SignInWithCode(r.Context(), p, q.Get("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.setSessionCookie(w, res.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the session cookie. Tokens stay valid until they
// expire; without the cookie the browser no longer sends one.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) startSession(w http.ResponseWriter, res *service.AccountResult, status int) {
	h.setSessionCookie(w, res.Token)
	writeJSON(w, status, sessionResponse{
		Profile:   res.Profile,
		Token:     res.Token,
		ExpiresAt: time.Now().Add(h.tokens.TTL()).UTC(),
		Created:   res.Created,
	})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
