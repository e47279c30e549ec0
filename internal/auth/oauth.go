package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"golang.org/x/oauth2/github"
)

const (
	githubUserURL  = "https://api.github.com/user"
	googleUserInfo = "https://openidconnect.googleapis.com/v1/userinfo"
)

// githubUser is the part of GitHub's /user response we read.
type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"` // empty if hidden in GitHub settings
	AvatarURL string `json:"avatar_url"`
}

// googleUser is the part of Google's OpenID userinfo response we read.
type googleUser struct {
	Sub     string `json:"sub"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// GitHubProvider signs people in with GitHub's Authorization Code flow.
type GitHubProvider struct {
	config  *oauth2.Config
	userURL string
}

var _ IdentityProvider = (*GitHubProvider)(nil)

// NewGitHubProvider configures GitHub sign-in for an OAuth app.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		userURL: githubUserURL,
	}
}

func (p *GitHubProvider) Name() string { return ProviderGitHub }

// AuthURL builds GitHub's consent URL. state must be verified on callback.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades code for a token and reads the GitHub profile.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	var u githubUser
	if err := exchangeAndFetch(ctx, p.config, code, p.userURL, &u); err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, fmt.Errorf("%w: GitHub returned a user without an id", ErrProviderRejected)
	}
	name := u.Name
	if name == "" {
		name = u.Login
	}
	return &Identity{
		UID:          ProviderGitHub + ":" + strconv.FormatInt(u.ID, 10),
		Provider:     ProviderGitHub,
		Email:        u.Email,
		DisplayName:  name,
		PhotoURL:     u.AvatarURL,
		UsernameHint: u.Login,
	}, nil
}

// GoogleProvider signs people in with Google's OpenID Connect endpoints.
type GoogleProvider struct {
	config  *oauth2.Config
	userURL string
}

var _ IdentityProvider = (*GoogleProvider)(nil)

// NewGoogleProvider configures Google sign-in for an OAuth client.
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoints.Google,
		},
		userURL: googleUserInfo,
	}
}

func (p *GoogleProvider) Name() string { return ProviderGoogle }

func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades code for a token and reads the OpenID userinfo.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	var u googleUser
	if err := exchangeAndFetch(ctx, p.config, code, p.userURL, &u); err != nil {
		return nil, err
	}
	if u.Sub == "" {
		return nil, fmt.Errorf("%w: Google returned a user without a subject", ErrProviderRejected)
	}
	return &Identity{
		UID:         ProviderGoogle + ":" + u.Sub,
		Provider:    ProviderGoogle,
		Email:       u.Email,
		DisplayName: u.Name,
		PhotoURL:    u.Picture,
	}, nil
}

// exchangeAndFetch runs the server-side code exchange, then GETs userURL with
// the resulting token and decodes the JSON body into dst.
func exchangeAndFetch(ctx context.Context, cfg *oauth2.Config, code, userURL string, dst any) error {
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return fmt.Errorf("%w: %v", ErrProviderRejected, err)
		}
		return fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userURL, nil)
	if err != nil {
		return fmt.Errorf("auth: building user request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := cfg.Client(ctx, token).Do(req)
	if err != nil {
		return fmt.Errorf("auth: calling %s: %w", userURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: user endpoint returned %d", ErrProviderRejected, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("auth: user endpoint returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("auth: decoding user response: %w", err)
	}
	return nil
}
